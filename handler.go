package bloomd

// FilterManager is the out-of-scope business-logic collaborator: the
// core never calls into it directly, only hands a reference through to
// RequestHandler implementations via Handle.
type FilterManager interface{}

// Handle is what the core exposes to the external request handler after
// each read: the connection (for ExtractToTerminator/SendResponse/Close)
// and the filter manager the handler consults to interpret commands.
type Handle struct {
	Conn   *Conn
	Filter FilterManager
}

// RequestHandler is implemented outside this package. It frames requests
// by calling Handle.Conn.ExtractToTerminator repeatedly until it returns
// false, and emits replies via Handle.Conn.SendResponse. Returning a
// non-nil error closes the connection.
type RequestHandler interface {
	InitRequestHandler() error
	HandleClientRequest(h *Handle) error
}
