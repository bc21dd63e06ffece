package bloomd

import (
	"sync"
	"sync/atomic"

	"github.com/shakefu/bloomd/internal/obslog"
	"golang.org/x/sys/unix"
)

// Conn is the per-descriptor connection record. It is created on a
// successful accept and may be logically closed (descriptor closed,
// buffers reset) well before its connTable slot is freed at shutdown —
// slots are only released at shutdown so the table stays indexed by
// descriptor number without ABA problems.
type Conn struct {
	fd int

	input  *ringBuffer
	output *ringBuffer

	readWatcher  *watcher
	writeWatcher *watcher

	outputMu    sync.Mutex
	useBuffered bool

	schedulable atomic.Bool

	// ctx is a non-owning back-reference: the Context owns the table that
	// owns this Conn, not the other way around.
	ctx *Context

	remoteAddr string
}

func (c *Conn) reset(ctx *Context, fd int, remoteAddr string, read, write *watcher) {
	c.fd = fd
	c.ctx = ctx
	c.remoteAddr = remoteAddr
	c.input = newRingBuffer()
	c.output = newRingBuffer()
	c.readWatcher = read
	c.writeWatcher = write
	c.outputMu.Lock()
	c.useBuffered = false
	c.outputMu.Unlock()
	c.schedulable.Store(true)
}

// ExtractToTerminator scans the connection's input ring for term and, if
// found, returns the framed bytes (terminator replaced with a null byte)
// and advances past it. It is the only way request-handler code should
// consume inbound bytes.
func (c *Conn) ExtractToTerminator(term byte) (Extracted, bool) {
	return c.input.extractToTerminator(term)
}

// SendResponse delivers the concatenation of buffers, in order, to the
// peer. It may write directly to the socket or copy into the output ring
// under backpressure; either way, bytes from successive calls on the same
// connection are never reordered.
func (c *Conn) SendResponse(buffers ...[]byte) error {
	return c.ctx.sendResponse(c, buffers)
}

// Close idempotently tears the connection down: stops its watchers,
// resets its buffers, and closes the descriptor.
func (c *Conn) Close() {
	c.ctx.closeConn(c)
}

// RemoteAddr returns the peer address captured at accept time, for
// logging.
func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// closeDescriptor closes a connection's underlying socket, logging any
// failure rather than returning it: by the time this is called the
// connection is already considered gone from the core's perspective.
func closeDescriptor(fd int) {
	if err := unix.Close(fd); err != nil {
		obslog.Default().Warn("close failed", "fd", fd, "error", err)
	}
}
