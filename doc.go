// Package bloomd implements the networking core of a line-oriented
// request/response server: a leader-follower worker pool layered over
// epoll/kqueue, per-connection circular buffers with iovec-based
// scatter/gather I/O, and a direct/buffered write-path state machine.
//
// The package accepts TCP connections, frames inbound requests on a
// caller-chosen delimiter, and hands complete frames to an external
// RequestHandler. Everything above framing — command parsing, the bloom
// filter business logic itself — lives outside this package and is
// reached only through the RequestHandler and FilterManager interfaces.
package bloomd
