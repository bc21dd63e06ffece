package bloomd

import (
	"github.com/shakefu/bloomd/internal/obslog"
	"golang.org/x/sys/unix"
)

// handleRead runs when a connection's read watcher fires. It drains the
// socket into the input ring and, if any bytes arrived, invokes the
// external request handler once before re-arming.
func (c *Context) handleRead(conn *Conn) {
	if conn.input.availableForWrite() < conn.input.capacity()/2 {
		if err := conn.input.grow(); err != nil {
			obslog.Default().Error("input ring growth failed", "fd", conn.fd, "error", err)
			c.closeConn(conn)
			return
		}
	}

	vecs := conn.input.readVectors()
	n, err := readv(conn.fd, vecs)

	switch {
	case n == 0 && err == nil:
		obslog.Default().Debug("peer closed connection", "fd", conn.fd)
		c.closeConn(conn)
		return
	case err != nil:
		if !isTransient(err) {
			obslog.Default().Error("read failed", "fd", conn.fd, "error", err)
			c.closeConn(conn)
			return
		}
		// EAGAIN/EINTR/EWOULDBLOCK: nothing new, just re-arm below.
	default:
		conn.input.advanceWrite(n)
	}

	if n > 0 {
		h := &Handle{Conn: conn, Filter: c.filterManager}
		if err := c.requestHandler.HandleClientRequest(h); err != nil {
			c.closeConn(conn)
			return
		}
	}

	if conn.schedulable.Load() {
		c.queue.schedule(cmdScheduleWatcher, conn.readWatcher)
	}
}

// readv performs one readv(2) call, transparently retrying on EINTR.
func readv(fd int, vecs [][]byte) (int, error) {
	if len(vecs) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Readv(fd, vecs)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}
