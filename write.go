package bloomd

import (
	"github.com/shakefu/bloomd/internal/obslog"
	"golang.org/x/sys/unix"
)

// sendResponse implements the DIRECT/BUFFERED write-path state machine
// described in §4.8. Every observation and mutation of useBuffered, the
// output ring, and the write-watcher scheduling decision happens under
// conn.outputMu, and the flag is re-checked after acquiring the lock so a
// racing drain between the caller's first glance and the lock is handled
// correctly.
func (c *Context) sendResponse(conn *Conn, buffers [][]byte) error {
	conn.outputMu.Lock()

	if conn.useBuffered {
		for _, b := range buffers {
			if err := conn.output.writeBytes(b); err != nil {
				conn.outputMu.Unlock()
				c.closeConn(conn)
				return err
			}
		}
		conn.outputMu.Unlock()
		return nil
	}

	total := totalLen(buffers)
	n, err := writevOnce(conn.fd, buffers)
	if err != nil && !isTransient(err) {
		conn.outputMu.Unlock()
		obslog.Default().Error("write failed", "fd", conn.fd, "error", err)
		c.closeConn(conn)
		return err
	}
	if err == nil && n == total {
		conn.outputMu.Unlock()
		return nil
	}

	// Short write, or a transient error that sent nothing: buffer the
	// exact unsent suffix so byte order is preserved across the
	// DIRECT->BUFFERED transition. A failed writev reports n == -1.
	if n < 0 {
		n = 0
	}
	if berr := bufferRemainder(conn.output, buffers, n); berr != nil {
		conn.outputMu.Unlock()
		c.closeConn(conn)
		return berr
	}
	conn.useBuffered = true
	conn.outputMu.Unlock()

	c.queue.schedule(cmdScheduleWatcher, conn.writeWatcher)
	return nil
}

// handleWrite runs when a connection's write watcher fires while it is
// in the BUFFERED state: it flushes as much of the output ring as the
// socket will currently accept.
func (c *Context) handleWrite(conn *Conn) {
	conn.outputMu.Lock()

	vecs := conn.output.writeVectors()
	if len(vecs) == 0 {
		conn.useBuffered = false
		conn.outputMu.Unlock()
		return
	}

	n, err := writevOnce(conn.fd, vecs)
	if err != nil && !isTransient(err) {
		conn.outputMu.Unlock()
		obslog.Default().Error("buffered write failed", "fd", conn.fd, "error", err)
		c.closeConn(conn)
		return
	}
	if n > 0 {
		conn.output.advanceRead(n)
	}

	if conn.output.empty() {
		conn.useBuffered = false
		conn.outputMu.Unlock()
		return
	}

	conn.outputMu.Unlock()
	if conn.schedulable.Load() {
		c.queue.schedule(cmdScheduleWatcher, conn.writeWatcher)
	}
}

// writevOnce performs exactly one writev(2) call, transparently retrying
// only on EINTR — a short write from EAGAIN/EWOULDBLOCK must surface to
// the caller so the state machine can transition to BUFFERED.
func writevOnce(fd int, buffers [][]byte) (int, error) {
	if len(buffers) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Writev(fd, buffers)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func totalLen(buffers [][]byte) int {
	n := 0
	for _, b := range buffers {
		n += len(b)
	}
	return n
}

// bufferRemainder copies the unsent suffix of buffers (bytes already at
// index < sent have gone out) into ring, preserving order.
func bufferRemainder(ring *ringBuffer, buffers [][]byte, sent int) error {
	skip := sent
	for _, b := range buffers {
		if skip >= len(b) {
			skip -= len(b)
			continue
		}
		if err := ring.writeBytes(b[skip:]); err != nil {
			return err
		}
		skip = 0
	}
	return nil
}
