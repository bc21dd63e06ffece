package bloomd

import (
	"fmt"

	"github.com/shakefu/bloomd/internal/obslog"
	"golang.org/x/sys/unix"
)

// tcpListener owns one listening socket and the read watcher that fires
// on incoming connections.
type tcpListener struct {
	fd      int
	watcher *watcher
}

func newTCPListener(port uint16) (*tcpListener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, newError("Socket", ErrCodeInit, err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, newError("SetsockoptInt(SO_REUSEADDR)", ErrCodeInit, err)
	}

	addr := &unix.SockaddrInet4{Port: int(port)}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, newError("Bind", ErrCodeInit, err)
	}

	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, newError("Listen", ErrCodeInit, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, newError("SetNonblock", ErrCodeInit, err)
	}

	ln := &tcpListener{fd: fd}
	ln.watcher = &watcher{fd: fd, kind: watcherListener, ln: ln}
	return ln, nil
}

func (ln *tcpListener) close() error {
	return unix.Close(ln.fd)
}

// handleAccept drains every connection currently pending on the listen
// backlog, configures each accepted socket, and installs its watchers.
// The listener watcher itself is re-armed via the async queue, the same
// way connection watchers are, once accept() starts returning EAGAIN.
func (c *Context) handleAccept(ln *tcpListener) {
	for {
		nfd, sa, err := unix.Accept4(ln.fd, unix.SOCK_NONBLOCK)
		if err != nil {
			if !isTransient(err) {
				obslog.Default().Error("accept failed", "error", err)
			}
			break
		}

		if err := unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			obslog.Default().Warn("setsockopt TCP_NODELAY failed", "error", err)
		}
		if err := unix.SetsockoptInt(nfd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
			obslog.Default().Warn("setsockopt SO_KEEPALIVE failed", "error", err)
		}

		conn, err := c.table.getOrCreate(nfd, c)
		if err != nil {
			obslog.Default().Error("connection table full", "error", err)
			unix.Close(nfd)
			continue
		}

		readW := &watcher{fd: nfd, kind: watcherConnRead, conn: conn}
		writeW := &watcher{fd: nfd, kind: watcherConnWrite, conn: conn}
		conn.reset(c, nfd, sockaddrString(sa), readW, writeW)

		obslog.Default().Debug("accepted connection", "fd", nfd, "remote", conn.remoteAddr)

		c.queue.schedule(cmdScheduleWatcher, readW)
	}

	c.queue.schedule(cmdScheduleWatcher, ln.watcher)
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3], a.Port)
	case *unix.SockaddrInet6:
		return fmt.Sprintf("[%x]:%d", a.Addr, a.Port)
	default:
		return "unknown"
	}
}
