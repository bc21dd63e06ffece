package bloomd

import (
	"github.com/shakefu/bloomd/internal/obslog"
	"golang.org/x/sys/unix"
)

// udpSocket is the reserved UDP endpoint. Binding it is real; handling
// its datagrams is explicitly unimplemented (§9 Open Questions) rather
// than silently dropped — every readiness event is logged once and the
// datagram discarded.
type udpSocket struct {
	fd      int
	watcher *watcher
}

func newUDPSocket(port uint16) (*udpSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, newError("Socket", ErrCodeInit, err)
	}

	addr := &unix.SockaddrInet4{Port: int(port)}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, newError("Bind", ErrCodeInit, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, newError("SetNonblock", ErrCodeInit, err)
	}

	u := &udpSocket{fd: fd}
	u.watcher = &watcher{fd: fd, kind: watcherUDP, udp: u}
	return u, nil
}

func (u *udpSocket) close() error {
	return unix.Close(u.fd)
}

func (c *Context) handleUDP(u *udpSocket) {
	var buf [2048]byte
	n, _, err := unix.Recvfrom(u.fd, buf[:], 0)
	if err != nil && !isTransient(err) {
		obslog.Default().Warn("udp recvfrom failed", "error", err)
	} else if n > 0 {
		obslog.Default().Warn("udp datagram received but UDP handling is unimplemented", "bytes", n)
	}

	if c.shouldRun.Load() {
		c.queue.schedule(cmdScheduleWatcher, u.watcher)
	}
}
