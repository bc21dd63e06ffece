//go:build linux

package bloomd

import (
	"sync"

	"golang.org/x/sys/unix"
)

func newPlatformPoller() (poller, error) {
	return newEpollPoller()
}

// fdRegistration tracks the read and write watchers currently interested
// in one descriptor, so the two independent watcher handles can share a
// single epoll_ctl registration with an OR'd interest mask.
type fdRegistration struct {
	read, write *watcher
}

type epollPoller struct {
	epfd int

	mu   sync.Mutex
	regs map[int]*fdRegistration

	wakeRead  int
	wakeWrite int
	wakeWatch *watcher
}

func newEpollPoller() (*epollPoller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, newError("EpollCreate1", ErrCodeInit, err)
	}

	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		unix.Close(epfd)
		return nil, newError("Pipe2", ErrCodeInit, err)
	}

	p := &epollPoller{
		epfd:      epfd,
		regs:      make(map[int]*fdRegistration),
		wakeRead:  fds[0],
		wakeWrite: fds[1],
	}
	p.wakeWatch = &watcher{fd: p.wakeRead, kind: watcherAsyncWakeup}
	if err := p.StartWatcher(p.wakeWatch); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *epollPoller) WakeupWatcher() *watcher { return p.wakeWatch }

func (p *epollPoller) SignalWakeup() error {
	var b [1]byte
	_, err := unix.Write(p.wakeWrite, b[:])
	if err != nil && isTransient(err) {
		// A byte is already pending; signalling is idempotent by design.
		return nil
	}
	return err
}

func (p *epollPoller) interestMask(reg *fdRegistration) uint32 {
	var mask uint32
	if reg.read != nil {
		mask |= unix.EPOLLIN
	}
	if reg.write != nil {
		mask |= unix.EPOLLOUT
	}
	return mask
}

func (p *epollPoller) StartWatcher(w *watcher) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	reg, ok := p.regs[w.fd]
	op := unix.EPOLL_CTL_MOD
	if !ok {
		reg = &fdRegistration{}
		p.regs[w.fd] = reg
		op = unix.EPOLL_CTL_ADD
	}
	if w.kind == watcherConnWrite {
		reg.write = w
	} else {
		reg.read = w
	}

	ev := unix.EpollEvent{Fd: int32(w.fd), Events: p.interestMask(reg)}
	if err := unix.EpollCtl(p.epfd, op, w.fd, &ev); err != nil {
		return newError("EpollCtl", ErrCodeIO, err)
	}
	return nil
}

func (p *epollPoller) StopWatcher(w *watcher) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	reg, ok := p.regs[w.fd]
	if !ok {
		return nil
	}
	if w.kind == watcherConnWrite {
		reg.write = nil
	} else {
		reg.read = nil
	}

	if reg.read == nil && reg.write == nil {
		delete(p.regs, w.fd)
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, w.fd, nil); err != nil && err != unix.ENOENT {
			return newError("EpollCtl", ErrCodeIO, err)
		}
		return nil
	}

	ev := unix.EpollEvent{Fd: int32(w.fd), Events: p.interestMask(reg)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, w.fd, &ev); err != nil {
		return newError("EpollCtl", ErrCodeIO, err)
	}
	return nil
}

// RunOneIteration blocks until exactly one watcher is ready, stops it so
// it cannot re-fire before being explicitly re-armed, and records it in
// rec. A firing of the wakeup watcher drains the pending signal byte
// before returning, consuming any single coalesced wakeup.
func (p *epollPoller) RunOneIteration(rec *eventRecord) error {
	var events [1]unix.EpollEvent
	for {
		n, err := unix.EpollWait(p.epfd, events[:], -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return newError("EpollWait", ErrCodeIO, err)
		}
		if n == 0 {
			continue
		}

		ev := events[0]
		p.mu.Lock()
		reg, ok := p.regs[int(ev.Fd)]
		p.mu.Unlock()
		if !ok {
			continue
		}

		hit := ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0
		if hit && reg.read != nil {
			w := reg.read
			if err := p.StopWatcher(w); err != nil {
				return err
			}
			if w.kind == watcherAsyncWakeup {
				p.drainWakeByte()
			}
			rec.watcher = w
			rec.events = evRead
			return nil
		}

		hit = ev.Events&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0
		if hit && reg.write != nil {
			w := reg.write
			if err := p.StopWatcher(w); err != nil {
				return err
			}
			rec.watcher = w
			rec.events = evWrite
			return nil
		}
	}
}

func (p *epollPoller) drainWakeByte() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.wakeRead, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (p *epollPoller) BreakLoop() error {
	return p.SignalWakeup()
}

func (p *epollPoller) Close() error {
	unix.Close(p.wakeRead)
	unix.Close(p.wakeWrite)
	return unix.Close(p.epfd)
}
