//go:build darwin || netbsd || freebsd || openbsd || dragonfly

package bloomd

import (
	"sync"

	"golang.org/x/sys/unix"
)

func newPlatformPoller() (poller, error) {
	return newKqueuePoller()
}

type fdRegistration struct {
	read, write *watcher
}

type kqueuePoller struct {
	kq int

	mu   sync.Mutex
	regs map[int]*fdRegistration

	wakeRead  int
	wakeWrite int
	wakeWatch *watcher
}

func newKqueuePoller() (*kqueuePoller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, newError("Kqueue", ErrCodeInit, err)
	}
	if _, err := unix.FcntlInt(uintptr(kq), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
		unix.Close(kq)
		return nil, newError("Fcntl", ErrCodeInit, err)
	}

	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		unix.Close(kq)
		return nil, newError("Pipe2", ErrCodeInit, err)
	}

	p := &kqueuePoller{
		kq:        kq,
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

func (p *kqueuePoller) WakeupWatcher() *watcher { return p.wakeWatch }

func (p *kqueuePoller) SignalWakeup() error {
	var b [1]byte
	_, err := unix.Write(p.wakeWrite, b[:])
	if err != nil && isTransient(err) {
		return nil
	}
	return err
}

func (p *kqueuePoller) StartWatcher(w *watcher) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	reg, ok := p.regs[w.fd]
	if !ok {
		reg = &fdRegistration{}
		p.regs[w.fd] = reg
	}

	var filter int16
	if w.kind == watcherConnWrite {
		reg.write = w
		filter = unix.EVFILT_WRITE
	} else {
		reg.read = w
		filter = unix.EVFILT_READ
	}

	kev := unix.Kevent_t{
		Ident:  uint64(w.fd),
		Filter: filter,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
	}
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		return newError("Kevent", ErrCodeIO, err)
	}
	return nil
}

func (p *kqueuePoller) StopWatcher(w *watcher) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	reg, ok := p.regs[w.fd]
	if !ok {
		return nil
	}

	var filter int16
	if w.kind == watcherConnWrite {
		reg.write = nil
		filter = unix.EVFILT_WRITE
	} else {
		reg.read = nil
		filter = unix.EVFILT_READ
	}

	kev := unix.Kevent_t{
		Ident:  uint64(w.fd),
		Filter: filter,
		Flags:  unix.EV_DELETE,
	}
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil); err != nil && err != unix.ENOENT {
		return newError("Kevent", ErrCodeIO, err)
	}

	if reg.read == nil && reg.write == nil {
		delete(p.regs, w.fd)
	}
	return nil
}

func (p *kqueuePoller) RunOneIteration(rec *eventRecord) error {
	events := make([]unix.Kevent_t, 1)
	for {
		n, err := unix.Kevent(p.kq, nil, events, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return newError("Kevent", ErrCodeIO, err)
		}
		if n == 0 {
			continue
		}

		kev := events[0]
		fd := int(kev.Ident)

		p.mu.Lock()
		reg, ok := p.regs[fd]
		p.mu.Unlock()
		if !ok {
			continue
		}

		if kev.Filter == unix.EVFILT_READ && reg.read != nil {
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

		if kev.Filter == unix.EVFILT_WRITE && reg.write != nil {
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

func (p *kqueuePoller) drainWakeByte() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.wakeRead, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (p *kqueuePoller) BreakLoop() error {
	return p.SignalWakeup()
}

func (p *kqueuePoller) Close() error {
	unix.Close(p.wakeRead)
	unix.Close(p.wakeWrite)
	return unix.Close(p.kq)
}
