package bloomd

import (
	"sync"
	"sync/atomic"
)

// fakePoller is a deterministic, in-memory stand-in for the platform
// pollers, used so the leader-follower loop and async queue can be
// exercised without a real epoll/kqueue descriptor.
type fakePoller struct {
	mu      sync.Mutex
	ready   []*watcher
	started map[*watcher]bool
	wake    *watcher
	woken   chan struct{}
	closed  bool

	inRunOneIteration int32
	maxConcurrent     int32
}

func newFakePoller() *fakePoller {
	p := &fakePoller{
		started: make(map[*watcher]bool),
		woken:   make(chan struct{}, 1),
	}
	p.wake = &watcher{fd: -1, kind: watcherAsyncWakeup}
	return p
}

func (p *fakePoller) StartWatcher(w *watcher) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started[w] = true
	return nil
}

func (p *fakePoller) StopWatcher(w *watcher) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.started, w)
	return nil
}

// fire queues w to be reported as ready by RunOneIteration, after any
// watchers already queued.
func (p *fakePoller) fire(w *watcher) {
	p.mu.Lock()
	p.ready = append(p.ready, w)
	p.mu.Unlock()
	select {
	case p.woken <- struct{}{}:
	default:
	}
}

func (p *fakePoller) RunOneIteration(rec *eventRecord) error {
	n := atomic.AddInt32(&p.inRunOneIteration, 1)
	for {
		old := atomic.LoadInt32(&p.maxConcurrent)
		if n <= old || atomic.CompareAndSwapInt32(&p.maxConcurrent, old, n) {
			break
		}
	}
	defer atomic.AddInt32(&p.inRunOneIteration, -1)

	<-p.woken
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.ready) == 0 {
		return nil
	}
	w := p.ready[0]
	p.ready = p.ready[1:]
	delete(p.started, w)
	rec.watcher = w
	if len(p.ready) > 0 {
		select {
		case p.woken <- struct{}{}:
		default:
		}
	}
	return nil
}

func (p *fakePoller) BreakLoop() error {
	select {
	case p.woken <- struct{}{}:
	default:
	}
	return nil
}

func (p *fakePoller) SignalWakeup() error {
	p.fire(p.wake)
	return nil
}

func (p *fakePoller) WakeupWatcher() *watcher { return p.wake }

func (p *fakePoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
