package bloomd

import (
	"github.com/shakefu/bloomd/internal/obslog"
)

// StartWorker runs the leader-follower loop on the calling goroutine. It
// returns once shouldRun has become false and this goroutine has
// confirmed it should not become leader again — call it once per worker
// goroutine and join (e.g. via a sync.WaitGroup) before calling Close.
//
// At most one worker is ever inside RunOneIteration at a time: entry is
// serialized by leaderMu. The handler invoked for whatever event fired
// runs outside that lock, so handlers for different connections run
// fully in parallel across workers.
func (c *Context) StartWorker() {
	var rec eventRecord
	for {
		c.leaderMu.Lock()

		if !c.shouldRun.Load() {
			c.leaderMu.Unlock()
			return
		}

		rec = eventRecord{}
		err := c.demux.RunOneIteration(&rec)
		c.leaderMu.Unlock()

		if err != nil {
			obslog.Default().Error("poller iteration failed", "error", err)
			continue
		}
		if rec.watcher == nil {
			continue
		}

		c.dispatch(&rec)
	}
}

// dispatch routes a fired watcher to the handler appropriate to its
// kind. It always runs outside leaderMu.
func (c *Context) dispatch(rec *eventRecord) {
	w := rec.watcher
	switch w.kind {
	case watcherListener:
		c.handleAccept(w.ln)
	case watcherConnRead:
		c.handleRead(w.conn)
	case watcherConnWrite:
		c.handleWrite(w.conn)
	case watcherAsyncWakeup:
		c.drainAsyncQueue()
	case watcherUDP:
		c.handleUDP(w.udp)
	}
}

// drainAsyncQueue handles every command enqueued since the last drain.
// It is invoked as the handler for the async-wakeup watcher, on the
// worker that received that wakeup and outside leaderMu, so it can run
// while another worker is inside RunOneIteration; the poller serializes
// registration changes under its own mutex. Once workers are running,
// watchers are started only here; closeConn stops watchers directly.
func (c *Context) drainAsyncQueue() {
	for _, cmd := range c.queue.drain() {
		switch cmd.kind {
		case cmdExit:
			if err := c.demux.BreakLoop(); err != nil {
				obslog.Default().Error("break loop failed", "error", err)
			}
		case cmdScheduleWatcher:
			if err := c.demux.StartWatcher(cmd.watcher); err != nil {
				obslog.Default().Error("failed to start watcher", "fd", cmd.watcher.fd, "error", err)
			}
		default:
			obslog.Default().Error("unknown async command", "kind", cmd.kind)
		}
	}

	// The wakeup watcher itself is core machinery, never touched by
	// handler code, so it's safe to re-arm it directly rather than via
	// the queue it services.
	if c.shouldRun.Load() {
		if err := c.demux.StartWatcher(c.demux.WakeupWatcher()); err != nil {
			obslog.Default().Error("failed to re-arm wakeup watcher", "error", err)
		}
	}
}
