package bloomd

import "sync"

type cmdKind uint8

const (
	cmdScheduleWatcher cmdKind = iota
	cmdExit
)

// asyncCmd is a tagged, single-use deferred control operation. It lives
// only from enqueue to dequeue.
type asyncCmd struct {
	kind    cmdKind
	watcher *watcher
	next    *asyncCmd
}

// asyncQueue is the LIFO command list that lets worker goroutines and
// handler code ask the event loop to (re)start a watcher or exit,
// without ever mutating poller state from outside a loop iteration.
// Ordering among pending commands doesn't matter: each one names an
// idempotent goal.
type asyncQueue struct {
	mu   sync.Mutex
	head *asyncCmd

	demux poller
}

func newAsyncQueue(demux poller) *asyncQueue {
	return &asyncQueue{demux: demux}
}

func (q *asyncQueue) schedule(kind cmdKind, w *watcher) {
	cmd := &asyncCmd{kind: kind, watcher: w}
	q.mu.Lock()
	cmd.next = q.head
	q.head = cmd
	q.mu.Unlock()

	_ = q.demux.SignalWakeup()
}

// drain takes the whole pending list under lock and returns it as a
// slice, clearing the queue. Commands are handled by the caller outside
// the lock.
func (q *asyncQueue) drain() []*asyncCmd {
	q.mu.Lock()
	head := q.head
	q.head = nil
	q.mu.Unlock()

	var cmds []*asyncCmd
	for c := head; c != nil; c = c.next {
		cmds = append(cmds, c)
	}
	return cmds
}
