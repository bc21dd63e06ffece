package bloomd

// watcherKind identifies what a watcher's firing means to the dispatcher.
type watcherKind uint8

const (
	watcherListener watcherKind = iota
	watcherConnRead
	watcherConnWrite
	watcherAsyncWakeup
	watcherUDP
)

// watcher is a readiness registration on a descriptor. The same
// descriptor carries independent read and write watchers so the
// read-path and write-path state machines can be armed and disarmed
// separately even though both ultimately register interest on one fd.
type watcher struct {
	fd   int
	kind watcherKind

	conn *Conn         // set for watcherConnRead / watcherConnWrite
	ln   *tcpListener  // set for watcherListener
	udp  *udpSocket    // set for watcherUDP
}

// eventRecord is the per-worker-thread "user data" slot described in
// §4.3: it is attached to a single call to RunOneIteration rather than
// to the poller itself, so the leader that makes the call is the one
// that learns which watcher fired, with no shared queue to walk.
type eventRecord struct {
	watcher *watcher
	events  uint32
}

// poller is the narrow interface the core uses over the kernel's
// readiness facility (epoll on Linux, kqueue on BSD/Darwin). It exposes
// five capabilities (start, stop, run one iteration, break, and the
// wakeup watcher), plus SignalWakeup, the mechanism that realizes "a
// watcher whose firing is triggered by a cross-thread signal," and Close.
// Kept this narrow, it also admits a deterministic fake implementation
// for tests.
type poller interface {
	StartWatcher(w *watcher) error
	StopWatcher(w *watcher) error
	RunOneIteration(rec *eventRecord) error
	BreakLoop() error
	SignalWakeup() error
	WakeupWatcher() *watcher
	Close() error
}

const (
	evRead  uint32 = 1 << 0
	evWrite uint32 = 1 << 1
)
