package bloomd

import (
	"sync"
	"sync/atomic"

	"github.com/shakefu/bloomd/internal/obslog"
)

// Context is the process-wide singleton of the networking core: one
// instance binds the listeners, owns the connection table, and
// coordinates the leader-follower worker pool until Shutdown.
type Context struct {
	cfg Config

	filterManager  FilterManager
	requestHandler RequestHandler

	demux poller
	queue *asyncQueue

	leaderMu sync.Mutex

	table *connTable

	tcpListener *tcpListener
	udpSocket   *udpSocket

	shouldRun atomic.Bool
}

// InitNetworking binds the configured listeners and returns a Context
// ready for StartWorker. Any resource acquired before a failure is
// released before the error is returned.
func InitNetworking(cfg Config, fm FilterManager, rh RequestHandler) (*Context, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if rh == nil {
		return nil, newError("InitNetworking", ErrCodeInit, errNoHandler)
	}
	if err := rh.InitRequestHandler(); err != nil {
		return nil, newError("InitRequestHandler", ErrCodeInit, err)
	}

	demux, err := newPlatformPoller()
	if err != nil {
		return nil, err
	}

	table, err := newConnTable()
	if err != nil {
		demux.Close()
		return nil, err
	}

	c := &Context{
		cfg:            cfg,
		filterManager:  fm,
		requestHandler: rh,
		demux:          demux,
		queue:          newAsyncQueue(demux),
		table:          table,
	}

	ln, err := newTCPListener(cfg.TCPPort)
	if err != nil {
		demux.Close()
		return nil, err
	}
	c.tcpListener = ln

	if err := demux.StartWatcher(ln.watcher); err != nil {
		ln.close()
		demux.Close()
		return nil, err
	}

	if cfg.UDPPort != 0 {
		udp, err := newUDPSocket(cfg.UDPPort)
		if err != nil {
			ln.close()
			demux.Close()
			return nil, err
		}
		c.udpSocket = udp
		if err := demux.StartWatcher(udp.watcher); err != nil {
			udp.close()
			ln.close()
			demux.Close()
			return nil, err
		}
	}

	c.shouldRun.Store(true)
	obslog.Default().Info("networking core initialized", "tcp_port", cfg.TCPPort, "udp_port", cfg.UDPPort, "workers", cfg.WorkerThreads)
	return c, nil
}

// Shutdown initiates a graceful shutdown. It is deliberately minimal — an
// atomic store and one queued command — so it's safe to call from a
// signal-handling goroutine.
func (c *Context) Shutdown() {
	c.shouldRun.Store(false)
	c.queue.schedule(cmdExit, nil)
}

// Close releases every resource the Context holds: listener and
// connection descriptors, and the poller itself. Call it only after
// every StartWorker goroutine has returned (e.g. after a
// sync.WaitGroup.Wait following Shutdown).
func (c *Context) Close() {
	if err := c.tcpListener.close(); err != nil {
		obslog.Default().Warn("closing listener failed", "error", err)
	}
	if c.udpSocket != nil {
		if err := c.udpSocket.close(); err != nil {
			obslog.Default().Warn("closing udp socket failed", "error", err)
		}
	}

	c.table.forEach(func(conn *Conn) {
		if conn.schedulable.Load() {
			c.closeConn(conn)
		}
	})

	if err := c.demux.Close(); err != nil {
		obslog.Default().Warn("closing poller failed", "error", err)
	}
	obslog.Default().Info("networking core shut down")
}

// closeConn idempotently tears a connection down: it stops both
// watchers, closes the descriptor, and resets schedulable so a racing
// re-arm request becomes a no-op.
func (c *Context) closeConn(conn *Conn) {
	if !conn.schedulable.CompareAndSwap(true, false) {
		return
	}

	if err := c.demux.StopWatcher(conn.readWatcher); err != nil {
		obslog.Default().Warn("stopping read watcher failed", "fd", conn.fd, "error", err)
	}
	if err := c.demux.StopWatcher(conn.writeWatcher); err != nil {
		obslog.Default().Warn("stopping write watcher failed", "fd", conn.fd, "error", err)
	}

	closeDescriptor(conn.fd)

	conn.outputMu.Lock()
	conn.output = newRingBuffer()
	conn.useBuffered = false
	conn.outputMu.Unlock()
	conn.input = newRingBuffer()

	obslog.Default().Debug("closed connection", "fd", conn.fd)
}

type configError string

func (e configError) Error() string { return string(e) }

var errNoHandler configError = "a RequestHandler is required"
