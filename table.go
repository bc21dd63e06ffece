package bloomd

import (
	"sync"

	"golang.org/x/sys/unix"
)

// connTable maps a kernel descriptor to its Conn record with a dense,
// doubling slice indexed by descriptor number. Only getOrCreate (which
// also grows the slice) and forEach touch mu; the steady-state read/write
// fast path never uses the table once a Conn has been handed out —
// per-connection access is mediated by the Conn's own outputMu or by
// leader exclusion.
type connTable struct {
	mu    sync.Mutex
	slots []*Conn
	limit int // RLIMIT_NOFILE ceiling on table growth
}

func newConnTable() (*connTable, error) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return nil, newError("newConnTable", ErrCodeInit, err)
	}
	limit := int(rlim.Cur)
	if limit <= 0 {
		limit = 65536
	}
	return &connTable{
		slots: make([]*Conn, 1024),
		limit: limit,
	}, nil
}

// getOrCreate returns the Conn record for fd, growing the table and
// allocating a fresh record if necessary.
func (t *connTable) getOrCreate(fd int, ctx *Context) (*Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fd >= t.limit {
		return nil, newError("connTable.getOrCreate", ErrCodeExhausted, errFdOutOfRange)
	}
	for fd >= len(t.slots) {
		newSize := len(t.slots) * 2
		if newSize > t.limit {
			newSize = t.limit + 1
		}
		grown := make([]*Conn, newSize)
		copy(grown, t.slots)
		t.slots = grown
	}
	if t.slots[fd] == nil {
		t.slots[fd] = &Conn{fd: fd, ctx: ctx}
	}
	return t.slots[fd], nil
}

// forEach invokes fn for every non-nil slot. fn must not mutate the table.
func (t *connTable) forEach(fn func(*Conn)) {
	t.mu.Lock()
	slots := t.slots
	t.mu.Unlock()
	for _, c := range slots {
		if c != nil {
			fn(c)
		}
	}
}

type fdRangeError string

func (e fdRangeError) Error() string { return string(e) }

var errFdOutOfRange fdRangeError = "descriptor exceeds RLIMIT_NOFILE"
