package bloomd

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrorCode categorizes the failures the networking core can produce.
type ErrorCode string

const (
	ErrCodeInit        ErrorCode = "init failure"
	ErrCodeAllocator   ErrorCode = "allocator failure"
	ErrCodeIO          ErrorCode = "i/o error"
	ErrCodePeerClosed  ErrorCode = "peer closed"
	ErrCodeUnsupported ErrorCode = "unsupported"
	ErrCodeClosed      ErrorCode = "watcher closed"
	ErrCodeExhausted   ErrorCode = "descriptor space exhausted"
)

// Error is the structured error type produced by the networking core. It
// carries the failing operation, a high-level category, the originating
// errno when one exists, and the wrapped cause for errors.Is/As.
type Error struct {
	Op    string
	Code  ErrorCode
	Errno unix.Errno
	Inner error
}

func (e *Error) Error() string {
	if e.Errno != 0 {
		return fmt.Sprintf("bloomd: %s: %s (errno=%d)", e.Op, e.Code, e.Errno)
	}
	if e.Inner != nil {
		return fmt.Sprintf("bloomd: %s: %s: %v", e.Op, e.Code, e.Inner)
	}
	return fmt.Sprintf("bloomd: %s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error {
	if e.Inner != nil {
		return e.Inner
	}
	if e.Errno != 0 {
		return e.Errno
	}
	return nil
}

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// newError builds a structured Error wrapping an arbitrary cause.
func newError(op string, code ErrorCode, inner error) *Error {
	e := &Error{Op: op, Code: code, Inner: inner}
	var errno unix.Errno
	if errors.As(inner, &errno) {
		e.Errno = errno
	}
	return e
}

// ErrWatcherClosed is an *Error with Code ErrCodeClosed, usable as an
// errors.Is target for that category. No function in this package
// returns it.
var ErrWatcherClosed = &Error{Op: "networking", Code: ErrCodeClosed}

// isTransient reports whether err is a transient I/O condition that
// should be silently retried by re-arming the relevant watcher, per the
// error-handling design: EAGAIN/EWOULDBLOCK/EINTR never close a connection.
func isTransient(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}
