package bloomd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNewErrorCapturesErrno(t *testing.T) {
	err := newError("EpollWait", ErrCodeIO, unix.EAGAIN)
	require.Equal(t, unix.EAGAIN, err.Errno)
	require.True(t, errors.Is(err, unix.EAGAIN))
}

func TestErrorIsComparesByCode(t *testing.T) {
	a := newError("Op1", ErrCodeIO, nil)
	b := newError("Op2", ErrCodeIO, nil)
	c := newError("Op3", ErrCodeInit, nil)

	require.True(t, errors.Is(a, b))
	require.False(t, errors.Is(a, c))
}

func TestIsTransientRecognizesRetryableErrnos(t *testing.T) {
	require.True(t, isTransient(unix.EAGAIN))
	require.True(t, isTransient(unix.EWOULDBLOCK))
	require.True(t, isTransient(unix.EINTR))
	require.False(t, isTransient(unix.ECONNRESET))
	require.False(t, isTransient(nil))
}

func TestErrorMessageFormatting(t *testing.T) {
	withErrno := newError("Bind", ErrCodeInit, unix.EADDRINUSE)
	require.Contains(t, withErrno.Error(), "Bind")
	require.Contains(t, withErrno.Error(), "errno=")

	plain := newError("Close", ErrCodeIO, errors.New("boom"))
	require.Contains(t, plain.Error(), "boom")
}
