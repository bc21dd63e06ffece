package bloomd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBufferWriteBytesRoundTrip(t *testing.T) {
	r := newRingBuffer()
	require.NoError(t, r.writeBytes([]byte("hello world")))
	require.Equal(t, 11, r.logicalLength())

	vecs := r.writeVectors()
	var got []byte
	for _, v := range vecs {
		got = append(got, v...)
	}
	require.Equal(t, "hello world", string(got))
}

func TestRingBufferAdvanceReadEmptiesAtBoundary(t *testing.T) {
	r := newRingBuffer()
	require.NoError(t, r.writeBytes([]byte("abc")))
	r.advanceRead(3)
	require.True(t, r.empty())
	require.Equal(t, 0, r.read)
	require.Equal(t, 0, r.write)
}

func TestRingBufferGrowPreservesContentAndLinearizes(t *testing.T) {
	r := newRingBuffer()
	// Force read/write to wrap near the end of the buffer before growing.
	r.read = len(r.buf) - 2
	r.write = len(r.buf) - 2
	require.NoError(t, r.writeBytes([]byte("wraparound-data")))

	before := r.logicalLength()
	origCap := r.capacity()
	require.NoError(t, r.grow())

	require.Equal(t, origCap*ringGrowthFactor, r.capacity())
	require.Equal(t, before, r.logicalLength())
	require.Equal(t, 0, r.read)

	vecs := r.writeVectors()
	require.Len(t, vecs, 1, "freshly grown buffer must be contiguous from index 0")
	require.Equal(t, "wraparound-data", string(vecs[0]))
}

func TestExtractToTerminatorZeroCopy(t *testing.T) {
	r := newRingBuffer()
	require.NoError(t, r.writeBytes([]byte("SET foo 1\nGET bar\n")))

	frame, ok := r.extractToTerminator('\n')
	require.True(t, ok)
	require.False(t, frame.Owned)
	require.Equal(t, "SET foo 1\x00", string(frame.Data))

	frame2, ok := r.extractToTerminator('\n')
	require.True(t, ok)
	require.Equal(t, "GET bar\x00", string(frame2.Data))

	_, ok = r.extractToTerminator('\n')
	require.False(t, ok, "no terminator left, ring is empty")
}

func TestExtractToTerminatorNoTerminatorYieldsFalse(t *testing.T) {
	r := newRingBuffer()
	require.NoError(t, r.writeBytes([]byte("partial frame without newline")))

	_, ok := r.extractToTerminator('\n')
	require.False(t, ok)
	require.Equal(t, 29, r.logicalLength(), "unread bytes must still be there for the next read")
}

func TestExtractToTerminatorWrapSpanningIsOwned(t *testing.T) {
	r := newRingBuffer()

	// Position read/write near the end of the backing array so the frame
	// written below straddles the wrap point.
	r.read = len(r.buf) - 4
	r.write = len(r.buf) - 4

	require.NoError(t, r.writeBytes([]byte("abcd\n")))

	frame, ok := r.extractToTerminator('\n')
	require.True(t, ok)
	require.True(t, frame.Owned, "a frame spanning the wrap boundary must be linearized into an owned buffer")
	require.Equal(t, "abcd\x00", string(frame.Data))
}

func TestRingBufferWriteBytesGrowsWhenFull(t *testing.T) {
	r := newRingBuffer()
	big := make([]byte, initialRingCapacity*2)
	for i := range big {
		big[i] = byte(i)
	}
	require.NoError(t, r.writeBytes(big))
	require.Equal(t, len(big), r.logicalLength())
	require.GreaterOrEqual(t, r.capacity(), len(big)+1)
}

func TestReadVectorsRespectReservedSlot(t *testing.T) {
	r := newRingBuffer()
	vecs := r.readVectors()
	total := 0
	for _, v := range vecs {
		total += len(v)
	}
	require.Equal(t, r.capacity()-1, total, "one slot must always stay reserved to disambiguate empty from full")
}
