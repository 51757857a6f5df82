package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_WriteRead(t *testing.T) {
	r := NewRing[int](4, DropOldest)

	assert.True(t, r.Write(1))
	assert.True(t, r.Write(2))
	assert.Equal(t, 2, r.Len())

	v, ok := r.Read()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Read()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = r.Read()
	assert.False(t, ok)
}

func TestRing_DropOldest(t *testing.T) {
	r := NewRing[int](3, DropOldest)
	for i := 1; i <= 5; i++ {
		r.Write(i)
	}

	assert.Equal(t, 3, r.Len())
	got := r.ReadBatch(10)
	assert.Equal(t, []int{3, 4, 5}, got)
	assert.Equal(t, uint64(2), r.Stats().Dropped)
}

func TestRing_DropNewest(t *testing.T) {
	r := NewRing[int](3, DropNewest)
	for i := 1; i <= 5; i++ {
		r.Write(i)
	}

	got := r.ReadBatch(10)
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, uint64(2), r.Stats().Dropped)
}

func TestRing_ReadBatchPartial(t *testing.T) {
	r := NewRing[string](8, DropOldest)
	r.Write("a")
	r.Write("b")
	r.Write("c")

	got := r.ReadBatch(2)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, r.Len())
}

func TestRing_Clear(t *testing.T) {
	r := NewRing[int](4, DropOldest)
	r.Write(1)
	r.Write(2)
	r.Clear()

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, Stats{}, r.Stats())
}

func TestRing_WrapAround(t *testing.T) {
	r := NewRing[int](3, DropOldest)
	r.Write(1)
	r.Write(2)
	r.Read()
	r.Write(3)
	r.Write(4)

	got := r.ReadBatch(3)
	assert.Equal(t, []int{2, 3, 4}, got)
}

func TestWindow_AppendLatest(t *testing.T) {
	w := NewWindow(5)
	w.Append(1, 2, 3)

	assert.Nil(t, w.Latest(4))
	assert.Equal(t, []float64{2, 3}, w.Latest(2))
	assert.Equal(t, 3, w.Len())
}

func TestWindow_CapacityEviction(t *testing.T) {
	w := NewWindow(4)
	w.Append(1, 2, 3, 4, 5, 6)

	assert.Equal(t, 4, w.Len())
	assert.Equal(t, []float64{3, 4, 5, 6}, w.Latest(4))
}

func TestWindow_Advance(t *testing.T) {
	w := NewWindow(8)
	w.Append(1, 2, 3, 4, 5, 6)
	w.Advance(2)

	assert.Equal(t, 4, w.Len())
	assert.Equal(t, []float64{3, 4, 5, 6}, w.Latest(4))

	w.Advance(100)
	assert.Equal(t, 0, w.Len())
}

// Overlapped analysis arithmetic: 500-sample window with a 250-sample hop
// yields a fresh full window every 250 appended samples.
func TestWindow_OverlapCycle(t *testing.T) {
	const windowLen, hop = 500, 250
	w := NewWindow(2 * windowLen)

	for i := 0; i < windowLen; i++ {
		w.Append(float64(i))
	}
	first := w.Latest(windowLen)
	require.NotNil(t, first)
	assert.Equal(t, float64(0), first[0])

	w.Advance(hop)
	for i := 0; i < hop; i++ {
		w.Append(float64(windowLen + i))
	}
	second := w.Latest(windowLen)
	require.NotNil(t, second)
	assert.Equal(t, float64(hop), second[0])
	assert.Equal(t, float64(windowLen+hop-1), second[windowLen-1])
}
