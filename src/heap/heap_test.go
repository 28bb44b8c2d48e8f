package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMallocFillsThenExhausts mirrors the original kernel's malloc
// acceptance scenario: three one-megabyte blocks fit in a four
// megabyte heap, a fourth does not, and a small allocation afterward
// still succeeds out of the free tail the three blocks left behind.
func TestMallocFillsThenExhausts(t *testing.T) {
	h := Init(0x80400000, 0x400000)

	p1, ok := h.Malloc(0x100000)
	require.True(t, ok)
	p2, ok := h.Malloc(0x100000)
	require.True(t, ok)
	p3, ok := h.Malloc(0x100000)
	require.True(t, ok)

	for _, p := range []uint32{p1, p2, p3} {
		assert.GreaterOrEqual(t, p, uint32(0x80400000))
		assert.Less(t, p, uint32(0x80400000+0x400000))
		assert.Equal(t, uint32(0), p%Align)
	}
	assert.NotEqual(t, p1, p2)
	assert.NotEqual(t, p2, p3)

	_, ok = h.Malloc(0x100000)
	assert.False(t, ok, "a fourth megabyte-sized block must not fit")

	p5, ok := h.Malloc(100)
	require.True(t, ok)
	assert.GreaterOrEqual(t, p5, uint32(0x80400000))
}

func TestFreeCoalescesNeighbors(t *testing.T) {
	h := Init(0x80400000, 4096)

	a, ok := h.Malloc(512)
	require.True(t, ok)
	b, ok := h.Malloc(512)
	require.True(t, ok)
	c, ok := h.Malloc(512)
	require.True(t, ok)

	assert.Equal(t, 4, h.Blocks(), "3 allocated + 1 trailing free block")

	h.Free(b)
	h.Free(a)
	h.Free(c)

	assert.Equal(t, 1, h.Blocks(), "freeing everything must coalesce back to one block")
	assert.Equal(t, 0, h.Used())
}

func TestFreeOfUnknownAddressPanics(t *testing.T) {
	h := Init(0x80400000, 4096)
	assert.Panics(t, func() { h.Free(0x80400000 + 64) })
}

func TestDoubleFreePanics(t *testing.T) {
	h := Init(0x80400000, 4096)
	p, ok := h.Malloc(64)
	require.True(t, ok)
	h.Free(p)
	assert.Panics(t, func() { h.Free(p) })
}
