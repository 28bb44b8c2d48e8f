package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryOrdersOldestFirst(t *testing.T) {
	h := NewHistory(nil)
	h.Add("a")
	h.Add("b")
	h.Add("c")
	assert.Equal(t, []string{"a", "b", "c"}, h.Entries())
}

func TestHistoryEvictsOldestPastCapacity(t *testing.T) {
	h := NewHistory(nil)
	for i := 0; i < HistorySize+5; i++ {
		h.Add(string(rune('a' + i%26)))
	}
	assert.Equal(t, HistorySize, h.Len())
}

func TestHistoryIgnoresEmptyCommand(t *testing.T) {
	h := NewHistory(nil)
	h.Add("")
	assert.Equal(t, 0, h.Len())
}

func TestHistoryAtIndexesNewestFirst(t *testing.T) {
	h := NewHistory(nil)
	h.Add("a")
	h.Add("b")
	cmd, ok := h.At(0)
	assert.True(t, ok)
	assert.Equal(t, "b", cmd)
	cmd, ok = h.At(1)
	assert.True(t, ok)
	assert.Equal(t, "a", cmd)
}

func TestHistoryPersistCallbackReceivesFullOrderedList(t *testing.T) {
	var got []string
	h := NewHistory(func(entries []string) { got = entries })
	h.Add("a")
	h.Add("b")
	assert.Equal(t, []string{"a", "b"}, got)
}
