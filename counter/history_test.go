package counter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory(t *testing.T) {
	h := NewHistory(0)

	t.Run("Test Get Missing", func(t *testing.T) {
		_, ok := h.Get("1")
		assert.False(t, ok)
	})

	t.Run("Test Set Overwrites", func(t *testing.T) {
		h.Set("1", SideAbove)
		h.Set("1", SideBelow)
		side, ok := h.Get("1")
		require.True(t, ok)
		assert.Equal(t, SideBelow, side)
		assert.Equal(t, 1, h.Len())
	})

	t.Run("Test Remove Reuses Slot", func(t *testing.T) {
		h.Set("2", SideAbove)
		assert.True(t, h.Remove("1"))
		assert.False(t, h.Remove("1"))
		h.Set("3", SideAbove)
		assert.Len(t, h.slots, 2)
		assert.Equal(t, 2, h.Len())
		side, ok := h.Get("3")
		require.True(t, ok)
		assert.Equal(t, SideAbove, side)
	})

	t.Run("Test Zero Horizon Never Evicts", func(t *testing.T) {
		h.Advance(1000)
		assert.Equal(t, 0, h.Evict())
		assert.Equal(t, 2, h.Len())
	})
}

func TestHistoryEvict(t *testing.T) {
	h := NewHistory(2)
	h.Advance(1)
	h.Set("a", SideAbove)
	h.Set("b", SideAbove)

	h.Advance(2)
	h.Touch("b")
	h.Advance(3)
	assert.Equal(t, 0, h.Evict())

	h.Advance(4)
	assert.Equal(t, 1, h.Evict())
	_, ok := h.Get("a")
	assert.False(t, ok)
	_, ok = h.Get("b")
	assert.True(t, ok)

	h.Advance(5)
	assert.Equal(t, 1, h.Evict())
	assert.Equal(t, 0, h.Len())
	assert.Len(t, h.free, 2)
}
