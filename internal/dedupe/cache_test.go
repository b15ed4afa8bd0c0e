// ABOUTME: Tests for the TTL dedupe cache: repeats, expiry, and size-bounded eviction

package dedupe

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckAndMark(t *testing.T) {
	c := New(time.Minute, 10)

	assert.False(t, c.CheckAndMark("k1"), "first sighting is not a repeat")
	assert.True(t, c.CheckAndMark("k1"), "second sighting is a repeat")
	assert.False(t, c.CheckAndMark("k2"))
}

func TestExpiry(t *testing.T) {
	c := New(20*time.Millisecond, 10)

	assert.False(t, c.CheckAndMark("k1"))
	time.Sleep(40 * time.Millisecond)
	assert.False(t, c.CheckAndMark("k1"), "expired key is not a repeat")
}

func TestEvictionAtCapacity(t *testing.T) {
	c := New(time.Minute, 3)

	for i := 0; i < 3; i++ {
		c.CheckAndMark(fmt.Sprintf("k%d", i))
	}
	assert.Equal(t, 3, c.Len())

	// k0 is the oldest and gets evicted.
	c.CheckAndMark("k3")
	assert.Equal(t, 3, c.Len())
	assert.False(t, c.CheckAndMark("k0"), "evicted key reads as unseen")
}

func TestMarkRefreshesOrder(t *testing.T) {
	c := New(time.Minute, 2)

	c.CheckAndMark("a")
	c.CheckAndMark("b")
	// Touch a so b becomes the eviction candidate.
	c.CheckAndMark("a")
	c.CheckAndMark("c")

	assert.True(t, c.CheckAndMark("a"), "refreshed key survives eviction")
}
