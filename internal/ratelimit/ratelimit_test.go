package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowExactCapacity(t *testing.T) {
	frozen := time.Now()
	l := New(5, time.Minute, WithClock(func() time.Time { return frozen }))
	defer l.Close()

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("chat-1"), "call %d within capacity should pass", i+1)
	}
	assert.False(t, l.Allow("chat-1"), "call over capacity must fail before any refill")
}

func TestAllowRefillsOverTime(t *testing.T) {
	now := time.Now()
	l := New(2, time.Minute, WithClock(func() time.Time { return now }))
	defer l.Close()

	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))

	// Half the window refills half the capacity.
	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}

func TestRefillNeverExceedsCapacity(t *testing.T) {
	now := time.Now()
	l := New(3, time.Minute, WithClock(func() time.Time { return now }))
	defer l.Close()

	assert.True(t, l.Allow("k"))

	now = now.Add(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("k"))
	}
	assert.False(t, l.Allow("k"), "long idle must not accumulate beyond capacity")
}

func TestKeysAreIndependent(t *testing.T) {
	frozen := time.Now()
	l := New(1, time.Minute, WithClock(func() time.Time { return frozen }))
	defer l.Close()

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "key b must not share key a's bucket")
}

func TestNamespacesAreIndependent(t *testing.T) {
	frozen := time.Now()
	chat := New(1, time.Minute, WithClock(func() time.Time { return frozen }))
	defer chat.Close()
	api := New(1, time.Minute, WithClock(func() time.Time { return frozen }))
	defer api.Close()

	assert.True(t, chat.Allow("42"))
	assert.False(t, chat.Allow("42"))
	assert.True(t, api.Allow("42"), "same key in a different namespace has its own bucket")
}
