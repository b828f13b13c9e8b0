package convo

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreSetGetClear(t *testing.T) {
	s := NewSessionStore(time.Hour)
	defer s.Close()

	lock := s.Acquire(42)
	_, ok := lock.Get()
	assert.False(t, ok, "fresh chat has no session")

	lock.Set(Session{Step: StepAwaitingEmail})
	sess, ok := lock.Get()
	require.True(t, ok)
	assert.Equal(t, StepAwaitingEmail, sess.Step)
	lock.Release()

	lock = s.Acquire(42)
	sess, ok = lock.Get()
	require.True(t, ok, "session survives across acquisitions")
	assert.Equal(t, StepAwaitingEmail, sess.Step)

	lock.Clear()
	_, ok = lock.Get()
	assert.False(t, ok)
	lock.Release()

	assert.Equal(t, 0, s.Len())
}

func TestSessionStoreChatsAreIndependent(t *testing.T) {
	s := NewSessionStore(time.Hour)
	defer s.Close()

	a := s.Acquire(1)
	a.Set(Session{Step: StepAwaitingEmail})
	a.Release()

	b := s.Acquire(2)
	_, ok := b.Get()
	assert.False(t, ok, "sessions do not leak between chats")
	b.Release()

	assert.Equal(t, 1, s.Len())
}

func TestSessionStoreSerializesSameChat(t *testing.T) {
	s := NewSessionStore(time.Hour)
	defer s.Close()

	// Concurrent read-modify-write cycles on one chat must not lose updates.
	const workers = 8
	const rounds = 50

	counter := s.Acquire(7)
	counter.Set(Session{Step: StepAwaitingEmail, PendingEmail: "0"})
	counter.Release()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				lock := s.Acquire(7)
				sess, _ := lock.Get()
				n := 0
				for _, r := range sess.PendingEmail {
					n = n*10 + int(r-'0')
				}
				lock.Set(Session{Step: StepAwaitingEmail, PendingEmail: itoa(n + 1)})
				lock.Release()
			}
		}()
	}
	wg.Wait()

	lock := s.Acquire(7)
	sess, ok := lock.Get()
	lock.Release()
	require.True(t, ok)
	assert.Equal(t, itoa(workers*rounds), sess.PendingEmail)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	return string(buf)
}

func TestSessionStoreReservesPendingEmail(t *testing.T) {
	s := NewSessionStore(time.Hour)
	defer s.Close()

	a := s.Acquire(1)
	require.True(t, a.Set(Session{Step: StepAwaitingOrderID, PendingEmail: "a@b.com"}))
	a.Release()

	b := s.Acquire(2)
	assert.False(t, b.Set(Session{Step: StepAwaitingOrderID, PendingEmail: "a@b.com"}), "email is held by chat 1")
	_, ok := b.Get()
	assert.False(t, ok, "a refused Set leaves no session behind")
	require.True(t, b.Set(Session{Step: StepAwaitingOrderID, PendingEmail: "c@d.com"}))
	b.Release()

	// A chat may refresh its own reservation.
	a = s.Acquire(1)
	require.True(t, a.Set(Session{Step: StepAwaitingOrderID, PendingEmail: "a@b.com"}))
	a.Clear()
	a.Release()

	// Clearing the session frees the email for other chats.
	b = s.Acquire(2)
	require.True(t, b.Set(Session{Step: StepAwaitingOrderID, PendingEmail: "a@b.com"}))
	b.Release()
}

func TestSessionStoreSweepReleasesReservation(t *testing.T) {
	current := time.Now()
	s := NewSessionStore(time.Minute, WithSessionClock(func() time.Time { return current }))
	defer s.Close()

	a := s.Acquire(1)
	require.True(t, a.Set(Session{Step: StepAwaitingOrderID, PendingEmail: "a@b.com"}))
	a.Release()

	current = current.Add(2 * time.Minute)
	require.Equal(t, 1, s.sweep())

	b := s.Acquire(2)
	assert.True(t, b.Set(Session{Step: StepAwaitingOrderID, PendingEmail: "a@b.com"}), "an evicted chat's email is free again")
	b.Release()
}

func TestSessionStoreSweepEvictsExpired(t *testing.T) {
	current := time.Now()
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(d)
	}

	s := NewSessionStore(time.Hour, WithSessionClock(now))
	defer s.Close()

	lock := s.Acquire(1)
	lock.Set(Session{Step: StepAwaitingEmail})
	lock.Release()

	lock = s.Acquire(2)
	lock.Set(Session{Step: StepAwaitingOrderID})
	lock.Release()

	advance(30 * time.Minute)

	// Touching chat 2 refreshes it past the sweep cutoff.
	lock = s.Acquire(2)
	lock.Set(Session{Step: StepAwaitingOrderID, PendingEmail: "a@b.com"})
	lock.Release()

	advance(45 * time.Minute)
	assert.Equal(t, 1, s.sweep(), "only the stale chat goes")

	_, ok := func() (Session, bool) {
		l := s.Acquire(1)
		defer l.Release()
		return l.Get()
	}()
	assert.False(t, ok, "expired session is gone")

	sess, ok := func() (Session, bool) {
		l := s.Acquire(2)
		defer l.Release()
		return l.Get()
	}()
	require.True(t, ok, "refreshed session survives")
	assert.Equal(t, "a@b.com", sess.PendingEmail)
}

func TestSessionStoreSweepSkipsHeldLocks(t *testing.T) {
	current := time.Now()
	s := NewSessionStore(time.Minute, WithSessionClock(func() time.Time { return current }))
	defer s.Close()

	lock := s.Acquire(1)
	lock.Set(Session{Step: StepAwaitingEmail})

	current = current.Add(2 * time.Minute)
	assert.Equal(t, 0, s.sweep(), "held entries are never evicted mid-event")
	lock.Release()
}
