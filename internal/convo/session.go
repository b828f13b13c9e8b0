package convo

import (
	"sync"
	"time"
)

// Step is a conversation state for one chat identity.
type Step int

const (
	// StepAwaitingEmail waits for the user to send their purchase email.
	StepAwaitingEmail Step = iota + 1
	// StepAwaitingOrderID waits for the numeric order identifier.
	StepAwaitingOrderID
)

// Session is the per-chat verification progress. Absence of a session means
// "no pending verification", not "unverified forever".
type Session struct {
	Step         Step
	PendingEmail string
}

type chatEntry struct {
	mu      sync.Mutex
	sess    *Session
	touched time.Time
}

// SessionStore holds in-flight verification sessions keyed by chat identity.
// All access goes through Acquire, which hands out the chat's lock; the
// engine holds it for the whole event so a restart command cannot race an
// in-flight order verification for the same chat.
//
// Pending emails are reserved across chats: while one chat carries an email
// through verification, no other chat can enter verification with the same
// email. The reservation is released when the session clears or is evicted.
//
// Sessions are process-lifetime only. A janitor evicts entries untouched for
// longer than the TTL so abandoned verifications do not accumulate forever.
type SessionStore struct {
	mu      sync.Mutex
	entries map[int64]*chatEntry
	pending map[string]int64 // email -> chat holding it

	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithSessionClock overrides the time source, for tests.
func WithSessionClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		s.now = now
	}
}

// NewSessionStore creates a session store and starts the eviction janitor.
func NewSessionStore(ttl time.Duration, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		entries: make(map[int64]*chatEntry),
		pending: make(map[string]int64),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.janitor()
	return s
}

// ChatLock is an acquired per-chat handle. The chat's events are mutually
// exclusive while the lock is held. Callers must Release.
type ChatLock struct {
	store  *SessionStore
	chatID int64
	entry  *chatEntry
}

// Acquire locks the chat identity and returns a handle for session access.
func (s *SessionStore) Acquire(chatID int64) *ChatLock {
	for {
		s.mu.Lock()
		e, ok := s.entries[chatID]
		if !ok {
			e = &chatEntry{touched: s.now()}
			s.entries[chatID] = e
		}
		s.mu.Unlock()

		e.mu.Lock()

		// The janitor may have evicted this entry while we were blocked on
		// its lock; retry against the map so no update lands on an orphan.
		s.mu.Lock()
		current := s.entries[chatID]
		s.mu.Unlock()
		if current == e {
			return &ChatLock{store: s, chatID: chatID, entry: e}
		}
		e.mu.Unlock()
	}
}

// Release unlocks the chat identity.
func (c *ChatLock) Release() {
	c.entry.mu.Unlock()
}

// Get returns a copy of the chat's session, if one exists.
func (c *ChatLock) Get() (Session, bool) {
	if c.entry.sess == nil {
		return Session{}, false
	}
	return *c.entry.sess, true
}

// Set stores the chat's session and refreshes its last-touched time. A
// non-empty PendingEmail is reserved for this chat; Set reports false and
// leaves the session untouched when another chat already holds the same
// email in flight.
func (c *ChatLock) Set(sess Session) bool {
	s := c.store
	s.mu.Lock()
	if sess.PendingEmail != "" {
		if owner, held := s.pending[sess.PendingEmail]; held && owner != c.chatID {
			s.mu.Unlock()
			return false
		}
	}
	if prev := c.entry.sess; prev != nil && prev.PendingEmail != "" && prev.PendingEmail != sess.PendingEmail {
		delete(s.pending, prev.PendingEmail)
	}
	if sess.PendingEmail != "" {
		s.pending[sess.PendingEmail] = c.chatID
	}
	s.mu.Unlock()

	c.entry.sess = &sess
	c.entry.touched = s.now()
	return true
}

// Clear removes the chat's session and releases its email reservation.
func (c *ChatLock) Clear() {
	s := c.store
	if prev := c.entry.sess; prev != nil && prev.PendingEmail != "" {
		s.mu.Lock()
		delete(s.pending, prev.PendingEmail)
		s.mu.Unlock()
	}
	c.entry.sess = nil
	c.entry.touched = s.now()
}

// Close stops the eviction janitor.
func (s *SessionStore) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Len returns the number of chats with a live session, for tests.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.sess != nil {
			n++
		}
	}
	return n
}

func (s *SessionStore) janitor() {
	interval := s.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep evicts entries untouched for longer than the TTL. Entries whose lock
// is held are skipped and picked up on a later pass.
func (s *SessionStore) sweep() int {
	cutoff := s.now().Add(-s.ttl)
	evicted := 0

	s.mu.Lock()
	defer s.mu.Unlock()
	for chatID, e := range s.entries {
		if !e.mu.TryLock() {
			continue
		}
		if e.touched.Before(cutoff) {
			if e.sess != nil && e.sess.PendingEmail != "" {
				delete(s.pending, e.sess.PendingEmail)
			}
			delete(s.entries, chatID)
			evicted++
		}
		e.mu.Unlock()
	}
	return evicted
}
