// Package ratelimit implements a per-key token bucket limiter.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter bounds the rate of events per key using a token bucket of fixed
// capacity refilled continuously over a window. Allow never blocks and never
// queues; a denied attempt is simply dropped by the caller.
//
// Separate Limiter instances act as independent namespaces, so a chat id and
// an API caller id that collide numerically cannot interfere.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity float64
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter allowing capacity events per window per key and
// starts the background eviction goroutine.
func New(capacity int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		buckets:  make(map[string]*bucket),
		capacity: float64(capacity),
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.evictLoop()
	return l
}

// Allow consumes one token for the key if available. A key seen for the
// first time starts with a full bucket.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.buckets[key] = b
	} else {
		l.refill(b, now)
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// refill adds tokens proportional to elapsed time, capped at capacity.
func (l *Limiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.last)
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed.Seconds() * l.capacity / l.window.Seconds()
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.last = now
}

// Close stops the background eviction goroutine.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

// Closed reports whether Close has been called.
func (l *Limiter) Closed() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

// evictLoop periodically removes idle, fully refilled buckets so the key set
// does not grow for the process lifetime.
func (l *Limiter) evictLoop() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, b := range l.buckets {
				l.refill(b, now)
				if b.tokens >= l.capacity && now.Sub(b.last) >= 0 {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Len returns the number of tracked keys, for tests and introspection.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
