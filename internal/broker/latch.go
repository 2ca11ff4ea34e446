package broker

import (
	"sync"
	"time"
)

// OfflineLatch is a process-wide flag raised on the first network failure
// and lowered only by a successful probe or broker call. While raised, the
// engine skips broker calls and order placement unconditionally.
type OfflineLatch struct {
	mu     sync.RWMutex
	active bool
	since  time.Time
}

// NewOfflineLatch returns a lowered latch.
func NewOfflineLatch() *OfflineLatch {
	return &OfflineLatch{}
}

// Set raises the latch. The first raise records the outage start; repeated
// raises keep the original timestamp.
func (l *OfflineLatch) Set() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		l.active = true
		l.since = time.Now()
	}
}

// Clear lowers the latch.
func (l *OfflineLatch) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = false
	l.since = time.Time{}
}

// Active reports whether the latch is raised.
func (l *OfflineLatch) Active() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Since returns when the latch was raised, zero when lowered.
func (l *OfflineLatch) Since() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.since
}
