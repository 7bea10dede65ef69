package presence

import (
	"sync"
	"time"
)

// Default throttle windows. Feed ingestion is throttled session-wide,
// so a fast-moving entity can appear frozen for up to the feed window;
// that trade-off keeps push processing cheap and is acceptable for a
// meet-up-radius product.
const (
	DefaultFeedThrottle = 10 * time.Second
	DefaultUIThrottle   = 2 * time.Second
)

// Throttle rate-limits how often an update may propagate. One instance
// per feed for ingestion, plus a shorter-window instance for UI-facing
// emission.
type Throttle struct {
	mu           sync.Mutex
	minInterval  time.Duration
	lastAccepted time.Time
}

// NewThrottle creates a throttle with the given minimum interval
// between accepted updates.
func NewThrottle(minInterval time.Duration) *Throttle {
	return &Throttle{minInterval: minInterval}
}

// Accept reports whether an update at the given time may propagate.
// On acceptance lastAccepted advances to now; a rejected call is a
// cheap no-op that mutates nothing.
func (t *Throttle) Accept(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lastAccepted.IsZero() && now.Sub(t.lastAccepted) < t.minInterval {
		return false
	}
	t.lastAccepted = now
	return true
}

// Reset forgets the last accepted time so the next update is accepted
// immediately. Used when restarting monitoring.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastAccepted = time.Time{}
}
