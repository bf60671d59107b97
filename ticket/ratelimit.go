package ticket

import (
	"sync"
	"time"
)

// RateLimiter tracks, per user and action class, when the last allowed
// action happened. State is in-memory only; losing it on restart just
// means one extra action gets through, which is fine for abuse
// throttling.
type RateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

func NewRateLimiter(window time.Duration) *RateLimiter {
	return &RateLimiter{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow reports whether the user may perform the action now. When
// allowed, the stamp is advanced; a denied call leaves it untouched so
// spamming does not extend the cooldown.
func (r *RateLimiter) Allow(userID, action string) bool {
	if r.window <= 0 {
		return true
	}

	key := userID + "/" + action
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.last[key]; ok && now.Sub(last) < r.window {
		return false
	}
	r.last[key] = now
	return true
}
