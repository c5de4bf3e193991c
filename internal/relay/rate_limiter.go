package relay

import (
	"sync"
	"time"
)

// Signaling is bursty: a single negotiation trickles dozens of ICE candidates
// in its first seconds. The window is sized so any sane two-party negotiation
// passes untouched while a runaway client cannot saturate the relay.
const (
	maxSignalsPerWindow = 600
	windowLength        = time.Minute
)

// RateLimiter implements per-connection rate limiting for relayed signals.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimit
}

// clientLimit tracks one connection's window.
type clientLimit struct {
	signalCount int
	windowStart time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimit),
	}
}

// Allow checks whether the connection may relay another signal.
func (rl *RateLimiter) Allow(connectionID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	limit, exists := rl.clients[connectionID]
	if !exists {
		rl.clients[connectionID] = &clientLimit{
			signalCount: 1,
			windowStart: now,
		}
		return true
	}

	if now.Sub(limit.windowStart) >= windowLength {
		limit.signalCount = 1
		limit.windowStart = now
		return true
	}

	if limit.signalCount >= maxSignalsPerWindow {
		return false
	}

	limit.signalCount++
	return true
}

// Cleanup removes stale entries; call periodically from the owning component.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for id, limit := range rl.clients {
		if now.Sub(limit.windowStart) > 5*windowLength {
			delete(rl.clients, id)
		}
	}
}
