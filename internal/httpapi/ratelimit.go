package httpapi

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// RateLimit is a number of requests allowed per window.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// RateLimiter tracks request rates per token using a sliding window.
type RateLimiter struct {
	mu       sync.Mutex
	counters map[string]*slidingWindow // tokenID -> window

	stop     chan struct{}
	stopOnce sync.Once
}

type slidingWindow struct {
	requests []time.Time
	limit    *RateLimit
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop, which
// runs every cleanupEvery until Stop is called.
func NewRateLimiter(cleanupEvery time.Duration) *RateLimiter {
	rl := &RateLimiter{
		counters: make(map[string]*slidingWindow),
		stop:     make(chan struct{}),
	}

	go rl.cleanupLoop(cleanupEvery)

	return rl
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow records a request for tokenID and reports whether it is within limit.
func (rl *RateLimiter) Allow(tokenID string, limit *RateLimit) bool {
	if limit == nil {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	window, exists := rl.counters[tokenID]
	if !exists {
		window = &slidingWindow{
			requests: make([]time.Time, 0, limit.Requests),
		}
		rl.counters[tokenID] = window
	}
	window.limit = limit
	window.requests = inWindow(window.requests, now.Add(-limit.Window))

	if len(window.requests) >= limit.Requests {
		return false
	}

	window.requests = append(window.requests, now)
	return true
}

// Remaining returns the requests left in the current window, or -1 when
// there is no limit.
func (rl *RateLimiter) Remaining(tokenID string, limit *RateLimit) int {
	if limit == nil {
		return -1
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	window, exists := rl.counters[tokenID]
	if !exists {
		return limit.Requests
	}

	used := len(inWindow(window.requests, time.Now().Add(-limit.Window)))
	if used > limit.Requests {
		return 0
	}
	return limit.Requests - used
}

// ResetTime returns when the oldest request in the window expires.
func (rl *RateLimiter) ResetTime(tokenID string, limit *RateLimit) time.Time {
	if limit == nil {
		return time.Time{}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	window, exists := rl.counters[tokenID]
	if !exists {
		return now.Add(limit.Window)
	}

	recent := inWindow(window.requests, now.Add(-limit.Window))
	if len(recent) == 0 {
		return now.Add(limit.Window)
	}

	// Requests are appended in time order.
	return recent[0].Add(limit.Window)
}

// tracked returns the number of tokens with a live window.
func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.counters)
}

func (rl *RateLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.cleanup(now)
		}
	}
}

// cleanup drops tokens without requests in their window.
func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for tokenID, window := range rl.counters {
		if window.limit == nil || len(inWindow(window.requests, now.Add(-window.limit.Window))) == 0 {
			delete(rl.counters, tokenID)
		}
	}
}

func inWindow(requests []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(requests) && !requests[i].After(cutoff) {
		i++
	}
	return requests[i:]
}

// rateLimitPattern matches rate limit strings like "100/hour", "50/minute", "10/second".
var rateLimitPattern = regexp.MustCompile(`^(\d+)/(hour|minute|second)$`)

// ParseRateLimit parses a rate limit string like "100/hour".
// Returns nil if the string is empty.
func ParseRateLimit(s string) (*RateLimit, error) {
	if s == "" {
		return nil, nil
	}

	matches := rateLimitPattern.FindStringSubmatch(s)
	if matches == nil {
		return nil, fmt.Errorf("invalid rate limit format: %q (expected format: N/hour, N/minute, or N/second)", s)
	}

	count, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit count: %w", err)
	}
	if count <= 0 {
		return nil, fmt.Errorf("rate limit count must be positive")
	}

	window := time.Second
	switch matches[2] {
	case "hour":
		window = time.Hour
	case "minute":
		window = time.Minute
	}

	return &RateLimit{Requests: count, Window: window}, nil
}
