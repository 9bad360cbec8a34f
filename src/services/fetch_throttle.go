package services

import (
	"sync"
	"time"
)

type rateBucket struct {
	tokens     float64
	lastRefill time.Time
}

// FetchThrottle limits desired-event fetch requests per relay with a token
// bucket refilled at sustainedPerMinute.
type FetchThrottle struct {
	burst              int
	sustainedPerMinute int

	mu      sync.Mutex
	buckets map[string]*rateBucket
}

func NewFetchThrottle(burst, sustainedPerMinute int) *FetchThrottle {
	return &FetchThrottle{
		burst:              burst,
		sustainedPerMinute: sustainedPerMinute,
		buckets:            make(map[string]*rateBucket),
	}
}

func (a *FetchThrottle) Allow(relay string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	bucket, ok := a.buckets[relay]
	if !ok {
		bucket = &rateBucket{tokens: float64(a.burst), lastRefill: now}
		a.buckets[relay] = bucket
	}

	elapsed := now.Sub(bucket.lastRefill).Seconds()
	if elapsed > 0 {
		refillRate := float64(a.sustainedPerMinute) / 60.0
		bucket.tokens = minFloat(float64(a.burst), bucket.tokens+elapsed*refillRate)
		bucket.lastRefill = now
	}

	if bucket.tokens < 1 {
		return false
	}
	bucket.tokens--
	return true
}

// AllowAll filters relays down to those with a token available.
func (a *FetchThrottle) AllowAll(relays []string, now time.Time) []string {
	out := make([]string, 0, len(relays))
	for _, relay := range relays {
		if a.Allow(relay, now) {
			out = append(out, relay)
		}
	}
	return out
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
