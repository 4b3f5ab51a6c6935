package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps request timestamps per bucket in process memory.
type MemoryLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	windows  map[string]time.Duration
	now      func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		requests: make(map[string][]time.Time),
		windows:  make(map[string]time.Duration),
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, rule Rule, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket := bucketKey(rule, key)
	now := l.now()
	valid := pruneBefore(l.requests[bucket], now.Add(-rule.Window))
	l.windows[bucket] = rule.Window

	if len(valid) >= rule.Limit {
		l.requests[bucket] = valid
		return Decision{RetryAfter: valid[0].Add(rule.Window).Sub(now)}, nil
	}

	l.requests[bucket] = append(valid, now)
	return Decision{Allowed: true}, nil
}

// Run drops expired buckets every interval until ctx is done.
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *MemoryLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for bucket, requests := range l.requests {
		valid := pruneBefore(requests, now.Add(-l.windows[bucket]))
		if len(valid) == 0 {
			delete(l.requests, bucket)
			delete(l.windows, bucket)
			continue
		}
		l.requests[bucket] = valid
	}
}

// pruneBefore drops timestamps at or before cutoff. Timestamps are appended
// in order so the slice stays sorted.
func pruneBefore(requests []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(requests) && !requests[i].After(cutoff) {
		i++
	}
	return requests[i:]
}
