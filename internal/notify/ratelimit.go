package notify

import (
	"sync"
	"time"
)

// rateLimiter 以滚动窗口限制每个用户的通知量。拒绝不消耗配额,
// 限额之外的发送在窗口滑动后自然恢复。
type rateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	sent   map[string][]time.Time
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	if window <= 0 {
		window = 24 * time.Hour
	}

	return &rateLimiter{
		max:    max,
		window: window,
		sent:   make(map[string][]time.Time),
	}
}

// allow 在配额内时记账并返回 true。max 非正表示不限流。
func (l *rateLimiter) allow(userID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max <= 0 {
		return true
	}

	cutoff := now.Add(-l.window)
	stamps := l.sent[userID]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.max {
		l.sent[userID] = kept
		return false
	}

	l.sent[userID] = append(kept, now)
	return true
}

func (l *rateLimiter) setMax(max int) {
	l.mu.Lock()
	l.max = max
	l.mu.Unlock()
}
