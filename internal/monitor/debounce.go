package monitor

import (
	"sync"
	"time"
)

// recentTriggers remembers when each alert last emitted a trigger so the
// evaluator can suppress re-firing inside the debounce window.
type recentTriggers struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

func newRecentTriggers(window time.Duration) *recentTriggers {
	return &recentTriggers{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// recently reports whether the alert triggered inside the window. A window
// of zero disables debouncing.
func (r *recentTriggers) recently(alertID string, now time.Time) bool {
	if r.window <= 0 {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ts, ok := r.last[alertID]
	return ok && now.Sub(ts) < r.window
}

func (r *recentTriggers) mark(alertID string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[alertID] = now
}

func (r *recentTriggers) clear(alertID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.last, alertID)
}

// sweepAbsent drops entries whose alert no longer exists, so removed alerts
// do not pin memory.
func (r *recentTriggers) sweepAbsent(present map[string]struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.last {
		if _, ok := present[id]; !ok {
			delete(r.last, id)
		}
	}
}
