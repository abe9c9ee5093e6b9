package notify

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultHistoryCapacity 是历史存档的默认容量上限。
const DefaultHistoryCapacity = 100000

// ErrNotificationNotFound 表示按 ID 找不到可操作的通知。
var ErrNotificationNotFound = errors.New("notification not found")

// History 持有按容量截断的通知存档。通知在派发得出终态后才移交
// 这里,存档中只会出现 Sent、Failed、Read 三种状态。超出容量时
// 淘汰最旧的一条,不论其已读状态。
type History struct {
	mu      sync.RWMutex
	cap     int
	entries []*Notification
	byID    map[string]*Notification
}

// NewHistory 构造历史存档,capacity 非正时使用默认容量。
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}

	return &History{
		cap:  capacity,
		byID: make(map[string]*Notification),
	}
}

// Record 追加一条通知,容量已满时先淘汰最旧的一条。
func (h *History) Record(note *Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) >= h.cap {
		oldest := h.entries[0]
		delete(h.byID, oldest.ID)
		h.entries[0] = nil
		h.entries = h.entries[1:]
	}

	h.entries = append(h.entries, note)
	h.byID[note.ID] = note

	// 反复淘汰会让底层数组只增不减,增长过度时压缩一次。
	if cap(h.entries) > 2*h.cap {
		compact := make([]*Notification, len(h.entries), h.cap)
		copy(compact, h.entries)
		h.entries = compact
	}
}

// Get 返回一条通知的副本。
func (h *History) Get(id string) (Notification, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	note, ok := h.byID[id]
	if !ok {
		return Notification{}, false
	}
	return note.clone(), true
}

// ListByUser 返回某用户的通知副本,最新在前。limit 非正表示不限。
func (h *History) ListByUser(userID string, limit int) []Notification {
	h.mu.RLock()
	out := make([]Notification, 0)
	for _, note := range h.entries {
		if note.UserID == userID {
			out = append(out, note.clone())
		}
	}
	h.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ListUnread 返回某用户已送达且未读的通知,最新在前。
func (h *History) ListUnread(userID string) []Notification {
	h.mu.RLock()
	out := make([]Notification, 0)
	for _, note := range h.entries {
		if note.UserID == userID && note.Status == StatusSent && note.ReadAt == nil {
			out = append(out, note.clone())
		}
	}
	h.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// UnreadCount 统计某用户已送达且未读的通知数量。
func (h *History) UnreadCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, note := range h.entries {
		if note.UserID == userID && note.Status == StatusSent && note.ReadAt == nil {
			count++
		}
	}
	return count
}

// MarkRead 将一条已送达的通知置为已读。重复调用已读通知不报错
// 也不改动 read_at;Pending/Failed 状态不可读,按未找到处理。
func (h *History) MarkRead(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	note, ok := h.byID[id]
	if !ok {
		return fmt.Errorf("mark read %s: %w", id, ErrNotificationNotFound)
	}

	switch note.Status {
	case StatusRead:
		return nil
	case StatusSent:
		now := time.Now()
		note.Status = StatusRead
		note.ReadAt = &now
		return nil
	default:
		return fmt.Errorf("mark read %s: status %s: %w", id, note.Status, ErrNotificationNotFound)
	}
}

// PurgeOlderThan 删除创建时间早于 age 之前的通知,返回删除数量。
func (h *History) PurgeOlderThan(age time.Duration) int {
	cutoff := time.Now().Add(-age)

	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.entries[:0]
	removed := 0
	for _, note := range h.entries {
		if note.CreatedAt.After(cutoff) {
			kept = append(kept, note)
			continue
		}
		delete(h.byID, note.ID)
		removed++
	}
	for i := len(kept); i < len(h.entries); i++ {
		h.entries[i] = nil
	}
	h.entries = kept
	return removed
}

// All 返回全部存档条目的副本,最旧在前。
func (h *History) All() []Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Notification, 0, len(h.entries))
	for _, note := range h.entries {
		out = append(out, note.clone())
	}
	return out
}

// Len 返回当前存档条数。
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
