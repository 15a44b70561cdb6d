package messaging

import (
	"sort"
	"sync"
)

// Timeline is the displayed message list of one conversation. It is ordered
// by created_at (ties by id) regardless of arrival order, and appends are
// idempotent by message id. Safe for concurrent use.
type Timeline struct {
	mu       sync.RWMutex
	messages []MessageView
	index    map[string]struct{}
}

func NewTimeline() *Timeline {
	return &Timeline{index: make(map[string]struct{})}
}

// Append inserts m at its ordered position. It returns false when a message
// with the same id is already present.
func (t *Timeline) Append(m MessageView) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.index[m.ID]; ok {
		return false
	}
	t.index[m.ID] = struct{}{}
	i := sort.Search(len(t.messages), func(i int) bool {
		return less(m, t.messages[i])
	})
	t.messages = append(t.messages, MessageView{})
	copy(t.messages[i+1:], t.messages[i:])
	t.messages[i] = m
	return true
}

// Merge appends every message and returns how many were new.
func (t *Timeline) Merge(ms []MessageView) int {
	added := 0
	for _, m := range ms {
		if t.Append(m) {
			added++
		}
	}
	return added
}

func (t *Timeline) Contains(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.index[id]
	return ok
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Messages returns a copy of the ordered list.
func (t *Timeline) Messages() []MessageView {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]MessageView, len(t.messages))
	copy(out, t.messages)
	return out
}

func less(a, b MessageView) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// SortMessages orders a slice ascending by created_at, ties by id.
func SortMessages(ms []MessageView) {
	sort.SliceStable(ms, func(i, j int) bool { return less(ms[i], ms[j]) })
}
