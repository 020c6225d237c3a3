package orchestration

import "time"

// HistoryEntry records one agent event for audit and pattern analysis.
type HistoryEntry struct {
	AgentID   string         `json:"agent_id"`
	Event     string         `json:"event"`
	Result    map[string]any `json:"result,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ring is a fixed-capacity event history. Pushing onto a full ring
// evicts the oldest entry.
type ring struct {
	buf  []HistoryEntry
	head int
	size int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]HistoryEntry, capacity)}
}

func (r *ring) push(e HistoryEntry) {
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

func (r *ring) len() int { return r.size }

// snapshot returns the retained entries oldest first.
func (r *ring) snapshot() []HistoryEntry {
	out := make([]HistoryEntry, 0, r.size)
	start := r.head - r.size
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
