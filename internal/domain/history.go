package domain

// DefaultHistoryDepth is the number of prior exchanges the planner sees.
const DefaultHistoryDepth = 3

// HistoryEntry is one completed request/response exchange.
type HistoryEntry struct {
	Request  string `json:"request"`
	Response string `json:"response"`
}

// ConversationHistory retains the most recent exchanges, oldest first.
// The zero value is not usable; use NewConversationHistory.
type ConversationHistory struct {
	depth   int
	entries []HistoryEntry
}

// NewConversationHistory creates an empty history bounded to depth entries.
func NewConversationHistory(depth int) *ConversationHistory {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	return &ConversationHistory{
		depth:   depth,
		entries: make([]HistoryEntry, 0, depth),
	}
}

// Append adds an entry and evicts the oldest ones beyond the depth.
func (h *ConversationHistory) Append(entry HistoryEntry) {
	h.entries = append(h.entries, entry)
	if over := len(h.entries) - h.depth; over > 0 {
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
	}
}

// Entries returns a copy of the retained entries, oldest first.
func (h *ConversationHistory) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of retained entries.
func (h *ConversationHistory) Len() int {
	return len(h.entries)
}

// Depth returns the retention bound.
func (h *ConversationHistory) Depth() int {
	return h.depth
}

// Reset drops all entries.
func (h *ConversationHistory) Reset() {
	h.entries = h.entries[:0]
}
