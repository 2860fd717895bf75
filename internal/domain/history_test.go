package domain

import (
	"fmt"
	"testing"
)

func TestConversationHistoryAppendGrowsToDepth(t *testing.T) {
	t.Parallel()

	h := NewConversationHistory(3)
	for i := 1; i <= 3; i++ {
		h.Append(HistoryEntry{Request: fmt.Sprintf("req-%d", i), Response: fmt.Sprintf("resp-%d", i)})
		if h.Len() != i {
			t.Fatalf("Expected length %d, got %d", i, h.Len())
		}
		entries := h.Entries()
		if got := entries[len(entries)-1].Request; got != fmt.Sprintf("req-%d", i) {
			t.Errorf("Expected newest entry req-%d, got %s", i, got)
		}
	}
}

func TestConversationHistoryEvictsOldest(t *testing.T) {
	t.Parallel()

	h := NewConversationHistory(3)
	for i := 1; i <= 4; i++ {
		h.Append(HistoryEntry{Request: fmt.Sprintf("req-%d", i)})
	}

	entries := h.Entries()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"req-2", "req-3", "req-4"} {
		if entries[i].Request != want {
			t.Errorf("entry %d: expected %s, got %s", i, want, entries[i].Request)
		}
	}
}

func TestConversationHistoryEntriesIsCopy(t *testing.T) {
	t.Parallel()

	h := NewConversationHistory(0)
	if h.Depth() != DefaultHistoryDepth {
		t.Fatalf("Expected default depth %d, got %d", DefaultHistoryDepth, h.Depth())
	}
	h.Append(HistoryEntry{Request: "a"})
	entries := h.Entries()
	entries[0].Request = "mutated"

	if h.Entries()[0].Request != "a" {
		t.Error("Expected Entries to return a copy")
	}

	h.Reset()
	if h.Len() != 0 {
		t.Errorf("Expected empty history after reset, got %d", h.Len())
	}
}
