package domain

import (
	"fmt"
	"testing"
)

func TestResearchResultNormalize(t *testing.T) {
	t.Parallel()

	r := ResearchResult{Items: []ResearchItem{
		{Title: "Index funds", SourceURL: "https://example.com/a"},
		{Title: "", SourceURL: "https://example.com/no-title"},
		{Title: "No source", SourceURL: " "},
		{Title: "Duplicate", SourceURL: "https://EXAMPLE.com/a/"},
		{Title: " High-yield savings ", SourceURL: "https://example.com/b", Snippet: " 4.5% APY "},
	}}
	r.Normalize(10)

	if len(r.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d: %+v", len(r.Items), r.Items)
	}
	if r.Items[1].Title != "High-yield savings" || r.Items[1].Snippet != "4.5% APY" {
		t.Errorf("Expected trimmed item, got %+v", r.Items[1])
	}
}

func TestResearchResultNormalizeCapsAtLimit(t *testing.T) {
	t.Parallel()

	r := ResearchResult{}
	for i := 0; i < 25; i++ {
		r.Items = append(r.Items, ResearchItem{
			Title:     fmt.Sprintf("result %d", i),
			SourceURL: fmt.Sprintf("https://example.com/%d", i),
		})
	}
	r.Normalize(0)

	if len(r.Items) != DefaultResearchLimit {
		t.Fatalf("Expected %d items, got %d", DefaultResearchLimit, len(r.Items))
	}
	if r.Items[0].Title != "result 0" || r.Items[9].Title != "result 9" {
		t.Errorf("Expected rank order preserved, got first=%q last=%q", r.Items[0].Title, r.Items[9].Title)
	}
	for _, item := range r.Items {
		if item.Title == "" || item.SourceURL == "" {
			t.Errorf("Expected title and source on every item, got %+v", item)
		}
	}
}
