package domain

import (
	"strings"
	"time"
)

// DefaultResearchLimit is the maximum number of items a research run returns.
const DefaultResearchLimit = 10

// ResearchItem is one ranked search finding.
type ResearchItem struct {
	Title     string `json:"title" jsonschema:"description=Title of the page or article"`
	Snippet   string `json:"snippet" jsonschema:"description=Short summary of why the result is relevant"`
	SourceURL string `json:"source_url" jsonschema:"description=URL of the source"`
}

// ResearchResult is the ranked output of a research run.
type ResearchResult struct {
	Queries     []string       `json:"queries"`
	Items       []ResearchItem `json:"items"`
	RetrievedAt time.Time      `json:"retrieved_at"`
}

// Normalize drops items without a title or source, removes duplicate
// sources and keeps at most limit items in their original rank order.
func (r *ResearchResult) Normalize(limit int) {
	if limit <= 0 {
		limit = DefaultResearchLimit
	}
	seen := make(map[string]struct{}, len(r.Items))
	kept := make([]ResearchItem, 0, min(len(r.Items), limit))
	for _, item := range r.Items {
		item.Title = strings.TrimSpace(item.Title)
		item.SourceURL = strings.TrimSpace(item.SourceURL)
		item.Snippet = strings.TrimSpace(item.Snippet)
		if item.Title == "" || item.SourceURL == "" {
			continue
		}
		key := strings.TrimSuffix(strings.ToLower(item.SourceURL), "/")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, item)
		if len(kept) == limit {
			break
		}
	}
	r.Items = kept
}
