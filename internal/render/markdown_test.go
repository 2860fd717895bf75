package render

import (
	"strings"
	"testing"
)

func TestMarkdownRendersPlanStructure(t *testing.T) {
	got, err := Markdown("## Budget\n\n| Item | Amount |\n|---|---|\n| Rent | $1,500 |\n\n- Save **20%**\n")
	if err != nil {
		t.Fatalf("Markdown failed: %v", err)
	}
	for _, want := range []string{"<h2>Budget</h2>", "<table>", "<td>Rent</td>", "<strong>20%</strong>"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain %q, got %s", want, got)
		}
	}
}

func TestMarkdownDropsRawHTML(t *testing.T) {
	got, err := Markdown("Plan\n\n<script>alert(1)</script>\n")
	if err != nil {
		t.Fatalf("Markdown failed: %v", err)
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("Expected raw HTML to be omitted, got %s", got)
	}
}

func TestMarkdownLinkifiesSources(t *testing.T) {
	got, err := Markdown("Source: https://example.com/savings")
	if err != nil {
		t.Fatalf("Markdown failed: %v", err)
	}
	if !strings.Contains(got, `<a href="https://example.com/savings">`) {
		t.Errorf("Expected autolinked source, got %s", got)
	}
}
