package parser

import (
	"fmt"
	"strings"
	"testing"
)

func TestCSVParser_BatchesRowsIntoPages(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,owner,limit\n")
	for i := 1; i <= 45; i++ {
		fmt.Fprintf(&b, "%d,team-%d,%d\n", i, i, i*10)
	}

	doc, err := (&CSVParser{}).Parse(strings.NewReader(b.String()), "limits.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 3 {
		t.Fatalf("expected 3 pages for 45 rows, got %d", len(doc.Pages))
	}
	first := doc.Pages[0].Text
	if !strings.HasPrefix(first, "## Rows 2-21\n\nHeaders: id, owner, limit\n\nid: 1, owner: team-1, limit: 10") {
		t.Errorf("unexpected first page %q", first[:80])
	}
	if !strings.HasPrefix(doc.Pages[2].Text, "## Rows 42-46") {
		t.Errorf("unexpected last page heading %q", doc.Pages[2].Text[:20])
	}
}

func TestCSVParser_HeaderOnly(t *testing.T) {
	doc, err := (&CSVParser{}).Parse(strings.NewReader("a,b\n"), "empty.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 0 {
		t.Errorf("expected no pages, got %d", len(doc.Pages))
	}
}
