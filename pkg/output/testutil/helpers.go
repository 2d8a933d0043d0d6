package testutil

import (
	"bytes"
	"encoding/csv"
	"regexp"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/auditview/auditview/pkg/jsonutil"
)

// ============================================================================
// FORMAT VALIDATORS
// ============================================================================

// ValidateJSON checks that content is a JSON report document.
func ValidateJSON(t testing.TB, content []byte) {
	t.Helper()
	var doc struct {
		Title           *string          `json:"title"`
		Vulnerabilities []map[string]any `json:"vulnerabilities"`
	}
	if err := jsonutil.Unmarshal(content, &doc); err != nil {
		t.Fatalf("invalid JSON: %v\nContent: %s", err, content[:min(500, len(content))])
	}
	if doc.Title == nil {
		t.Error("JSON report has no title")
	}
	if doc.Vulnerabilities == nil {
		t.Error("JSON report has no vulnerabilities array")
	}
}

// ValidateHTML checks that content parses as a complete HTML page.
func ValidateHTML(t testing.TB, content []byte) {
	t.Helper()
	if !bytes.HasPrefix(bytes.TrimSpace(content), []byte("<!DOCTYPE html>")) {
		t.Error("missing <!DOCTYPE html>")
	}
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("invalid HTML: %v", err)
	}
	var title bool
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	if !title {
		t.Error("HTML page has no <title>")
	}
}

var markdownTitle = regexp.MustCompile(`^#\s+\S`)

// ValidateMarkdown checks that content starts with a level-one heading.
func ValidateMarkdown(t testing.TB, content []byte) {
	t.Helper()
	if !markdownTitle.Match(content) {
		t.Error("Markdown should start with a title (# heading)")
	}
}

// ValidateCSV checks that every record has as many fields as the header and
// returns the records.
func ValidateCSV(t testing.TB, content []byte, comma rune) [][]string {
	t.Helper()
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = comma
	r.FieldsPerRecord = 0
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("CSV should have at least a header row")
	}
	return records
}

// ============================================================================
// ASSERTION HELPERS
// ============================================================================

// AssertContains checks that content contains all expected strings.
func AssertContains(t testing.TB, content []byte, expected []string) {
	t.Helper()
	str := string(content)
	for _, exp := range expected {
		if !strings.Contains(str, exp) {
			t.Errorf("content missing %q", exp)
		}
	}
}

// AssertNotContains checks that content contains none of the strings.
func AssertNotContains(t testing.TB, content []byte, forbidden []string) {
	t.Helper()
	str := string(content)
	for _, f := range forbidden {
		if strings.Contains(str, f) {
			t.Errorf("content unexpectedly contains %q", f)
		}
	}
}

// AssertOrder checks that each string first appears after the previous one.
func AssertOrder(t testing.TB, content []byte, ordered ...string) {
	t.Helper()
	str := string(content)
	last := -1
	for _, s := range ordered {
		i := strings.Index(str, s)
		if i < 0 {
			t.Errorf("content missing %q", s)
			return
		}
		if i < last {
			t.Errorf("%q appears before the previous entry", s)
			return
		}
		last = i
	}
}
