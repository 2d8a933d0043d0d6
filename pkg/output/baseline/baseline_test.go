package baseline

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/auditview/auditview/pkg/finding"
	"github.com/auditview/auditview/pkg/output/testfixtures"
	"github.com/auditview/auditview/pkg/report"
)

func entry(name string, sev finding.Severity, advisories ...string) Entry {
	return Entry{Name: name, Severity: sev, Advisories: advisories}
}

func scenarioDocument(t *testing.T) *report.Document {
	t.Helper()
	doc := testfixtures.Document(t, testfixtures.Scenario, &report.AppMeta{Name: "storefront"})
	doc.ID = "r1"
	return doc
}

func TestNew(t *testing.T) {
	t.Parallel()
	b := New()
	if b.Version != Version {
		t.Errorf("Version = %q, want %q", b.Version, Version)
	}
	if b.CreatedAt.IsZero() || b.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestLoadBaseline_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if _, err := LoadBaseline(filepath.Join(dir, "missing.json")); !errors.Is(err, ErrBaselineNotFound) {
		t.Errorf("missing file: err = %v, want ErrBaselineNotFound", err)
	}

	tests := map[string]string{
		"not json":        "not valid json",
		"missing version": `{"created_at": "2026-01-15T10:30:00Z", "packages": []}`,
	}
	for name, body := range tests {
		path := filepath.Join(dir, name+".json")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadBaseline(path); !errors.Is(err, ErrInvalidBaseline) {
			t.Errorf("%s: err = %v, want ErrInvalidBaseline", name, err)
		}
	}
}

func TestCreateFromDocument(t *testing.T) {
	t.Parallel()
	b := CreateFromDocument(scenarioDocument(t))

	if b.ReportID != "r1" || b.App != "storefront" {
		t.Errorf("ReportID/App = %q/%q, want r1/storefront", b.ReportID, b.App)
	}
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	if b.Packages[0].Name != "lodash" || b.Packages[1].Name != "minimist" {
		t.Errorf("packages not sorted by name: %+v", b.Packages)
	}
	if b.Summary.Highest != finding.Critical || b.Summary.TotalPackages != 2 {
		t.Errorf("Summary = %+v", b.Summary)
	}

	minimist, ok := b.Get("minimist")
	if !ok {
		t.Fatal("minimist missing")
	}
	if len(minimist.Advisories) != 1 || minimist.Advisories[0] != "https://x" {
		t.Errorf("minimist advisories = %v", minimist.Advisories)
	}
	if minimist.FirstSeen.IsZero() {
		t.Error("FirstSeen should be set")
	}
	lodash, _ := b.Get("lodash")
	if !lodash.Direct || len(lodash.Advisories) != 0 {
		t.Errorf("lodash = %+v, want direct with no advisories of its own", lodash)
	}

	if empty := CreateFromDocument(nil); empty.Len() != 0 {
		t.Error("nil document should give an empty baseline")
	}
}

func TestSaveAndLoadBaseline(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ci", "baseline.json")

	original := CreateFromDocument(scenarioDocument(t))
	if err := original.SaveBaseline(path); err != nil {
		t.Fatalf("SaveBaseline: %v", err)
	}
	loaded, err := LoadBaseline(path)
	if err != nil {
		t.Fatalf("LoadBaseline: %v", err)
	}
	if loaded.Len() != original.Len() {
		t.Fatalf("Len() = %d, want %d", loaded.Len(), original.Len())
	}
	got, _ := loaded.Get("minimist")
	want, _ := original.Get("minimist")
	if got.Severity != want.Severity || !got.FirstSeen.Equal(want.FirstSeen) {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()
	seen := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	b := New()
	b.Packages = []Entry{
		{Name: "lodash", Severity: finding.High, FirstSeen: seen},
		{Name: "minimist", Severity: finding.Moderate, Advisories: []string{"a1"}, FirstSeen: seen},
		{Name: "qs", Severity: finding.Low, Advisories: []string{"a2"}, FirstSeen: seen},
		{Name: "tar", Severity: finding.High, FirstSeen: seen},
	}

	res := b.Compare([]Entry{
		entry("lodash", finding.Moderate),        // lower severity: unchanged
		entry("minimist", finding.Critical, "a1"), // severity rose
		entry("qs", finding.Low, "a2", "a3"),      // new advisory
		entry("axios", finding.High, "a4"),        // new package
	})

	if !res.HasRegression {
		t.Fatal("HasRegression = false, want true")
	}
	if len(res.New) != 1 || res.New[0].Name != "axios" {
		t.Errorf("New = %+v", res.New)
	}
	if len(res.Escalated) != 2 {
		t.Fatalf("Escalated = %+v, want minimist and qs", res.Escalated)
	}
	for _, e := range res.Escalated {
		if !e.FirstSeen.Equal(seen) {
			t.Errorf("%s FirstSeen = %v, want carried over", e.Name, e.FirstSeen)
		}
	}
	if len(res.Fixed) != 1 || res.Fixed[0].Name != "tar" {
		t.Errorf("Fixed = %+v", res.Fixed)
	}
	if len(res.Unchanged) != 1 || res.Unchanged[0].Name != "lodash" {
		t.Errorf("Unchanged = %+v", res.Unchanged)
	}
	if want := "REGRESSION: 1 new, 2 escalated, 1 fixed, 1 unchanged"; res.Summary != want {
		t.Errorf("Summary = %q, want %q", res.Summary, want)
	}

	failures := res.Failures()
	if len(failures) != 3 || failures[0] != "new high vulnerability in axios" || failures[1] != "minimist escalated to critical" {
		t.Errorf("Failures() = %v", failures)
	}
}

func TestCompare_NoRegression(t *testing.T) {
	t.Parallel()
	b := New()
	b.Packages = []Entry{entry("lodash", finding.High)}

	res := b.Compare(nil)
	if res.HasRegression {
		t.Error("HasRegression = true, want false")
	}
	if res.Summary != "No new vulnerabilities, 1 fixed" {
		t.Errorf("Summary = %q", res.Summary)
	}
	if len(res.Failures()) != 0 {
		t.Errorf("Failures() = %v, want none", res.Failures())
	}
}

func TestRefresh_KeepsFirstSeen(t *testing.T) {
	t.Parallel()
	seen := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	b := New()
	b.Packages = []Entry{{Name: "lodash", Severity: finding.High, FirstSeen: seen}}

	b.Refresh([]Entry{entry("lodash", finding.Critical), entry("qs", finding.Low)}, "r2")

	if b.ReportID != "r2" || b.Len() != 2 {
		t.Fatalf("ReportID = %q Len = %d", b.ReportID, b.Len())
	}
	lodash, _ := b.Get("lodash")
	if !lodash.FirstSeen.Equal(seen) || lodash.Severity != finding.Critical {
		t.Errorf("lodash = %+v", lodash)
	}
	qs, _ := b.Get("qs")
	if qs.FirstSeen.IsZero() {
		t.Error("qs FirstSeen should be set")
	}
	if b.Summary.Highest != finding.Critical {
		t.Errorf("Highest = %q, want critical", b.Summary.Highest)
	}
}

func TestBaseline_Concurrent(t *testing.T) {
	t.Parallel()
	b := New()
	current := []Entry{entry("lodash", finding.High)}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			b.Refresh(current, "r")
		}()
		go func() {
			defer wg.Done()
			_ = b.Compare(current)
			_ = b.Len()
		}()
	}
	wg.Wait()
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
}
