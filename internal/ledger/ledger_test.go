package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/daviddao/mailsift/internal/types"
)

func entry(id, decision string) *types.LedgerEntry {
	return &types.LedgerEntry{EmailID: id, Decision: decision, Timestamp: types.Now()}
}

func TestAppendAndContains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_log.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if l.Contains("m1") {
		t.Fatal("empty ledger should not contain m1")
	}
	if err := l.Append(entry("m1", "keep")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !l.Contains("m1") {
		t.Fatal("ledger should contain m1 after append")
	}
}

func TestAtMostOnceAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_log.jsonl")
	l, _ := Open(path)
	l.Append(entry("m1", "keep"))
	l.Append(entry("m2", "delete"))

	// Fresh process.
	l2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	batch := []*types.Email{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}}
	got := l2.FilterUnprocessed(batch, 10)
	if len(got) != 1 || got[0].ID != "m3" {
		t.Fatalf("FilterUnprocessed = %v", got)
	}
}

func TestFilterUnprocessedCap(t *testing.T) {
	l, _ := Open(filepath.Join(t.TempDir(), "l.jsonl"))
	batch := []*types.Email{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	if got := l.FilterUnprocessed(batch, 2); len(got) != 2 {
		t.Errorf("cap not applied, got %d", len(got))
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l.jsonl")
	l, _ := Open(path)
	l.Append(entry("m1", "delete"))
	l.Append(entry("m2", "keep"))

	if err := l.Remove("m1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if l.Contains("m1") {
		t.Error("m1 still present after remove")
	}
	if !l.Contains("m2") {
		t.Error("m2 lost by remove of m1")
	}

	// Removal must survive reload.
	l2, _ := Open(path)
	if l2.Contains("m1") || !l2.Contains("m2") {
		t.Errorf("after reload: m1=%v m2=%v", l2.Contains("m1"), l2.Contains("m2"))
	}
}

func TestMalformedLinesSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l.jsonl")
	content := `{"email_id":"good1","decision":"keep","timestamp":"2026-03-01T00:00:00Z"}
not json at all
{"email_id":"good2","decision":"delete","timestamp":"2026-03-01T00:00:00Z"}
`
	os.WriteFile(path, []byte(content), 0o644)

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !l.Contains("good1") || !l.Contains("good2") {
		t.Error("well-formed lines lost")
	}
	if l.SkippedLines != 1 {
		t.Errorf("SkippedLines = %d, want 1", l.SkippedLines)
	}
}

func TestWholeFileCorruptionQuarantined(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l.jsonl")
	// A single line larger than the scanner limit makes the file
	// unreadable as line-delimited data.
	os.WriteFile(path, []byte(strings.Repeat("x", 2*1024*1024)), 0o644)

	l, err := Open(path)
	var corrupted *ErrCorrupted
	if !errors.As(err, &corrupted) {
		t.Fatalf("err = %v, want *ErrCorrupted", err)
	}
	if corrupted.QuarantinePath != path+".corrupted" {
		t.Errorf("quarantine path = %s", corrupted.QuarantinePath)
	}
	if _, statErr := os.Stat(path + ".corrupted"); statErr != nil {
		t.Errorf("quarantine file missing: %v", statErr)
	}

	// Fail-open: the ledger keeps working.
	if l.Len() != 0 {
		t.Errorf("ledger not empty after quarantine: %d", l.Len())
	}
	if err := l.Append(entry("m1", "keep")); err != nil {
		t.Errorf("Append after quarantine: %v", err)
	}
}

func TestEntriesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l.jsonl")
	l, _ := Open(path)
	fb := "too useful to delete"
	l.Append(&types.LedgerEntry{
		EmailID:      "m1",
		Decision:     "keep",
		Timestamp:    "2026-03-01T00:00:00Z",
		UserFeedback: &fb,
		AIAnalysis: &types.VerdictSummary{
			Recommendation: "JUNK-CANDIDATE",
			Category:       "Commercial/Marketing",
			Confidence:     0.9,
			Reasoning:      "promo",
		},
	})

	entries, err := l.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e.UserFeedback == nil || *e.UserFeedback != fb {
		t.Error("user feedback lost")
	}
	if e.AIAnalysis == nil || e.AIAnalysis.Confidence != 0.9 {
		t.Error("ai analysis lost")
	}
}
