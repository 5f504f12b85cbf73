// Package ledger is the durable, append-only record of messages
// already decided. It provides the at-most-once filter across runs.
package ledger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/daviddao/mailsift/internal/types"
)

// ErrCorrupted reports that the backing file was unreadable and has
// been quarantined. The run continues with an empty ledger; the error
// is returned so the operator can be told loudly.
type ErrCorrupted struct {
	QuarantinePath string
	Cause          error
}

func (e *ErrCorrupted) Error() string {
	return fmt.Sprintf("ledger corrupted, quarantined to %s: %v", e.QuarantinePath, e.Cause)
}

func (e *ErrCorrupted) Unwrap() error { return e.Cause }

// Ledger is a JSONL-backed processed-email record. One process owns it;
// all access happens from the main loop.
type Ledger struct {
	path      string
	processed map[string]bool

	// SkippedLines counts individually malformed records tolerated at
	// the last reload, for diagnostics.
	SkippedLines int
}

// Open loads (or creates) the ledger at path. If the whole file is
// unreadable it is renamed to <path>.corrupted and an empty ledger is
// returned together with an *ErrCorrupted describing the quarantine —
// the ledger itself is still usable (fail-open).
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path, processed: make(map[string]bool)}
	err := l.Reload()
	return l, err
}

// Path returns the backing file path.
func (l *Ledger) Path() string { return l.path }

// Len returns the number of processed message IDs.
func (l *Ledger) Len() int { return len(l.processed) }

// Contains reports whether the message ID has already been decided.
func (l *Ledger) Contains(id string) bool { return l.processed[id] }

// Reload replays the backing file into the in-memory set. Individually
// malformed lines are skipped and counted; a wholly unreadable file is
// quarantined and replayed as empty.
func (l *Ledger) Reload() error {
	l.processed = make(map[string]bool)
	l.SkippedLines = 0

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return l.quarantine(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry types.LedgerEntry
		if err := json.Unmarshal(line, &entry); err != nil || entry.EmailID == "" {
			l.SkippedLines++
			continue
		}
		l.processed[entry.EmailID] = true
	}
	if err := scanner.Err(); err != nil {
		return l.quarantine(err)
	}
	return nil
}

func (l *Ledger) quarantine(cause error) error {
	backup := l.path + ".corrupted"
	if err := os.Rename(l.path, backup); err != nil {
		// Could not even move it aside; continue empty regardless.
		backup = ""
	}
	l.processed = make(map[string]bool)
	return &ErrCorrupted{QuarantinePath: backup, Cause: cause}
}

// Append durably records one decided message and adds it to the
// in-memory set.
func (l *Ledger) Append(entry *types.LedgerEntry) error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	l.processed[entry.EmailID] = true
	return nil
}

// Remove drops every record for the given message ID by rewriting the
// file without them. O(n) in ledger size; used only by undo.
func (l *Ledger) Remove(id string) error {
	delete(l.processed, id)

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open ledger: %w", err)
	}

	var kept [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry types.LedgerEntry
		if err := json.Unmarshal(line, &entry); err == nil && entry.EmailID == id {
			continue
		}
		kept = append(kept, append([]byte(nil), line...))
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		return fmt.Errorf("scan ledger: %w", scanErr)
	}

	out, err := os.Create(l.path)
	if err != nil {
		return fmt.Errorf("rewrite ledger: %w", err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)
	for _, line := range kept {
		w.Write(line)
		w.WriteByte('\n')
	}
	return w.Flush()
}

// Entries reads every well-formed record, oldest first.
func (l *Ledger) Entries() ([]*types.LedgerEntry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	var entries []*types.LedgerEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry types.LedgerEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, scanner.Err()
}

// FilterUnprocessed returns the fetched messages whose IDs are not yet
// in the ledger, capped at limit (unlimited when limit <= 0).
func (l *Ledger) FilterUnprocessed(batch []*types.Email, limit int) []*types.Email {
	var out []*types.Email
	for _, e := range batch {
		if e.ID == "" || l.processed[e.ID] {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
