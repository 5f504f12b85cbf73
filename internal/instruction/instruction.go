// Package instruction stores the classifier instruction text as a
// versioned document: a live head file plus an append-only directory
// of immutable snapshots.
package instruction

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/daviddao/mailsift/internal/types"
)

const headFile = "HEAD"

// Version describes one immutable snapshot.
type Version struct {
	Number    int    `json:"version"`
	Timestamp string `json:"timestamp"`
	Reason    string `json:"reason"`
	FilePath  string `json:"file_path"`
}

// Stats summarizes the store for diagnostics. Read-only.
type Stats struct {
	CurrentVersion int    `json:"current_version"`
	Snapshots      int    `json:"snapshots"`
	Length         int    `json:"instruction_length"`
	Path           string `json:"path"`
	HistoryDir     string `json:"history_dir"`
}

// Store manages the live instruction document and its history.
type Store struct {
	path       string
	historyDir string
	current    string
	version    int
}

// Open loads (or initializes) the instruction store. A missing live
// file gets the built-in default instruction, which is written out so
// the operator can inspect and edit it.
func Open(path, historyDir string) (*Store, error) {
	s := &Store{path: path, historyDir: historyDir, version: 1}

	if err := os.MkdirAll(historyDir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		s.current = string(data)
	case os.IsNotExist(err):
		s.current = DefaultInstruction
		if writeErr := atomicWrite(path, s.current); writeErr != nil {
			return nil, fmt.Errorf("write default instruction: %w", writeErr)
		}
	default:
		return nil, fmt.Errorf("read instruction: %w", err)
	}

	// The head pointer persists the version counter across runs.
	if headData, err := os.ReadFile(filepath.Join(historyDir, headFile)); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(string(headData))); err == nil && n > 0 {
			s.version = n
		}
	}
	return s, nil
}

// Current returns the live instruction text.
func (s *Store) Current() string { return s.current }

// CurrentVersion returns the head version number.
func (s *Store) CurrentVersion() int { return s.version }

// Update snapshots the pre-update text to history, then extends the
// live text with a delimited improvement block and advances the head.
// The instruction only ever grows; earlier content is never rewritten.
func (s *Store) Update(suggested, feedback, exampleContent string) (*Version, error) {
	snap, err := s.snapshot(fmt.Sprintf("Before update - User feedback: %s", excerpt(feedback, 100)))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	block := fmt.Sprintf(`

---

## Prompt Improvement Log

### Version %d - %s

**User Feedback:** %s

**Suggested Improvement:**
%s

**Example Email Pattern:**
`+"```"+`
%s
`+"```"+`

---
`, s.version+1, now.Format("2006-01-02 15:04:05"), feedback, suggested, excerpt(exampleContent, 200))

	next := s.current + block
	if err := atomicWrite(s.path, next); err != nil {
		return nil, fmt.Errorf("write updated instruction: %w", err)
	}
	s.current = next
	s.version++

	if err := atomicWrite(filepath.Join(s.historyDir, headFile), strconv.Itoa(s.version)+"\n"); err != nil {
		return nil, fmt.Errorf("advance head: %w", err)
	}
	return snap, nil
}

// snapshot writes the current text to an immutable history file tagged
// with version, timestamp, and reason.
func (s *Store) snapshot(reason string) (*Version, error) {
	ts := time.Now().Format("20060102_150405")
	name := fmt.Sprintf("prompt_v%d_%s.md", s.version, ts)
	path := filepath.Join(s.historyDir, name)

	v := &Version{
		Number:    s.version,
		Timestamp: types.Now(),
		Reason:    reason,
		FilePath:  path,
	}
	meta, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}

	content := fmt.Sprintf("<!-- Prompt Version Metadata\n%s\n-->\n\n%s", meta, s.current)
	if err := atomicWrite(path, content); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	return v, nil
}

// Versions lists all snapshots, oldest first. Snapshot files without
// parseable metadata are reported with what can be recovered.
func (s *Store) Versions() ([]*Version, error) {
	matches, err := filepath.Glob(filepath.Join(s.historyDir, "prompt_v*.md"))
	if err != nil {
		return nil, err
	}
	var versions []*Version
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		v := parseSnapshotMeta(string(data))
		if v == nil {
			v = &Version{Number: 0, Reason: "No metadata available"}
		}
		v.FilePath = path
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		if versions[i].Number != versions[j].Number {
			return versions[i].Number < versions[j].Number
		}
		return versions[i].FilePath < versions[j].FilePath
	})
	return versions, nil
}

// SnapshotText returns the instruction text stored in a snapshot file,
// with the metadata header stripped.
func (s *Store) SnapshotText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := string(data)
	if strings.HasPrefix(text, "<!-- Prompt Version Metadata") {
		if end := strings.Index(text, "-->"); end >= 0 {
			return strings.TrimLeft(text[end+len("-->"):], "\n"), nil
		}
	}
	return text, nil
}

// Stats reports version statistics.
func (s *Store) Stats() (*Stats, error) {
	versions, err := s.Versions()
	if err != nil {
		return nil, err
	}
	return &Stats{
		CurrentVersion: s.version,
		Snapshots:      len(versions),
		Length:         len(s.current),
		Path:           s.path,
		HistoryDir:     s.historyDir,
	}, nil
}

// LatestChange returns the text added by the most recent update: the
// suffix of the live document past the latest snapshot's content.
// History is append-only, so the diff is always a pure addition.
func (s *Store) LatestChange() (string, error) {
	versions, err := s.Versions()
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", nil
	}
	prev, err := s.SnapshotText(versions[len(versions)-1].FilePath)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(s.current, prev) {
		return s.current[len(prev):], nil
	}
	// Live file edited out of band; show everything.
	return s.current, nil
}

func parseSnapshotMeta(content string) *Version {
	const marker = "<!-- Prompt Version Metadata"
	if !strings.HasPrefix(content, marker) {
		return nil
	}
	end := strings.Index(content, "-->")
	if end < 0 {
		return nil
	}
	var v Version
	if err := json.Unmarshal([]byte(strings.TrimSpace(content[len(marker):end])), &v); err != nil {
		return nil
	}
	return &v
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// atomicWrite replaces path via write-temp-then-rename so readers
// never observe a partial document.
func atomicWrite(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".instruction-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// DefaultInstruction is used when no instruction file exists yet.
const DefaultInstruction = `# Email Categorization Instructions

Analyze the provided email and classify it as either:
- **KEEP**: Email should be retained
- **JUNK-CANDIDATE**: Email should be deleted

Consider these categories for junk candidates:
- Commercial/Marketing
- Time-Sensitive Expired Content
- Social Media & Platform Notifications
- Obvious Spam & Suspicious Content

Respond in JSON format:
` + "```json" + `
{
  "recommendation": "KEEP" | "JUNK-CANDIDATE",
  "category": "Category name",
  "confidence": 0.1-1.0,
  "reasoning": "Brief explanation",
  "key_factors": ["Factor 1", "Factor 2"]
}
` + "```" + `

Focus on identifying outdated, promotional, or irrelevant content for
JUNK-CANDIDATE classification. When uncertain, recommend KEEP.
`
