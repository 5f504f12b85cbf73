// Package export writes fetched messages to markdown files for
// offline reading or archival.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/daviddao/mailsift/internal/types"
)

// Exporter writes markdown files under a target directory.
type Exporter struct {
	dir string
}

// New creates an Exporter rooted at dir.
func New(dir string) *Exporter {
	if dir == "" {
		dir = "email_exports"
	}
	return &Exporter{dir: dir}
}

// Dir returns the export directory.
func (x *Exporter) Dir() string { return x.dir }

// Email writes one message to its own markdown file and returns the
// written path.
func (x *Exporter) Email(e *types.Email) (string, error) {
	if err := os.MkdirAll(x.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(x.dir, fileName(e))
	if err := os.WriteFile(path, []byte(render(e)), 0o644); err != nil {
		return "", fmt.Errorf("write export %s: %w", path, err)
	}
	return path, nil
}

// Batch writes each message to its own file plus a combined batch file,
// and returns the batch file path.
func (x *Exporter) Batch(emails []*types.Email) (string, error) {
	if err := os.MkdirAll(x.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	for _, e := range emails {
		if _, err := x.Email(e); err != nil {
			return "", err
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Email Batch Export\n\n")
	fmt.Fprintf(&b, "Exported: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Messages: %d\n\n---\n\n", len(emails))
	for i, e := range emails {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, subjectOr(e))
		b.WriteString(render(e))
		b.WriteString("\n---\n\n")
	}

	path := filepath.Join(x.dir, fmt.Sprintf("batch_%s.md", time.Now().UTC().Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write batch export %s: %w", path, err)
	}
	return path, nil
}

func render(e *types.Email) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "subject: %s\n", subjectOr(e))
	fmt.Fprintf(&b, "from: %s\n", e.From)
	if !e.Date.IsZero() {
		fmt.Fprintf(&b, "date: %s\n", e.Date.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "id: %s\n", e.ID)
	if e.Starred {
		b.WriteString("starred: true\n")
	}
	b.WriteString("---\n\n")
	if e.Markdown != "" {
		b.WriteString(e.Markdown)
	} else {
		b.WriteString(e.Body)
	}
	b.WriteString("\n")
	return b.String()
}

func subjectOr(e *types.Email) string {
	if e.Subject == "" {
		return "(no subject)"
	}
	return e.Subject
}

// fileName derives a filesystem-safe name from the message ID and
// subject.
func fileName(e *types.Email) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '_'
		default:
			return -1
		}
	}, subjectOr(e))
	if len(slug) > 40 {
		slug = slug[:40]
	}
	if slug == "" {
		slug = "email"
	}
	return fmt.Sprintf("%s_%s.md", e.ID, slug)
}
