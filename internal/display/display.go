// Package display provides terminal formatting for mailsift output.
package display

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/daviddao/mailsift/internal/policy"
	"github.com/daviddao/mailsift/internal/types"
)

var (
	// Styles
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	Warn     = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))

	KeepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	JunkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	MixedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	HighStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	MediumStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	LowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	StarStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
)

// RecommendationBadge returns a styled per-message recommendation label.
func RecommendationBadge(rec types.Recommendation) string {
	switch rec {
	case types.RecKeep:
		return KeepStyle.Render("KEEP")
	case types.RecJunk:
		return JunkStyle.Render("JUNK-CANDIDATE")
	default:
		return Dim.Render(string(rec))
	}
}

// ThreadBadge returns a styled thread recommendation label.
func ThreadBadge(rec types.ThreadRecommendation) string {
	switch rec {
	case types.RecKeepThread:
		return KeepStyle.Render("KEEP THREAD")
	case types.RecDeleteThread:
		return JunkStyle.Render("DELETE THREAD")
	case types.RecMixed:
		return MixedStyle.Render("MIXED")
	default:
		return Dim.Render(string(rec))
	}
}

// Confidence renders a confidence value colored by its policy tier.
func Confidence(c float64) string {
	label := fmt.Sprintf("%.0f%%", c*100)
	switch policy.TierOf(c) {
	case policy.TierHigh:
		return HighStyle.Render(label)
	case policy.TierMedium:
		return MediumStyle.Render(label)
	default:
		return LowStyle.Render(label)
	}
}

// Star marks starred messages.
func Star(starred bool) string {
	if starred {
		return StarStyle.Render("★")
	}
	return " "
}

// TimeAgo formats an ISO date string as a relative time.
func TimeAgo(isoDate string) string {
	if isoDate == "" {
		return ""
	}

	var t time.Time
	var err error
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02 15:04:05", time.RFC3339Nano} {
		t, err = time.Parse(layout, isoDate)
		if err == nil {
			break
		}
	}
	if err != nil {
		return isoDate[:min(10, len(isoDate))]
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		m := int(d.Minutes())
		return fmt.Sprintf("%dm ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		return fmt.Sprintf("%dh ago", h)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("Jan 2")
	}
}

// Truncate shortens a string to maxLen, adding ellipsis if needed.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(Success.Render("✓") + " " + msg)
}

// WarnMsg prints an amber warning + message.
func WarnMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(Warn.Render("!") + " " + msg)
}

// ErrorMsg prints a red X + message to stderr.
func ErrorMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, ErrStyle.Render("✗")+" "+msg)
}

// Header prints a section header.
func Header(title string) {
	fmt.Println(Bold.Render(title))
}

// SubHeader prints a dim subsection label.
func SubHeader(title string) {
	fmt.Println(Muted.Render(title))
}

// EmailLine prints one message as a compact list row.
func EmailLine(e *types.Email, previewLen int) {
	fmt.Printf("%s %s  %s  %s\n",
		Star(e.Starred),
		Bold.Render(Truncate(e.Subject, 60)),
		Muted.Render(Truncate(e.From, 40)),
		Dim.Render(TimeAgo(e.Date.Format(time.RFC3339))),
	)
	if previewLen > 0 && e.Body != "" {
		preview := strings.Join(strings.Fields(e.Body), " ")
		fmt.Printf("  %s\n", Dim.Render(Truncate(preview, previewLen)))
	}
}

// ThreadTree prints a thread's messages in a tree-style format.
func ThreadTree(t *types.Thread) {
	fmt.Printf("%s %s %s\n",
		Star(t.Starred),
		Bold.Render(Truncate(t.Subject, 70)),
		Dim.Render(fmt.Sprintf("(%d message(s))", len(t.Messages))),
	)
	for i, m := range t.Messages {
		connector := "├─"
		if i == len(t.Messages)-1 {
			connector = "└─"
		}
		fmt.Printf("  %s %s  ·  %s\n",
			Muted.Render(connector),
			Bold.Render(Truncate(m.From, 45)),
			Dim.Render(TimeAgo(m.Date.Format(time.RFC3339))),
		)
	}
}

// Verdict prints a classification result block.
func Verdict(badge, category string, confidence float64, reasoning string) {
	fmt.Printf("  %s  %s  %s\n", badge, Muted.Render(category), Confidence(confidence))
	if reasoning != "" {
		fmt.Printf("  %s\n", Dim.Render(Truncate(reasoning, 160)))
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
