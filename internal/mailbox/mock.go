package mailbox

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/daviddao/mailsift/internal/types"
)

// Mock is a deterministic in-memory mailbox for dry runs and tests.
// Mutations are recorded but touch nothing outside the process.
type Mock struct {
	emails []*types.Email
	labels map[string]map[string]bool // message ID -> label set

	// FailAdd and FailRemove make the corresponding mutation fail for
	// the named label, to exercise partial-failure paths.
	FailAdd    map[string]bool
	FailRemove map[string]bool

	// Mutations records every attempted label change in order.
	Mutations []string
}

// NewMock creates a mock mailbox over the given messages.
func NewMock(emails []*types.Email) *Mock {
	m := &Mock{
		emails:     emails,
		labels:     make(map[string]map[string]bool),
		FailAdd:    make(map[string]bool),
		FailRemove: make(map[string]bool),
	}
	for _, e := range emails {
		set := make(map[string]bool)
		for _, l := range e.Labels {
			set[l] = true
		}
		m.labels[e.ID] = set
	}
	return m
}

// Fetch returns up to limit seeded messages.
func (m *Mock) Fetch(ctx context.Context, limit int) ([]*types.Email, error) {
	if limit <= 0 || limit > len(m.emails) {
		limit = len(m.emails)
	}
	return m.emails[:limit], nil
}

// AddLabel records the label addition.
func (m *Mock) AddLabel(ctx context.Context, messageID, label string) error {
	m.Mutations = append(m.Mutations, fmt.Sprintf("add %s %s", messageID, label))
	if m.FailAdd[label] {
		return fmt.Errorf("mock: add label %q refused", label)
	}
	if m.labels[messageID] == nil {
		m.labels[messageID] = make(map[string]bool)
	}
	m.labels[messageID][label] = true
	return nil
}

// RemoveLabel records the label removal.
func (m *Mock) RemoveLabel(ctx context.Context, messageID, label string) error {
	m.Mutations = append(m.Mutations, fmt.Sprintf("remove %s %s", messageID, label))
	if m.FailRemove[label] {
		return fmt.Errorf("mock: remove label %q refused", label)
	}
	delete(m.labels[messageID], label)
	return nil
}

// HasLabel reports the current label state of a message.
func (m *Mock) HasLabel(messageID, label string) bool {
	return m.labels[messageID][label]
}

// Labels returns the sorted label set of a message.
func (m *Mock) Labels(messageID string) []string {
	var out []string
	for l := range m.labels[messageID] {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// SeedEmails returns the canned inbox used by the mock provider.
func SeedEmails() []*types.Email {
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	return []*types.Email{
		{
			ID: "mock-001", ThreadID: "mock-thread-1",
			From: "newsletter@dealsblast.example.com", Subject: "FINAL HOURS: 70% off everything!",
			Date: base, Labels: []string{"INBOX"},
			Body:     "Our biggest sale of the year ends tonight. Shop now before it's gone!",
			Markdown: "**Subject:** FINAL HOURS: 70% off everything!\n\nOur biggest sale of the year ends tonight.",
		},
		{
			ID: "mock-002", ThreadID: "mock-thread-2",
			From: "alice@work.example.com", Subject: "Q3 planning notes",
			Date: base.Add(time.Hour), Labels: []string{"INBOX"},
			Body:     "Attached are the notes from yesterday's planning session. Please review section 3.",
			Markdown: "**Subject:** Q3 planning notes\n\nAttached are the notes from yesterday's planning session.",
		},
		{
			ID: "mock-003", ThreadID: "mock-thread-2",
			From: "bob@work.example.com", Subject: "Re: Q3 planning notes",
			Date: base.Add(2 * time.Hour), Labels: []string{"INBOX"},
			Body:     "Section 3 looks good to me. One question about the budget line.",
			Markdown: "**Subject:** Re: Q3 planning notes\n\nSection 3 looks good to me.",
		},
		{
			ID: "mock-004", ThreadID: "mock-thread-3",
			From: "mom@family.example.com", Subject: "Sunday dinner?",
			Date: base.Add(3 * time.Hour), Labels: []string{"INBOX", "STARRED"}, Starred: true,
			Body:     "Are you coming over on Sunday? Let me know by Friday.",
			Markdown: "**Subject:** Sunday dinner?\n\nAre you coming over on Sunday?",
		},
		{
			ID: "mock-005", ThreadID: "mock-thread-4",
			From: "noreply@socialhub.example.com", Subject: "You have 12 new notifications",
			Date: base.Add(4 * time.Hour), Labels: []string{"INBOX"},
			Body:     "People are talking about posts you might like. See what you missed.",
			Markdown: "**Subject:** You have 12 new notifications\n\nSee what you missed.",
		},
	}
}
