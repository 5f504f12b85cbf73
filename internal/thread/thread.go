// Package thread groups flat messages into conversation units.
package thread

import (
	"sort"
	"time"

	"github.com/daviddao/mailsift/internal/types"
)

// Group maps each email to its thread and returns the threads in a
// stable order (earliest message first, ties broken by thread ID).
//
// Thread identity resolution: explicit ThreadID on the record, then a
// transport "threadId" in the raw metadata, then a single-member thread
// keyed by the message's own ID.
func Group(emails []*types.Email) []*types.Thread {
	byID := make(map[string][]*types.Email)
	for _, e := range emails {
		id := identity(e)
		byID[id] = append(byID[id], e)
	}

	threads := make([]*types.Thread, 0, len(byID))
	for id, members := range byID {
		threads = append(threads, build(id, members))
	}

	sort.Slice(threads, func(i, j int) bool {
		if !threads[i].Earliest.Equal(threads[j].Earliest) {
			return threads[i].Earliest.Before(threads[j].Earliest)
		}
		return threads[i].ID < threads[j].ID
	})
	return threads
}

func identity(e *types.Email) string {
	if e.ThreadID != "" {
		return e.ThreadID
	}
	if tid := e.Raw["threadId"]; tid != "" {
		return tid
	}
	return "single_" + e.ID
}

func build(id string, members []*types.Email) *types.Thread {
	// Zero timestamps sort as "now" so such messages land last. The
	// key is computed here; the records themselves stay untouched.
	now := time.Now()
	when := func(e *types.Email) time.Time {
		if e.Date.IsZero() {
			return now
		}
		return e.Date
	}

	sort.SliceStable(members, func(i, j int) bool {
		di, dj := when(members[i]), when(members[j])
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return members[i].ID < members[j].ID
	})

	t := &types.Thread{
		ID:       id,
		Subject:  members[0].Subject,
		Messages: members,
		Earliest: when(members[0]),
		Latest:   when(members[len(members)-1]),
	}

	seen := make(map[string]bool)
	for _, e := range members {
		if !seen[e.From] {
			seen[e.From] = true
			t.Participants = append(t.Participants, e.From)
		}
		if Overridden(e) {
			t.Starred = true
		}
	}
	sort.Strings(t.Participants)
	return t
}

// Overridden reports whether a message carries any keep-override signal:
// the explicit starred flag, a STARRED label, or a starred marker in the
// raw transport metadata. Any one is sufficient.
func Overridden(e *types.Email) bool {
	if e.Starred {
		return true
	}
	for _, l := range e.Labels {
		if l == "STARRED" {
			return true
		}
	}
	switch e.Raw["starred"] {
	case "true", "yes", "1":
		return true
	}
	return false
}
