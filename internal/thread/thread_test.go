package thread

import (
	"testing"
	"time"

	"github.com/daviddao/mailsift/internal/types"
)

func mail(id, threadID string, date time.Time) *types.Email {
	return &types.Email{ID: id, ThreadID: threadID, From: id + "@example.com", Subject: "s", Date: date}
}

func TestGroupByExplicitThreadID(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	emails := []*types.Email{
		mail("a", "t1", base.Add(2*time.Hour)),
		mail("b", "t1", base),
		mail("c", "t2", base.Add(time.Hour)),
	}

	threads := Group(emails)
	if len(threads) != 2 {
		t.Fatalf("got %d threads, want 2", len(threads))
	}
	// t1 starts earlier, so it comes first.
	if threads[0].ID != "t1" || threads[1].ID != "t2" {
		t.Fatalf("thread order = %s, %s", threads[0].ID, threads[1].ID)
	}
	if threads[0].Messages[0].ID != "b" || threads[0].Messages[1].ID != "a" {
		t.Errorf("messages not chronological: %s, %s", threads[0].Messages[0].ID, threads[0].Messages[1].ID)
	}
	if !threads[0].Earliest.Equal(base) || !threads[0].Latest.Equal(base.Add(2*time.Hour)) {
		t.Errorf("date range = %v..%v", threads[0].Earliest, threads[0].Latest)
	}
}

func TestGroupRawMetadataAndFallback(t *testing.T) {
	e1 := mail("m1", "", time.Now())
	e1.Raw = map[string]string{"threadId": "raw-t"}
	e2 := mail("m2", "", time.Now())

	threads := Group([]*types.Email{e1, e2})
	ids := map[string]bool{}
	for _, th := range threads {
		ids[th.ID] = true
	}
	if !ids["raw-t"] || !ids["single_m2"] {
		t.Fatalf("thread ids = %v", ids)
	}
}

func TestGroupTimestampTieBreak(t *testing.T) {
	d := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	threads := Group([]*types.Email{
		mail("z", "t1", d),
		mail("a", "t1", d),
	})
	if got := threads[0].Messages[0].ID; got != "a" {
		t.Errorf("tie broken by id: first = %s, want a", got)
	}
}

func TestGroupMissingDateSortsLast(t *testing.T) {
	d := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	threads := Group([]*types.Email{
		{ID: "nodate", ThreadID: "t1", From: "x@example.com", Subject: "s"},
		mail("dated", "t1", d),
	})
	msgs := threads[0].Messages
	if msgs[len(msgs)-1].ID != "nodate" {
		t.Errorf("message without date should sort last, got order %s, %s", msgs[0].ID, msgs[1].ID)
	}
}

func TestGroupLeavesMessageDatesUntouched(t *testing.T) {
	d := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	undated := &types.Email{ID: "nodate", ThreadID: "t1", From: "x@example.com", Subject: "s"}
	dated := mail("dated", "t1", d)

	Group([]*types.Email{undated, dated})

	if !undated.Date.IsZero() {
		t.Errorf("undated message mutated: Date = %v", undated.Date)
	}
	if !dated.Date.Equal(d) {
		t.Errorf("dated message mutated: Date = %v", dated.Date)
	}
}

func TestOverridden(t *testing.T) {
	tests := []struct {
		name string
		e    *types.Email
		want bool
	}{
		{"starred flag", &types.Email{Starred: true}, true},
		{"starred label", &types.Email{Labels: []string{"INBOX", "STARRED"}}, true},
		{"raw starred", &types.Email{Raw: map[string]string{"starred": "true"}}, true},
		{"plain", &types.Email{Labels: []string{"INBOX"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overridden(tt.e); got != tt.want {
				t.Errorf("Overridden = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestThreadStarredWhenAnyMemberStarred(t *testing.T) {
	d := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	plain := mail("p", "t1", d)
	starred := mail("s", "t1", d.Add(time.Minute))
	starred.Starred = true

	threads := Group([]*types.Email{plain, starred})
	if !threads[0].Starred {
		t.Error("thread with one starred member should be starred")
	}
}

func TestParticipantsUniqueSorted(t *testing.T) {
	d := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e1 := mail("1", "t1", d)
	e1.From = "bob@example.com"
	e2 := mail("2", "t1", d.Add(time.Minute))
	e2.From = "alice@example.com"
	e3 := mail("3", "t1", d.Add(2*time.Minute))
	e3.From = "bob@example.com"

	threads := Group([]*types.Email{e1, e2, e3})
	p := threads[0].Participants
	if len(p) != 2 || p[0] != "alice@example.com" || p[1] != "bob@example.com" {
		t.Errorf("participants = %v", p)
	}
}
