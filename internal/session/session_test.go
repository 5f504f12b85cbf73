package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/daviddao/mailsift/internal/action"
	"github.com/daviddao/mailsift/internal/analyzer"
	"github.com/daviddao/mailsift/internal/instruction"
	"github.com/daviddao/mailsift/internal/ledger"
	"github.com/daviddao/mailsift/internal/mailbox"
	"github.com/daviddao/mailsift/internal/store"
	"github.com/daviddao/mailsift/internal/types"
)

// scriptedClassifier pops queued verdicts, falling back to a default.
type scriptedClassifier struct {
	threadVerdicts []*types.ThreadVerdict
	threadDefault  *types.ThreadVerdict
	verdicts       []*types.Verdict
	verdictDefault *types.Verdict
	suggestion     string

	threadCalls  int
	messageCalls int
	suggestCalls int
}

func (c *scriptedClassifier) AnalyzeThread(ctx context.Context, content, instruction string) (*types.ThreadVerdict, error) {
	c.threadCalls++
	if len(c.threadVerdicts) > 0 {
		v := c.threadVerdicts[0]
		c.threadVerdicts = c.threadVerdicts[1:]
		return v, nil
	}
	if c.threadDefault != nil {
		return c.threadDefault, nil
	}
	return nil, errors.New("no scripted thread verdict")
}

func (c *scriptedClassifier) Analyze(ctx context.Context, content, instruction string) (*types.Verdict, error) {
	c.messageCalls++
	if len(c.verdicts) > 0 {
		v := c.verdicts[0]
		c.verdicts = c.verdicts[1:]
		return v, nil
	}
	if c.verdictDefault != nil {
		v := *c.verdictDefault
		return &v, nil
	}
	return nil, errors.New("no scripted verdict")
}

func (c *scriptedClassifier) SuggestUpdate(ctx context.Context, current, feedback, example string) (string, error) {
	c.suggestCalls++
	return c.suggestion, nil
}

// scriptedPrompter pops queued answers; an exhausted queue fails the test.
type scriptedPrompter struct {
	t        *testing.T
	confirms []bool
	selects  []string
	texts    []string
}

func (p *scriptedPrompter) Confirm(title string, def bool) (bool, error) {
	if len(p.confirms) == 0 {
		p.t.Fatalf("unexpected confirm: %s", title)
	}
	v := p.confirms[0]
	p.confirms = p.confirms[1:]
	return v, nil
}

func (p *scriptedPrompter) Select(title string, options []Option) (string, error) {
	if len(p.selects) == 0 {
		p.t.Fatalf("unexpected select: %s", title)
	}
	v := p.selects[0]
	p.selects = p.selects[1:]
	return v, nil
}

func (p *scriptedPrompter) Text(title, initial string) (string, error) {
	if len(p.texts) == 0 {
		p.t.Fatalf("unexpected text prompt: %s", title)
	}
	v := p.texts[0]
	p.texts = p.texts[1:]
	return v, nil
}

func email(id, threadID string, minute int) *types.Email {
	return &types.Email{
		ID: id, ThreadID: threadID,
		From: id + "@example.com", Subject: "subject " + id,
		Date: time.Date(2026, 8, 20, 9, minute, 0, 0, time.UTC),
		Body: "body " + id, Labels: []string{"INBOX"},
	}
}

func keepVerdict(conf float64) *types.Verdict {
	return &types.Verdict{Recommendation: types.RecKeep, Category: "Personal", Confidence: conf, Reasoning: "looks personal"}
}

func junkVerdict(conf float64) *types.Verdict {
	return &types.Verdict{Recommendation: types.RecJunk, Category: "Commercial/Marketing", Confidence: conf, Reasoning: "promo blast"}
}

type fixture struct {
	runner *Runner
	mock   *mailbox.Mock
	led    *ledger.Ledger
	ins    *instruction.Store
}

func newFixture(t *testing.T, emails []*types.Email, cls *scriptedClassifier, p Prompter, opts Options) *fixture {
	t.Helper()
	dir := t.TempDir()

	mock := mailbox.NewMock(emails)
	led, err := ledger.Open(filepath.Join(dir, "ledger.jsonl"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	ins, err := instruction.Open(filepath.Join(dir, "instruction.md"), filepath.Join(dir, "history"))
	if err != nil {
		t.Fatalf("open instructions: %v", err)
	}

	return &fixture{
		runner: &Runner{
			Mailbox:      mock,
			Analyzer:     analyzer.New(cls, ins),
			Suggester:    cls,
			Instructions: ins,
			Executor:     action.NewExecutor(mock, led, "Junk-Candidate", 10),
			Ledger:       led,
			Prompt:       p,
			Opts:         opts,
		},
		mock: mock,
		led:  led,
		ins:  ins,
	}
}

func TestEndToEndMixedThread(t *testing.T) {
	emails := []*types.Email{
		email("m1", "t1", 0),
		email("m2", "t1", 1),
		email("m3", "t1", 2),
	}
	cls := &scriptedClassifier{
		threadVerdicts: []*types.ThreadVerdict{
			{Recommendation: types.RecMixed, Confidence: 0.6, Reasoning: "varies", Conversation: "mixed bag"},
		},
		verdicts: []*types.Verdict{keepVerdict(0.9), junkVerdict(0.9), keepVerdict(0.8)},
	}
	p := &scriptedPrompter{t: t, selects: []string{string(types.ThreadMixed)}}

	dir := t.TempDir()
	sessions, err := store.Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer sessions.Close()

	f := newFixture(t, emails, cls, p, Options{Limit: 5})
	f.runner.Sessions = sessions

	stats, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Processed != 3 || stats.Kept != 2 || stats.Deleted != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if cls.threadCalls != 1 || cls.messageCalls != 3 {
		t.Errorf("classifier calls: thread %d message %d", cls.threadCalls, cls.messageCalls)
	}

	entries, err := f.led.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	decisions := map[string]string{}
	for _, e := range entries {
		decisions[e.EmailID] = e.Decision
		if e.UserFeedback == nil || *e.UserFeedback != "Mixed thread decision" {
			t.Errorf("feedback for %s = %v", e.EmailID, e.UserFeedback)
		}
	}
	want := map[string]string{"m1": "keep", "m2": "delete", "m3": "keep"}
	for id, d := range want {
		if decisions[id] != d {
			t.Errorf("decision[%s] = %q, want %q", id, decisions[id], d)
		}
	}
	if !f.mock.HasLabel("m2", "Junk-Candidate") || f.mock.HasLabel("m2", "INBOX") {
		t.Errorf("m2 labels = %v", f.mock.Labels("m2"))
	}
	if f.mock.HasLabel("m1", "Junk-Candidate") {
		t.Error("kept message must not be labeled")
	}

	recent, err := sessions.RecentSessions(5)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(recent) != 1 || recent[0].Processed != 3 || recent[0].Mode != "thread" {
		t.Errorf("session row = %+v", recent)
	}
}

func TestStarredThreadAutoKeep(t *testing.T) {
	e := email("m1", "t1", 0)
	e.Starred = true
	cls := &scriptedClassifier{}
	p := &scriptedPrompter{t: t}

	f := newFixture(t, []*types.Email{e}, cls, p, Options{Limit: 5})
	stats, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if cls.threadCalls != 0 || cls.messageCalls != 0 {
		t.Error("override must never consult the classifier")
	}
	if stats.Kept != 1 {
		t.Errorf("stats = %+v", stats)
	}
	entries, _ := f.led.Entries()
	if len(entries) != 1 || *entries[0].UserFeedback != "Auto-keep: starred thread" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestDecisiveConfirmAccept(t *testing.T) {
	emails := []*types.Email{email("m1", "t1", 0), email("m2", "t1", 1)}
	cls := &scriptedClassifier{
		threadDefault: &types.ThreadVerdict{
			Recommendation: types.RecDeleteThread, Confidence: 0.9,
			Reasoning: "stale notifications", Conversation: "notification stream",
		},
	}
	p := &scriptedPrompter{t: t, confirms: []bool{true}}

	f := newFixture(t, emails, cls, p, Options{Limit: 5, AutoAccept: true})
	stats, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Deleted != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if cls.messageCalls != 0 {
		t.Error("decisive verdict must not trigger per-message calls")
	}
	entries, _ := f.led.Entries()
	for _, e := range entries {
		if *e.UserFeedback != "Thread delete decision" {
			t.Errorf("feedback = %q", *e.UserFeedback)
		}
	}
}

func TestAutoAcceptSilent(t *testing.T) {
	emails := []*types.Email{email("m1", "t1", 0), email("m2", "t1", 1)}
	cls := &scriptedClassifier{
		threadDefault: &types.ThreadVerdict{
			Recommendation: types.RecDeleteThread, Confidence: 0.9,
			Reasoning: "promo", Conversation: "Commercial/Marketing",
		},
	}
	// No scripted prompts: any prompt fails the test.
	p := &scriptedPrompter{t: t}

	f := newFixture(t, emails, cls, p, Options{Limit: 5, AutoAccept: true})
	stats, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Deleted != 2 || stats.AutoAccepted != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestEligibleVerdictOffersConfirmByDefault(t *testing.T) {
	emails := []*types.Email{email("m1", "t1", 0)}
	cls := &scriptedClassifier{
		threadDefault: &types.ThreadVerdict{
			Recommendation: types.RecDeleteThread, Confidence: 0.9,
			Reasoning: "promo", Conversation: "Commercial/Marketing",
		},
	}
	p := &scriptedPrompter{t: t, confirms: []bool{true}}

	// AutoAccept off: even a fully eligible verdict must be offered,
	// never applied silently.
	f := newFixture(t, emails, cls, p, Options{Limit: 5})
	stats, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.AutoAccepted != 0 {
		t.Errorf("auto-accepted = %d, want 0", stats.AutoAccepted)
	}
	if stats.Deleted != 1 || stats.Agreements != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(p.confirms) != 0 {
		t.Error("confirm offer never shown")
	}
}

func TestThreadSkipThenQuit(t *testing.T) {
	emails := []*types.Email{email("m1", "t1", 0), email("m2", "t2", 1), email("m3", "t3", 2)}
	cls := &scriptedClassifier{
		threadDefault: &types.ThreadVerdict{
			Recommendation: types.RecKeepThread, Confidence: 0.6,
			Reasoning: "probably fine", Conversation: "misc",
		},
	}
	p := &scriptedPrompter{t: t,
		confirms: []bool{false, false},
		selects:  []string{string(types.ThreadSkip), string(types.ThreadQuit)},
	}

	f := newFixture(t, emails, cls, p, Options{Limit: 5})
	stats, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Skipped != 1 || stats.Processed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if cls.threadCalls != 2 {
		t.Errorf("threadCalls = %d, want 2 (quit stops the third)", cls.threadCalls)
	}
	if f.led.Len() != 0 {
		t.Error("skip and quit must not reach the ledger")
	}
}

func TestDisagreementUpdatesInstructions(t *testing.T) {
	emails := []*types.Email{email("m1", "t1", 0)}
	cls := &scriptedClassifier{
		threadDefault: &types.ThreadVerdict{
			Recommendation: types.RecDeleteThread, Confidence: 0.85,
			Reasoning: "looks like a receipt blast", Conversation: "receipts",
		},
		suggestion: "Order receipts should be kept for reference.",
	}
	p := &scriptedPrompter{t: t,
		confirms: []bool{false, true, true},
		selects:  []string{string(types.ThreadKeep)},
		texts:    []string{"Receipts matter"},
	}

	f := newFixture(t, emails, cls, p, Options{Limit: 5})
	stats, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Disagreements != 1 || stats.InstructionUpdates != 1 || stats.Kept != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if cls.suggestCalls != 1 {
		t.Errorf("suggestCalls = %d", cls.suggestCalls)
	}
	if f.ins.CurrentVersion() != 2 {
		t.Errorf("instruction version = %d, want 2", f.ins.CurrentVersion())
	}
	entries, _ := f.led.Entries()
	if len(entries) != 1 || *entries[0].UserFeedback != "Receipts matter" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestIndividualUndoRepromptsSameMessage(t *testing.T) {
	emails := []*types.Email{email("m1", "t1", 0), email("m2", "t2", 1)}
	cls := &scriptedClassifier{verdictDefault: keepVerdict(0.9)}
	p := &scriptedPrompter{t: t,
		selects: []string{
			string(types.DecisionKeep),
			string(types.DecisionUndo),
			string(types.DecisionKeep),
		},
	}

	f := newFixture(t, emails, cls, p, Options{Limit: 5, Individual: true})
	stats, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Processed != 1 || stats.Kept != 1 || stats.Undos != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if f.led.Contains("m1") {
		t.Error("undone message must leave the ledger")
	}
	if !f.led.Contains("m2") {
		t.Error("re-prompted message must be recorded")
	}
}

func TestIndividualDisagreementDefaultFeedback(t *testing.T) {
	emails := []*types.Email{email("m1", "t1", 0)}
	cls := &scriptedClassifier{verdictDefault: junkVerdict(0.9)}
	p := &scriptedPrompter{t: t,
		confirms: []bool{false, false},
		selects:  []string{string(types.DecisionKeep)},
		texts:    []string{""},
	}

	f := newFixture(t, emails, cls, p, Options{Limit: 5, Individual: true})
	stats, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Disagreements != 1 || stats.Kept != 1 {
		t.Errorf("stats = %+v", stats)
	}
	entries, _ := f.led.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	want := "User chose to keep despite AI recommending delete. Confidence was 0.90"
	if entries[0].UserFeedback == nil || *entries[0].UserFeedback != want {
		t.Errorf("feedback = %v, want %q", entries[0].UserFeedback, want)
	}
}

func TestFetchBufferingSurvivesOverlap(t *testing.T) {
	var emails []*types.Email
	for i := 0; i < 15; i++ {
		emails = append(emails, email(fmt.Sprintf("m%02d", i), fmt.Sprintf("t%02d", i), i))
	}
	cls := &scriptedClassifier{
		threadDefault: &types.ThreadVerdict{
			Recommendation: types.RecDeleteThread, Confidence: 0.9,
			Reasoning: "promo", Conversation: "Commercial/Marketing",
		},
	}
	p := &scriptedPrompter{t: t}

	f := newFixture(t, emails, cls, p, Options{Limit: 10, AutoAccept: true})
	// First 8 already processed in an earlier run.
	for i := 0; i < 8; i++ {
		f.led.Append(&types.LedgerEntry{EmailID: fmt.Sprintf("m%02d", i), Decision: "keep", Timestamp: types.Now()})
	}

	stats, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 15 fetched (10 + min(5, 5) buffer), 8 filtered out, 7 remain.
	if stats.Processed != 7 {
		t.Errorf("processed = %d, want 7", stats.Processed)
	}
}
