// Package session drives the interactive review loop: fetch, analyze,
// prompt, act, and keep running statistics.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/daviddao/mailsift/internal/action"
	"github.com/daviddao/mailsift/internal/analyzer"
	"github.com/daviddao/mailsift/internal/display"
	"github.com/daviddao/mailsift/internal/instruction"
	"github.com/daviddao/mailsift/internal/ledger"
	"github.com/daviddao/mailsift/internal/mailbox"
	"github.com/daviddao/mailsift/internal/policy"
	"github.com/daviddao/mailsift/internal/store"
	"github.com/daviddao/mailsift/internal/thread"
	"github.com/daviddao/mailsift/internal/types"
)

// Suggester produces instruction improvement text from user feedback.
type Suggester interface {
	SuggestUpdate(ctx context.Context, currentInstruction, feedback, exampleContent string) (string, error)
}

// Instructions is the instruction store capability the loop needs.
type Instructions interface {
	Current() string
	Update(suggested, feedback, exampleContent string) (*instruction.Version, error)
}

// Options tunes one review session.
type Options struct {
	Limit      int
	BatchSize  int
	Individual bool
	DryRun     bool
	AutoAccept bool
	PreviewLen int
}

// Mode names the review mode for session records.
func (o Options) Mode() string {
	if o.Individual {
		return "individual"
	}
	return "thread"
}

func (o Options) batch() int {
	if o.Limit > 0 {
		return o.Limit
	}
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return 10
}

// Runner owns one review session.
type Runner struct {
	Mailbox      mailbox.Mailbox
	Analyzer     *analyzer.Analyzer
	Suggester    Suggester
	Instructions Instructions
	Executor     *action.Executor
	Ledger       *ledger.Ledger
	Sessions     *store.DB
	Prompt       Prompter
	Opts         Options

	stats Stats
	quit  bool
}

// Run executes the session until the batch is exhausted or the user
// quits, then prints and persists the statistics.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	startedAt := types.Now()

	emails, err := r.fetchBatch(ctx)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		display.SuccessMsg("No unprocessed messages")
		return &r.stats, nil
	}
	display.SubHeader(fmt.Sprintf("%d unprocessed message(s)", len(emails)))

	if r.Opts.Individual {
		r.runIndividual(ctx, emails)
	} else {
		r.runThreads(ctx, emails)
	}

	fmt.Println()
	r.stats.Print()
	if r.Sessions != nil {
		err := r.Sessions.InsertSession(&store.Session{
			StartedAt: startedAt, EndedAt: types.Now(),
			Mode: r.Opts.Mode(), DryRun: r.Opts.DryRun,
			Processed: r.stats.Processed, Kept: r.stats.Kept,
			Deleted: r.stats.Deleted, Skipped: r.stats.Skipped,
			Agreements: r.stats.Agreements, Disagreements: r.stats.Disagreements,
			AutoAccepted: r.stats.AutoAccepted, InstructionUpdates: r.stats.InstructionUpdates,
			Undos: r.stats.Undos,
		})
		if err != nil {
			display.WarnMsg("session not recorded: %v", err)
		}
	}
	return &r.stats, nil
}

// fetchBatch over-fetches slightly for larger batches so that already
// processed messages in the window do not starve the session, then
// filters through the ledger and caps at the batch size.
func (r *Runner) fetchBatch(ctx context.Context) ([]*types.Email, error) {
	batch := r.Opts.batch()
	fetchN := batch
	if batch >= 10 {
		extra := batch / 2
		if extra > 5 {
			extra = 5
		}
		fetchN = batch + extra
	}

	emails, err := r.Mailbox.Fetch(ctx, fetchN)
	if err != nil {
		return nil, fmt.Errorf("fetch inbox: %w", err)
	}
	return r.Ledger.FilterUnprocessed(emails, batch), nil
}

// --- thread mode ---

func (r *Runner) runThreads(ctx context.Context, emails []*types.Email) {
	threads := thread.Group(emails)
	display.SubHeader(fmt.Sprintf("%d thread(s)", len(threads)))

	for _, t := range threads {
		if r.quit {
			return
		}
		r.reviewThread(ctx, t)
		r.progress()
	}
}

func (r *Runner) reviewThread(ctx context.Context, t *types.Thread) {
	res := r.Analyzer.AnalyzeThread(ctx, t)

	fmt.Println()
	display.ThreadTree(t)
	display.Verdict(display.ThreadBadge(res.Recommendation), res.Conversation, res.Confidence, res.Reasoning)

	if res.AutoKept {
		display.SuccessMsg("Auto-keep: starred thread")
		r.applyThread(ctx, res, types.ThreadKeep, "Auto-keep: starred thread")
		return
	}
	if res.Confidence < policy.MediumConfidence {
		display.WarnMsg("low confidence: %s", res.Reasoning)
	}

	decisive := res.Recommendation == types.RecKeepThread || res.Recommendation == types.RecDeleteThread

	if decisive && r.Opts.AutoAccept && r.allAutoAcceptable(res) {
		display.SuccessMsg("Auto-accepted: %s", res.Recommendation)
		r.stats.AutoAccepted += len(t.Messages)
		r.applyThread(ctx, res, impliedThreadDecision(res.Recommendation), threadFeedback(impliedThreadDecision(res.Recommendation)))
		return
	}

	decision := types.ThreadDecision("")
	if decisive {
		ok := r.confirm(fmt.Sprintf("Accept recommendation (%s)?", res.Recommendation), true)
		if r.quit {
			return
		}
		if ok {
			decision = impliedThreadDecision(res.Recommendation)
		}
	}
	if decision == "" {
		decision = r.threadMenu()
		if r.quit {
			return
		}
	}

	switch decision {
	case types.ThreadSkip:
		r.stats.Skipped += len(t.Messages)
		return
	case types.ThreadQuit:
		r.quit = true
		return
	}

	feedback := r.threadFeedbackFlow(ctx, res, decision)
	r.applyThread(ctx, res, decision, feedback)
}

func (r *Runner) threadMenu() types.ThreadDecision {
	choice, err := r.Prompt.Select("Thread decision", []Option{
		{Key: string(types.ThreadKeep), Label: "Keep entire thread"},
		{Key: string(types.ThreadDelete), Label: "Delete entire thread"},
		{Key: string(types.ThreadMixed), Label: "Apply per-message verdicts"},
		{Key: string(types.ThreadSkip), Label: "Skip thread"},
		{Key: string(types.ThreadQuit), Label: "Quit"},
	})
	if err != nil {
		r.interrupt(err)
		return types.ThreadQuit
	}
	return types.ThreadDecision(choice)
}

// threadFeedbackFlow captures feedback when the human overrode a
// decisive verdict, and offers an instruction update from it. The
// returned string is logged with every message in the thread.
func (r *Runner) threadFeedbackFlow(ctx context.Context, res *analyzer.Result, decision types.ThreadDecision) string {
	feedback := threadFeedback(decision)

	disagreed := (decision == types.ThreadKeep && res.Recommendation == types.RecDeleteThread) ||
		(decision == types.ThreadDelete && res.Recommendation == types.RecKeepThread)
	if !disagreed {
		r.stats.Agreements++
		return feedback
	}
	r.stats.Disagreements++

	def := defaultFeedback(decision == types.ThreadKeep, res.Confidence)
	text, err := r.Prompt.Text("Why? This feedback improves future analysis.", def)
	if err != nil {
		r.interrupt(err)
		return feedback
	}
	if text != "" {
		feedback = text
	}

	example := ""
	if len(res.Thread.Messages) > 0 {
		example = contentOf(res.Thread.Messages[0])
	}
	r.offerInstructionUpdate(ctx, feedback, example)
	return feedback
}

func (r *Runner) applyThread(ctx context.Context, res *analyzer.Result, decision types.ThreadDecision, feedback string) {
	for _, m := range res.Thread.Messages {
		var d types.Decision
		switch decision {
		case types.ThreadKeep:
			d = types.DecisionKeep
		case types.ThreadDelete:
			d = types.DecisionDelete
		case types.ThreadMixed:
			d = types.DecisionKeep
			if res.Verdict(m.ID).WantsDelete() {
				d = types.DecisionDelete
			}
		default:
			continue
		}
		r.execute(ctx, m.ID, d, res.Verdict(m.ID), feedback)
	}
}

func (r *Runner) allAutoAcceptable(res *analyzer.Result) bool {
	if res.Recommendation == types.RecKeepThread {
		// Keeping needs no safeguard; accept on the thread confidence.
		return res.Confidence >= policy.AutoAcceptConfidence
	}
	for _, m := range res.Thread.Messages {
		if !policy.AutoAcceptable(res.Verdict(m.ID)) {
			return false
		}
	}
	return true
}

// --- individual mode ---

func (r *Runner) runIndividual(ctx context.Context, emails []*types.Email) {
	for i := 0; i < len(emails); i++ {
		if r.quit {
			return
		}
		// Undo re-prompts the same message.
		if !r.reviewMessage(ctx, emails[i]) {
			i--
			continue
		}
		r.progress()
	}
}

// reviewMessage handles one message; returns false when the loop must
// stay on the same message (after an undo).
func (r *Runner) reviewMessage(ctx context.Context, e *types.Email) bool {
	v := r.Analyzer.AnalyzeMessage(ctx, e)

	fmt.Println()
	display.EmailLine(e, r.Opts.PreviewLen)
	display.Verdict(display.RecommendationBadge(v.Recommendation), v.Category, v.Confidence, v.Reasoning)

	if v.Model == "auto-keep-rule" {
		display.SuccessMsg("Auto-keep: starred message")
		r.execute(ctx, e.ID, types.DecisionKeep, v, "Auto-keep: starred message")
		return true
	}
	if policy.NeedsEscalation(v) {
		display.WarnMsg("low confidence: %s", v.Reasoning)
	}

	if policy.AutoAcceptable(v) {
		if r.Opts.AutoAccept {
			display.SuccessMsg("Auto-accepted: %s", v.Recommendation)
			r.stats.AutoAccepted++
			r.execute(ctx, e.ID, impliedDecision(v), v, "")
			return true
		}
		ok := r.confirm(fmt.Sprintf("Accept recommendation (%s)?", v.Recommendation), true)
		if r.quit {
			return true
		}
		if ok {
			r.stats.Agreements++
			r.execute(ctx, e.ID, impliedDecision(v), v, "")
			return true
		}
	}

	choice, err := r.Prompt.Select("Decision", []Option{
		{Key: string(types.DecisionKeep), Label: "Keep"},
		{Key: string(types.DecisionDelete), Label: "Delete (label as junk)"},
		{Key: string(types.DecisionSkip), Label: "Skip"},
		{Key: string(types.DecisionUndo), Label: "Undo last action"},
		{Key: string(types.DecisionQuit), Label: "Quit"},
	})
	if err != nil {
		r.interrupt(err)
		return true
	}

	switch types.Decision(choice) {
	case types.DecisionSkip:
		r.stats.Skipped++
		return true
	case types.DecisionQuit:
		r.quit = true
		return true
	case types.DecisionUndo:
		r.undo(ctx)
		return false
	}

	decision := types.Decision(choice)
	feedback := r.messageFeedbackFlow(ctx, e, v, decision)
	r.execute(ctx, e.ID, decision, v, feedback)
	return true
}

// messageFeedbackFlow applies the feedback policy: disagreement always
// captures feedback and offers an instruction update; low-confidence
// agreement offers reinforcement; high-confidence agreement stays quiet.
func (r *Runner) messageFeedbackFlow(ctx context.Context, e *types.Email, v *types.Verdict, decision types.Decision) string {
	switch policy.FeedbackFor(v, decision) {
	case policy.FeedbackRequired:
		r.stats.Disagreements++
		def := defaultFeedback(decision == types.DecisionKeep, v.Confidence)
		text, err := r.Prompt.Text("Why? This feedback improves future analysis.", def)
		if err != nil {
			r.interrupt(err)
			return ""
		}
		if text == "" {
			text = def
		}
		r.offerInstructionUpdate(ctx, text, contentOf(e))
		return text

	case policy.FeedbackOffer:
		r.stats.Agreements++
		ok := r.confirm("Add reinforcement feedback for this low-confidence call?", false)
		if r.quit || !ok {
			return ""
		}
		text, err := r.Prompt.Text("What made this decision right?", "")
		if err != nil {
			r.interrupt(err)
			return ""
		}
		return text

	default:
		r.stats.Agreements++
		return ""
	}
}

// --- shared plumbing ---

func (r *Runner) execute(ctx context.Context, emailID string, d types.Decision, v *types.Verdict, feedback string) {
	var fb *string
	if feedback != "" {
		fb = &feedback
	}
	if _, err := r.Executor.Execute(ctx, emailID, d, v, fb); err != nil {
		display.ErrorMsg("%s: %v", emailID, err)
		return
	}
	r.stats.Processed++
	if d == types.DecisionDelete {
		r.stats.Deleted++
	} else {
		r.stats.Kept++
	}
}

func (r *Runner) undo(ctx context.Context) {
	rec, err := r.Executor.Undo(ctx)
	switch {
	case errors.Is(err, action.ErrNothingToUndo), errors.Is(err, action.ErrNotReversible):
		display.WarnMsg("%v", err)
	case err != nil:
		display.ErrorMsg("undo: %v", err)
	default:
		r.stats.Undos++
		r.stats.Processed--
		if rec.Decision == types.DecisionDelete {
			r.stats.Deleted--
		} else {
			r.stats.Kept--
		}
		display.SuccessMsg("Undid %s of %s", rec.Decision, rec.EmailID)
	}
}

// offerInstructionUpdate asks the classifier for an improvement from
// the feedback and, if the user approves, applies it to the live
// instruction document.
func (r *Runner) offerInstructionUpdate(ctx context.Context, feedback, example string) {
	ok := r.confirm("Update the analysis instructions based on this feedback?", true)
	if r.quit || !ok {
		return
	}

	suggested, err := r.Suggester.SuggestUpdate(ctx, r.Instructions.Current(), feedback, example)
	if err != nil {
		display.ErrorMsg("suggestion failed: %v", err)
		return
	}
	fmt.Println()
	display.SubHeader("Suggested instruction improvement")
	fmt.Println(suggested)

	ok = r.confirm("Apply this improvement?", true)
	if r.quit || !ok {
		return
	}
	if _, err := r.Instructions.Update(suggested, feedback, example); err != nil {
		display.ErrorMsg("instruction update failed: %v", err)
		return
	}
	r.stats.InstructionUpdates++
	display.SuccessMsg("Instructions updated")
}

func (r *Runner) confirm(title string, def bool) bool {
	ok, err := r.Prompt.Confirm(title, def)
	if err != nil {
		r.interrupt(err)
		return false
	}
	return ok
}

// interrupt implements the interruption rule: an aborted prompt quits
// the session; the in-flight item is left unmutated (kept).
func (r *Runner) interrupt(err error) {
	if errors.Is(err, ErrInterrupted) {
		display.WarnMsg("interrupted; stopping")
	} else {
		display.ErrorMsg("prompt: %v", err)
	}
	r.quit = true
}

func (r *Runner) progress() {
	if r.stats.Processed > 0 && r.stats.Processed%5 == 0 {
		display.SubHeader(r.stats.Summary())
	}
}

func impliedThreadDecision(rec types.ThreadRecommendation) types.ThreadDecision {
	if rec == types.RecDeleteThread {
		return types.ThreadDelete
	}
	return types.ThreadKeep
}

func impliedDecision(v *types.Verdict) types.Decision {
	if v.WantsDelete() {
		return types.DecisionDelete
	}
	return types.DecisionKeep
}

func threadFeedback(d types.ThreadDecision) string {
	switch d {
	case types.ThreadKeep:
		return "Thread keep decision"
	case types.ThreadDelete:
		return "Thread delete decision"
	case types.ThreadMixed:
		return "Mixed thread decision"
	}
	return ""
}

func defaultFeedback(userKept bool, confidence float64) string {
	user, ai := "keep", "delete"
	if !userKept {
		user, ai = "delete", "keep"
	}
	return fmt.Sprintf("User chose to %s despite AI recommending %s. Confidence was %.2f", user, ai, confidence)
}

func contentOf(e *types.Email) string {
	if e.Markdown != "" {
		return e.Markdown
	}
	return e.Body
}
