// Package analyzer synthesizes classifier verdicts for a thread into
// one recommendation per message plus a thread-level recommendation.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/daviddao/mailsift/internal/thread"
	"github.com/daviddao/mailsift/internal/types"
)

// Classifier is the verdict-producing capability the analyzer consumes.
type Classifier interface {
	Analyze(ctx context.Context, content, instruction string) (*types.Verdict, error)
	AnalyzeThread(ctx context.Context, content, instruction string) (*types.ThreadVerdict, error)
}

// Instructions supplies the live classifier instruction text.
type Instructions interface {
	Current() string
}

// Result is the full outcome for one thread: a thread-level
// recommendation and one verdict per message, keyed by message ID.
type Result struct {
	Thread         *types.Thread
	Recommendation types.ThreadRecommendation
	Confidence     float64
	Reasoning      string
	Conversation   string
	Verdicts       map[string]*types.Verdict
	AutoKept       bool
	AutoKeepReason string
}

// Verdict returns the per-message verdict for the given message ID.
func (r *Result) Verdict(id string) *types.Verdict {
	return r.Verdicts[id]
}

// Analyzer runs the per-thread analysis state machine.
type Analyzer struct {
	classifier   Classifier
	instructions Instructions
}

// New creates an Analyzer.
func New(c Classifier, ins Instructions) *Analyzer {
	return &Analyzer{classifier: c, instructions: ins}
}

// AnalyzeThread resolves one thread. The override path never consults
// the classifier; the normal path asks for a thread-level verdict,
// then falls back to per-message verdicts when it is MIXED or failed.
// Classifier failures degrade to safe defaults and never abort.
func (a *Analyzer) AnalyzeThread(ctx context.Context, t *types.Thread) *Result {
	if t.Starred {
		return a.autoKeep(t)
	}

	instruction := a.instructions.Current()
	threadCtx := BuildContext(t)

	tv, err := a.classifier.AnalyzeThread(ctx, threadCtx, instruction+threadModeSuffix)
	if err != nil {
		tv = &types.ThreadVerdict{
			Recommendation: types.RecMixed,
			Confidence:     0.5,
			Reasoning:      "Analysis failed, defaulting to individual message review",
			KeyFactors:     []string{"Analysis error"},
			Conversation:   "Unknown",
		}
	}

	res := &Result{
		Thread:       t,
		Conversation: tv.Conversation,
		Verdicts:     make(map[string]*types.Verdict, len(t.Messages)),
	}

	// Decisive thread verdicts propagate to every message without
	// further classifier calls.
	if tv.Recommendation == types.RecKeepThread || tv.Recommendation == types.RecDeleteThread {
		rec := types.RecKeep
		if tv.Recommendation == types.RecDeleteThread {
			rec = types.RecJunk
		}
		for _, m := range t.Messages {
			res.Verdicts[m.ID] = &types.Verdict{
				EmailID:        m.ID,
				Recommendation: rec,
				Category:       categoryOr(tv.Conversation, "Thread Decision"),
				Confidence:     tv.Confidence,
				Reasoning:      "Thread-level decision: " + tv.Reasoning,
				KeyFactors:     tv.KeyFactors,
				AnalyzedAt:     types.Now(),
			}
		}
		res.Recommendation = tv.Recommendation
		res.Confidence = tv.Confidence
		res.Reasoning = tv.Reasoning
		return res
	}

	// MIXED (or degraded): one per-message call each, with the thread
	// context for continuity.
	for _, m := range t.Messages {
		res.Verdicts[m.ID] = a.analyzeMessage(ctx, m, instruction, tv)
	}

	res.Recommendation, res.Confidence, res.Reasoning = aggregate(t, res.Verdicts)
	return res
}

func (a *Analyzer) autoKeep(t *types.Thread) *Result {
	starred := 0
	for _, m := range t.Messages {
		if thread.Overridden(m) {
			starred++
		}
	}
	reason := fmt.Sprintf("Thread contains %d starred message(s)", starred)
	res := &Result{
		Thread:         t,
		Recommendation: types.RecKeepThread,
		Confidence:     1.0,
		Reasoning:      reason,
		Verdicts:       make(map[string]*types.Verdict, len(t.Messages)),
		AutoKept:       true,
		AutoKeepReason: reason,
	}
	for _, m := range t.Messages {
		res.Verdicts[m.ID] = &types.Verdict{
			EmailID:        m.ID,
			Recommendation: types.RecKeep,
			Category:       "Starred Message",
			Confidence:     1.0,
			Reasoning:      "Message or thread contains starred items",
			KeyFactors:     []string{"Starred message", "Auto-keep rule"},
			Model:          "auto-keep-rule",
			AnalyzedAt:     types.Now(),
		}
	}
	return res
}

// AnalyzeMessage resolves one message outside thread context. Starred
// messages are auto-kept without consulting the classifier; classifier
// failure degrades to a KEEP verdict at 0.5.
func (a *Analyzer) AnalyzeMessage(ctx context.Context, m *types.Email) *types.Verdict {
	if thread.Overridden(m) {
		return &types.Verdict{
			EmailID:        m.ID,
			Recommendation: types.RecKeep,
			Category:       "Starred Message",
			Confidence:     1.0,
			Reasoning:      "Message or thread contains starred items",
			KeyFactors:     []string{"Starred message", "Auto-keep rule"},
			Model:          "auto-keep-rule",
			AnalyzedAt:     types.Now(),
		}
	}

	content := m.Markdown
	if content == "" {
		content = m.Body
	}
	v, err := a.classifier.Analyze(ctx, content, a.instructions.Current())
	if err != nil {
		return &types.Verdict{
			EmailID:        m.ID,
			Recommendation: types.RecKeep,
			Category:       "Analysis Failed",
			Confidence:     0.5,
			Reasoning:      fmt.Sprintf("Analysis error: %v, defaulting to keep", err),
			KeyFactors:     []string{"Error recovery"},
			Model:          "error-fallback",
			AnalyzedAt:     types.Now(),
		}
	}
	v.EmailID = m.ID
	return v
}

func (a *Analyzer) analyzeMessage(ctx context.Context, m *types.Email, instruction string, tv *types.ThreadVerdict) *types.Verdict {
	prompt := instruction + messageModeSuffix(tv)
	content := m.Markdown
	if content == "" {
		content = m.Body
	}

	v, err := a.classifier.Analyze(ctx, content, prompt)
	if err != nil {
		return &types.Verdict{
			EmailID:        m.ID,
			Recommendation: types.RecKeep,
			Category:       "Analysis Failed",
			Confidence:     0.5,
			Reasoning:      fmt.Sprintf("Analysis error: %v, defaulting to keep", err),
			KeyFactors:     []string{"Error recovery"},
			Model:          "error-fallback",
			AnalyzedAt:     types.Now(),
		}
	}
	v.EmailID = m.ID
	return v
}

// aggregate turns per-message verdicts into a thread recommendation:
// unanimous keep => KEEP_THREAD 0.9, unanimous junk => DELETE_THREAD
// 0.9, otherwise MIXED 0.7 with the keep/delete counts.
func aggregate(t *types.Thread, verdicts map[string]*types.Verdict) (types.ThreadRecommendation, float64, string) {
	keep := 0
	for _, m := range t.Messages {
		if v := verdicts[m.ID]; v != nil && v.Recommendation == types.RecKeep {
			keep++
		}
	}
	del := len(t.Messages) - keep

	switch {
	case del == 0:
		return types.RecKeepThread, 0.9, "All individual messages should be kept"
	case keep == 0:
		return types.RecDeleteThread, 0.9, "All individual messages should be deleted"
	default:
		return types.RecMixed, 0.7, fmt.Sprintf("Mixed decisions: %d keep, %d delete", keep, del)
	}
}

// BuildContext renders a thread as a single textual document for the
// classifier: an overview plus each message in chronological order.
func BuildContext(t *types.Thread) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Email Thread Analysis\n")
	fmt.Fprintf(&b, "**Thread Subject:** %s\n", t.Subject)
	fmt.Fprintf(&b, "**Message Count:** %d\n", len(t.Messages))
	fmt.Fprintf(&b, "**Participants:** %s\n", strings.Join(t.Participants, ", "))
	fmt.Fprintf(&b, "**Date Range:** %s to %s\n\n", t.Earliest.Format("2006-01-02"), t.Latest.Format("2006-01-02"))

	b.WriteString("## Messages in Thread (chronological order)\n\n")
	for i, m := range t.Messages {
		fmt.Fprintf(&b, "### Message %d of %d\n", i+1, len(t.Messages))
		fmt.Fprintf(&b, "**From:** %s\n", m.From)
		fmt.Fprintf(&b, "**Date:** %s\n", m.Date.Format("2006-01-02 15:04"))
		starred := "No"
		if m.Starred {
			starred = "Yes"
		}
		fmt.Fprintf(&b, "**Starred:** %s\n", starred)
		if len(m.Labels) > 0 {
			fmt.Fprintf(&b, "**Labels:** %s\n", strings.Join(m.Labels, ", "))
		}
		b.WriteString("\n")
		if m.Markdown != "" {
			b.WriteString(m.Markdown)
		} else {
			b.WriteString(m.Body)
		}
		b.WriteString("\n\n---\n\n")
	}
	return b.String()
}

const threadModeSuffix = `

## THREAD ANALYSIS MODE

You are analyzing an EMAIL THREAD, not just a single email. Consider:

1. **Thread Context**: The relationship between messages, conversation flow
2. **Participants**: Who is involved and their roles
3. **Evolution**: How the conversation develops over time
4. **Overall Value**: The thread's collective importance vs individual messages

## Thread-Level Decisions:
- **KEEP_THREAD**: Entire thread has value, keep all messages
- **DELETE_THREAD**: Entire thread is junk, delete all messages
- **MIXED**: Some messages valuable, others not - analyze individually

## Response Format:
` + "```json" + `
{
  "thread_recommendation": "KEEP_THREAD" | "DELETE_THREAD" | "MIXED",
  "thread_confidence": 0.1-1.0,
  "thread_reasoning": "Why this thread should be kept/deleted/mixed",
  "key_thread_factors": ["Factor 1", "Factor 2"],
  "conversation_type": "Type of conversation (e.g., work discussion, marketing, support)"
}
` + "```" + `

Analyze the ENTIRE thread context, not individual messages.
`

func messageModeSuffix(tv *types.ThreadVerdict) string {
	return fmt.Sprintf(`

## MESSAGE IN THREAD CONTEXT

**Thread Analysis:** %s
**Thread Type:** %s

You are analyzing ONE MESSAGE within a larger thread. Consider:
- The message's individual value
- Its role in the overall conversation
- Whether it adds unique information
- Whether removing it would break thread coherence

Respond with standard JSON format for this individual message.
`, tv.Reasoning, categoryOr(tv.Conversation, "Unknown"))
}

func categoryOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
