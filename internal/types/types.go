// Package types defines core data structures for mailsift.
package types

import "time"

// Email is one fetched mailbox message. Immutable once fetched.
type Email struct {
	ID       string            `json:"id"`
	ThreadID string            `json:"thread_id,omitempty"`
	From     string            `json:"from"`
	To       string            `json:"to,omitempty"`
	Subject  string            `json:"subject"`
	Date     time.Time         `json:"date"`
	Body     string            `json:"body,omitempty"`
	Markdown string            `json:"markdown,omitempty"`
	Starred  bool              `json:"starred,omitempty"`
	Labels   []string          `json:"labels,omitempty"`
	Raw      map[string]string `json:"raw,omitempty"`
}

// Thread is a chronologically ordered group of messages sharing a
// conversation identity. Built fresh per run, never persisted.
type Thread struct {
	ID           string    `json:"id"`
	Subject      string    `json:"subject"`
	Messages     []*Email  `json:"messages"`
	Participants []string  `json:"participants"`
	Earliest     time.Time `json:"earliest"`
	Latest       time.Time `json:"latest"`
	Starred      bool      `json:"starred"`
}

// Recommendation is the classifier's per-message verdict value.
type Recommendation string

const (
	RecKeep Recommendation = "KEEP"
	RecJunk Recommendation = "JUNK-CANDIDATE"
)

// ParseRecommendation validates a raw recommendation string, falling
// back to KEEP (the safe default) for anything unrecognized.
func ParseRecommendation(s string) (Recommendation, bool) {
	switch Recommendation(s) {
	case RecKeep, RecJunk:
		return Recommendation(s), true
	}
	return RecKeep, false
}

// ThreadRecommendation is the classifier's thread-level verdict value.
type ThreadRecommendation string

const (
	RecKeepThread   ThreadRecommendation = "KEEP_THREAD"
	RecDeleteThread ThreadRecommendation = "DELETE_THREAD"
	RecMixed        ThreadRecommendation = "MIXED"
)

// ParseThreadRecommendation validates a raw thread recommendation,
// falling back to MIXED for anything unrecognized.
func ParseThreadRecommendation(s string) (ThreadRecommendation, bool) {
	switch ThreadRecommendation(s) {
	case RecKeepThread, RecDeleteThread, RecMixed:
		return ThreadRecommendation(s), true
	}
	return RecMixed, false
}

// Verdict is the classifier's structured output for one message.
type Verdict struct {
	EmailID        string         `json:"email_id"`
	Recommendation Recommendation `json:"recommendation"`
	Category       string         `json:"category"`
	Confidence     float64        `json:"confidence"`
	Reasoning      string         `json:"reasoning"`
	KeyFactors     []string       `json:"key_factors,omitempty"`
	RedFlags       []string       `json:"red_flags,omitempty"`
	Model          string         `json:"model,omitempty"`
	AnalyzedAt     string         `json:"analyzed_at,omitempty"`
}

// WantsDelete reports whether the verdict's implied action is delete.
func (v *Verdict) WantsDelete() bool {
	return v != nil && v.Recommendation == RecJunk
}

// ThreadVerdict is the classifier's structured output for a whole thread.
type ThreadVerdict struct {
	Recommendation ThreadRecommendation `json:"thread_recommendation"`
	Confidence     float64              `json:"thread_confidence"`
	Reasoning      string               `json:"thread_reasoning"`
	KeyFactors     []string             `json:"key_thread_factors,omitempty"`
	Conversation   string               `json:"conversation_type,omitempty"`
}

// Decision is the resolved outcome for one message.
type Decision string

const (
	DecisionKeep   Decision = "keep"
	DecisionDelete Decision = "delete"
	DecisionSkip   Decision = "skip"
	DecisionUndo   Decision = "undo"
	DecisionQuit   Decision = "quit"
)

// ThreadDecision is the resolved outcome for a whole thread.
type ThreadDecision string

const (
	ThreadKeep   ThreadDecision = "thread_keep"
	ThreadDelete ThreadDecision = "thread_delete"
	ThreadMixed  ThreadDecision = "mixed"
	ThreadSkip   ThreadDecision = "skip"
	ThreadQuit   ThreadDecision = "quit"
)

// ActionRecord is one executed decision, held by the undo stack.
type ActionRecord struct {
	EmailID    string            `json:"email_id"`
	Decision   Decision          `json:"decision"`
	Timestamp  string            `json:"timestamp"`
	Verdict    *Verdict          `json:"verdict,omitempty"`
	Executed   bool              `json:"executed"`
	Reversible bool              `json:"reversible"`
	Details    map[string]string `json:"action_details,omitempty"`
}

// VerdictSummary is the classifier summary embedded in a ledger entry.
type VerdictSummary struct {
	Recommendation string  `json:"recommendation"`
	Category       string  `json:"category"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
}

// LedgerEntry is one persisted processed-email record (JSON, one per line).
type LedgerEntry struct {
	EmailID      string          `json:"email_id"`
	Decision     string          `json:"decision"`
	Timestamp    string          `json:"timestamp"`
	UserFeedback *string         `json:"user_feedback"`
	AIAnalysis   *VerdictSummary `json:"ai_analysis,omitempty"`
}

// Summarize converts a Verdict into the ledger's embedded summary form.
func Summarize(v *Verdict) *VerdictSummary {
	if v == nil {
		return nil
	}
	return &VerdictSummary{
		Recommendation: string(v.Recommendation),
		Category:       v.Category,
		Confidence:     v.Confidence,
		Reasoning:      v.Reasoning,
	}
}

// Now returns the current time as an ISO 8601 string.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
