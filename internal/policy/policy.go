// Package policy classifies verdict confidence and decides how much
// human interaction a verdict warrants. Pure functions, no side effects.
package policy

import "github.com/daviddao/mailsift/internal/types"

// Confidence thresholds. Part of the external contract.
const (
	HighConfidence       = 0.80
	MediumConfidence     = 0.50
	AutoAcceptConfidence = 0.85
)

// Tier is a confidence band.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// TierOf maps a confidence value to its band: high >= 0.8,
// medium in [0.5, 0.8), low < 0.5.
func TierOf(confidence float64) Tier {
	switch {
	case confidence >= HighConfidence:
		return TierHigh
	case confidence >= MediumConfidence:
		return TierMedium
	default:
		return TierLow
	}
}

// autoAcceptCategories is the fixed allow-list of unambiguous
// categories eligible for one-keystroke acceptance.
var autoAcceptCategories = map[string]bool{
	"Commercial/Marketing":                  true,
	"Time-Sensitive Expired Content":        true,
	"Social Media & Platform Notifications": true,
	"Obvious Spam & Suspicious Content":     true,
}

// AutoAcceptable reports whether a verdict may be offered as a
// one-keystroke accept: confidence >= 0.85 and an allow-listed
// category. Declining still falls through to the full menu.
func AutoAcceptable(v *types.Verdict) bool {
	if v == nil {
		return false
	}
	return v.Confidence >= AutoAcceptConfidence && autoAcceptCategories[v.Category]
}

// NeedsEscalation reports whether the verdict must surface a
// low-confidence notice inviting the human to supply reasoning.
func NeedsEscalation(v *types.Verdict) bool {
	return v != nil && TierOf(v.Confidence) == TierLow
}

// Feedback describes whether and how feedback should be captured after
// a human decision.
type Feedback int

const (
	// FeedbackNone: high-confidence agreement, never solicit.
	FeedbackNone Feedback = iota
	// FeedbackOffer: agreement under low confidence; offer (don't
	// force) capture to reinforce the pattern.
	FeedbackOffer
	// FeedbackRequired: the human disagreed with the verdict's implied
	// action; always capture and update the instruction.
	FeedbackRequired
)

// FeedbackFor decides feedback-worthiness for a decision against a
// verdict. Skip, undo, and quit never solicit feedback.
func FeedbackFor(v *types.Verdict, decision types.Decision) Feedback {
	if v == nil {
		return FeedbackNone
	}
	switch decision {
	case types.DecisionKeep, types.DecisionDelete:
	default:
		return FeedbackNone
	}

	disagreement := v.WantsDelete() != (decision == types.DecisionDelete)
	if disagreement {
		return FeedbackRequired
	}
	if TierOf(v.Confidence) == TierLow {
		return FeedbackOffer
	}
	return FeedbackNone
}
