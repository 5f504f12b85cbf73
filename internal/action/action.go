// Package action applies decisions against the mailbox and keeps the
// bounded undo history.
package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/daviddao/mailsift/internal/mailbox"
	"github.com/daviddao/mailsift/internal/types"
)

// DefaultUndoDepth bounds the retained action history. Only the top
// entry is actionable; older entries serve inspection.
const DefaultUndoDepth = 10

var (
	// ErrNothingToUndo reports an undo against an empty stack.
	ErrNothingToUndo = errors.New("no recent actions to undo")
	// ErrNotReversible reports an undo against a record that was never
	// executed or cannot be reversed.
	ErrNotReversible = errors.New("last action cannot be undone")
)

// Ledger is the subset of the processed ledger the executor needs.
type Ledger interface {
	Append(entry *types.LedgerEntry) error
	Remove(id string) error
}

// Executor applies decisions and records reversible actions.
type Executor struct {
	mbox      mailbox.Mailbox
	ledger    Ledger
	junkLabel string
	depth     int
	stack     []*types.ActionRecord
}

// NewExecutor creates an Executor. junkLabel defaults to
// "Junk-Candidate", depth to DefaultUndoDepth.
func NewExecutor(mbox mailbox.Mailbox, ledger Ledger, junkLabel string, depth int) *Executor {
	if junkLabel == "" {
		junkLabel = "Junk-Candidate"
	}
	if depth <= 0 {
		depth = DefaultUndoDepth
	}
	return &Executor{mbox: mbox, ledger: ledger, junkLabel: junkLabel, depth: depth}
}

// Execute applies a keep or delete decision to one message, appends
// the ledger entry, and pushes the action record. For delete, the junk
// label is added and INBOX removed; a failed inbox removal is recorded
// but does not void reversibility, since removing the added label alone
// restores prior state. A failed label addition marks the action
// non-executed and non-reversible.
func (x *Executor) Execute(ctx context.Context, emailID string, decision types.Decision, verdict *types.Verdict, feedback *string) (*types.ActionRecord, error) {
	rec := &types.ActionRecord{
		EmailID:   emailID,
		Decision:  decision,
		Timestamp: types.Now(),
		Verdict:   verdict,
		Details:   make(map[string]string),
	}

	switch decision {
	case types.DecisionDelete:
		if err := x.mbox.AddLabel(ctx, emailID, x.junkLabel); err != nil {
			rec.Executed = false
			rec.Reversible = false
			rec.Details["error"] = err.Error()
			x.push(rec)
			return rec, fmt.Errorf("add label %q to %s: %w", x.junkLabel, emailID, err)
		}
		rec.Executed = true
		rec.Reversible = true
		rec.Details["label_added"] = x.junkLabel

		if err := x.mbox.RemoveLabel(ctx, emailID, "INBOX"); err != nil {
			// Tolerated: the junk label alone marks the message.
			rec.Details["inbox_removal"] = "failed"
		} else {
			rec.Details["label_removed"] = "INBOX"
		}

	case types.DecisionKeep:
		// No mailbox mutation; trivially reversible.
		rec.Executed = true
		rec.Reversible = true
		rec.Details["action"] = "keep"
		rec.Details["no_changes"] = "true"

	default:
		return nil, fmt.Errorf("decision %q is not executable", decision)
	}

	if err := x.ledger.Append(&types.LedgerEntry{
		EmailID:      emailID,
		Decision:     string(decision),
		Timestamp:    rec.Timestamp,
		UserFeedback: feedback,
		AIAnalysis:   types.Summarize(verdict),
	}); err != nil {
		return rec, fmt.Errorf("record %s in ledger: %w", emailID, err)
	}

	x.push(rec)
	return rec, nil
}

func (x *Executor) push(rec *types.ActionRecord) {
	x.stack = append(x.stack, rec)
	if len(x.stack) > x.depth {
		// Oldest entry silently loses undoability.
		x.stack = x.stack[1:]
	}
}

// Undo reverses the most recent action only. For a delete it removes
// the junk label that was added; on mailbox failure nothing changes.
// On success the ledger entry is removed and the record popped.
func (x *Executor) Undo(ctx context.Context) (*types.ActionRecord, error) {
	if len(x.stack) == 0 {
		return nil, ErrNothingToUndo
	}
	top := x.stack[len(x.stack)-1]
	if !top.Executed || !top.Reversible {
		return nil, ErrNotReversible
	}

	if top.Decision == types.DecisionDelete {
		label := top.Details["label_added"]
		if label == "" {
			return nil, ErrNotReversible
		}
		if err := x.mbox.RemoveLabel(ctx, top.EmailID, label); err != nil {
			return nil, fmt.Errorf("remove label %q from %s: %w", label, top.EmailID, err)
		}
	}

	if err := x.ledger.Remove(top.EmailID); err != nil {
		return nil, fmt.Errorf("remove %s from ledger: %w", top.EmailID, err)
	}
	x.stack = x.stack[:len(x.stack)-1]
	return top, nil
}

// Recent returns the retained action history, oldest first. Read-only;
// only the last entry is actionable via Undo.
func (x *Executor) Recent() []*types.ActionRecord {
	out := make([]*types.ActionRecord, len(x.stack))
	copy(out, x.stack)
	return out
}

// Depth returns the number of retained actions.
func (x *Executor) Depth() int { return len(x.stack) }
