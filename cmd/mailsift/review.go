package main

import (
	"github.com/spf13/cobra"

	"github.com/daviddao/mailsift/internal/action"
	"github.com/daviddao/mailsift/internal/analyzer"
	"github.com/daviddao/mailsift/internal/mailbox"
	"github.com/daviddao/mailsift/internal/session"
)

var (
	reviewLimit      int
	reviewIndividual bool
	reviewDryRun     bool
	reviewAutoAccept bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Interactively triage the next batch of inbox messages",
	Long:  "Fetch unprocessed messages, analyze them thread by thread, and review keep/delete decisions. Use --individual for the per-message loop and --dry-run for the in-memory mock mailbox.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		led, err := openLedger()
		if err != nil {
			return err
		}
		ins, err := openInstructions()
		if err != nil {
			return err
		}
		sessions, err := openSessions()
		if err != nil {
			return err
		}
		defer sessions.Close()

		var mbox mailbox.Mailbox
		if reviewDryRun {
			mbox = mailbox.NewMock(mailbox.SeedEmails())
		} else {
			mbox, err = mailbox.New(ctx, cfg)
			if err != nil {
				return err
			}
		}

		cls := newClassifier()
		runner := &session.Runner{
			Mailbox:      mbox,
			Analyzer:     analyzer.New(cls, ins),
			Suggester:    cls,
			Instructions: ins,
			Executor:     action.NewExecutor(mbox, led, cfg.Processing.JunkLabel, cfg.Processing.UndoDepth),
			Ledger:       led,
			Sessions:     sessions,
			Prompt:       session.HuhPrompter{},
			Opts: session.Options{
				Limit:      reviewLimit,
				BatchSize:  cfg.Processing.BatchSize,
				Individual: reviewIndividual || !cfg.Processing.ThreadMode,
				DryRun:     reviewDryRun,
				AutoAccept: reviewAutoAccept || cfg.Processing.AutoAccept,
				PreviewLen: cfg.Display.PreviewLength,
			},
		}

		_, err = runner.Run(ctx)
		return err
	},
}

func init() {
	reviewCmd.Flags().IntVar(&reviewLimit, "limit", 0, "Messages per session (default: configured batch size)")
	reviewCmd.Flags().BoolVar(&reviewIndividual, "individual", false, "Review message by message instead of by thread")
	reviewCmd.Flags().BoolVar(&reviewDryRun, "dry-run", false, "Use the in-memory mock mailbox")
	reviewCmd.Flags().BoolVar(&reviewAutoAccept, "auto-accept", false, "Apply high-confidence allow-list verdicts without prompting")
	rootCmd.AddCommand(reviewCmd)
}
