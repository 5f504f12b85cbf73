package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailsift/internal/display"
	"github.com/daviddao/mailsift/internal/export"
	"github.com/daviddao/mailsift/internal/mailbox"
)

var exportLimit int

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a batch of inbox messages to markdown files",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mbox, err := mailbox.New(ctx, cfg)
		if err != nil {
			return err
		}

		limit := exportLimit
		if limit <= 0 {
			limit = cfg.Processing.BatchSize
		}
		emails, err := mbox.Fetch(ctx, limit)
		if err != nil {
			return fmt.Errorf("fetch inbox: %w", err)
		}
		if len(emails) == 0 {
			display.SuccessMsg("Nothing to export")
			return nil
		}

		x := export.New(cfg.Storage.ExportDir)
		path, err := x.Batch(emails)
		if err != nil {
			return err
		}

		if !quietFlag {
			display.SuccessMsg("Exported %d message(s) to %s (batch: %s)", len(emails), x.Dir(), path)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "Messages to export (default: configured batch size)")
	rootCmd.AddCommand(exportCmd)
}
