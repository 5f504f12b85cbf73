package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailsift/internal/display"
	"github.com/daviddao/mailsift/internal/mailbox"
)

var fetchLimit int

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Preview the next unprocessed batch without analyzing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		led, err := openLedger()
		if err != nil {
			return err
		}
		mbox, err := mailbox.New(ctx, cfg)
		if err != nil {
			return err
		}

		limit := fetchLimit
		if limit <= 0 {
			limit = cfg.Processing.BatchSize
		}
		emails, err := mbox.Fetch(ctx, limit)
		if err != nil {
			return fmt.Errorf("fetch inbox: %w", err)
		}
		unprocessed := led.FilterUnprocessed(emails, limit)

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(unprocessed)
		}

		if len(unprocessed) == 0 {
			display.SuccessMsg("No unprocessed messages")
			return nil
		}
		display.Header(fmt.Sprintf("%d unprocessed message(s)", len(unprocessed)))
		for _, e := range unprocessed {
			display.EmailLine(e, 0)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().IntVar(&fetchLimit, "limit", 0, "Messages to preview (default: configured batch size)")
	rootCmd.AddCommand(fetchCmd)
}
