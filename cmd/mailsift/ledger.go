package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailsift/internal/display"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect or edit the processed-message ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show processed ledger entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		led, err := openLedger()
		if err != nil {
			return err
		}
		entries, err := led.Entries()
		if err != nil {
			return fmt.Errorf("read ledger: %w", err)
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		if len(entries) == 0 {
			display.SuccessMsg("Ledger is empty")
			return nil
		}
		display.Header(fmt.Sprintf("%d ledger entr(ies)", len(entries)))
		for _, e := range entries {
			rec := ""
			if e.AIAnalysis != nil {
				rec = fmt.Sprintf("%s %.0f%%", e.AIAnalysis.Recommendation, e.AIAnalysis.Confidence*100)
			}
			fmt.Printf("  %-18s %-7s %-12s %s\n",
				display.Truncate(e.EmailID, 18), e.Decision, display.TimeAgo(e.Timestamp), display.Dim.Render(rec))
		}
		return nil
	},
}

var ledgerRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Drop one entry so the message is reprocessed next run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		led, err := openLedger()
		if err != nil {
			return err
		}
		id := args[0]
		if !led.Contains(id) {
			return fmt.Errorf("ledger has no entry for %q", id)
		}
		if err := led.Remove(id); err != nil {
			return fmt.Errorf("remove %s: %w", id, err)
		}
		if !quietFlag {
			display.SuccessMsg("Removed %s; it will be offered again next session", id)
		}
		return nil
	},
}

func init() {
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerRemoveCmd)
	rootCmd.AddCommand(ledgerCmd)
}
