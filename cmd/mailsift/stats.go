package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailsift/internal/display"
	"github.com/daviddao/mailsift/internal/store"
)

type statsOutput struct {
	Totals *store.Totals    `json:"totals"`
	Recent []*store.Session `json:"recent_sessions"`
	Ledger int              `json:"ledger_entries"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show lifetime and recent session statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := openSessions()
		if err != nil {
			return err
		}
		defer sessions.Close()
		led, err := openLedger()
		if err != nil {
			return err
		}

		totals, err := sessions.LifetimeTotals()
		if err != nil {
			return fmt.Errorf("lifetime totals: %w", err)
		}
		recent, err := sessions.RecentSessions(5)
		if err != nil {
			return fmt.Errorf("recent sessions: %w", err)
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(statsOutput{Totals: totals, Recent: recent, Ledger: led.Len()})
		}

		display.Header("Mailsift Statistics")
		fmt.Println()
		fmt.Printf("  Sessions:   %d\n", totals.Sessions)
		fmt.Printf("  Processed:  %d\n", totals.Processed)
		fmt.Printf("  Kept:       %d\n", totals.Kept)
		fmt.Printf("  Deleted:    %d\n", totals.Deleted)
		fmt.Printf("  Skipped:    %d\n", totals.Skipped)
		fmt.Printf("  Ledger:     %d entries\n", led.Len())

		if len(recent) > 0 {
			fmt.Println()
			fmt.Println("  Recent sessions")
			for _, s := range recent {
				mode := s.Mode
				if s.DryRun {
					mode += " (dry-run)"
				}
				fmt.Printf("    %-12s %-20s processed %3d  kept %3d  deleted %3d\n",
					display.TimeAgo(s.StartedAt), mode, s.Processed, s.Kept, s.Deleted)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
