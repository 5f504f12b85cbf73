package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailsift/internal/display"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Inspect the classifier instruction document",
}

var promptShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current instruction text",
	RunE: func(cmd *cobra.Command, args []string) error {
		ins, err := openInstructions()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ins.Current())
		return nil
	},
}

var promptHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List instruction snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		ins, err := openInstructions()
		if err != nil {
			return err
		}
		versions, err := ins.Versions()
		if err != nil {
			return fmt.Errorf("list snapshots: %w", err)
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(versions)
		}

		if len(versions) == 0 {
			display.SuccessMsg("No snapshots yet (version %d)", ins.CurrentVersion())
			return nil
		}
		display.Header(fmt.Sprintf("%d snapshot(s), current version %d", len(versions), ins.CurrentVersion()))
		for _, v := range versions {
			fmt.Printf("  v%-3d %-12s %s\n", v.Number, display.TimeAgo(v.Timestamp), display.Dim.Render(v.Reason))
		}
		return nil
	},
}

var promptStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show instruction version statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ins, err := openInstructions()
		if err != nil {
			return err
		}
		stats, err := ins.Stats()
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		display.Header("Instruction statistics")
		fmt.Printf("  Version:   %d\n", stats.CurrentVersion)
		fmt.Printf("  Snapshots: %d\n", stats.Snapshots)
		fmt.Printf("  Length:    %d characters\n", stats.Length)
		fmt.Printf("  Live file: %s\n", stats.Path)
		fmt.Printf("  History:   %s\n", stats.HistoryDir)
		return nil
	},
}

var promptDiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show the text added by the latest instruction update",
	RunE: func(cmd *cobra.Command, args []string) error {
		ins, err := openInstructions()
		if err != nil {
			return err
		}
		diff, err := ins.LatestChange()
		if err != nil {
			return err
		}
		if diff == "" {
			display.SuccessMsg("No updates recorded yet")
			return nil
		}
		display.SubHeader("Added by the latest update:")
		fmt.Fprintln(cmd.OutOrStdout(), diff)
		return nil
	},
}

func init() {
	promptCmd.AddCommand(promptShowCmd)
	promptCmd.AddCommand(promptHistoryCmd)
	promptCmd.AddCommand(promptStatsCmd)
	promptCmd.AddCommand(promptDiffCmd)
	rootCmd.AddCommand(promptCmd)
}
