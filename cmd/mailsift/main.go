package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailsift/internal/classifier"
	"github.com/daviddao/mailsift/internal/config"
	"github.com/daviddao/mailsift/internal/display"
	"github.com/daviddao/mailsift/internal/instruction"
	"github.com/daviddao/mailsift/internal/ledger"
	"github.com/daviddao/mailsift/internal/store"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	configPath string
	jsonOutput bool
	quietFlag  bool
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mailsift",
	Short: "mailsift - LLM-assisted inbox triage",
	Long:  "Mailsift: fetch inbox threads, classify them with a local LLM, and review keep/delete decisions interactively.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "init", "help", "version":
			return nil
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mailsift version %s\n", Version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold config.yaml and the default instruction file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = "config.yaml"
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := os.WriteFile(path, []byte(config.DefaultYAML), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}

		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		// Opening the store writes out the default instruction text.
		if _, err := instruction.Open(cfg.Storage.InstructionPath, cfg.Storage.HistoryDir); err != nil {
			return err
		}

		if !quietFlag {
			display.SuccessMsg("Initialized %s and %s", path, cfg.Storage.InstructionPath)
		}
		return nil
	},
}

// openLedger opens the processed ledger, surfacing a quarantine loudly
// but continuing with the empty fail-open ledger.
func openLedger() (*ledger.Ledger, error) {
	led, err := ledger.Open(cfg.Storage.LedgerPath)
	var corrupted *ledger.ErrCorrupted
	if errors.As(err, &corrupted) {
		display.ErrorMsg("%v", corrupted)
		display.WarnMsg("continuing with an empty ledger; previously decided messages may reappear")
		return led, nil
	}
	if err != nil {
		return nil, err
	}
	if led.SkippedLines > 0 {
		display.WarnMsg("ledger: skipped %d malformed line(s)", led.SkippedLines)
	}
	return led, nil
}

func openInstructions() (*instruction.Store, error) {
	return instruction.Open(cfg.Storage.InstructionPath, cfg.Storage.HistoryDir)
}

func openSessions() (*store.DB, error) {
	return store.Open(cfg.Storage.StateDB)
}

func newClassifier() *classifier.Client {
	return classifier.New(classifier.Options{
		BaseURL:            cfg.Classifier.BaseURL,
		APIKey:             cfg.Classifier.APIKey,
		Model:              cfg.Classifier.Model,
		Temperature:        cfg.Classifier.Temperature,
		SuggestTemperature: cfg.Classifier.SuggestTemperature,
		MaxTokens:          cfg.Classifier.MaxTokens,
		SuggestMaxTokens:   cfg.Classifier.SuggestMaxTokens,
		Timeout:            time.Duration(cfg.Classifier.TimeoutSec) * time.Second,
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
