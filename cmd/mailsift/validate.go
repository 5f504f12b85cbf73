package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailsift/internal/display"
	"github.com/daviddao/mailsift/internal/mailbox"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run preflight checks against the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		failed := 0

		check := func(name string, err error) {
			if err != nil {
				failed++
				display.ErrorMsg("%s: %v", name, err)
				return
			}
			display.SuccessMsg("%s", name)
		}

		// Config already loaded by the root command.
		check("config", nil)

		cls := newClassifier()
		check(fmt.Sprintf("classifier (%s, model %s)", cls.BaseURL(), cls.Model()), cls.Ping(ctx))

		_, insErr := openInstructions()
		check(fmt.Sprintf("instructions (%s)", cfg.Storage.InstructionPath), insErr)

		_, ledErr := openLedger()
		check(fmt.Sprintf("ledger (%s)", cfg.Storage.LedgerPath), ledErr)

		_, mbErr := mailbox.New(ctx, cfg)
		check(fmt.Sprintf("mailbox (%s)", cfg.Mailbox.Provider), mbErr)

		sessions, dbErr := openSessions()
		if dbErr == nil {
			sessions.Close()
		}
		check(fmt.Sprintf("session store (%s)", cfg.Storage.StateDB), dbErr)

		if failed > 0 {
			return fmt.Errorf("%d check(s) failed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
