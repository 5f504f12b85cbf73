package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailsift/internal/auth"
	"github.com/daviddao/mailsift/internal/display"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize Gmail access and write token.json",
	Long:  "Run the console OAuth flow for the configured Gmail credentials: open the printed URL, grant access, and paste the authorization code back.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Mailbox.Provider != "gmail" {
			return fmt.Errorf("auth applies to the gmail provider, configured provider is %q", cfg.Mailbox.Provider)
		}

		err := auth.Authorize(cmd.Context(), cfg.Mailbox.CredentialsPath, func(authURL string) (string, error) {
			fmt.Println("Open this URL in your browser and grant access:")
			fmt.Println()
			fmt.Println("  " + authURL)
			fmt.Println()
			fmt.Print("Paste the authorization code: ")
			reader := bufio.NewReader(os.Stdin)
			code, err := reader.ReadString('\n')
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(code), nil
		})
		if err != nil {
			return err
		}

		if !quietFlag {
			display.SuccessMsg("Authorized; token saved next to %s", cfg.Mailbox.CredentialsPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
}
