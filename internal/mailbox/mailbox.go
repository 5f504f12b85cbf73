// Package mailbox abstracts the mailbox collaborator: fetching
// messages and mutating labels. Adapters exist for Gmail, IMAP, and a
// deterministic in-memory mock.
package mailbox

import (
	"context"
	"fmt"

	"github.com/daviddao/mailsift/internal/config"
	"github.com/daviddao/mailsift/internal/types"
)

// Mailbox is the contract the action executor and fetch boundary
// consume. Label names are caller-facing; adapters resolve them to
// whatever the transport needs.
type Mailbox interface {
	// Fetch returns up to limit raw messages from the inbox.
	Fetch(ctx context.Context, limit int) ([]*types.Email, error)
	// AddLabel applies the named label, creating it if needed.
	AddLabel(ctx context.Context, messageID, label string) error
	// RemoveLabel removes the named label; removing an absent label
	// is not an error.
	RemoveLabel(ctx context.Context, messageID, label string) error
}

// New constructs the adapter named by the configuration provider.
func New(ctx context.Context, cfg *config.Config) (Mailbox, error) {
	switch cfg.Mailbox.Provider {
	case "gmail":
		return NewGmail(ctx, cfg.Mailbox.CredentialsPath)
	case "imap":
		return NewIMAP(cfg.Mailbox.IMAPHost, cfg.Mailbox.IMAPPort, cfg.Mailbox.IMAPUser, cfg.Mailbox.IMAPPassword), nil
	case "mock":
		return NewMock(SeedEmails()), nil
	default:
		return nil, fmt.Errorf("unknown mailbox provider %q", cfg.Mailbox.Provider)
	}
}
