package mailbox

import (
	"context"
	"fmt"

	gm "google.golang.org/api/gmail/v1"

	"github.com/daviddao/mailsift/internal/auth"
	"github.com/daviddao/mailsift/internal/gmail"
	"github.com/daviddao/mailsift/internal/types"
)

// Gmail adapts the Gmail API to the Mailbox contract.
type Gmail struct {
	svc *gm.Service

	// labelIDs caches name -> ID resolutions for the session.
	labelIDs map[string]string
}

// NewGmail authenticates and returns a Gmail mailbox.
func NewGmail(ctx context.Context, credentialsPath string) (*Gmail, error) {
	svc, err := auth.NewGmailService(ctx, credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return &Gmail{svc: svc, labelIDs: make(map[string]string)}, nil
}

// Fetch lists inbox messages, fully decoded.
func (g *Gmail) Fetch(ctx context.Context, limit int) ([]*types.Email, error) {
	return gmail.ListInbox(ctx, g.svc, int64(limit))
}

// AddLabel applies the named label to a message, creating the label on
// first use.
func (g *Gmail) AddLabel(ctx context.Context, messageID, label string) error {
	id, err := g.labelID(ctx, label)
	if err != nil {
		return err
	}
	return gmail.Modify(ctx, g.svc, messageID, []string{id}, nil)
}

// RemoveLabel strips the named label from a message.
func (g *Gmail) RemoveLabel(ctx context.Context, messageID, label string) error {
	id, err := g.labelID(ctx, label)
	if err != nil {
		return err
	}
	return gmail.Modify(ctx, g.svc, messageID, nil, []string{id})
}

func (g *Gmail) labelID(ctx context.Context, name string) (string, error) {
	if id, ok := g.labelIDs[name]; ok {
		return id, nil
	}
	id, err := gmail.ResolveLabel(ctx, g.svc, name)
	if err != nil {
		return "", err
	}
	g.labelIDs[name] = id
	return id, nil
}
