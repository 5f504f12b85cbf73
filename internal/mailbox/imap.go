package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/daviddao/mailsift/internal/types"
)

// IMAP adapts a plain IMAP mailbox to the Mailbox contract.
//
// Message IDs are inbox UIDs rendered as strings. Labels map onto IMAP
// flags: STARRED is \Flagged, custom labels are keywords, and removing
// INBOX moves the message to an archive folder.
type IMAP struct {
	host     string
	port     string
	username string
	password string
}

// NewIMAP creates an IMAP mailbox configuration. Connections are
// per-operation; the caller holds no open session.
func NewIMAP(host, port, username, password string) *IMAP {
	if port == "" {
		port = "993"
	}
	return &IMAP{host: host, port: port, username: username, password: password}
}

func (m *IMAP) connect(ctx context.Context) (*imapclient.Client, error) {
	addr := m.host + ":" + m.port
	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to IMAP %s: %w", addr, err)
	}
	if err := client.Login(m.username, m.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("IMAP login for %s: %w", m.username, err)
	}
	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("select INBOX: %w", err)
	}
	return client, nil
}

// Fetch returns the most recent inbox messages with decoded bodies.
func (m *IMAP) Fetch(ctx context.Context, limit int) ([]*types.Email, error) {
	client, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search inbox: %w", err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	var emails []*types.Email
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		emails = append(emails, emailFromBuffer(buf, bodySection))
	}
	if err := fetchCmd.Close(); err != nil {
		return emails, fmt.Errorf("fetch inbox: %w", err)
	}
	return emails, nil
}

// AddLabel sets the corresponding flag on the message. Adding INBOX is
// a no-op (the message is already in the inbox).
func (m *IMAP) AddLabel(ctx context.Context, messageID, label string) error {
	if label == "INBOX" {
		return nil
	}
	return m.storeFlags(ctx, messageID, label, imap.StoreFlagsAdd)
}

// RemoveLabel clears the corresponding flag; removing INBOX archives
// the message instead.
func (m *IMAP) RemoveLabel(ctx context.Context, messageID, label string) error {
	if label == "INBOX" {
		return m.archive(ctx, messageID)
	}
	return m.storeFlags(ctx, messageID, label, imap.StoreFlagsDel)
}

func (m *IMAP) storeFlags(ctx context.Context, messageID, label string, op imap.StoreFlagsOp) error {
	uid, err := parseUID(messageID)
	if err != nil {
		return err
	}

	client, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	storeCmd := client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  []imap.Flag{flagFor(label)},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("store flags on %s: %w", messageID, err)
	}
	return nil
}

func (m *IMAP) archive(ctx context.Context, messageID string) error {
	uid, err := parseUID(messageID)
	if err != nil {
		return err
	}

	client, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	uidSet := imap.UIDSetNum(uid)
	for _, folder := range []string{"Archive", "[Gmail]/All Mail", "Archives", "INBOX.Archive"} {
		if _, err := client.Move(uidSet, folder).Wait(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no archive folder accepted message %s", messageID)
}

func flagFor(label string) imap.Flag {
	if label == "STARRED" {
		return imap.FlagFlagged
	}
	return imap.Flag(label)
}

func parseUID(messageID string) (imap.UID, error) {
	n, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("message ID %q is not an IMAP UID", messageID)
	}
	return imap.UID(n), nil
}

func emailFromBuffer(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) *types.Email {
	e := &types.Email{
		ID:   strconv.FormatUint(uint64(buf.UID), 10),
		From: "Unknown Sender",
		Raw:  map[string]string{},
	}

	if buf.Envelope != nil {
		e.Subject = buf.Envelope.Subject
		e.Date = buf.Envelope.Date
		if e.Subject == "" {
			e.Subject = "(no subject)"
		}
		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				e.From = fmt.Sprintf("%s <%s>", from.Name, from.Addr())
			} else {
				e.From = from.Addr()
			}
		}
		if len(buf.Envelope.To) > 0 {
			e.To = buf.Envelope.To[0].Addr()
		}
		if buf.Envelope.MessageID != "" {
			e.Raw["messageId"] = buf.Envelope.MessageID
		}
	}

	for _, flag := range buf.Flags {
		e.Labels = append(e.Labels, string(flag))
		if flag == imap.FlagFlagged {
			e.Starred = true
			e.Raw["starred"] = "true"
		}
	}

	if raw := buf.FindBodySection(section); raw != nil {
		e.Body = extractTextBody(raw)
	}
	e.Markdown = fmt.Sprintf("**Subject:** %s\n**From:** %s\n**Date:** %s\n\n%s",
		e.Subject, e.From, e.Date.Format(time.RFC1123Z), e.Body)
	return e
}

// extractTextBody parses a raw RFC 2822 message with go-message and
// returns the first text/plain part (falling back to text/html).
func extractTextBody(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := header.ContentType()
		data, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch ct {
		case "text/plain":
			return string(data)
		case "text/html":
			html = "(HTML content)\n" + string(data)
		}
	}
	return html
}
