// Package gmail provides the low-level Gmail API operations mailsift
// needs: inbox listing, full-message reads, and label mutation.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	gm "google.golang.org/api/gmail/v1"

	"github.com/daviddao/mailsift/internal/types"
)

// ListInbox fetches up to limit inbox messages, fully decoded into
// Email records. Individual message read failures are skipped.
func ListInbox(ctx context.Context, svc *gm.Service, limit int64) ([]*types.Email, error) {
	resp, err := svc.Users.Messages.List("me").
		LabelIds("INBOX").
		MaxResults(limit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}

	emails := make([]*types.Email, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		msg, err := svc.Users.Messages.Get("me", ref.Id).
			Format("full").
			Context(ctx).
			Do()
		if err != nil {
			// Skip individual message failures.
			continue
		}
		emails = append(emails, ToEmail(msg))
	}
	return emails, nil
}

// ToEmail converts a Gmail API message into the canonical Email record.
func ToEmail(msg *gm.Message) *types.Email {
	headers := headerMap(msg.Payload.Headers)

	starred := false
	for _, l := range msg.LabelIds {
		if l == "STARRED" {
			starred = true
			break
		}
	}

	body := extractBody(msg.Payload)
	return &types.Email{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		From:     defaultStr(headers["From"], "Unknown Sender"),
		To:       headers["To"],
		Subject:  defaultStr(headers["Subject"], "(no subject)"),
		Date:     parseDate(headers["Date"]),
		Body:     body,
		Markdown: renderMarkdown(headers, body),
		Starred:  starred,
		Labels:   msg.LabelIds,
		Raw: map[string]string{
			"threadId": msg.ThreadId,
			"snippet":  msg.Snippet,
		},
	}
}

// renderMarkdown produces the textual representation the classifier
// consumes: a small header block plus the decoded body.
func renderMarkdown(headers map[string]string, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Subject:** %s\n", defaultStr(headers["Subject"], "(no subject)"))
	fmt.Fprintf(&b, "**From:** %s\n", headers["From"])
	fmt.Fprintf(&b, "**Date:** %s\n\n", headers["Date"])
	b.WriteString(body)
	return b.String()
}

// ResolveLabel returns the ID of the named label, creating the label
// when it does not exist yet.
func ResolveLabel(ctx context.Context, svc *gm.Service, name string) (string, error) {
	// System labels are their own IDs.
	switch name {
	case "INBOX", "STARRED", "UNREAD", "SPAM", "TRASH", "IMPORTANT":
		return name, nil
	}

	resp, err := svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("list labels: %w", err)
	}
	for _, l := range resp.Labels {
		if l.Name == name {
			return l.Id, nil
		}
	}

	created, err := svc.Users.Labels.Create("me", &gm.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	return created.Id, nil
}

// Modify adds and removes label IDs on a message.
func Modify(ctx context.Context, svc *gm.Service, messageID string, add, remove []string) error {
	_, err := svc.Users.Messages.Modify("me", messageID, &gm.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("modify message %s: %w", messageID, err)
	}
	return nil
}

// extractBody gets the plain text body from a message payload.
// Handles multipart messages recursively, preferring text/plain over text/html.
func extractBody(payload *gm.MessagePart) string {
	// Direct body on the payload itself.
	if payload.Body != nil && payload.Body.Data != "" {
		if decoded, err := decodeBase64URL(payload.Body.Data); err == nil {
			return decoded
		}
	}

	// Recurse into parts — prefer text/plain first pass.
	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
				return decoded
			}
		}
		if len(part.Parts) > 0 {
			if body := extractBody(part); body != "" {
				return body
			}
		}
	}

	// Second pass: fall back to HTML.
	for _, part := range payload.Parts {
		if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
			if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
				return "(HTML content)\n" + decoded
			}
		}
	}

	return "(No readable body found)"
}

// headerMap converts Gmail API headers into a simple key-value map.
func headerMap(headers []*gm.MessagePartHeader) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Name] = h.Value
	}
	return m
}

// parseDate parses an RFC 2822 Date header, returning the zero time
// when the header is absent or malformed (the aggregator defaults it).
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := mail.ParseDate(s); err == nil {
		return t
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// decodeBase64URL decodes Gmail's base64url-encoded content.
func decodeBase64URL(data string) (string, error) {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
