package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/mail"
	"net/textproto"
	"os"
	"strings"

	"github.com/mikey/inbox-classifier/internal/core"
	"github.com/mikey/inbox-classifier/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	labelInbox = "INBOX"
	labelSpam  = "SPAM"
)

// NewServiceFromFiles builds a Gmail service from an OAuth client secret
// file and a previously saved token file
func NewServiceFromFiles(ctx context.Context, credentialsPath, tokenPath string) (*gmailapi.Service, error) {
	creds, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read Gmail credentials: %w", err)
	}
	config, err := google.ConfigFromJSON(creds, gmailapi.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Gmail client secret: %w", err)
	}

	raw, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read Gmail token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("failed to decode Gmail token: %w", err)
	}

	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(config.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}

// Client reads and relabels messages in one Gmail mailbox
type Client struct {
	svc    *gmailapi.Service
	user   string
	text   *utils.TextProcessor
	logger *zap.Logger
}

// NewClient creates a new Gmail client. user is usually "me".
func NewClient(svc *gmailapi.Service, user string, text *utils.TextProcessor, logger *zap.Logger) *Client {
	if user == "" {
		user = "me"
	}
	return &Client{svc: svc, user: user, text: text, logger: logger}
}

// ListMessageIDs returns the ids of inbox messages matching query
func (c *Client) ListMessageIDs(ctx context.Context, query string, maxResults int64) ([]string, error) {
	q := "in:inbox"
	if strings.TrimSpace(query) != "" {
		q += " " + query
	}

	call := c.svc.Users.Messages.List(c.user).Q(q).Context(ctx)
	if maxResults > 0 {
		call = call.MaxResults(maxResults)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// GetRecord fetches one message and converts it to an EmailRecord
func (c *Client) GetRecord(ctx context.Context, id string) (*core.EmailRecord, error) {
	msg, err := c.svc.Users.Messages.Get(c.user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	return MessageToRecord(msg, c.text), nil
}

// Modify adds and removes labels on a message
func (c *Client) Modify(ctx context.Context, id string, add, remove []string) error {
	req := &gmailapi.ModifyMessageRequest{AddLabelIds: add, RemoveLabelIds: remove}
	if _, err := c.svc.Users.Messages.Modify(c.user, id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to modify labels on %s: %w", id, err)
	}
	c.logger.Debug("Modified message labels",
		zap.String("message_id", id),
		zap.Strings("added", add),
		zap.Strings("removed", remove))
	return nil
}

// MoveToSpam labels a message as spam and takes it out of the inbox
func (c *Client) MoveToSpam(ctx context.Context, id string) error {
	return c.Modify(ctx, id, []string{labelSpam}, []string{labelInbox})
}

// MessageToRecord converts a Gmail API message to an EmailRecord. The body
// prefers text/plain and falls back to the visible text of text/html.
func MessageToRecord(msg *gmailapi.Message, text *utils.TextProcessor) *core.EmailRecord {
	record := &core.EmailRecord{
		ID:           msg.Id,
		Snippet:      html.UnescapeString(msg.Snippet),
		NativeLabels: append([]string(nil), msg.LabelIds...),
		Headers:      make(map[string][]string),
	}
	if msg.Payload == nil {
		return record
	}

	for _, h := range msg.Payload.Headers {
		key := textproto.CanonicalMIMEHeaderKey(h.Name)
		record.Headers[key] = append(record.Headers[key], h.Value)
	}
	record.From = record.Header("From")
	record.Subject = record.Header("Subject")
	record.To = parseAddressList(record.Header("To"))

	plain, htmlBody := collectBodies(msg.Payload)
	switch {
	case plain != "":
		record.Body = text.SanitizeUTF8(plain)
	case htmlBody != "":
		record.Body = text.HTMLToText(text.SanitizeUTF8(htmlBody))
	}
	return record
}

// collectBodies returns the first text/plain and text/html parts found
func collectBodies(part *gmailapi.MessagePart) (plain, htmlBody string) {
	if part == nil {
		return "", ""
	}
	if part.Body != nil && part.Body.Data != "" && part.Filename == "" {
		switch strings.ToLower(part.MimeType) {
		case "text/plain":
			plain = decodeBody(part.Body.Data)
		case "text/html":
			htmlBody = decodeBody(part.Body.Data)
		}
	}
	for _, child := range part.Parts {
		p, h := collectBodies(child)
		if plain == "" {
			plain = p
		}
		if htmlBody == "" {
			htmlBody = h
		}
	}
	return plain, htmlBody
}

// decodeBody decodes base64url data with or without padding
func decodeBody(data string) string {
	data = strings.TrimSpace(data)
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return string(b)
	}
	return ""
}

func parseAddressList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	if list, err := mail.ParseAddressList(value); err == nil {
		out := make([]string, 0, len(list))
		for _, a := range list {
			out = append(out, a.Address)
		}
		return out
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
