package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/phrazzld/mailtriage/internal/domain"
)

// DefaultUser addresses the authorized account.
const DefaultUser = "me"

// Mailbox reads recent messages from Gmail.
type Mailbox struct {
	svc    *gmail.Service
	user   string
	logger *slog.Logger
}

// NewMailbox returns a Gmail source for user. opts typically carry the
// authorized HTTP client.
func NewMailbox(ctx context.Context, user string, logger *slog.Logger, opts ...option.ClientOption) (*Mailbox, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	if user == "" {
		user = DefaultUser
	}
	return &Mailbox{
		svc:    svc,
		user:   user,
		logger: logger.With("component", "gmail_source"),
	}, nil
}

// Fetch returns up to limit messages received within lookback, newest first.
func (m *Mailbox) Fetch(ctx context.Context, lookback time.Duration, limit int) ([]domain.Email, error) {
	query := LookbackQuery(lookback)

	list, err := m.svc.Users.Messages.List(m.user).
		Q(query).
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: list %q: %v", ErrFetch, query, err)
	}

	m.logger.DebugContext(ctx, "listed messages",
		"query", query,
		"count", len(list.Messages))

	emails := make([]domain.Email, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := m.svc.Users.Messages.Get(m.user, ref.Id).
			Format("full").
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("%w: get message %s: %v", ErrFetch, ref.Id, err)
		}
		emails = append(emails, ToEmail(msg))
	}
	return emails, nil
}

// LookbackQuery renders the Gmail search query for messages newer than d,
// rounded up to whole hours.
func LookbackQuery(d time.Duration) string {
	hours := int(math.Ceil(d.Hours()))
	if hours < 1 {
		hours = 1
	}
	return fmt.Sprintf("newer_than:%dh", hours)
}

// ToEmail converts a full Gmail message.
func ToEmail(msg *gmail.Message) domain.Email {
	email := domain.Email{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
	}
	if msg.InternalDate > 0 {
		email.ReceivedAt = time.UnixMilli(msg.InternalDate).UTC()
	}
	if msg.Payload == nil {
		return email
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			email.Subject = h.Value
		case "from":
			email.From = h.Value
		}
	}
	email.Body = plainText(msg.Payload)
	return email
}

// plainText returns the first decodable text/plain part, depth first.
func plainText(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(part.MimeType, "text/plain") && part.Body != nil {
		if text, ok := decodeBody(part.Body.Data); ok {
			return text
		}
	}
	for _, p := range part.Parts {
		if text := plainText(p); text != "" {
			return text
		}
	}
	return ""
}

// decodeBody decodes Gmail's base64url body data, padded or not.
func decodeBody(data string) (string, bool) {
	if data == "" {
		return "", false
	}
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return "", false
		}
	}
	return string(b), true
}
