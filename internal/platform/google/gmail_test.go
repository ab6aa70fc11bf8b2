package google

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"

	"github.com/phrazzld/mailtriage/internal/domain"
)

func TestLookbackQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{24 * time.Hour, "newer_than:24h"},
		{90 * time.Minute, "newer_than:2h"},
		{time.Minute, "newer_than:1h"},
		{0, "newer_than:1h"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LookbackQuery(tt.in), tt.in.String())
	}
}

func TestToEmail(t *testing.T) {
	t.Parallel()

	encode := base64.URLEncoding.EncodeToString

	t.Run("multipart", func(t *testing.T) {
		msg := &gmail.Message{
			Id:           "m1",
			ThreadId:     "t1",
			InternalDate: 1714300000000,
			Payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Headers: []*gmail.MessagePartHeader{
					{Name: "Subject", Value: "Quarterly planning"},
					{Name: "From", Value: "alice@example.com"},
				},
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode([]byte("<p>hi</p>"))}},
					{MimeType: "text/plain; charset=UTF-8", Body: &gmail.MessagePartBody{Data: encode([]byte("Meet Tuesday?"))}},
				},
			},
		}

		email := ToEmail(msg)
		assert.Equal(t, "m1", email.ID)
		assert.Equal(t, "t1", email.ThreadID)
		assert.Equal(t, "Quarterly planning", email.Subject)
		assert.Equal(t, "alice@example.com", email.From)
		assert.Equal(t, "Meet Tuesday?", email.Body)
		assert.Equal(t, time.UnixMilli(1714300000000).UTC(), email.ReceivedAt)
	})

	t.Run("unpadded body", func(t *testing.T) {
		msg := &gmail.Message{
			Id: "m2",
			Payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("ab"))},
			},
		}
		assert.Equal(t, "ab", ToEmail(msg).Body)
	})

	t.Run("missing parts fall back", func(t *testing.T) {
		msg := &gmail.Message{
			Id: "m3",
			Payload: &gmail.MessagePart{
				MimeType: "text/html",
				Body:     &gmail.MessagePartBody{Data: "!!not base64!!"},
			},
		}
		email := ToEmail(msg)
		assert.Equal(t, domain.NoSubject, email.SubjectOrDefault())
		assert.Equal(t, domain.NoBody, email.BodyOrDefault())
	})
}

func TestMailbox_Fetch(t *testing.T) {
	t.Parallel()

	body := base64.URLEncoding.EncodeToString([]byte("Lunch at noon"))
	var gets atomic.Int32

	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/users/me/messages"):
			assert.Equal(t, "newer_than:24h", r.URL.Query().Get("q"))
			assert.Equal(t, "2", r.URL.Query().Get("maxResults"))
			fmt.Fprint(w, `{"messages":[{"id":"m1","threadId":"t1"},{"id":"m2","threadId":"t2"}]}`)
		case strings.Contains(r.URL.Path, "/users/me/messages/"):
			gets.Add(1)
			assert.Equal(t, "full", r.URL.Query().Get("format"))
			id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			fmt.Fprintf(w, `{"id":%q,"threadId":"t","internalDate":"1714300000000",`+
				`"payload":{"mimeType":"text/plain","headers":[{"name":"Subject","value":"Subject %s"}],`+
				`"body":{"data":%q}}}`, id, id, body)
		default:
			http.NotFound(w, r)
		}
	})

	ctx := testContext(t)
	mb, err := NewMailbox(ctx, "", discardLogger(), apiOptions(srv)...)
	require.NoError(t, err)

	emails, err := mb.Fetch(ctx, 24*time.Hour, 2)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, int32(2), gets.Load())

	assert.Equal(t, "m1", emails[0].ID)
	assert.Equal(t, "Subject m1", emails[0].Subject)
	assert.Equal(t, "Lunch at noon", emails[0].Body)
	assert.Equal(t, "m2", emails[1].ID)
}

func TestMailbox_FetchError(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"insufficient scope"}}`)
	})

	ctx := testContext(t)
	mb, err := NewMailbox(ctx, "me", discardLogger(), apiOptions(srv)...)
	require.NoError(t, err)

	_, err = mb.Fetch(ctx, time.Hour, 10)
	assert.ErrorIs(t, err, ErrFetch)
}
