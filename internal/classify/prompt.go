package classify

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"
	"time"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/phrazzld/mailtriage/internal/domain"
)

// DefaultMaxBodyTokens caps the email body included in a prompt.
const DefaultMaxBodyTokens = 2000

// DefaultEncoding is the tokenizer used to measure email bodies.
const DefaultEncoding = "cl100k_base"

const truncationMarker = "\n[truncated]"

//go:embed prompt.tmpl
var defaultTemplate string

// Tokenizer converts between text and tokens. *tiktoken.Tiktoken satisfies it.
type Tokenizer interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

var _ Tokenizer = (*tiktoken.Tiktoken)(nil)

// NewTokenizer loads a tiktoken encoding by name, DefaultEncoding for "".
func NewTokenizer(encoding string) (Tokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: load tokenizer %q: %v", ErrInvalidConfig, encoding, err)
	}
	return enc, nil
}

// PromptBuilder renders the classification prompt for an email.
type PromptBuilder struct {
	tmpl          *template.Template
	tokenizer     Tokenizer
	maxBodyTokens int
	location      *time.Location
	now           func() time.Time
	err           error
}

// PromptOption configures a PromptBuilder.
type PromptOption func(*PromptBuilder)

// WithTemplateFile replaces the built-in template by the one at path.
// An empty path keeps the built-in template.
func WithTemplateFile(path string) PromptOption {
	return func(b *PromptBuilder) {
		if path == "" {
			return
		}
		content, err := os.ReadFile(path)
		if err != nil {
			b.err = fmt.Errorf("%w: read prompt template %s: %v", ErrInvalidConfig, path, err)
			return
		}
		b.parse(string(content))
	}
}

// WithTokenizer bounds the email body to maxTokens tokens of t.
func WithTokenizer(t Tokenizer, maxTokens int) PromptOption {
	return func(b *PromptBuilder) {
		b.tokenizer = t
		b.maxBodyTokens = maxTokens
	}
}

// WithClock overrides the time source used for the "today" hint.
func WithClock(now func() time.Time) PromptOption {
	return func(b *PromptBuilder) {
		b.now = now
	}
}

type promptData struct {
	Today    string
	TimeZone string
	From     string
	Subject  string
	Body     string
}

// NewPromptBuilder returns a builder that renders times in loc.
func NewPromptBuilder(loc *time.Location, opts ...PromptOption) (*PromptBuilder, error) {
	if loc == nil {
		loc = time.UTC
	}
	b := &PromptBuilder{
		location: loc,
		now:      time.Now,
	}
	b.parse(defaultTemplate)
	for _, opt := range opts {
		opt(b)
	}
	if b.err != nil {
		return nil, b.err
	}
	return b, nil
}

func (b *PromptBuilder) parse(text string) {
	tmpl, err := template.New("classify").Parse(text)
	if err != nil {
		b.err = fmt.Errorf("%w: parse prompt template: %v", ErrInvalidConfig, err)
		return
	}
	b.tmpl = tmpl
}

// Build renders the prompt for email.
func (b *PromptBuilder) Build(email domain.Email) (string, error) {
	data := promptData{
		Today:    b.now().In(b.location).Format("Monday, 2006-01-02"),
		TimeZone: b.location.String(),
		From:     email.From,
		Subject:  email.SubjectOrDefault(),
		Body:     b.truncate(email.BodyOrDefault()),
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// truncate cuts body to the token budget.
func (b *PromptBuilder) truncate(body string) string {
	if b.tokenizer == nil || b.maxBodyTokens <= 0 {
		return body
	}
	tokens := b.tokenizer.Encode(body, nil, nil)
	if len(tokens) <= b.maxBodyTokens {
		return body
	}
	return b.tokenizer.Decode(tokens[:b.maxBodyTokens]) + truncationMarker
}
