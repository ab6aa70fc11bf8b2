package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	oa "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/phrazzld/mailtriage/internal/classify"
	"github.com/phrazzld/mailtriage/internal/config"
	"github.com/phrazzld/mailtriage/internal/domain"
	"github.com/phrazzld/mailtriage/internal/redact"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gpt-5-nano"

const systemPrompt = "You are an email triage assistant. Reply with one JSON object only."

// Classifier classifies emails with an OpenAI chat model.
type Classifier struct {
	client  oa.Client
	model   string
	prompts *classify.PromptBuilder
	parser  *classify.ResponseParser
	logger  *slog.Logger
}

var _ classify.Classifier = (*Classifier)(nil)

// NewClassifier creates an OpenAI client from configuration. Extra request
// options are appended after the defaults.
func NewClassifier(
	logger *slog.Logger,
	cfg config.LLMConfig,
	prompts *classify.PromptBuilder,
	parser *classify.ResponseParser,
	opts ...option.RequestOption,
) (*Classifier, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", classify.ErrInvalidConfig)
	}
	if prompts == nil || parser == nil {
		return nil, fmt.Errorf("%w: prompt builder and response parser are required", classify.ErrInvalidConfig)
	}

	model := cfg.ModelName
	if model == "" {
		model = DefaultModel
	}

	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(cfg.OpenAIAPIKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &Classifier{
		client:  oa.NewClient(reqOpts...),
		model:   model,
		prompts: prompts,
		parser:  parser,
		logger:  logger.With("component", "openai_classifier", "model", model),
	}, nil
}

// Classify sends one email to the model.
func (c *Classifier) Classify(ctx context.Context, email domain.Email) (domain.Classification, error) {
	prompt, err := c.prompts.Build(email)
	if err != nil {
		return domain.Classification{}, err
	}

	resp, err := c.client.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(systemPrompt),
			oa.UserMessage(prompt),
		},
		Temperature: oa.Float(0),
		ResponseFormat: oa.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return domain.Classification{}, c.translate(ctx, email, err)
	}

	if len(resp.Choices) == 0 {
		return domain.Classification{}, fmt.Errorf("%w: no choices", classify.ErrInvalidResponse)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return domain.Classification{}, fmt.Errorf("%w: content filter", classify.ErrContentBlocked)
	}

	out, err := c.parser.Parse(choice.Message.Content)
	if err != nil {
		c.logger.WarnContext(ctx, "unusable model answer",
			"item_key", email.Key(),
			"error", err)
		return domain.Classification{}, err
	}

	c.logger.DebugContext(ctx, "email classified",
		"item_key", email.Key(),
		"important", out.Important,
		"total_tokens", resp.Usage.TotalTokens)
	return out, nil
}

// translate maps a provider error onto the classify taxonomy.
func (c *Classifier) translate(ctx context.Context, email domain.Email, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *oa.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			return fmt.Errorf("openai: %w: status %d", classify.ErrRateLimited, apiErr.StatusCode)
		}
		c.logger.ErrorContext(ctx, "OpenAI API call failed",
			"item_key", email.Key(),
			"status", apiErr.StatusCode,
			"error", err)
		return fmt.Errorf("openai: %w: status %d", classify.ErrClassificationFailed, apiErr.StatusCode)
	}

	c.logger.ErrorContext(ctx, "OpenAI API call failed",
		"item_key", email.Key(),
		"error", err)
	return fmt.Errorf("openai: %w: %s", classify.ErrClassificationFailed, redact.Error(err))
}
