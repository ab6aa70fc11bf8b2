package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"

	"github.com/phrazzld/mailtriage/internal/classify"
	"github.com/phrazzld/mailtriage/internal/config"
	"github.com/phrazzld/mailtriage/internal/domain"
	"github.com/phrazzld/mailtriage/internal/redact"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash-lite"

// generateFunc matches genai's Models.GenerateContent.
type generateFunc func(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error)

// Classifier classifies emails with a Gemini model.
type Classifier struct {
	generate generateFunc
	model    string
	prompts  *classify.PromptBuilder
	parser   *classify.ResponseParser
	logger   *slog.Logger
}

var _ classify.Classifier = (*Classifier)(nil)

// NewClassifier creates a Gemini client from configuration.
func NewClassifier(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
	prompts *classify.PromptBuilder,
	parser *classify.ResponseParser,
) (*Classifier, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", classify.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			classify.ErrInvalidConfig, redact.Error(err))
	}

	return newClassifier(client.Models.GenerateContent, cfg.ModelName, prompts, parser, logger)
}

func newClassifier(
	generate generateFunc,
	model string,
	prompts *classify.PromptBuilder,
	parser *classify.ResponseParser,
	logger *slog.Logger,
) (*Classifier, error) {
	if prompts == nil || parser == nil {
		return nil, fmt.Errorf("%w: prompt builder and response parser are required", classify.ErrInvalidConfig)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Classifier{
		generate: generate,
		model:    model,
		prompts:  prompts,
		parser:   parser,
		logger:   logger.With("component", "gemini_classifier", "model", model),
	}, nil
}

// Classify sends one email to the model.
func (c *Classifier) Classify(ctx context.Context, email domain.Email) (domain.Classification, error) {
	prompt, err := c.prompts.Build(email)
	if err != nil {
		return domain.Classification{}, err
	}

	res, err := c.generate(ctx, c.model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](0),
			ResponseMIMEType: "application/json",
		})
	if err != nil {
		return domain.Classification{}, c.translate(ctx, email, err)
	}

	if res == nil || len(res.Candidates) == 0 {
		if res != nil && res.PromptFeedback != nil && res.PromptFeedback.BlockReason != "" {
			return domain.Classification{}, fmt.Errorf("%w: prompt blocked: %s",
				classify.ErrContentBlocked, res.PromptFeedback.BlockReason)
		}
		return domain.Classification{}, fmt.Errorf("%w: no candidates", classify.ErrInvalidResponse)
	}
	if res.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return domain.Classification{}, fmt.Errorf("%w: finish reason %s",
			classify.ErrContentBlocked, res.Candidates[0].FinishReason)
	}

	out, err := c.parser.Parse(res.Text())
	if err != nil {
		c.logger.WarnContext(ctx, "unusable model answer",
			"item_key", email.Key(),
			"error", err)
		return domain.Classification{}, err
	}

	c.logger.DebugContext(ctx, "email classified",
		"item_key", email.Key(),
		"important", out.Important)
	return out, nil
}

// translate maps a provider error onto the classify taxonomy.
func (c *Classifier) translate(ctx context.Context, email domain.Email, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	code, status := apiErrorCode(err)
	switch {
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("gemini: %w: %s", classify.ErrRateLimited, redact.Error(err))
	case code == http.StatusServiceUnavailable || status == "UNAVAILABLE":
		return fmt.Errorf("gemini: %w: model overloaded: %s", classify.ErrRateLimited, redact.Error(err))
	}

	c.logger.ErrorContext(ctx, "Gemini API call failed",
		"item_key", email.Key(),
		"code", code,
		"error", err)
	return fmt.Errorf("gemini: %w: %s", classify.ErrClassificationFailed, redact.Error(err))
}

func apiErrorCode(err error) (int, string) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Status
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Status
	}
	return 0, ""
}
