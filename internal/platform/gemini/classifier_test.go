package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/phrazzld/mailtriage/internal/classify"
	"github.com/phrazzld/mailtriage/internal/domain"
	"github.com/phrazzld/mailtriage/internal/platform/logger"
	"github.com/phrazzld/mailtriage/internal/task"
)

type fakeModel struct {
	calls   int
	model   string
	prompt  string
	config  *genai.GenerateContentConfig
	respond func(call int) (*genai.GenerateContentResponse, error)
}

func (f *fakeModel) generate(
	_ context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.config = cfg
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.respond(f.calls)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: text}}},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func newTestClassifier(t *testing.T, f *fakeModel) *Classifier {
	t.Helper()

	prompts, err := classify.NewPromptBuilder(time.UTC)
	require.NoError(t, err)
	parser, err := classify.NewResponseParser(time.UTC)
	require.NoError(t, err)
	l, _ := logger.NewBufferLogger()

	c, err := newClassifier(f.generate, "", prompts, parser, l)
	require.NoError(t, err)
	return c
}

var email = domain.Email{ID: "m1", Subject: "Lunch tomorrow?", Body: "Noon at the usual place"}

func TestClassify_Success(t *testing.T) {
	f := &fakeModel{respond: func(int) (*genai.GenerateContentResponse, error) {
		return textResponse(`{"important": true, "summary": "Lunch invite", "event": {"start": "2025-06-02T12:00:00", "end": null, "timezone": null}}`), nil
	}}
	c := newTestClassifier(t, f)

	got, err := c.Classify(context.Background(), email)
	require.NoError(t, err)

	assert.True(t, got.Important)
	assert.Equal(t, "Lunch invite", got.Summary)
	require.NotNil(t, got.Event)
	assert.Equal(t, 12, got.Event.Start.Hour())

	assert.Equal(t, DefaultModel, f.model)
	assert.Contains(t, f.prompt, "Lunch tomorrow?")
	require.NotNil(t, f.config.Temperature)
	assert.Zero(t, *f.config.Temperature)
	assert.Equal(t, "application/json", f.config.ResponseMIMEType)
}

func TestClassify_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		err  error
		want error
	}{
		{"quota", nil, genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}, classify.ErrRateLimited},
		{"overloaded", nil, genai.APIError{Code: 503, Status: "UNAVAILABLE"}, classify.ErrRateLimited},
		{"bad request", nil, genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}, classify.ErrClassificationFailed},
		{"other", nil, errors.New("connection refused"), classify.ErrClassificationFailed},
		{"cancelled", nil, fmt.Errorf("wrapped: %w", context.Canceled), context.Canceled},
		{"no candidates", &genai.GenerateContentResponse{}, nil, classify.ErrInvalidResponse},
		{
			"blocked prompt",
			&genai.GenerateContentResponse{PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety}},
			nil,
			classify.ErrContentBlocked,
		},
		{
			"safety finish",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}},
			nil,
			classify.ErrContentBlocked,
		},
		{"prose answer", textResponse("Yes, this is important."), nil, classify.ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeModel{respond: func(int) (*genai.GenerateContentResponse, error) {
				return tt.resp, tt.err
			}}
			c := newTestClassifier(t, f)

			_, err := c.Classify(context.Background(), email)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClassify_RateLimitIsRetried(t *testing.T) {
	f := &fakeModel{respond: func(call int) (*genai.GenerateContentResponse, error) {
		if call <= 2 {
			return nil, genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}
		}
		return textResponse(`{"important": false, "summary": "ok"}`), nil
	}}
	c := newTestClassifier(t, f)

	l, _ := logger.NewBufferLogger()
	policy := task.DefaultRetryPolicy(l)
	policy.Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	op := task.Retry(policy, classify.Operation(c))
	got, err := op(context.Background(), email)
	require.NoError(t, err)
	assert.False(t, got.Important)
	assert.Equal(t, 3, f.calls)
}

func TestNewClassifier_Validation(t *testing.T) {
	l, _ := logger.NewBufferLogger()

	_, err := NewClassifier(context.Background(), l, configWithKey(""), nil, nil)
	assert.ErrorIs(t, err, classify.ErrInvalidConfig)

	_, err = newClassifier((&fakeModel{}).generate, "m", nil, nil, l)
	assert.ErrorIs(t, err, classify.ErrInvalidConfig)
}
