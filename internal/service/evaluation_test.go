package service

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/mailtriage/internal/classify"
	"github.com/phrazzld/mailtriage/internal/domain"
	"github.com/phrazzld/mailtriage/internal/mocks"
)

func labeled() []domain.LabeledEmail {
	return []domain.LabeledEmail{
		{Subject: "URGENT: server down", IsImportant: true},
		{Subject: "urgent: sale ends", IsImportant: false},
		{Subject: "Weekly digest", IsImportant: false},
		{Subject: "Interview tomorrow", IsImportant: true},
		{Subject: "Lunch?", IsImportant: false},
	}
}

func keywordClassifier() *mocks.MockClassifier {
	return &mocks.MockClassifier{
		ClassifyFn: func(_ context.Context, e domain.Email) (domain.Classification, error) {
			return domain.Classification{Important: strings.Contains(strings.ToLower(e.Subject), "urgent")}, nil
		},
	}
}

func TestSample(t *testing.T) {
	t.Parallel()

	data := labeled()

	a := Sample(data, 3, rand.New(rand.NewSource(7)))
	b := Sample(data, 3, rand.New(rand.NewSource(7)))
	assert.Len(t, a, 3)
	assert.Equal(t, a, b)

	seen := map[string]bool{}
	for _, l := range a {
		assert.False(t, seen[l.Subject], "sampled twice: %s", l.Subject)
		seen[l.Subject] = true
	}

	assert.Len(t, Sample(data, 0, rand.New(rand.NewSource(1))), len(data))
	assert.Len(t, Sample(data, 99, rand.New(rand.NewSource(1))), len(data))
}

func TestEvaluate_Confusion(t *testing.T) {
	t.Parallel()

	svc := NewEvaluationService(keywordClassifier(), testPipelineOptions(), discardLogger())
	report, err := svc.Evaluate(context.Background(), labeled(), 0, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.Equal(t, 5, report.Sampled)
	assert.Equal(t, 1, report.TruePositives)
	assert.Equal(t, 1, report.FalsePositives)
	assert.Equal(t, 2, report.TrueNegatives)
	assert.Equal(t, 1, report.FalseNegatives)
	assert.InDelta(t, 0.5, report.Precision(), 1e-9)
	assert.InDelta(t, 0.5, report.Recall(), 1e-9)
	assert.InDelta(t, 0.5, report.F1(), 1e-9)
}

func TestEvaluate_FailuresAreNotScored(t *testing.T) {
	t.Parallel()

	c := &mocks.MockClassifier{Err: classify.ErrInvalidResponse}
	svc := NewEvaluationService(c, testPipelineOptions(), discardLogger())

	report, err := svc.Evaluate(context.Background(), labeled(), 2, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
	assert.Zero(t, report.Total())
}

func TestEvaluate_FallbacksCountAsImportant(t *testing.T) {
	t.Parallel()

	c := &mocks.MockClassifier{
		ClassifyFn: func(ctx context.Context, _ domain.Email) (domain.Classification, error) {
			<-ctx.Done()
			return domain.Classification{}, ctx.Err()
		},
	}
	opts := testPipelineOptions()
	opts.Timeout = 20 * time.Millisecond
	svc := NewEvaluationService(c, opts, discardLogger())

	data := []domain.LabeledEmail{{Subject: "a", IsImportant: true}, {Subject: "b"}}
	report, err := svc.Evaluate(context.Background(), data, 0, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Fallbacks)
	assert.Equal(t, 1, report.TruePositives)
	assert.Equal(t, 1, report.FalsePositives)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, svc.Drain(ctx))
}

func TestEvaluate_EmptyDataset(t *testing.T) {
	t.Parallel()

	svc := NewEvaluationService(keywordClassifier(), testPipelineOptions(), discardLogger())
	_, err := svc.Evaluate(context.Background(), nil, 5, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrEmptyDataset)
}
