package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/mailtriage/internal/domain"
	"github.com/phrazzld/mailtriage/internal/mocks"
)

const labeledDataset = `[
  {"subject": "urgent: contract due", "body": "sign today", "is_important": true},
  {"subject": "urgent sale", "body": "50% off", "is_important": false},
  {"subject": "Lunch?", "body": "noon", "is_important": false},
  {"subject": "Board meeting", "body": "Friday 9am", "is_important": true}
]`

func writeDataset(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "labeled.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEval_ScoresWholeDataset(t *testing.T) {
	testEnv(t)
	path := writeDataset(t, labeledDataset)
	classifier := urgentClassifier()

	out, _, err := execute(t, fakeDeps(&mocks.MockSource{}, classifier),
		"eval", path, "--sample", "0", "--seed", "3", "--format", "json")
	require.NoError(t, err)

	var view evalView
	decodeData(t, out, &view)
	assert.Equal(t, 4, view.Sampled)
	assert.Equal(t, int64(3), view.Seed)
	assert.Equal(t, domain.Confusion{
		TruePositives:  1,
		FalsePositives: 1,
		TrueNegatives:  1,
		FalseNegatives: 1,
	}, view.Confusion)
	assert.InDelta(t, 0.5, view.Precision, 1e-9)
	assert.InDelta(t, 0.5, view.Recall, 1e-9)
	assert.InDelta(t, 0.5, view.F1, 1e-9)
	assert.Equal(t, 4, classifier.CallCount())
}

func TestEval_SampleSize(t *testing.T) {
	testEnv(t)
	path := writeDataset(t, labeledDataset)
	classifier := urgentClassifier()

	out, _, err := execute(t, fakeDeps(&mocks.MockSource{}, classifier), "eval", path, "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "sampled 2")
	assert.Contains(t, out, "precision")
	assert.Equal(t, 2, classifier.CallCount())
}

func TestEval_FailuresAreNotScored(t *testing.T) {
	testEnv(t)
	path := writeDataset(t, labeledDataset)
	classifier := &mocks.MockClassifier{
		ClassifyFn: func(_ context.Context, email domain.Email) (domain.Classification, error) {
			if email.Subject == "Lunch?" {
				return domain.Classification{}, assert.AnError
			}
			return domain.Classification{Important: true}, nil
		},
	}

	out, _, err := execute(t, fakeDeps(&mocks.MockSource{}, classifier),
		"eval", path, "--sample", "0", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var view evalView
	decodeData(t, out, &view)
	assert.Equal(t, 1, view.Failed)
	assert.Equal(t, 3, view.Total())
}

func TestEval_BadDataset(t *testing.T) {
	testEnv(t)
	deps := fakeDeps(&mocks.MockSource{}, urgentClassifier())

	tests := map[string]string{
		"empty":     `[]`,
		"malformed": `{"subject": `,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := execute(t, deps, "eval", writeDataset(t, content))
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}

	_, _, err := execute(t, deps, "eval", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
