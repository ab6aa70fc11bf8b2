package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phrazzld/mailtriage/internal/classify"
	"github.com/phrazzld/mailtriage/internal/domain"
	"github.com/phrazzld/mailtriage/internal/mocks"
	"github.com/phrazzld/mailtriage/internal/service"
)

// testEnv points configuration at a temporary state log and a fake API key.
// It returns the state log path.
func testEnv(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "processed.log")
	t.Setenv("MAILTRIAGE_LLM_PROVIDER", "gemini")
	t.Setenv("MAILTRIAGE_LLM_GEMINI_API_KEY", "test-api-key")
	t.Setenv("MAILTRIAGE_STORE_PATH", path)
	t.Setenv("MAILTRIAGE_PIPELINE_TIMEZONE", "UTC")
	t.Setenv("MAILTRIAGE_PIPELINE_DETACH_GRACE", "1s")
	t.Setenv("MAILTRIAGE_LOG_LEVEL", "warn")
	return path
}

// fakeDeps returns dependencies serving source and classifier.
func fakeDeps(source *mocks.MockSource, classifier *mocks.MockClassifier) Dependencies {
	return Dependencies{
		NewSource: func(context.Context, *App) (service.Source, error) {
			return source, nil
		},
		NewClassifier: func(context.Context, *App) (classify.Classifier, error) {
			return classifier, nil
		},
	}
}

// urgentClassifier flags emails whose subject mentions "urgent".
func urgentClassifier() *mocks.MockClassifier {
	return &mocks.MockClassifier{
		ClassifyFn: func(_ context.Context, email domain.Email) (domain.Classification, error) {
			important := strings.Contains(strings.ToLower(email.Subject), "urgent")
			return domain.Classification{Important: important, Summary: "summary of " + email.ID}, nil
		},
	}
}

func inbox() []domain.Email {
	return []domain.Email{
		{ID: "m1", Subject: "URGENT: server down", Body: "please look"},
		{ID: "m2", Subject: "Newsletter", Body: "weekly digest"},
		{ID: "m3", Subject: "urgent budget review", Body: "tomorrow 10am"},
	}
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, deps Dependencies, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommandWith(deps)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// decodeData unmarshals the data of a JSON CLI response into v.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()

	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}
