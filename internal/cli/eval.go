package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/phrazzld/mailtriage/internal/domain"
	"github.com/phrazzld/mailtriage/internal/service"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Sample int
	Seed   int64
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <dataset.json>",
		Short: "Score the classifier against labeled email",
		Long: `Classify a random sample of a labeled dataset through the same retry, timeout
and concurrency settings as a run, then report precision, recall and F1.

The dataset is a JSON array of {"subject", "body", "is_important"} objects.

Examples:
  mailtriage eval testdata/labeled.json
  mailtriage eval labeled.json --sample 50 --seed 7 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.Sample, "sample", "n", 10, "number of labeled emails to sample (0 for all)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed for sampling (0 picks one from the clock)")

	return cmd
}

func runEval(opts *EvalOptions, cmd *cobra.Command, path string) error {
	app, err := opts.newApp(cmd, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	dataset, err := loadDataset(app.fs, path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load dataset", err)
	}

	ctx, stop := signalContext(commandContext(cmd), app)
	defer stop()

	if err := app.StartTelemetry(ctx); err != nil {
		return err
	}
	classifier, err := app.Classifier(ctx)
	if err != nil {
		return err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	app.Logger.Info("evaluating classifier",
		"dataset", path,
		"entries", len(dataset),
		"sample", opts.Sample,
		"seed", seed)

	svc := service.NewEvaluationService(classifier, app.PipelineOptions(), app.Logger)
	report, err := svc.Evaluate(ctx, dataset, opts.Sample, rand.New(rand.NewSource(seed)))

	drainCtx, cancel := context.WithTimeout(context.Background(), app.DrainTimeout())
	if derr := svc.Drain(drainCtx); derr != nil {
		app.Logger.Warn("detached classifications still running at exit", "error", derr)
	}
	cancel()

	if err != nil {
		return WrapExitError(ExitCommandError, "evaluation failed", err)
	}

	view := newEvalView(report, seed)
	if err := opts.output(cmd).Success(view, func(w io.Writer) { printEval(w, view) }); err != nil {
		return err
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d classification(s) failed", report.Failed))
	}
	return nil
}

// loadDataset reads a JSON array of labeled emails.
func loadDataset(fsys afero.Fs, path string) ([]domain.LabeledEmail, error) {
	b, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	var dataset []domain.LabeledEmail
	if err := json.Unmarshal(b, &dataset); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(dataset) == 0 {
		return nil, fmt.Errorf("%s: %w", path, service.ErrEmptyDataset)
	}
	return dataset, nil
}

// evalView is the JSON form of an evaluation report.
type evalView struct {
	domain.Confusion
	Sampled   int     `json:"sampled"`
	Fallbacks int     `json:"fallbacks"`
	Failed    int     `json:"failed"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Seed      int64   `json:"seed"`
}

func newEvalView(r *service.EvaluationReport, seed int64) evalView {
	return evalView{
		Confusion: r.Confusion,
		Sampled:   r.Sampled,
		Fallbacks: r.Fallbacks,
		Failed:    r.Failed,
		Precision: r.Precision(),
		Recall:    r.Recall(),
		F1:        r.F1(),
		Seed:      seed,
	}
}

func printEval(w io.Writer, v evalView) {
	fmt.Fprintf(w, "sampled %d (fallbacks %d, failed %d, seed %d)\n", v.Sampled, v.Fallbacks, v.Failed, v.Seed)
	fmt.Fprintf(w, "  TP %d  FP %d  TN %d  FN %d\n",
		v.TruePositives, v.FalsePositives, v.TrueNegatives, v.FalseNegatives)
	fmt.Fprintf(w, "  precision %.3f  recall %.3f  F1 %.3f\n", v.Precision, v.Recall, v.F1)
}
