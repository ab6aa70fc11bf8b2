// Package cli implements the mailtriage command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/phrazzld/mailtriage/internal/classify"
	"github.com/phrazzld/mailtriage/internal/config"
	"github.com/phrazzld/mailtriage/internal/service"
)

// SourceFactory builds the mailbox a run reads from.
type SourceFactory func(ctx context.Context, app *App) (service.Source, error)

// ClassifierFactory builds the model client.
type ClassifierFactory func(ctx context.Context, app *App) (classify.Classifier, error)

// Dependencies lets tests replace external services.
type Dependencies struct {
	// NewSource defaults to the Gmail mailbox.
	NewSource SourceFactory
	// NewClassifier defaults to the configured LLM provider.
	NewClassifier ClassifierFactory
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Format     string // "json" | "text"

	deps Dependencies
}

// rootBindings maps configuration keys to global flags.
var rootBindings = map[string]string{
	"log.level": "log-level",
}

// NewRootCommand creates the root command of the mailtriage CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(Dependencies{})
}

// NewRootCommandWith creates the root command with replaced dependencies.
func NewRootCommandWith(deps Dependencies) *cobra.Command {
	if deps.NewSource == nil {
		deps.NewSource = gmailSource
	}
	if deps.NewClassifier == nil {
		deps.NewClassifier = providerClassifier
	}
	opts := &RootOptions{deps: deps}

	cmd := &cobra.Command{
		Use:   "mailtriage",
		Short: "Flag important email and put it on your calendar",
		Long: `mailtriage reads recent email, asks a language model which messages need
attention, and delivers the important ones to your calendar and other sinks.

Every handled message is recorded in an append-only log so later runs skip it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML/JSON/TOML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewStoreCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// loadConfig reads configuration for cmd, applying the given flag bindings
// on top of the global ones.
func (o *RootOptions) loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	all := make(map[string]string, len(rootBindings)+len(bindings))
	for k, v := range rootBindings {
		all[k] = v
	}
	for k, v := range bindings {
		all[k] = v
	}

	cfg, err := config.Load(
		config.WithFile(o.ConfigPath),
		config.WithFlags(cmd.Flags(), all),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

// newApp loads configuration and creates the logger for a command.
func (o *RootOptions) newApp(cmd *cobra.Command, bindings map[string]string) (*App, error) {
	cfg, err := o.loadConfig(cmd, bindings)
	if err != nil {
		return nil, err
	}
	return NewApp(cmd, cfg, o.deps)
}

func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// commandContext returns the command's context or a background one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func closeQuietly(logger *slog.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("close failed", "resource", what, "error", err)
	}
}
