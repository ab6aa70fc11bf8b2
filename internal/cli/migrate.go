package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phrazzld/mailtriage/internal/platform/postgres"
)

var migrateBindings = map[string]string{
	"sinks.postgres.url": "database-url",
}

// NewMigrateCommand creates the migrate command for the Postgres sink schema.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate [" + strings.Join(postgres.MigrationCommands, "|") + "]",
		Short: "Manage the Postgres sink schema",
		Long: `Run database migrations for the Postgres sink. Runs "up" when no command is
given. The run command also applies pending migrations before delivering.

Examples:
  mailtriage migrate
  mailtriage migrate status --database-url postgres://localhost/mailtriage`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: postgres.MigrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			if !slices.Contains(postgres.MigrationCommands, command) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("unknown migration command %q: must be one of %v", command, postgres.MigrationCommands))
			}
			return runMigrate(rootOpts, cmd, command)
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres URL (overrides sinks.postgres.url)")

	return cmd
}

func runMigrate(opts *RootOptions, cmd *cobra.Command, command string) error {
	app, err := opts.newApp(cmd, migrateBindings)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := commandContext(cmd)
	db, err := app.OpenDatabase(ctx)
	if err != nil {
		return err
	}
	if err := postgres.Migrate(ctx, db, command, app.Logger); err != nil {
		return WrapExitError(ExitCommandError, "migration failed", err)
	}

	return opts.output(cmd).Success(map[string]string{"command": command, "status": "ok"}, func(w io.Writer) {
		fmt.Fprintf(w, "migrate %s: ok\n", command)
	})
}
