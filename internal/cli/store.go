package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/phrazzld/mailtriage/internal/idempotency"
	"github.com/phrazzld/mailtriage/internal/logstore"
)

var storeBindings = map[string]string{
	"store.path": "path",
}

// NewStoreCommand creates the store command group for inspecting and
// maintaining the processed-items log.
func NewStoreCommand(rootOpts *RootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect and maintain the processed-items log",
		Long: `Inspect and maintain the append-only log that records which messages were
handled.

Examples:
  mailtriage store dump
  mailtriage store get 18c2f3a9e5b7d001
  mailtriage store forget 18c2f3a9e5b7d001
  mailtriage store intents
  mailtriage store compact`,
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "path of the log (overrides store.path)")

	cmd.AddCommand(newStoreGetCommand(rootOpts))
	cmd.AddCommand(newStoreDumpCommand(rootOpts))
	cmd.AddCommand(newStoreIntentsCommand(rootOpts))
	cmd.AddCommand(newStoreForgetCommand(rootOpts))
	cmd.AddCommand(newStoreCompactCommand(rootOpts))

	return cmd
}

// withStore opens the log for the duration of fn.
func withStore(opts *RootOptions, cmd *cobra.Command, fn func(app *App, s *logstore.Store) error) error {
	app, err := opts.newApp(cmd, storeBindings)
	if err != nil {
		return err
	}
	defer app.Close()

	s, err := app.OpenStore()
	if err != nil {
		return err
	}
	return fn(app, s)
}

type entryView struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func newStoreGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(_ *App, s *logstore.Store) error {
				key := args[0]
				v, ok := s.Get(key)
				if !ok {
					return NewExitError(ExitFailure, fmt.Sprintf("key %q not found", key))
				}
				entry := entryView{Key: key, Value: v}
				return opts.output(cmd).Success(entry, func(w io.Writer) {
					fmt.Fprintln(w, v)
				})
			})
		},
	}
}

func newStoreDumpCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print every key and value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(_ *App, s *logstore.Store) error {
				snap := s.Snapshot()
				keys := make([]string, 0, len(snap))
				for k := range snap {
					keys = append(keys, k)
				}
				sort.Strings(keys)

				entries := make([]entryView, len(keys))
				for i, k := range keys {
					entries[i] = entryView{Key: k, Value: snap[k]}
				}
				return opts.output(cmd).Success(entries, func(w io.Writer) {
					for _, e := range entries {
						fmt.Fprintf(w, "%q\t%q\n", e.Key, e.Value)
					}
				})
			})
		},
	}
}

type intentView struct {
	Key string `json:"key"`
	Ref string `json:"ref"`
}

func newStoreIntentsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "intents",
		Short: "List deliveries that were started but never confirmed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(app *App, s *logstore.Store) error {
				unfinished := idempotency.NewFilter(s, app.Logger).Unfinished()
				intents := make([]intentView, len(unfinished))
				for i, in := range unfinished {
					intents[i] = intentView{Key: in.Key, Ref: in.Ref}
				}
				return opts.output(cmd).Success(intents, func(w io.Writer) {
					if len(intents) == 0 {
						fmt.Fprintln(w, "no unfinished deliveries")
						return
					}
					for _, in := range intents {
						fmt.Fprintf(w, "%s\t%s\n", in.Key, in.Ref)
					}
				})
			})
		},
	}
}

func newStoreForgetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <key>...",
		Short: "Forget messages so the next run handles them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(app *App, s *logstore.Store) error {
				filter := idempotency.NewFilter(s, app.Logger)
				for _, key := range args {
					if err := filter.Forget(key); err != nil {
						return WrapExitError(ExitCommandError, "failed to forget key", err)
					}
					app.Logger.Info("key forgotten", "item_key", key)
				}
				return opts.output(cmd).Success(map[string]any{"forgotten": args}, func(w io.Writer) {
					fmt.Fprintf(w, "forgot %d key(s)\n", len(args))
				})
			})
		},
	}
}

type compactView struct {
	RecordsBefore int `json:"records_before"`
	RecordsAfter  int `json:"records_after"`
	Keys          int `json:"keys"`
}

func newStoreCompactCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Rewrite the log as one record per present key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(_ *App, s *logstore.Store) error {
				before := s.Records()
				if err := s.Compact(); err != nil {
					return WrapExitError(ExitCommandError, "failed to compact log", err)
				}
				view := compactView{RecordsBefore: before, RecordsAfter: s.Records(), Keys: s.Len()}
				return opts.output(cmd).Success(view, func(w io.Writer) {
					fmt.Fprintf(w, "compacted %d record(s) into %d\n", view.RecordsBefore, view.RecordsAfter)
				})
			})
		},
	}
}
