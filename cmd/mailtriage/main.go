// Package main implements the mailtriage command, which classifies recent
// email with a language model and delivers the important messages to the
// configured sinks.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/phrazzld/mailtriage/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
