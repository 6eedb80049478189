// Package cli holds the command-line plumbing shared by the deck tools.
package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/conorfennell/decktools/internal/config"
)

// Exit codes.
const (
	ExitFailure   = 1
	ExitArguments = 2
)

// Flags holds the flags every tool accepts.
type Flags struct {
	Config  string
	Verbose bool
}

// Bind adds the shared flags to cmd and installs logging before it runs.
func Bind(cmd *cobra.Command) *Flags {
	f := &Flags{}
	cmd.PersistentFlags().StringVarP(&f.Config, "config", "c", "", "YAML file with flag values; flags given on the command line take precedence")
	cmd.PersistentFlags().BoolVarP(&f.Verbose, "verbose", "v", false, "enable verbose logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		SetupLogging(cmd.ErrOrStderr(), f.Verbose)
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &config.ArgumentError{Err: err}
	})
	cmd.SilenceUsage = true
	return f
}

// SetupLogging installs a text logger on w. Every record carries the run's ID.
func SetupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger.With("run_id", uuid.NewString()))
}

// ExitCode maps an error returned by a tool to its process exit status.
func ExitCode(err error) int {
	var argErr *config.ArgumentError
	if errors.As(err, &argErr) {
		return ExitArguments
	}
	return ExitFailure
}

// Execute runs cmd and exits non-zero if it fails. Cobra prints the error.
func Execute(cmd *cobra.Command) {
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(ExitCode(err))
	}
}
