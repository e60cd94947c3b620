package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medkg/medkg/internal/config"
	"github.com/medkg/medkg/internal/platform/pipeline"
)

// runError carries the counters of a failed stage to the error line.
type runError struct {
	err      error
	counters string
}

func (e *runError) Error() string { return e.err.Error() }
func (e *runError) Unwrap() error { return e.err }

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(pipeline.ExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "medkg",
		Short:         "Korean oncology knowledge graph pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(drugsCmd())
	rootCmd.AddCommand(anchorsCmd())
	rootCmd.AddCommand(biomarkersCmd())
	rootCmd.AddCommand(bridgesCmd())
	rootCmd.AddCommand(assembleCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
	return rootCmd
}

// printError writes the one-line cause and, for stage failures, the reason
// counters gathered before the failure.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
	var re *runError
	if errors.As(err, &re) && re.counters != "" {
		fmt.Fprintln(w, re.counters)
	}
}

// finish reports a stage outcome. On success the counters go to out.
func finish(out io.Writer, sum *pipeline.Summary, err error) error {
	if err != nil {
		if sum == nil {
			return err
		}
		sum.Finish(err)
		return &runError{err: err, counters: sum.CounterLine()}
	}
	if sum != nil {
		fmt.Fprintln(out, sum.CounterLine())
	}
	return nil
}

// setup loads and validates the configuration and builds the logger.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, newLogger(cfg, os.Stdout), nil
}

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}
	// Validate has already rejected unknown levels.
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}
	return logger
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// stringFlag returns the flag value or fallback when the flag is empty.
func stringFlag(cmd *cobra.Command, name, fallback string) string {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return fallback
	}
	return v
}
