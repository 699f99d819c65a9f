// Command notafiscal extracts Brazilian invoices from documents and turns raw
// extractor output into the canonical invoice JSON.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"notafiscal/pkg/config"
	"notafiscal/pkg/logger"
)

const ServiceName = "notafiscal"

var errMissingAPIKey = errors.New(config.EnvLlamaCloudAPIKey + " is not set")

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "notafiscal",
		Short:         "Brazilian invoice extraction and sanitizing",
		Long:          "notafiscal extracts invoice data from PDFs and images through LlamaCloud and normalizes it into a fixed JSON contract.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			config.LoadDotEnv()
			level := os.Getenv(config.EnvLogLevel)
			if level == "" {
				level = logger.ERROR
			}
			if verbose {
				level = logger.DEBUG
			}
			cmd.SetContext(withLogger(cmd.Context(), logger.New(logger.Config{
				Level:   level,
				Format:  logger.TEXT,
				Output:  cmd.ErrOrStderr(),
				Service: ServiceName,
			})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline progress to stderr.")

	root.AddCommand(newExtractCmd(), newSanitizeCmd(), newSmokeCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorLine(err))
		stop()
		os.Exit(1)
	}
}

type loggerKey struct{}

func withLogger(ctx context.Context, log *logger.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, log)
}

func loggerFrom(cmd *cobra.Command) *logger.Logger {
	if log, ok := cmd.Context().Value(loggerKey{}).(*logger.Logger); ok {
		return log
	}
	return logger.Discard()
}

// errorLine renders err for stderr. Missing credentials read as a sentence.
func errorLine(err error) string {
	if errors.Is(err, errMissingAPIKey) {
		return "Error: " + err.Error() + "."
	}
	return "Error: " + err.Error()
}
