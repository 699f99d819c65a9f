package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"notafiscal/internal/invoices/service"
	"notafiscal/internal/invoices/validator"
	"notafiscal/pkg/config"
	"notafiscal/pkg/sanitizer"
)

type sanitizeOptions struct {
	in    string
	out   string
	check bool
}

func newSanitizeCmd() *cobra.Command {
	opts := &sanitizeOptions{}

	cmd := &cobra.Command{
		Use:   "sanitize",
		Short: "Sanitize raw extractor output offline",
		Long: "sanitize reads raw extraction JSON (a run result, a list of runs or the data\n" +
			"object itself) and prints the canonical invoice.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSanitize(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.in, "in", "-", "Raw JSON file, or - for stdin.")
	flags.StringVar(&opts.out, "out", "-", "Output file, or - for stdout.")
	flags.BoolVar(&opts.check, "check", false, "Verify the result against the invoice contract.")

	return cmd
}

func runSanitize(cmd *cobra.Command, opts *sanitizeOptions) error {
	data, err := readInput(cmd, opts.in)
	if err != nil {
		return err
	}
	raw, err := sanitizer.DecodeRaw(data)
	if err != nil {
		return fmt.Errorf("input is not valid JSON: %w", err)
	}

	svc := service.NewInvoiceService(nil, nil, nil, nil, validator.NewInvoiceValidator(), &config.Config{Log: loggerFrom(cmd)})
	result, err := svc.Sanitize(cmd.Context(), raw)
	if err != nil {
		return fmt.Errorf("sanitize failed: %w", err)
	}

	if opts.check {
		if err := sanitizer.AssertInvoice(result.Invoice); err != nil {
			return fmt.Errorf("contract check failed: %w", err)
		}
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
	}

	if opts.out == "-" {
		return writeJSONTo(cmd.OutOrStdout(), result.Invoice)
	}
	if err := writeJSONFile(opts.out, result.Invoice); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s\n", opts.out)
	return nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("input file not found: %s", path)
	}
	return data, nil
}
