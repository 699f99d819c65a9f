package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"notafiscal/internal/invoices/service"
	"notafiscal/internal/invoices/validator"
	"notafiscal/pkg/client"
	"notafiscal/pkg/config"
	apperrors "notafiscal/pkg/errors"
	"notafiscal/pkg/extraction"
	"notafiscal/pkg/logger"
	"notafiscal/pkg/model"
)

type extractOptions struct {
	file           string
	agentName      string
	fallbackSchema string
	out            string
	json           bool
	apiURL         string
}

// newProvider is replaced in tests.
var newProvider = func(cfg config.Extraction, log *logger.Logger) (extraction.Provider, error) {
	c, err := extraction.NewClient(cfg, log)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newExtractCmd() *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract a canonical invoice from a document",
		Long: "extract runs the published LlamaCloud agent over a document, falls back to the\n" +
			"schema file when the agent cannot be used, and writes the sanitized invoice JSON.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtract(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.file, "file", "", "Input file path.")
	flags.StringVar(&opts.agentName, "agent-name", "", "Published agent name (default $AGENT_NAME or \"Nota Fiscal\").")
	flags.StringVar(&opts.fallbackSchema, "fallback-schema", "", "Fallback schema JSON path used when the agent is missing (default $FALLBACK_SCHEMA_PATH).")
	flags.StringVar(&opts.out, "out", "examples/output/out.json", "Output file path, relative to the repository root.")
	flags.BoolVar(&opts.json, "json", false, "Print the invoice JSON to stdout instead of writing --out.")
	flags.StringVar(&opts.apiURL, "api-url", "", "Extract through a running invoices service instead of calling LlamaCloud directly.")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runExtract(cmd *cobra.Command, opts *extractOptions) error {
	log := loggerFrom(cmd)
	extCfg := config.LoadExtraction()
	if opts.agentName != "" {
		extCfg.AgentName = opts.agentName
	}
	if opts.fallbackSchema != "" {
		extCfg.FallbackSchemaPath = opts.fallbackSchema
	}

	if opts.apiURL == "" && extCfg.APIKey == "" {
		return errMissingAPIKey
	}

	input := extraction.ResolveInputPath(opts.file)
	if info, err := os.Stat(input); err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("input file not found: %s", input)
	}

	var out string
	if !opts.json {
		var err error
		if out, err = outputPath(opts.out); err != nil {
			return fmt.Errorf("extraction failed: %w", err)
		}
	}

	var (
		invoice  *model.Invoice
		warnings []string
		err      error
	)
	if opts.apiURL != "" {
		invoice, warnings, err = extractRemote(cmd.Context(), opts, input)
	} else {
		invoice, warnings, err = extractLocal(cmd.Context(), extCfg, input, log)
	}
	if err != nil {
		return fmt.Errorf("extraction failed: %s", err)
	}

	stderr := cmd.ErrOrStderr()
	for _, w := range warnings {
		fmt.Fprintf(stderr, "Warning: %s\n", w)
	}

	if opts.json {
		return writeJSONTo(cmd.OutOrStdout(), invoice)
	}
	if err := writeJSONFile(out, invoice); err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "Saved: %s\n", out)
	fmt.Fprintf(stdout, "Summary: itens=%d, tributos=%d\n", len(invoice.LineItems), len(invoice.Taxes))
	return nil
}

func extractLocal(ctx context.Context, extCfg config.Extraction, input string, log *logger.Logger) (*model.Invoice, []string, error) {
	provider, err := newProvider(extCfg, log)
	if err != nil {
		return nil, nil, err
	}

	svc := service.NewInvoiceService(nil, provider, nil, nil, validator.NewInvoiceValidator(), &config.Config{
		Log:        log,
		Extraction: extCfg,
	})
	ext, err := svc.Extract(ctx, service.ExtractRequest{
		Path:      input,
		AgentName: extCfg.AgentName,
	})
	if err != nil {
		return nil, nil, errors.New(apperrors.AsAppError(err).Cause())
	}
	return &ext.Invoice, ext.Warnings, nil
}

type extractEnvelope struct {
	OK       bool          `json:"ok"`
	Data     model.Invoice `json:"data"`
	Warnings []string      `json:"warnings"`
}

func extractRemote(ctx context.Context, opts *extractOptions, input string) (*model.Invoice, []string, error) {
	schema := ""
	if opts.fallbackSchema != "" {
		schema = filepath.Base(opts.fallbackSchema)
	}

	resp, err := client.NewInvoiceClient(opts.apiURL).Extract(ctx, input, opts.agentName, schema)
	if err != nil {
		return nil, nil, err
	}
	if !resp.OK() {
		return nil, nil, errors.New(client.GetErrorMessage(resp))
	}

	var env extractEnvelope
	if err := resp.DecodeJSON(&env); err != nil {
		return nil, nil, fmt.Errorf("decode service response: %w", err)
	}
	if !env.OK {
		return nil, nil, errors.New("service reported failure")
	}
	return &env.Data, env.Warnings, nil
}
