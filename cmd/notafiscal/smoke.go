package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"notafiscal/pkg/config"
	"notafiscal/pkg/extraction"
	"notafiscal/pkg/sanitizer"
)

type smokeOptions struct {
	deployURL   string
	workflow    string
	file        string
	agentName   string
	pollSeconds float64
	maxPolls    int
	out         string
}

func newSmokeCmd() *cobra.Command {
	opts := &smokeOptions{}

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run a smoke test against the deployed workflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSmoke(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.deployURL, "deploy-url", "", "Base deployment URL (default $LLAMA_DEPLOY_URL).")
	flags.StringVar(&opts.workflow, "workflow", extraction.DefaultWorkflow, "Workflow name.")
	flags.StringVar(&opts.file, "file", "examples/input/sample.pdf", "File path expected by the workflow.")
	flags.StringVar(&opts.agentName, "agent-name", "", "Published agent name (default $AGENT_NAME or \"Nota Fiscal\").")
	flags.Float64Var(&opts.pollSeconds, "poll-seconds", extraction.DefaultSmokePollEvery.Seconds(), "Polling interval in seconds.")
	flags.IntVar(&opts.maxPolls, "max-polls", extraction.DefaultSmokeMaxPolls, "Max poll attempts before giving up.")
	flags.StringVar(&opts.out, "out", "examples/output/out.deploy.test.json", "Output JSON file path, relative to the repository root.")

	return cmd
}

func runSmoke(cmd *cobra.Command, opts *smokeOptions) error {
	extCfg := config.LoadExtraction()
	if extCfg.APIKey == "" {
		return errMissingAPIKey
	}

	deployURL := opts.deployURL
	if deployURL == "" {
		deployURL = extCfg.DeployURL
	}
	agentName := opts.agentName
	if agentName == "" {
		agentName = extCfg.AgentName
	}

	pollEvery := time.Duration(opts.pollSeconds * float64(time.Second))
	deploy, err := extraction.NewDeploymentClient(deployURL, extCfg.APIKey, pollEvery, opts.maxPolls, loggerFrom(cmd))
	if err != nil {
		return fmt.Errorf("smoke test failed: %w", err)
	}

	result, err := deploy.Smoke(cmd.Context(), extraction.SmokeRequest{
		Workflow:  opts.workflow,
		File:      opts.file,
		AgentName: agentName,
	})
	if err != nil {
		return fmt.Errorf("smoke test failed: %w", err)
	}

	out, err := outputPath(opts.out)
	if err != nil {
		return fmt.Errorf("smoke test failed: %w", err)
	}
	if err := writeJSONFile(out, result.Payload); err != nil {
		return fmt.Errorf("smoke test failed: %w", err)
	}

	customer, _ := result.Payload["cliente"].(map[string]any)
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "ok: workflow=%s, status=%s\n", result.Workflow, result.Status)
	fmt.Fprintf(stdout, "numero_fatura=%s\n", sanitizer.AsString(result.Payload["numero_fatura"]))
	fmt.Fprintf(stdout, "cliente=%s\n", sanitizer.AsString(customer["nome"]))
	fmt.Fprintf(stdout, "saved=%s\n", out)
	return nil
}
