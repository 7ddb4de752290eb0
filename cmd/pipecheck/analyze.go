package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowmetrics/pipecheck/app"
	"github.com/flowmetrics/pipecheck/domain"
	"github.com/flowmetrics/pipecheck/internal/config"
	"github.com/flowmetrics/pipecheck/internal/logger"
	"github.com/flowmetrics/pipecheck/service"
)

var (
	analyzeConfigPath   string
	analyzeURL          string
	analyzeToken        string
	analyzeObjectives   []string
	analyzeFormat       string
	analyzeOutputPath   string
	analyzeConcurrency  int
	analyzeDeploymentID string
	analyzeMaxCalls     int
	analyzeInsecure     bool
	analyzeNoProgress   bool
	analyzeVerbose      bool
)

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the analysis against a deployment",
		Long: `Run the selected analyzers against the deployment's management API
and write the aggregated report.

Exit codes:
  0 - Analysis completed (fully or partially)
  1 - Analysis failed
  2 - Setup error (bad configuration, unreachable deployment)

Examples:
  # Analyze with all registered analyzers
  pipecheck analyze --url https://deployment.example.com:9000 --token $TOKEN

  # Only specific objectives, YAML report to a file
  pipecheck analyze -o health,resource -f yaml --output report.yaml

  # Tighter call budget
  pipecheck analyze --max-calls 25`,
		RunE:          runAnalyze,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVarP(&analyzeConfigPath, "config", "c", "",
		"Path to config file")
	cmd.Flags().StringVar(&analyzeURL, "url", "",
		"Base URL of the management API")
	cmd.Flags().StringVar(&analyzeToken, "token", "",
		"Bearer token for the management API")
	cmd.Flags().StringSliceVarP(&analyzeObjectives, "objectives", "o", nil,
		"Objectives to analyze (default: all registered)")
	cmd.Flags().StringVarP(&analyzeFormat, "format", "f", "",
		"Output format: json, yaml")
	cmd.Flags().StringVar(&analyzeOutputPath, "output", "",
		"Write the report to a file instead of stdout")
	cmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 0,
		"Number of analyzers to run at once (default: 1)")
	cmd.Flags().StringVar(&analyzeDeploymentID, "deployment-id", "",
		"Deployment label used in the report")
	cmd.Flags().IntVar(&analyzeMaxCalls, "max-calls", 0,
		"Hard ceiling on management API calls for this run")
	cmd.Flags().BoolVar(&analyzeInsecure, "insecure", false,
		"Skip TLS certificate verification")
	cmd.Flags().BoolVar(&analyzeNoProgress, "no-progress", false,
		"Disable the progress display")
	cmd.Flags().BoolVarP(&analyzeVerbose, "verbose", "v", false,
		"Enable debug logging")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(analyzeConfigPath)
	if err != nil {
		return &ExitError{Code: 2, Message: fmt.Sprintf("failed to load configuration: %v", err)}
	}
	applyAnalyzeFlags(cmd, cfg)

	if cfg.Connection.BaseURL == "" {
		return &ExitError{Code: 2, Message: "no base URL configured; set --url, PIPECHECK_CONNECTION_BASE_URL, or connection.base_url in the config file"}
	}

	format, err := service.ParseOutputFormat(cfg.Output.Format)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	log, err := logger.New(analyzeVerbose)
	if err != nil {
		return &ExitError{Code: 2, Message: fmt.Sprintf("failed to build logger: %v", err)}
	}
	defer func() { _ = log.Sync() }()

	registry, err := app.BuildRegistry()
	if err != nil {
		return &ExitError{Code: 2, Message: fmt.Sprintf("failed to build analyzer registry: %v", err)}
	}
	gateway := app.BuildGateway(cfg, log)

	// Progress goes to stderr; disable it when the report goes to stdout
	// anyway so piped output stays clean.
	pm := service.NewProgressManager(cfg.Output.ShowProgress && !analyzeNoProgress)
	defer pm.Close()

	uc := app.NewAnalyzeUseCase(gateway, registry, pm, log)
	run, err := uc.Execute(context.Background(), app.AnalyzeConfig{
		Objectives:   cfg.Analysis.Objectives,
		Concurrency:  cfg.Analysis.Concurrency,
		DeploymentID: cfg.Connection.EffectiveDeploymentID(),
		OutputFormat: format,
		OutputPath:   cfg.Output.Path,
	})
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	switch run.Status {
	case domain.RunStatusFailed:
		return &ExitError{Code: 1, Message: "analysis failed"}
	case domain.RunStatusPartial:
		fmt.Fprintf(os.Stderr, "Warning: analysis completed partially (%d errors)\n", len(run.Errors))
	}
	return nil
}

// applyAnalyzeFlags overrides config values with flags explicitly set
// on the command line
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("url") {
		cfg.Connection.BaseURL = analyzeURL
	}
	if cmd.Flags().Changed("token") {
		cfg.Connection.AuthToken = analyzeToken
	}
	if cmd.Flags().Changed("objectives") {
		cfg.Analysis.Objectives = analyzeObjectives
	}
	if cmd.Flags().Changed("format") {
		cfg.Output.Format = analyzeFormat
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Path = analyzeOutputPath
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Analysis.Concurrency = analyzeConcurrency
	}
	if cmd.Flags().Changed("deployment-id") {
		cfg.Connection.DeploymentID = analyzeDeploymentID
	}
	if cmd.Flags().Changed("max-calls") {
		cfg.Budget.MaxCalls = analyzeMaxCalls
	}
	if cmd.Flags().Changed("insecure") {
		cfg.Connection.InsecureSkipVerify = analyzeInsecure
	}
}
