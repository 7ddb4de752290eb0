package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowmetrics/pipecheck/app"
	"github.com/flowmetrics/pipecheck/internal/config"
	"github.com/flowmetrics/pipecheck/internal/logger"
	"github.com/flowmetrics/pipecheck/service"
)

var (
	checkConfigPath string
	checkURL        string
	checkToken      string
	checkFormat     string
	checkTimeout    float64
	checkInsecure   bool
	checkVerbose    bool
)

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Probe the management API connection",
		Long: `Probe the deployment's version endpoint and report reachability,
detected product, and response time. The probe consumes one budget unit.

Exit codes:
  0 - Connection succeeded
  1 - Connection failed (unreachable, auth rejected, timeout)
  2 - Setup error (bad configuration)

Examples:
  pipecheck test-connection --url https://deployment.example.com:9000 --token $TOKEN
  pipecheck test-connection -f yaml`,
		RunE:          runCheck,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVarP(&checkConfigPath, "config", "c", "",
		"Path to config file")
	cmd.Flags().StringVar(&checkURL, "url", "",
		"Base URL of the management API")
	cmd.Flags().StringVar(&checkToken, "token", "",
		"Bearer token for the management API")
	cmd.Flags().StringVarP(&checkFormat, "format", "f", "json",
		"Output format: json, yaml")
	cmd.Flags().Float64Var(&checkTimeout, "timeout", 0,
		"Request timeout in seconds")
	cmd.Flags().BoolVar(&checkInsecure, "insecure", false,
		"Skip TLS certificate verification")
	cmd.Flags().BoolVarP(&checkVerbose, "verbose", "v", false,
		"Enable debug logging")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(checkConfigPath)
	if err != nil {
		return &ExitError{Code: 2, Message: fmt.Sprintf("failed to load configuration: %v", err)}
	}
	if cmd.Flags().Changed("url") {
		cfg.Connection.BaseURL = checkURL
	}
	if cmd.Flags().Changed("token") {
		cfg.Connection.AuthToken = checkToken
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Connection.TimeoutSeconds = checkTimeout
	}
	if cmd.Flags().Changed("insecure") {
		cfg.Connection.InsecureSkipVerify = checkInsecure
	}

	if cfg.Connection.BaseURL == "" {
		return &ExitError{Code: 2, Message: "no base URL configured; set --url, PIPECHECK_CONNECTION_BASE_URL, or connection.base_url in the config file"}
	}

	format, err := service.ParseOutputFormat(checkFormat)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	log, err := logger.New(checkVerbose)
	if err != nil {
		return &ExitError{Code: 2, Message: fmt.Sprintf("failed to build logger: %v", err)}
	}
	defer func() { _ = log.Sync() }()

	gateway := app.BuildGateway(cfg, log)
	result, err := app.NewCheckUseCase(gateway, log).Execute(context.Background(), format, os.Stdout)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	if !result.Success {
		// The result on stdout already carries the detail
		return &ExitError{Code: 1, Message: ""}
	}
	return nil
}
