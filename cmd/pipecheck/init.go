package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/flowmetrics/pipecheck/internal/config"
)

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a pipecheck configuration file",
		Long: `Generate a pipecheck configuration file with sensible defaults.

By default, creates pipecheck.yaml in the current directory. Use
--interactive for a guided setup wizard. The auth token is read from
the PIPECHECK_CONNECTION_AUTH_TOKEN environment variable or a .env
file and is never written to the config.

Examples:
  # Create pipecheck.yaml in current directory
  pipecheck init

  # Custom output path
  pipecheck init --config custom.yaml

  # Overwrite existing file
  pipecheck init --force

  # Interactive setup wizard
  pipecheck init --interactive
  pipecheck init -i`,
		RunE: runInit,
	}

	cmd.Flags().StringP("config", "c", "pipecheck.yaml",
		"Output path for the config file")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing config file")
	cmd.Flags().BoolP("interactive", "i", false,
		"Interactive setup wizard")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	force, _ := cmd.Flags().GetBool("force")
	interactive, _ := cmd.Flags().GetBool("interactive")

	cfg := config.DefaultConfig()

	if interactive {
		var err error
		configPath, err = runInteractiveSetup(cfg, configPath)
		if err != nil {
			return err
		}
	}

	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists. Use --force to overwrite", configPath)
		}
	}

	dir := filepath.Dir(configPath)
	if dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", dir)
		}
	}

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	displayPath := configPath
	if absPath, err := filepath.Abs(configPath); err == nil {
		displayPath = absPath
	}
	fmt.Printf("Created %s\n", displayPath)
	fmt.Println("\nSet PIPECHECK_CONNECTION_AUTH_TOKEN and run 'pipecheck test-connection' to verify access.")

	return nil
}

func runInteractiveSetup(cfg *config.Config, defaultConfigPath string) (string, error) {
	fmt.Println()
	fmt.Println("pipecheck Configuration Setup")
	fmt.Println("=============================")
	fmt.Println()

	urlPrompt := promptui.Prompt{
		Label:   "Management API base URL",
		Default: cfg.Connection.BaseURL,
		Validate: func(s string) error {
			if s == "" {
				return fmt.Errorf("base URL is required")
			}
			return nil
		},
	}
	baseURL, err := urlPrompt.Run()
	if err != nil {
		return "", fmt.Errorf("base URL input cancelled: %w", err)
	}
	cfg.Connection.BaseURL = baseURL

	fmt.Println()

	products := []struct {
		Label       string
		Description string
		Value       string
	}{
		{"Stream", "Central stream processing deployment", "stream"},
		{"Edge", "Edge node fleet", "edge"},
		{"Lake", "Data lake deployment", "lake"},
		{"Search", "Search deployment", "search"},
	}

	productTemplates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "\U0001F449 {{ .Label | cyan }} - {{ .Description | faint }}",
		Inactive: "   {{ .Label | white }} - {{ .Description | faint }}",
		Selected: "\U00002705 {{ .Label | green }}",
	}

	productPrompt := promptui.Select{
		Label:     "Which product does this deployment run?",
		Items:     products,
		Templates: productTemplates,
	}
	productIdx, _, err := productPrompt.Run()
	if err != nil {
		return "", fmt.Errorf("product selection cancelled: %w", err)
	}
	cfg.Connection.Product = products[productIdx].Value

	fmt.Println()

	budgetPrompt := promptui.Prompt{
		Label:   "Maximum API calls per run",
		Default: strconv.Itoa(cfg.Budget.MaxCalls),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				return fmt.Errorf("must be a positive integer")
			}
			return nil
		},
	}
	maxCallsStr, err := budgetPrompt.Run()
	if err != nil {
		return "", fmt.Errorf("budget input cancelled: %w", err)
	}
	cfg.Budget.MaxCalls, _ = strconv.Atoi(maxCallsStr)

	fmt.Println()

	formatPrompt := promptui.Select{
		Label: "Report format",
		Items: []string{"json", "yaml"},
	}
	_, format, err := formatPrompt.Run()
	if err != nil {
		return "", fmt.Errorf("format selection cancelled: %w", err)
	}
	cfg.Output.Format = format

	fmt.Println()

	outputPrompt := promptui.Prompt{
		Label:   "Config file path",
		Default: defaultConfigPath,
	}
	outputPath, err := outputPrompt.Run()
	if err != nil {
		return "", fmt.Errorf("output path input cancelled: %w", err)
	}
	if outputPath == "" {
		outputPath = defaultConfigPath
	}

	fmt.Println()
	fmt.Printf("Creating %s... ", outputPath)

	return outputPath, nil
}
