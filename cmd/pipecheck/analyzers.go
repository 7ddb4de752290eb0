package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/flowmetrics/pipecheck/app"
	"github.com/flowmetrics/pipecheck/service"
)

func analyzersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyzers",
		Short: "List the registered analyzers",
		Long: `List every registered analyzer with its objective, call estimate,
required permissions, and supported products. No API calls are made.`,
		RunE:         runAnalyzers,
		SilenceUsage: true,
	}

	cmd.Flags().StringP("format", "f", "json", "Output format: json, yaml")
	return cmd
}

func runAnalyzers(cmd *cobra.Command, args []string) error {
	formatName, _ := cmd.Flags().GetString("format")
	format, err := service.ParseOutputFormat(formatName)
	if err != nil {
		return err
	}

	registry, err := app.BuildRegistry()
	if err != nil {
		return err
	}
	return app.NewListUseCase(registry).Execute(format, os.Stdout)
}
