// Package app wires configuration, gateway, registry, and orchestrator
// into the use cases the CLI invokes.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/flowmetrics/pipecheck/domain"
	"github.com/flowmetrics/pipecheck/service"
)

// AnalyzeConfig holds the per-invocation settings for the analyze use case
type AnalyzeConfig struct {
	// Objectives selects which analyzers run; empty means all registered
	Objectives []string

	// Concurrency is the number of analyzers running at once
	Concurrency int

	// DeploymentID labels the deployment in the report
	DeploymentID string

	// Output options
	OutputFormat service.OutputFormat
	OutputWriter io.Writer
	OutputPath   string
}

// DefaultAnalyzeConfig returns default configuration
func DefaultAnalyzeConfig() AnalyzeConfig {
	return AnalyzeConfig{
		Concurrency:  1,
		OutputFormat: service.FormatJSON,
	}
}

// AnalyzeUseCase runs a full analysis and writes the report
type AnalyzeUseCase struct {
	gateway   domain.Gateway
	registry  domain.Registry
	progress  domain.ProgressManager
	formatter *service.OutputFormatter
	log       *zap.SugaredLogger
}

// NewAnalyzeUseCase creates an analyze use case
func NewAnalyzeUseCase(gateway domain.Gateway, registry domain.Registry, progress domain.ProgressManager, log *zap.SugaredLogger) *AnalyzeUseCase {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AnalyzeUseCase{
		gateway:   gateway,
		registry:  registry,
		progress:  progress,
		formatter: service.NewOutputFormatter(),
		log:       log,
	}
}

// Execute opens the gateway, runs the selected objectives, and writes
// the report. The returned run is also handed back so callers can
// inspect status and exit accordingly.
func (uc *AnalyzeUseCase) Execute(ctx context.Context, cfg AnalyzeConfig) (*domain.AnalysisRun, error) {
	if err := uc.gateway.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open gateway: %w", err)
	}
	defer func() { _ = uc.gateway.Close() }()

	orchestrator := service.NewOrchestrator(service.OrchestratorOptions{
		Gateway:      uc.gateway,
		Registry:     uc.registry,
		DeploymentID: cfg.DeploymentID,
		Concurrency:  cfg.Concurrency,
		Logger:       uc.log,
		Progress:     uc.progress,
	})

	run, err := orchestrator.Run(ctx, cfg.Objectives)
	if err != nil {
		return nil, err
	}

	if err := uc.writeReport(run, cfg); err != nil {
		return run, err
	}
	return run, nil
}

func (uc *AnalyzeUseCase) writeReport(run *domain.AnalysisRun, cfg AnalyzeConfig) error {
	w := cfg.OutputWriter
	if cfg.OutputPath != "" {
		f, err := os.Create(cfg.OutputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	if w == nil {
		w = os.Stdout
	}
	return uc.formatter.Write(run, cfg.OutputFormat, w)
}
