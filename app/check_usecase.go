package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/flowmetrics/pipecheck/domain"
	"github.com/flowmetrics/pipecheck/service"
)

// CheckUseCase probes the management API connection
type CheckUseCase struct {
	gateway   domain.Gateway
	formatter *service.OutputFormatter
	log       *zap.SugaredLogger
}

// NewCheckUseCase creates a connection check use case
func NewCheckUseCase(gateway domain.Gateway, log *zap.SugaredLogger) *CheckUseCase {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CheckUseCase{
		gateway:   gateway,
		formatter: service.NewOutputFormatter(),
		log:       log,
	}
}

// Execute runs the probe and writes its result to w. Probe failures are
// reported in the result, not as an error; the error return covers only
// gateway setup and serialization.
func (uc *CheckUseCase) Execute(ctx context.Context, format service.OutputFormat, w io.Writer) (domain.ConnectionTestResult, error) {
	if err := uc.gateway.Open(ctx); err != nil {
		return domain.ConnectionTestResult{}, fmt.Errorf("failed to open gateway: %w", err)
	}
	defer func() { _ = uc.gateway.Close() }()

	result := uc.gateway.Probe(ctx)
	uc.log.Infow("connection probe finished",
		"success", result.Success,
		"response_time_ms", result.ResponseTimeMS,
	)

	if w != nil {
		if err := uc.formatter.WriteConnectionTest(result, format, w); err != nil {
			return result, err
		}
	}
	return result, nil
}

// ListUseCase describes the registered analyzers
type ListUseCase struct {
	registry  domain.Registry
	formatter *service.OutputFormatter
}

// NewListUseCase creates an analyzer listing use case
func NewListUseCase(registry domain.Registry) *ListUseCase {
	return &ListUseCase{
		registry:  registry,
		formatter: service.NewOutputFormatter(),
	}
}

// Execute writes the analyzer listing to w
func (uc *ListUseCase) Execute(format service.OutputFormat, w io.Writer) error {
	return uc.formatter.WriteAnalyzerList(uc.registry.Describe(), format, w)
}
