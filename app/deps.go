package app

import (
	"go.uber.org/zap"

	"github.com/flowmetrics/pipecheck/domain"
	"github.com/flowmetrics/pipecheck/internal/analyzer"
	"github.com/flowmetrics/pipecheck/internal/config"
	"github.com/flowmetrics/pipecheck/internal/limiter"
	"github.com/flowmetrics/pipecheck/service"
)

// BuildRegistry creates a registry with every built-in analyzer registered
func BuildRegistry() (domain.Registry, error) {
	registry := service.NewAnalyzerRegistry()
	for _, factory := range analyzer.Factories() {
		if err := registry.Register(factory); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// BuildGateway creates the production gateway from configuration. The
// rate limiter it carries is the run's shared call budget.
func BuildGateway(cfg *config.Config, log *zap.SugaredLogger) domain.Gateway {
	lim := limiter.New(cfg.Budget.MaxCalls, cfg.Budget.Window(), limiter.BackoffConfig{
		Enabled:    cfg.Budget.EnableBackoff,
		Initial:    cfg.Budget.InitialBackoff(),
		Max:        cfg.Budget.MaxBackoff(),
		Multiplier: cfg.Budget.BackoffMultiplier,
	})
	return service.NewAPIGateway(service.GatewayOptions{
		BaseURL:            cfg.Connection.BaseURL,
		AuthToken:          cfg.Connection.AuthToken,
		Timeout:            cfg.Connection.RequestTimeout(),
		InsecureSkipVerify: cfg.Connection.InsecureSkipVerify,
		Limiter:            lim,
		Logger:             log,
	})
}
