package service

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flowmetrics/pipecheck/domain"
)

// AnalyzerRegistry is the default Registry implementation. Factories
// are validated at registration time so a malformed analyzer fails
// during wiring, not mid-run.
type AnalyzerRegistry struct {
	mu        sync.RWMutex
	factories map[string]domain.AnalyzerFactory
}

// NewAnalyzerRegistry creates an empty registry
func NewAnalyzerRegistry() *AnalyzerRegistry {
	return &AnalyzerRegistry{
		factories: make(map[string]domain.AnalyzerFactory),
	}
}

// Register adds an analyzer factory after checking its contract
func (r *AnalyzerRegistry) Register(factory domain.AnalyzerFactory) error {
	if factory == nil {
		return domain.NewInvalidInputError("analyzer factory must not be nil", nil)
	}

	probe := factory()
	if probe == nil {
		return domain.NewInvalidInputError("analyzer factory returned nil", nil)
	}

	objective := probe.Objective()
	if objective == "" {
		return domain.NewInvalidInputError("analyzer objective must not be empty", nil)
	}
	if probe.EstimatedCalls() < 1 {
		return domain.NewInvalidInputError(
			fmt.Sprintf("analyzer %q must estimate at least one call", objective), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[objective]; exists {
		return domain.NewInvalidInputError(
			fmt.Sprintf("analyzer %q is already registered", objective), nil)
	}
	r.factories[objective] = factory
	return nil
}

// Get returns a fresh analyzer instance for the objective
func (r *AnalyzerRegistry) Get(objective string) (domain.Analyzer, error) {
	r.mu.RLock()
	factory, ok := r.factories[objective]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.NewInvalidInputError(
			fmt.Sprintf("unknown objective %q, known: %v", objective, r.List()), nil)
	}
	return factory(), nil
}

// List returns registered objective names in sorted order
func (r *AnalyzerRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns listing metadata for every registered analyzer
func (r *AnalyzerRegistry) Describe() []domain.AnalyzerInfo {
	names := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]domain.AnalyzerInfo, 0, len(names))
	for _, name := range names {
		a := r.factories[name]()
		infos = append(infos, domain.AnalyzerInfo{
			Name:                a.Objective(),
			Description:         a.Description(),
			EstimatedCalls:      a.EstimatedCalls(),
			RequiredPermissions: a.RequiredPermissions(),
			SupportedProducts:   a.SupportedProducts(),
		})
	}
	return infos
}
