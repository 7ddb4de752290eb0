package domain

import "context"

// Analyzer is the pluggable unit of diagnostic work. Each analyzer owns
// exactly one objective and fetches everything it needs through the
// Gateway it is handed.
type Analyzer interface {
	// Objective returns the unique, stable key for this analyzer
	Objective() string

	// Description returns a one-line human-readable summary
	Description() string

	// SupportedProducts returns the products this analyzer applies to
	SupportedProducts() []Product

	// EstimatedCalls returns the expected number of budget units consumed
	// by one Analyze invocation. The orchestrator skips analyzers whose
	// estimate exceeds the remaining budget.
	EstimatedCalls() int

	// RequiredPermissions lists the API permissions Analyze needs
	RequiredPermissions() []string

	// SupportsPartialResults reports whether internal failures should be
	// isolated by the orchestrator (true, the default for all built-in
	// analyzers) or abort the whole run (false).
	SupportsPartialResults() bool

	// Analyze runs the diagnostic against the gateway. A returned error is
	// treated as an analyzer-internal failure.
	Analyze(ctx context.Context, gw Gateway) (*AnalyzerResult, error)
}

// AnalyzerFactory creates a fresh analyzer instance per run
type AnalyzerFactory func() Analyzer

// Registry maps objective names to analyzer factories
type Registry interface {
	// Register adds an analyzer factory. It fails if the analyzer's
	// contract is not satisfied or the objective is already registered.
	Register(factory AnalyzerFactory) error

	// Get returns a fresh analyzer instance for the objective
	Get(objective string) (Analyzer, error)

	// List returns registered objective names in sorted order
	List() []string

	// Describe returns listing metadata for every registered analyzer,
	// ordered by objective name
	Describe() []AnalyzerInfo
}

// ProgressManager creates progress tasks for long-running operations
type ProgressManager interface {
	StartTask(description string, total int) TaskProgress
	IsInteractive() bool
	Close()
}

// TaskProgress tracks a single progress task
type TaskProgress interface {
	Increment(n int)
	Describe(description string)
	Complete()
}
