package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flowmetrics/pipecheck/domain"
	"github.com/flowmetrics/pipecheck/internal/scoring"
)

// OrchestratorOptions configures an Orchestrator
type OrchestratorOptions struct {
	Gateway      domain.Gateway
	Registry     domain.Registry
	DeploymentID string

	// Concurrency is the number of analyzers running at once; <= 1 means
	// sequential execution
	Concurrency int

	Logger   *zap.SugaredLogger
	Progress domain.ProgressManager
}

// Orchestrator runs a selected set of analyzers against one gateway,
// isolates their failures, and folds their output into a single
// AnalysisRun. The gateway's budget is the shared limiting resource:
// analyzers whose estimate exceeds the remaining budget are skipped,
// never started.
type Orchestrator struct {
	gateway      domain.Gateway
	registry     domain.Registry
	deploymentID string
	concurrency  int
	log          *zap.SugaredLogger
	progress     domain.ProgressManager
	aggregator   *ResultAggregator
}

// NewOrchestrator creates an orchestrator. Gateway and Registry are
// required; everything else has working defaults.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	progress := opts.Progress
	if progress == nil {
		progress = NewNoOpProgressManager()
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	deploymentID := opts.DeploymentID
	if deploymentID == "" {
		deploymentID = "unknown"
	}
	return &Orchestrator{
		gateway:      opts.Gateway,
		registry:     opts.Registry,
		deploymentID: deploymentID,
		concurrency:  concurrency,
		log:          log,
		progress:     progress,
		aggregator:   NewResultAggregator(),
	}
}

// outcome is the per-objective record the run is assembled from
type outcome struct {
	objective string
	skipped   bool
	result    *domain.AnalyzerResult
}

// Run executes the selected objectives (all registered when empty) and
// returns the aggregated AnalysisRun. Analyzer failures do not surface
// as errors: they are folded into the run as critical findings or a
// failed status. Run itself only fails on invalid input.
func (o *Orchestrator) Run(ctx context.Context, objectives []string) (*domain.AnalysisRun, error) {
	if len(objectives) == 0 {
		objectives = o.registry.List()
	}
	if len(objectives) == 0 {
		return nil, domain.NewInvalidInputError("no analyzers registered", nil)
	}

	analyzers := make([]domain.Analyzer, len(objectives))
	for i, objective := range objectives {
		a, err := o.registry.Get(objective)
		if err != nil {
			return nil, err
		}
		analyzers[i] = a
	}

	startedAt := time.Now().UTC()
	o.log.Infow("analysis started",
		"objectives", objectives,
		"budget_remaining", o.gateway.CallsRemaining(),
		"concurrency", o.concurrency,
	)

	task := o.progress.StartTask("analyzing deployment", len(objectives))
	defer task.Complete()

	var outcomes []outcome
	var aborted error
	if o.concurrency <= 1 {
		outcomes, aborted = o.runSequential(ctx, objectives, analyzers, task)
	} else {
		outcomes, aborted = o.runConcurrent(ctx, objectives, analyzers, task)
	}

	run := o.assemble(outcomes, aborted, startedAt)

	o.log.Infow("analysis finished",
		"status", run.Status,
		"findings", len(run.Findings),
		"recommendations", len(run.Recommendations),
		"api_calls_used", run.CallsUsed,
		"duration_seconds", run.DurationSeconds,
	)
	return run, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, objectives []string, analyzers []domain.Analyzer, task domain.TaskProgress) ([]outcome, error) {
	outcomes := make([]outcome, 0, len(objectives))
	for i, objective := range objectives {
		task.Describe(objective)

		out, fatal := o.runOne(ctx, objective, analyzers[i])
		outcomes = append(outcomes, out)
		task.Increment(1)

		if fatal != nil {
			o.log.Errorw("analyzer aborted the run", "objective", objective, "error", fatal)
			return outcomes, fatal
		}
	}
	return outcomes, nil
}

func (o *Orchestrator) runConcurrent(ctx context.Context, objectives []string, analyzers []domain.Analyzer, task domain.TaskProgress) ([]outcome, error) {
	outcomes := make([]outcome, len(objectives))
	recorded := make([]bool, len(objectives))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i := range objectives {
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			out, fatal := o.runOne(gctx, objectives[i], analyzers[i])

			mu.Lock()
			outcomes[i] = out
			recorded[i] = true
			mu.Unlock()
			task.Increment(1)

			if fatal != nil {
				o.log.Errorw("analyzer aborted the run", "objective", objectives[i], "error", fatal)
			}
			return fatal
		})
	}
	aborted := g.Wait()

	// Keep only the slots that actually ran; cancelled peers never report.
	kept := make([]outcome, 0, len(objectives))
	for i := range outcomes {
		if recorded[i] {
			kept = append(kept, outcomes[i])
		}
	}
	return kept, aborted
}

// runOne executes a single analyzer with budget pre-check and fault
// isolation. A non-nil fatal error means the whole run must stop.
func (o *Orchestrator) runOne(ctx context.Context, objective string, analyzer domain.Analyzer) (out outcome, fatal error) {
	out = outcome{objective: objective}

	if analyzer.EstimatedCalls() > o.gateway.CallsRemaining() {
		o.log.Warnw("analyzer skipped",
			"objective", objective,
			"estimated_calls", analyzer.EstimatedCalls(),
			"budget_remaining", o.gateway.CallsRemaining(),
		)
		out.skipped = true
		return out, nil
	}

	o.log.Infow("analyzer started", "objective", objective, "estimated_calls", analyzer.EstimatedCalls())
	start := time.Now()

	result, err := o.analyzeIsolated(ctx, objective, analyzer)
	if err != nil {
		if !analyzer.SupportsPartialResults() || isRunFatal(err) {
			out.result = domain.NewAnalyzerResult(objective, analyzer.SupportedProducts())
			out.result.Fail(err.Error())
			return out, domain.NewAnalyzerError(objective, err)
		}
		o.log.Errorw("analyzer failed, continuing", "objective", objective, "error", err)
		result = o.failureResult(objective, analyzer, err)
	}
	if result == nil {
		result = domain.NewAnalyzerResult(objective, analyzer.SupportedProducts())
		result.Fail("analyzer returned no result")
	}

	o.log.Infow("analyzer finished",
		"objective", objective,
		"success", result.Success,
		"findings", len(result.Findings),
		"recommendations", len(result.Recommendations),
		"duration_seconds", time.Since(start).Seconds(),
	)
	out.result = result
	return out, nil
}

// isRunFatal reports whether the error makes the rest of the run
// pointless. Bad credentials fail every subsequent call the same way.
func isRunFatal(err error) bool {
	return errors.Is(err, domain.DomainError{Code: domain.ErrCodeAuthFailed}) ||
		errors.Is(err, domain.DomainError{Code: domain.ErrCodeForbidden})
}

// analyzeIsolated confines panics to the failing analyzer. Validation
// panics are programmer errors and propagate.
func (o *Orchestrator) analyzeIsolated(ctx context.Context, objective string, analyzer domain.Analyzer) (result *domain.AnalyzerResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			if verr, ok := r.(*domain.ValidationError); ok {
				panic(verr)
			}
			err = fmt.Errorf("analyzer panic: %v", r)
		}
	}()
	return analyzer.Analyze(ctx, o.gateway)
}

// failureResult converts an isolated analyzer failure into an
// empty-but-valid result carrying one critical finding
func (o *Orchestrator) failureResult(objective string, analyzer domain.Analyzer, cause error) *domain.AnalyzerResult {
	result := domain.NewAnalyzerResult(objective, analyzer.SupportedProducts())
	result.AddFinding(domain.Finding{
		ID:          fmt.Sprintf("analyzer-failure-%s", objective),
		Category:    "analyzer",
		Severity:    domain.SeverityCritical,
		Title:       fmt.Sprintf("Analyzer %q failed", objective),
		Description: cause.Error(),
		RemediationSteps: []string{
			"Check deployment connectivity and credentials",
			"Re-run the analysis for this objective",
		},
		EstimatedImpact: "Diagnostic coverage lost for this objective",
		Confidence:      domain.ConfidenceHigh,
	})
	result.Fail(cause.Error())
	return result
}

// assemble folds per-objective outcomes into the final AnalysisRun
func (o *Orchestrator) assemble(outcomes []outcome, aborted error, startedAt time.Time) *domain.AnalysisRun {
	run := &domain.AnalysisRun{
		ID:              uuid.NewString(),
		DeploymentID:    o.deploymentID,
		StartedAt:       startedAt,
		Findings:        []domain.Finding{},
		Recommendations: []domain.Recommendation{},
		Metadata:        map[string]any{},
	}

	objectiveCounts := map[string]map[string]int{}
	skipped := map[string]string{}
	succeeded, failed := 0, 0

	for _, out := range outcomes {
		run.ObjectivesAnalyzed = append(run.ObjectivesAnalyzed, out.objective)

		if out.skipped {
			skipped[out.objective] = "skipped: insufficient budget"
			run.Errors = append(run.Errors, fmt.Sprintf("%s: skipped: insufficient budget", out.objective))
			continue
		}
		if out.result == nil {
			continue
		}

		result := out.result
		run.Findings = append(run.Findings, result.Findings...)
		run.Recommendations = append(run.Recommendations, result.Recommendations...)
		run.Workers = append(run.Workers, result.Workers...)
		objectiveCounts[out.objective] = map[string]int{
			"findings":        len(result.Findings),
			"recommendations": len(result.Recommendations),
		}

		if result.Success {
			succeeded++
		} else {
			failed++
			if result.Error != "" {
				run.Errors = append(run.Errors, fmt.Sprintf("%s: %s", out.objective, result.Error))
			}
		}
	}

	o.aggregator.SortFindingsBySeverity(run.Findings)
	o.aggregator.SortRecommendationsByPriority(run.Recommendations)

	switch {
	case aborted != nil:
		run.Status = domain.RunStatusFailed
		run.Errors = append(run.Errors, aborted.Error())
	case succeeded > 0 && failed == 0 && len(skipped) == 0:
		run.Status = domain.RunStatusCompleted
	case succeeded > 0:
		run.Status = domain.RunStatusPartial
		run.PartialCompletion = true
	default:
		run.Status = domain.RunStatusFailed
	}

	run.HealthScore = o.scoreRun(run)

	run.CompletedAt = time.Now().UTC()
	run.DurationSeconds = run.CompletedAt.Sub(startedAt).Seconds()
	run.CallsUsed = o.gateway.CallsUsed()

	run.Metadata["objective_counts"] = objectiveCounts
	if len(skipped) > 0 {
		run.Metadata["skipped_objectives"] = skipped
	}
	run.Metadata["api_calls"] = map[string]int{
		"used":      o.gateway.CallsUsed(),
		"remaining": o.gateway.CallsRemaining(),
		"budget":    o.gateway.CallsUsed() + o.gateway.CallsRemaining(),
	}
	return run
}

// scoreRun derives the health score from collected worker snapshots and
// finding severities
func (o *Orchestrator) scoreRun(run *domain.AnalysisRun) *domain.HealthScore {
	components := make([]domain.ComponentHealth, 0, len(run.Workers))
	healthy := 0
	for _, w := range run.Workers {
		c := scoring.ScoreWorker(w.ID, w.CPUPercent, w.MemoryPercent, w.DiskPercent)
		if c.IsHealthy() {
			healthy++
		}
		components = append(components, c)
	}

	critical := 0
	high := 0
	for i := range run.Findings {
		switch run.Findings[i].Severity {
		case domain.SeverityCritical:
			critical++
		case domain.SeverityHigh:
			high++
		}
	}

	deployment := scoring.ScoreDeployment(healthy, len(run.Workers), critical, high)
	if len(components) > 0 {
		components = append(components, scoring.ScoreOverall(components))
	}

	return &domain.HealthScore{
		Score:      deployment.Score,
		Status:     deployment.Status,
		Components: components,
	}
}
