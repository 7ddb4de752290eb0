package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/flowmetrics/pipecheck/domain"
	"github.com/flowmetrics/pipecheck/internal/testutil"
)

func registryWith(t *testing.T, analyzers ...*testutil.StubAnalyzer) *AnalyzerRegistry {
	t.Helper()
	r := NewAnalyzerRegistry()
	for _, a := range analyzers {
		a := a
		if err := r.Register(func() domain.Analyzer { return a }); err != nil {
			t.Fatalf("Register(%s) failed: %v", a.Name, err)
		}
	}
	return r
}

func newOrchestrator(gw domain.Gateway, reg domain.Registry) *Orchestrator {
	return NewOrchestrator(OrchestratorOptions{
		Gateway:      gw,
		Registry:     reg,
		DeploymentID: "test-deployment",
	})
}

func consumeCalls(ctx context.Context, gw domain.Gateway, n int) {
	for i := 0; i < n; i++ {
		_ = gw.Get(ctx, "/consume", nil)
	}
}

func TestOrchestrator_Run_Completed(t *testing.T) {
	gw := testutil.NewFakeGateway(map[string]string{"/consume": `{}`})
	health := &testutil.StubAnalyzer{
		Name: "health", Calls: 2, Partial: true,
		AnalyzeFunc: func(ctx context.Context, gw domain.Gateway) (*domain.AnalyzerResult, error) {
			consumeCalls(ctx, gw, 2)
			result := domain.NewAnalyzerResult("health", nil)
			result.AddFinding(finding("f-high", domain.SeverityHigh))
			result.Workers = []domain.WorkerNode{
				{ID: "w1", Host: "w1.local", CPUPercent: 10, MemoryPercent: 20, DiskPercent: 30},
			}
			return result, nil
		},
	}
	resource := &testutil.StubAnalyzer{Name: "resource", Calls: 1, Partial: true}

	run, err := newOrchestrator(gw, registryWith(t, health, resource)).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != domain.RunStatusCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}
	if run.ID == "" {
		t.Error("run ID should be set")
	}
	if run.DeploymentID != "test-deployment" {
		t.Errorf("deployment_id = %s", run.DeploymentID)
	}
	if len(run.ObjectivesAnalyzed) != 2 {
		t.Errorf("objectives_analyzed = %v", run.ObjectivesAnalyzed)
	}
	if len(run.Findings) != 1 {
		t.Errorf("findings = %d, want 1", len(run.Findings))
	}
	if run.CallsUsed != 2 {
		t.Errorf("api_calls_used = %d, want 2", run.CallsUsed)
	}
	if run.PartialCompletion {
		t.Error("completed run should not be partial")
	}
	if run.CompletedAt.Before(run.StartedAt) {
		t.Error("completed_at should not precede started_at")
	}
}

func TestOrchestrator_Run_UnknownObjective(t *testing.T) {
	gw := testutil.NewFakeGateway(nil)
	reg := registryWith(t, &testutil.StubAnalyzer{Name: "health", Calls: 1, Partial: true})

	_, err := newOrchestrator(gw, reg).Run(context.Background(), []string{"bogus"})
	if !errors.Is(err, domain.DomainError{Code: domain.ErrCodeInvalidInput}) {
		t.Errorf("expected invalid input error, got %v", err)
	}
}

func TestOrchestrator_Run_EmptyRegistry(t *testing.T) {
	gw := testutil.NewFakeGateway(nil)

	_, err := newOrchestrator(gw, NewAnalyzerRegistry()).Run(context.Background(), nil)
	if err == nil {
		t.Error("empty registry should be an error")
	}
}

func TestOrchestrator_SkipsOnInsufficientBudget(t *testing.T) {
	gw := testutil.NewFakeGateway(map[string]string{"/consume": `{}`})
	gw.MaxCalls = 3

	greedy := &testutil.StubAnalyzer{
		Name: "health", Calls: 3, Partial: true,
		AnalyzeFunc: func(ctx context.Context, g domain.Gateway) (*domain.AnalyzerResult, error) {
			consumeCalls(ctx, g, 3)
			return domain.NewAnalyzerResult("health", nil), nil
		},
	}
	starved := &testutil.StubAnalyzer{Name: "resource", Calls: 2, Partial: true}

	run, err := newOrchestrator(gw, registryWith(t, greedy, starved)).
		Run(context.Background(), []string{"health", "resource"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != domain.RunStatusPartial {
		t.Errorf("status = %s, want partial", run.Status)
	}
	if !run.PartialCompletion {
		t.Error("partial_completion should be set")
	}
	if starved.AnalyzeCount() != 0 {
		t.Error("starved analyzer must never start")
	}

	skipped, ok := run.Metadata["skipped_objectives"].(map[string]string)
	if !ok {
		t.Fatalf("skipped_objectives metadata missing: %v", run.Metadata)
	}
	if skipped["resource"] != "skipped: insufficient budget" {
		t.Errorf("skip reason = %q", skipped["resource"])
	}
}

func TestOrchestrator_IsolatesFailure(t *testing.T) {
	gw := testutil.NewFakeGateway(nil)
	broken := &testutil.StubAnalyzer{
		Name: "health", Calls: 1, Partial: true,
		AnalyzeFunc: func(ctx context.Context, g domain.Gateway) (*domain.AnalyzerResult, error) {
			return nil, errors.New("endpoint exploded")
		},
	}
	fine := &testutil.StubAnalyzer{Name: "resource", Calls: 1, Partial: true}

	run, err := newOrchestrator(gw, registryWith(t, broken, fine)).
		Run(context.Background(), []string{"health", "resource"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != domain.RunStatusPartial {
		t.Errorf("status = %s, want partial", run.Status)
	}
	if fine.AnalyzeCount() != 1 {
		t.Error("healthy analyzer should still run after an isolated failure")
	}

	// failure surfaces as a critical finding
	if len(run.Findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(run.Findings))
	}
	f := run.Findings[0]
	if f.Severity != domain.SeverityCritical {
		t.Errorf("severity = %s, want critical", f.Severity)
	}
	if !strings.Contains(f.Description, "endpoint exploded") {
		t.Errorf("description should carry the cause: %q", f.Description)
	}

	if len(run.Errors) == 0 || !strings.Contains(run.Errors[0], "health") {
		t.Errorf("errors should name the failed objective: %v", run.Errors)
	}
}

func TestOrchestrator_IsolatesPanic(t *testing.T) {
	gw := testutil.NewFakeGateway(nil)
	panicky := &testutil.StubAnalyzer{
		Name: "health", Calls: 1, Partial: true,
		AnalyzeFunc: func(ctx context.Context, g domain.Gateway) (*domain.AnalyzerResult, error) {
			panic("nil map write")
		},
	}
	fine := &testutil.StubAnalyzer{Name: "resource", Calls: 1, Partial: true}

	run, err := newOrchestrator(gw, registryWith(t, panicky, fine)).
		Run(context.Background(), []string{"health", "resource"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != domain.RunStatusPartial {
		t.Errorf("status = %s, want partial", run.Status)
	}
	if len(run.Findings) != 1 || !strings.Contains(run.Findings[0].Description, "nil map write") {
		t.Errorf("panic should become a critical finding: %v", run.Findings)
	}
}

func TestOrchestrator_ValidationPanicPropagates(t *testing.T) {
	gw := testutil.NewFakeGateway(nil)
	buggy := &testutil.StubAnalyzer{
		Name: "health", Calls: 1, Partial: true,
		AnalyzeFunc: func(ctx context.Context, g domain.Gateway) (*domain.AnalyzerResult, error) {
			result := domain.NewAnalyzerResult("health", nil)
			// critical finding without remediation is a contract violation
			result.AddFinding(domain.Finding{
				ID:          "bad",
				Category:    "health",
				Severity:    domain.SeverityCritical,
				Title:       "bad",
				Description: "bad",
				Confidence:  domain.ConfidenceHigh,
			})
			return result, nil
		},
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("validation panic must propagate")
		}
		if _, ok := r.(*domain.ValidationError); !ok {
			t.Fatalf("expected *ValidationError, got %T", r)
		}
	}()

	_, _ = newOrchestrator(gw, registryWith(t, buggy)).Run(context.Background(), nil)
}

func TestOrchestrator_NonPartialFailureAbortsRun(t *testing.T) {
	gw := testutil.NewFakeGateway(nil)
	strict := &testutil.StubAnalyzer{
		Name: "health", Calls: 1, Partial: false,
		AnalyzeFunc: func(ctx context.Context, g domain.Gateway) (*domain.AnalyzerResult, error) {
			return nil, errors.New("must not continue")
		},
	}
	never := &testutil.StubAnalyzer{Name: "resource", Calls: 1, Partial: true}

	run, err := newOrchestrator(gw, registryWith(t, strict, never)).
		Run(context.Background(), []string{"health", "resource"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != domain.RunStatusFailed {
		t.Errorf("status = %s, want failed", run.Status)
	}
	if never.AnalyzeCount() != 0 {
		t.Error("remaining analyzers must not run after a non-partial failure")
	}
	if len(run.Errors) == 0 {
		t.Error("abort cause should be recorded")
	}
}

func TestOrchestrator_AuthFailureAbortsRun(t *testing.T) {
	gw := testutil.NewFakeGateway(nil)
	rejected := &testutil.StubAnalyzer{
		Name: "health", Calls: 1, Partial: true,
		AnalyzeFunc: func(ctx context.Context, g domain.Gateway) (*domain.AnalyzerResult, error) {
			return nil, domain.NewAuthFailedError("invalid token")
		},
	}
	never := &testutil.StubAnalyzer{Name: "resource", Calls: 1, Partial: true}

	run, err := newOrchestrator(gw, registryWith(t, rejected, never)).
		Run(context.Background(), []string{"health", "resource"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != domain.RunStatusFailed {
		t.Errorf("status = %s, want failed", run.Status)
	}
	if never.AnalyzeCount() != 0 {
		t.Error("bad credentials fail every call; remaining analyzers must not run")
	}
	if len(run.Errors) == 0 || !strings.Contains(run.Errors[0], "health") {
		t.Errorf("errors should name the failed objective: %v", run.Errors)
	}
}

func TestOrchestrator_AllFailed(t *testing.T) {
	gw := testutil.NewFakeGateway(nil)
	a := &testutil.StubAnalyzer{
		Name: "health", Calls: 1, Partial: true,
		AnalyzeFunc: func(ctx context.Context, g domain.Gateway) (*domain.AnalyzerResult, error) {
			return nil, errors.New("down")
		},
	}
	b := &testutil.StubAnalyzer{
		Name: "resource", Calls: 1, Partial: true,
		AnalyzeFunc: func(ctx context.Context, g domain.Gateway) (*domain.AnalyzerResult, error) {
			return nil, errors.New("also down")
		},
	}

	run, err := newOrchestrator(gw, registryWith(t, a, b)).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Status != domain.RunStatusFailed {
		t.Errorf("status = %s, want failed", run.Status)
	}
}

func TestOrchestrator_SortsMergedOutput(t *testing.T) {
	gw := testutil.NewFakeGateway(nil)
	a := &testutil.StubAnalyzer{
		Name: "health", Calls: 1, Partial: true,
		AnalyzeFunc: func(ctx context.Context, g domain.Gateway) (*domain.AnalyzerResult, error) {
			result := domain.NewAnalyzerResult("health", nil)
			result.AddFinding(finding("f-low", domain.SeverityLow))
			result.AddRecommendation(recommendation("r-p2", domain.PriorityP2))
			return result, nil
		},
	}
	b := &testutil.StubAnalyzer{
		Name: "resource", Calls: 1, Partial: true,
		AnalyzeFunc: func(ctx context.Context, g domain.Gateway) (*domain.AnalyzerResult, error) {
			result := domain.NewAnalyzerResult("resource", nil)
			result.AddFinding(finding("f-critical", domain.SeverityCritical))
			result.AddRecommendation(recommendation("r-p0", domain.PriorityP0))
			return result, nil
		},
	}

	run, err := newOrchestrator(gw, registryWith(t, a, b)).
		Run(context.Background(), []string{"health", "resource"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Findings[0].ID != "f-critical" {
		t.Errorf("findings not sorted by severity: %s first", run.Findings[0].ID)
	}
	if run.Recommendations[0].ID != "r-p0" {
		t.Errorf("recommendations not sorted by priority: %s first", run.Recommendations[0].ID)
	}
}

func TestOrchestrator_HealthScore(t *testing.T) {
	gw := testutil.NewFakeGateway(nil)
	a := &testutil.StubAnalyzer{
		Name: "health", Calls: 1, Partial: true,
		AnalyzeFunc: func(ctx context.Context, g domain.Gateway) (*domain.AnalyzerResult, error) {
			result := domain.NewAnalyzerResult("health", nil)
			result.Workers = []domain.WorkerNode{
				{ID: "w1", CPUPercent: 10, MemoryPercent: 10, DiskPercent: 10}, // healthy
				{ID: "w2", CPUPercent: 95, MemoryPercent: 95, DiskPercent: 95}, // critical
			}
			result.AddFinding(finding("f-high", domain.SeverityHigh))
			return result, nil
		},
	}

	run, err := newOrchestrator(gw, registryWith(t, a)).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	hs := run.HealthScore
	if hs == nil {
		t.Fatal("health score missing")
	}
	// 1 of 2 workers healthy, 1 high finding: 50 - 5 = 45
	if hs.Score != 45 {
		t.Errorf("score = %v, want 45", hs.Score)
	}
	if hs.Status != domain.StatusCritical {
		t.Errorf("status = %s, want critical", hs.Status)
	}
	// per-worker components plus the overall rollup
	if len(hs.Components) != 3 {
		t.Errorf("components = %d, want 3", len(hs.Components))
	}
}

func TestOrchestrator_HealthScore_NoWorkers(t *testing.T) {
	gw := testutil.NewFakeGateway(nil)
	a := &testutil.StubAnalyzer{Name: "health", Calls: 1, Partial: true}

	run, err := newOrchestrator(gw, registryWith(t, a)).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.HealthScore.Status != domain.StatusUnknown {
		t.Errorf("status = %s, want unknown with no workers", run.HealthScore.Status)
	}
	if run.HealthScore.Score != 0 {
		t.Errorf("score = %v, want 0", run.HealthScore.Score)
	}
}

func TestOrchestrator_ObjectiveCountsMetadata(t *testing.T) {
	gw := testutil.NewFakeGateway(nil)
	a := &testutil.StubAnalyzer{
		Name: "health", Calls: 1, Partial: true,
		AnalyzeFunc: func(ctx context.Context, g domain.Gateway) (*domain.AnalyzerResult, error) {
			result := domain.NewAnalyzerResult("health", nil)
			result.AddFinding(finding("f1", domain.SeverityLow))
			result.AddFinding(finding("f2", domain.SeverityLow))
			result.AddRecommendation(recommendation("r1", domain.PriorityP3))
			return result, nil
		},
	}

	run, err := newOrchestrator(gw, registryWith(t, a)).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	counts, ok := run.Metadata["objective_counts"].(map[string]map[string]int)
	if !ok {
		t.Fatalf("objective_counts metadata missing: %v", run.Metadata)
	}
	if counts["health"]["findings"] != 2 || counts["health"]["recommendations"] != 1 {
		t.Errorf("counts = %v", counts)
	}

	usage, ok := run.Metadata["api_calls"].(map[string]int)
	if !ok {
		t.Fatalf("api_calls metadata missing")
	}
	if usage["budget"] != usage["used"]+usage["remaining"] {
		t.Errorf("usage accounting inconsistent: %v", usage)
	}
}

func TestOrchestrator_Concurrent(t *testing.T) {
	gw := testutil.NewFakeGateway(map[string]string{"/consume": `{}`})
	stubs := []*testutil.StubAnalyzer{
		{Name: "health", Calls: 1, Partial: true,
			AnalyzeFunc: func(ctx context.Context, g domain.Gateway) (*domain.AnalyzerResult, error) {
				consumeCalls(ctx, g, 1)
				return domain.NewAnalyzerResult("health", nil), nil
			}},
		{Name: "resource", Calls: 1, Partial: true,
			AnalyzeFunc: func(ctx context.Context, g domain.Gateway) (*domain.AnalyzerResult, error) {
				consumeCalls(ctx, g, 1)
				return domain.NewAnalyzerResult("resource", nil), nil
			}},
		{Name: "pipeline", Calls: 1, Partial: true,
			AnalyzeFunc: func(ctx context.Context, g domain.Gateway) (*domain.AnalyzerResult, error) {
				consumeCalls(ctx, g, 1)
				return domain.NewAnalyzerResult("pipeline", nil), nil
			}},
	}

	o := NewOrchestrator(OrchestratorOptions{
		Gateway:      gw,
		Registry:     registryWith(t, stubs...),
		DeploymentID: "test-deployment",
		Concurrency:  2,
	})

	run, err := o.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Status != domain.RunStatusCompleted {
		t.Errorf("status = %s, want completed", run.Status)
	}
	if run.CallsUsed != 3 {
		t.Errorf("api_calls_used = %d, want 3", run.CallsUsed)
	}
	if len(run.ObjectivesAnalyzed) != 3 {
		t.Errorf("objectives_analyzed = %v", run.ObjectivesAnalyzed)
	}
}
