package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowmetrics/pipecheck/domain"
	"github.com/flowmetrics/pipecheck/internal/scoring"
)

// HealthAnalyzer assesses overall deployment health: per-worker resource
// pressure, control-plane status, and a deployment-level score.
type HealthAnalyzer struct{}

// NewHealthAnalyzer creates the health analyzer
func NewHealthAnalyzer() *HealthAnalyzer {
	return &HealthAnalyzer{}
}

// Objective returns "health"
func (a *HealthAnalyzer) Objective() string { return "health" }

// Description returns the listing summary
func (a *HealthAnalyzer) Description() string {
	return "Overall health assessment, worker monitoring, and critical issue identification"
}

// SupportedProducts returns all products
func (a *HealthAnalyzer) SupportedProducts() []domain.Product {
	return domain.AllProducts()
}

// EstimatedCalls returns 3: workers, system status, throughput metrics
func (a *HealthAnalyzer) EstimatedCalls() int { return 3 }

// RequiredPermissions lists the read scopes Analyze needs
func (a *HealthAnalyzer) RequiredPermissions() []string {
	return []string{"read:workers", "read:system", "read:metrics"}
}

// SupportsPartialResults returns true
func (a *HealthAnalyzer) SupportsPartialResults() bool { return true }

type systemStatusResponse struct {
	Status   string   `json:"status"`
	Version  string   `json:"version"`
	Messages []string `json:"messages"`
}

// Analyze fetches worker and system state and scores the deployment
func (a *HealthAnalyzer) Analyze(ctx context.Context, gw domain.Gateway) (*domain.AnalyzerResult, error) {
	result := domain.NewAnalyzerResult(a.Objective(), a.SupportedProducts())

	workers, err := fetchWorkers(ctx, gw)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workers: %w", err)
	}
	result.Workers = workers

	var status systemStatusResponse
	if err := gw.Get(ctx, systemStatusEndpoint, &status); err != nil {
		return nil, fmt.Errorf("failed to fetch system status: %w", err)
	}

	// Throughput is context for the report, not a health signal; a
	// missing metrics endpoint should not fail the whole objective.
	var metrics metricsResponse
	if err := gw.Get(ctx, metricsEndpoint+"?timeRange=15m", &metrics); err == nil {
		result.Metadata["events_in"] = metrics.Events.In
		result.Metadata["events_out"] = metrics.Events.Out
	}

	a.checkSystemStatus(status, result)

	healthy := 0
	for i := range workers {
		if a.checkWorker(workers[i], result) {
			healthy++
		}
	}

	if len(workers) == 0 {
		result.AddFinding(domain.Finding{
			ID:                 "health-no-workers",
			Category:           "health",
			Severity:           domain.SeverityInfo,
			Title:              "No Workers Detected",
			Description:        "The deployment reported no worker nodes. Health scoring is not possible without workers.",
			AffectedComponents: []string{"Workers"},
			Confidence:         domain.ConfidenceHigh,
		})
	}

	deployment := scoring.ScoreDeployment(
		healthy,
		len(workers),
		result.CountBySeverity(domain.SeverityCritical),
		result.CountBySeverity(domain.SeverityHigh),
	)
	a.addSummaryFinding(deployment, result)

	result.Metadata["worker_count"] = len(workers)
	result.Metadata["unhealthy_workers"] = len(workers) - healthy
	result.Metadata["health_score"] = deployment.Score
	result.Metadata["health_status"] = string(deployment.Status)
	if status.Version != "" {
		result.Metadata["product_version"] = status.Version
	}

	return result, nil
}

// checkSystemStatus raises a finding when the control plane reports an
// unhealthy state
func (a *HealthAnalyzer) checkSystemStatus(status systemStatusResponse, result *domain.AnalyzerResult) {
	switch status.Status {
	case "", "healthy", "ok":
		return
	}

	description := fmt.Sprintf("The control plane reports status %q.", status.Status)
	if len(status.Messages) > 0 {
		description += " Messages: " + strings.Join(status.Messages, "; ")
	}

	result.AddFinding(domain.Finding{
		ID:                 "health-system-status",
		Category:           "health",
		Severity:           domain.SeverityHigh,
		Title:              "Control Plane Reports Degraded Status",
		Description:        description,
		AffectedComponents: []string{"Control Plane"},
		RemediationSteps: []string{
			"Review control plane logs for recent errors",
			"Check leader node resource usage and connectivity",
			"Verify all worker groups are communicating with the leader",
		},
		EstimatedImpact: "Configuration changes and worker coordination may be delayed or failing",
		Confidence:      domain.ConfidenceHigh,
		Metadata:        map[string]any{"status": status.Status},
	})
}

// checkWorker scores one worker and raises findings and recommendations
// for resource pressure. It reports whether the worker is healthy.
func (a *HealthAnalyzer) checkWorker(w domain.WorkerNode, result *domain.AnalyzerResult) bool {
	component := scoring.ScoreWorker(w.ID, w.CPUPercent, w.MemoryPercent, w.DiskPercent)
	if len(component.Issues) == 0 {
		return true
	}

	criticalIssues := 0
	if w.CPUPercent >= scoring.CPUCriticalThreshold {
		criticalIssues++
	}
	if w.MemoryPercent >= scoring.MemoryCriticalThreshold {
		criticalIssues++
	}
	if w.DiskPercent >= scoring.DiskCriticalThreshold {
		criticalIssues++
	}

	severity := domain.SeverityMedium
	switch {
	case criticalIssues >= 2:
		severity = domain.SeverityCritical
	case criticalIssues == 1:
		severity = domain.SeverityHigh
	}

	finding := domain.Finding{
		ID:                 "health-worker-" + w.ID,
		Category:           "health",
		Severity:           severity,
		Title:              fmt.Sprintf("Worker %s Under Resource Pressure", w.ID),
		Description:        fmt.Sprintf("Worker %s reports: %s.", w.ID, strings.Join(component.Issues, ", ")),
		AffectedComponents: []string{"Workers", w.ID},
		RemediationSteps:   remediationForWorker(w),
		Confidence:         domain.ConfidenceHigh,
		Metadata: map[string]any{
			"cpu_usage":    w.CPUPercent,
			"memory_usage": w.MemoryPercent,
			"disk_usage":   w.DiskPercent,
			"score":        component.Score,
		},
	}
	if severity == domain.SeverityCritical || severity == domain.SeverityHigh {
		finding.EstimatedImpact = "Risk of event processing delays, backpressure, or data loss on this worker"
	}
	result.AddFinding(finding)

	if criticalIssues > 0 {
		priority := domain.PriorityP2
		if severity == domain.SeverityCritical {
			priority = domain.PriorityP1
		}
		result.AddRecommendation(domain.Recommendation{
			ID:                  "health-relieve-" + w.ID,
			Type:                "scaling",
			Priority:            priority,
			Title:               fmt.Sprintf("Relieve resource pressure on worker %s", w.ID),
			Description:         fmt.Sprintf("Worker %s is past critical resource thresholds and needs more headroom.", w.ID),
			Rationale:           "Workers above critical thresholds drop or delay events under load spikes.",
			ImplementationSteps: remediationForWorker(w),
			ImpactEstimate: domain.ImpactEstimate{
				PerformanceImprovement: fmt.Sprintf("Restores processing headroom on %s", w.ID),
				TimeToImplement:        "1-2 hours",
			},
			Effort:          "medium",
			RelatedFindings: []string{finding.ID},
		})
	}

	return component.IsHealthy()
}

func remediationForWorker(w domain.WorkerNode) []string {
	var steps []string
	if w.CPUPercent >= scoring.CPUWarningThreshold {
		steps = append(steps,
			"Review pipeline efficiency and reduce per-event processing cost",
			"Scale out the worker group or move load to less busy workers")
	}
	if w.MemoryPercent >= scoring.MemoryWarningThreshold {
		steps = append(steps,
			"Check for memory-heavy functions such as large lookups or aggregations",
			"Increase worker memory allocation")
	}
	if w.DiskPercent >= scoring.DiskWarningThreshold {
		steps = append(steps,
			"Review persistent queue sizes and retention settings",
			"Expand disk capacity or clean up stale spool data")
	}
	if len(steps) == 0 {
		steps = append(steps, "Review worker resource usage trends")
	}
	return steps
}

// addSummaryFinding records the deployment-level assessment as a finding
// so the merged report always leads with an overall verdict
func (a *HealthAnalyzer) addSummaryFinding(deployment domain.ComponentHealth, result *domain.AnalyzerResult) {
	var severity domain.Severity
	switch deployment.Status {
	case domain.StatusCritical:
		severity = domain.SeverityCritical
	case domain.StatusUnhealthy:
		severity = domain.SeverityHigh
	case domain.StatusDegraded:
		severity = domain.SeverityMedium
	default:
		severity = domain.SeverityInfo
	}

	description := fmt.Sprintf("Deployment health score is %.1f (%s).", deployment.Score, deployment.Status)
	if len(deployment.Issues) > 0 {
		description += " Issues: " + strings.Join(deployment.Issues, ", ") + "."
	}

	finding := domain.Finding{
		ID:                 "health-overall",
		Category:           "health",
		Severity:           severity,
		Title:              fmt.Sprintf("Deployment Health: %s", deployment.Status),
		Description:        description,
		AffectedComponents: []string{"Deployment"},
		Confidence:         domain.ConfidenceHigh,
		Metadata:           map[string]any{"score": deployment.Score},
	}
	if severity != domain.SeverityInfo {
		finding.RemediationSteps = []string{
			"Address the worker findings in this report, highest severity first",
			"Re-run the health analysis after remediation to confirm recovery",
		}
		finding.EstimatedImpact = "Degraded processing capacity across the deployment"
	}
	result.AddFinding(finding)
}
