package analyzer

import (
	"context"
	"fmt"

	"github.com/flowmetrics/pipecheck/domain"
	"github.com/flowmetrics/pipecheck/internal/scoring"
)

// Fleet-level thresholds. Per-worker thresholds live in the scoring
// package; these apply to averages across the fleet.
const (
	cpuImbalanceSpread = 40.0
)

// ResourceAnalyzer examines fleet-wide resource utilization: sustained
// CPU and memory pressure, disk capacity, and load imbalance between
// workers.
type ResourceAnalyzer struct{}

// NewResourceAnalyzer creates the resource analyzer
func NewResourceAnalyzer() *ResourceAnalyzer {
	return &ResourceAnalyzer{}
}

// Objective returns "resource"
func (a *ResourceAnalyzer) Objective() string { return "resource" }

// Description returns the listing summary
func (a *ResourceAnalyzer) Description() string {
	return "Fleet resource utilization, capacity planning, and load balance analysis"
}

// SupportedProducts returns stream and edge; resource analysis needs
// worker-process metrics that other products do not expose
func (a *ResourceAnalyzer) SupportedProducts() []domain.Product {
	return []domain.Product{domain.ProductStream, domain.ProductEdge}
}

// EstimatedCalls returns 2: workers and throughput metrics
func (a *ResourceAnalyzer) EstimatedCalls() int { return 2 }

// RequiredPermissions lists the read scopes Analyze needs
func (a *ResourceAnalyzer) RequiredPermissions() []string {
	return []string{"read:workers", "read:metrics"}
}

// SupportsPartialResults returns true
func (a *ResourceAnalyzer) SupportsPartialResults() bool { return true }

// Analyze fetches worker metrics and reports utilization findings
func (a *ResourceAnalyzer) Analyze(ctx context.Context, gw domain.Gateway) (*domain.AnalyzerResult, error) {
	result := domain.NewAnalyzerResult(a.Objective(), a.SupportedProducts())

	workers, err := fetchWorkers(ctx, gw)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workers: %w", err)
	}

	var metrics metricsResponse
	if err := gw.Get(ctx, metricsEndpoint+"?timeRange=1h", &metrics); err == nil {
		result.Metadata["events_in"] = metrics.Events.In
		result.Metadata["events_out"] = metrics.Events.Out
	}

	result.Metadata["worker_count"] = len(workers)

	if len(workers) == 0 {
		result.AddFinding(domain.Finding{
			ID:                 "resource-no-workers",
			Category:           "resource",
			Severity:           domain.SeverityInfo,
			Title:              "No Workers Detected",
			Description:        "The deployment reported no worker nodes, so there is no resource usage to analyze.",
			AffectedComponents: []string{"Workers"},
			Confidence:         domain.ConfidenceHigh,
		})
		return result, nil
	}

	var cpuTotal, memTotal float64
	minCPU, maxCPU := workers[0].CPUPercent, workers[0].CPUPercent
	var worstDisk domain.WorkerNode
	for _, w := range workers {
		cpuTotal += w.CPUPercent
		memTotal += w.MemoryPercent
		if w.CPUPercent < minCPU {
			minCPU = w.CPUPercent
		}
		if w.CPUPercent > maxCPU {
			maxCPU = w.CPUPercent
		}
		if w.DiskPercent > worstDisk.DiskPercent {
			worstDisk = w
		}
	}
	avgCPU := cpuTotal / float64(len(workers))
	avgMem := memTotal / float64(len(workers))
	spread := maxCPU - minCPU

	result.Metadata["avg_cpu"] = avgCPU
	result.Metadata["avg_memory"] = avgMem
	result.Metadata["max_disk"] = worstDisk.DiskPercent
	result.Metadata["cpu_spread"] = spread

	a.checkFleetCPU(avgCPU, len(workers), result)
	a.checkFleetMemory(avgMem, result)
	a.checkDisk(worstDisk, result)
	if len(workers) > 1 && spread > cpuImbalanceSpread {
		a.reportImbalance(minCPU, maxCPU, result)
	}

	return result, nil
}

func (a *ResourceAnalyzer) checkFleetCPU(avgCPU float64, workerCount int, result *domain.AnalyzerResult) {
	if avgCPU < scoring.CPUWarningThreshold {
		return
	}

	severity := domain.SeverityHigh
	if avgCPU >= scoring.CPUCriticalThreshold {
		severity = domain.SeverityCritical
	}

	result.AddFinding(domain.Finding{
		ID:                 "resource-fleet-cpu",
		Category:           "resource",
		Severity:           severity,
		Title:              "Fleet CPU Utilization High",
		Description:        fmt.Sprintf("Average CPU across %d workers is %.1f%%. The fleet has little headroom for traffic spikes.", workerCount, avgCPU),
		AffectedComponents: []string{"Workers"},
		RemediationSteps: []string{
			"Add worker processes or nodes to the busiest worker groups",
			"Profile pipelines for expensive functions and reduce per-event cost",
			"Verify load balancing is spreading traffic across all workers",
		},
		EstimatedImpact: "Sustained high CPU causes processing latency and backpressure under load",
		Confidence:      domain.ConfidenceHigh,
		Metadata:        map[string]any{"avg_cpu": avgCPU},
	})

	priority := domain.PriorityP2
	if severity == domain.SeverityCritical {
		priority = domain.PriorityP1
	}
	result.AddRecommendation(domain.Recommendation{
		ID:          "resource-scale-out",
		Type:        "scaling",
		Priority:    priority,
		Title:       "Scale out the worker fleet",
		Description: fmt.Sprintf("Fleet-average CPU of %.1f%% leaves no headroom; add capacity before peak traffic.", avgCPU),
		Rationale:   "Scaling before saturation avoids emergency capacity changes during an incident.",
		ImplementationSteps: []string{
			"Estimate target capacity from current events-per-second and peak history",
			"Add workers to the busiest group and confirm traffic rebalances",
			"Re-check fleet CPU after 24 hours under normal load",
		},
		ImpactEstimate: domain.ImpactEstimate{
			PerformanceImprovement: "Restores CPU headroom for traffic spikes",
			TimeToImplement:        "2-4 hours",
		},
		Effort:          "medium",
		RelatedFindings: []string{"resource-fleet-cpu"},
	})
}

func (a *ResourceAnalyzer) checkFleetMemory(avgMem float64, result *domain.AnalyzerResult) {
	if avgMem < scoring.MemoryWarningThreshold {
		return
	}

	severity := domain.SeverityHigh
	if avgMem >= scoring.MemoryCriticalThreshold {
		severity = domain.SeverityCritical
	}

	result.AddFinding(domain.Finding{
		ID:                 "resource-fleet-memory",
		Category:           "resource",
		Severity:           severity,
		Title:              "Fleet Memory Utilization High",
		Description:        fmt.Sprintf("Average memory usage across the fleet is %.1f%%.", avgMem),
		AffectedComponents: []string{"Workers"},
		RemediationSteps: []string{
			"Identify memory-heavy pipeline functions such as large lookups and aggregations",
			"Increase worker memory limits or node sizes",
		},
		EstimatedImpact: "Memory exhaustion restarts worker processes and drops in-flight events",
		Confidence:      domain.ConfidenceHigh,
		Metadata:        map[string]any{"avg_memory": avgMem},
	})
}

func (a *ResourceAnalyzer) checkDisk(worst domain.WorkerNode, result *domain.AnalyzerResult) {
	if worst.DiskPercent < scoring.DiskWarningThreshold {
		return
	}

	severity := domain.SeverityMedium
	impact := ""
	if worst.DiskPercent >= scoring.DiskCriticalThreshold {
		severity = domain.SeverityHigh
		impact = "A full disk stops persistent queues and can lose buffered events"
	}

	result.AddFinding(domain.Finding{
		ID:                 "resource-disk-" + worst.ID,
		Category:           "resource",
		Severity:           severity,
		Title:              fmt.Sprintf("Disk Usage High on Worker %s", worst.ID),
		Description:        fmt.Sprintf("Worker %s reports %.1f%% disk usage, the highest in the fleet.", worst.ID, worst.DiskPercent),
		AffectedComponents: []string{"Workers", worst.ID},
		RemediationSteps: []string{
			"Review persistent queue limits and on-disk retention",
			"Expand disk capacity on the affected worker",
		},
		EstimatedImpact: impact,
		Confidence:      domain.ConfidenceHigh,
		Metadata:        map[string]any{"disk_usage": worst.DiskPercent},
	})
}

func (a *ResourceAnalyzer) reportImbalance(minCPU, maxCPU float64, result *domain.AnalyzerResult) {
	result.AddFinding(domain.Finding{
		ID:                 "resource-cpu-imbalance",
		Category:           "resource",
		Severity:           domain.SeverityMedium,
		Title:              "CPU Load Imbalance Across Workers",
		Description:        fmt.Sprintf("Worker CPU usage ranges from %.1f%% to %.1f%%. Load is not spreading evenly across the fleet.", minCPU, maxCPU),
		AffectedComponents: []string{"Workers"},
		RemediationSteps: []string{
			"Check source distribution and sticky connections pinning traffic to specific workers",
			"Review worker group membership and load balancer configuration",
		},
		Confidence: domain.ConfidenceMedium,
		Metadata:   map[string]any{"min_cpu": minCPU, "max_cpu": maxCPU},
	})
}
