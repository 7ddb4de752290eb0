// Package scoring converts raw deployment metrics into deterministic
// 0-100 health scores. All functions are pure: identical inputs always
// produce identical scores.
package scoring

import (
	"fmt"
	"math"

	"github.com/flowmetrics/pipecheck/domain"
)

// Status thresholds
const (
	HealthyThreshold   = 90.0
	DegradedThreshold  = 70.0
	UnhealthyThreshold = 50.0
)

// Resource usage thresholds
const (
	CPUWarningThreshold     = 80.0
	CPUCriticalThreshold    = 90.0
	MemoryWarningThreshold  = 80.0
	MemoryCriticalThreshold = 90.0
	DiskWarningThreshold    = 80.0
	DiskCriticalThreshold   = 90.0
)

// Deduction weights
const (
	cpuCriticalPenalty    = 40.0
	cpuWarningPenalty     = 15.0
	memoryCriticalPenalty = 40.0
	memoryWarningPenalty  = 15.0
	diskCriticalPenalty   = 30.0
	diskWarningPenalty    = 10.0

	criticalComponentPenalty = 20.0
	criticalFindingPenalty   = 15.0
	highFindingPenalty       = 5.0
)

// StatusFor converts a numeric score to its status label
func StatusFor(score float64) domain.HealthStatus {
	switch {
	case score >= HealthyThreshold:
		return domain.StatusHealthy
	case score >= DegradedThreshold:
		return domain.StatusDegraded
	case score >= UnhealthyThreshold:
		return domain.StatusUnhealthy
	default:
		return domain.StatusCritical
	}
}

// ScoreWorker scores a single worker node from its resource usage
// percentages. The score starts at 100 and loses points per threshold
// breach; it never drops below 0.
func ScoreWorker(name string, cpu, memory, disk float64) domain.ComponentHealth {
	score := 100.0
	var issues []string

	switch {
	case cpu >= CPUCriticalThreshold:
		score -= cpuCriticalPenalty
		issues = append(issues, fmt.Sprintf("CPU critical: %.1f%%", cpu))
	case cpu >= CPUWarningThreshold:
		score -= cpuWarningPenalty
		issues = append(issues, fmt.Sprintf("CPU high: %.1f%%", cpu))
	}

	switch {
	case memory >= MemoryCriticalThreshold:
		score -= memoryCriticalPenalty
		issues = append(issues, fmt.Sprintf("Memory critical: %.1f%%", memory))
	case memory >= MemoryWarningThreshold:
		score -= memoryWarningPenalty
		issues = append(issues, fmt.Sprintf("Memory high: %.1f%%", memory))
	}

	switch {
	case disk >= DiskCriticalThreshold:
		score -= diskCriticalPenalty
		issues = append(issues, fmt.Sprintf("Disk critical: %.1f%%", disk))
	case disk >= DiskWarningThreshold:
		score -= diskWarningPenalty
		issues = append(issues, fmt.Sprintf("Disk high: %.1f%%", disk))
	}

	score = math.Max(0, score)

	return domain.ComponentHealth{
		Name:   name,
		Score:  score,
		Status: StatusFor(score),
		Issues: issues,
		Metrics: map[string]float64{
			"cpu_usage":    cpu,
			"memory_usage": memory,
			"disk_usage":   disk,
		},
	}
}

// ScoreOverall combines component scores into one assessment: the
// average component score minus a penalty proportional to the share of
// critical components. An empty input yields score 0 with unknown
// status.
func ScoreOverall(components []domain.ComponentHealth) domain.ComponentHealth {
	if len(components) == 0 {
		return domain.ComponentHealth{
			Name:   "overall",
			Score:  0,
			Status: domain.StatusUnknown,
			Issues: []string{"No components to assess"},
		}
	}

	var total float64
	criticalCount := 0
	var issues []string
	for _, c := range components {
		total += c.Score
		if c.IsCritical() {
			criticalCount++
		}
		for _, issue := range c.Issues {
			issues = append(issues, fmt.Sprintf("%s: %s", c.Name, issue))
		}
	}

	avg := total / float64(len(components))
	penalty := float64(criticalCount) / float64(len(components)) * criticalComponentPenalty
	score := math.Max(0, avg-penalty)

	return domain.ComponentHealth{
		Name:   "overall",
		Score:  round2(score),
		Status: StatusFor(score),
		Issues: issues,
		Metrics: map[string]float64{
			"total_components":    float64(len(components)),
			"critical_components": float64(criticalCount),
			"avg_component_score": round2(avg),
		},
	}
}

// ScoreDeployment scores the whole deployment from the healthy-worker
// ratio minus per-finding penalties. Zero workers means the deployment
// state is unknown.
func ScoreDeployment(healthyWorkers, totalWorkers, criticalFindings, highFindings int) domain.ComponentHealth {
	if totalWorkers == 0 {
		return domain.ComponentHealth{
			Name:   "deployment",
			Score:  0,
			Status: domain.StatusUnknown,
			Issues: []string{"No workers detected"},
		}
	}

	base := float64(healthyWorkers) / float64(totalWorkers) * 100
	score := base - float64(criticalFindings)*criticalFindingPenalty - float64(highFindings)*highFindingPenalty
	score = math.Max(0, score)

	var issues []string
	unhealthy := totalWorkers - healthyWorkers
	if unhealthy > 0 {
		issues = append(issues, fmt.Sprintf("%d/%d workers unhealthy", unhealthy, totalWorkers))
	}
	if criticalFindings > 0 {
		issues = append(issues, fmt.Sprintf("%d critical findings", criticalFindings))
	}
	if highFindings > 0 {
		issues = append(issues, fmt.Sprintf("%d high severity findings", highFindings))
	}

	return domain.ComponentHealth{
		Name:   "deployment",
		Score:  round2(score),
		Status: StatusFor(score),
		Issues: issues,
		Metrics: map[string]float64{
			"total_workers":     float64(totalWorkers),
			"healthy_workers":   float64(healthyWorkers),
			"unhealthy_workers": float64(unhealthy),
			"critical_findings": float64(criticalFindings),
			"high_findings":     float64(highFindings),
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
