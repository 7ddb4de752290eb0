package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/flowmetrics/pipecheck/domain"
)

// Pipeline latency thresholds in milliseconds per event
const (
	latencyWarningMS  = 1.0
	latencyCriticalMS = 5.0
)

// Patterns that risk catastrophic regex backtracking
const regexMaxLength = 500

var nestedQuantifierPattern = regexp.MustCompile(`\([^)]*[+*][^)]*\)[+*]`)

// PipelineAnalyzer examines pipeline configurations and runtime metrics:
// per-event latency, dropped events, and regex patterns that risk
// pathological backtracking.
type PipelineAnalyzer struct{}

// NewPipelineAnalyzer creates the pipeline analyzer
func NewPipelineAnalyzer() *PipelineAnalyzer {
	return &PipelineAnalyzer{}
}

// Objective returns "pipeline"
func (a *PipelineAnalyzer) Objective() string { return "pipeline" }

// Description returns the listing summary
func (a *PipelineAnalyzer) Description() string {
	return "Pipeline latency, dropped events, and regex complexity analysis"
}

// SupportedProducts returns stream and edge
func (a *PipelineAnalyzer) SupportedProducts() []domain.Product {
	return []domain.Product{domain.ProductStream, domain.ProductEdge}
}

// EstimatedCalls returns 2: pipeline configs and runtime metrics
func (a *PipelineAnalyzer) EstimatedCalls() int { return 2 }

// RequiredPermissions lists the read scopes Analyze needs
func (a *PipelineAnalyzer) RequiredPermissions() []string {
	return []string{"read:pipelines", "read:metrics"}
}

// SupportsPartialResults returns true
func (a *PipelineAnalyzer) SupportsPartialResults() bool { return true }

type pipelinesResponse struct {
	Items []pipelinePayload `json:"items"`
}

type pipelinePayload struct {
	ID   string       `json:"id"`
	Conf pipelineConf `json:"conf"`
}

type pipelineConf struct {
	Functions []functionPayload `json:"functions"`
}

type functionPayload struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Disabled bool         `json:"disabled"`
	Conf     functionConf `json:"conf"`
}

type functionConf struct {
	Regex   string `json:"regex"`
	Pattern string `json:"pattern"`
}

// Analyze fetches pipeline configs and metrics and reports performance
// findings
func (a *PipelineAnalyzer) Analyze(ctx context.Context, gw domain.Gateway) (*domain.AnalyzerResult, error) {
	result := domain.NewAnalyzerResult(a.Objective(), a.SupportedProducts())

	var pipelines pipelinesResponse
	if err := gw.Get(ctx, pipelinesEndpoint, &pipelines); err != nil {
		return nil, fmt.Errorf("failed to fetch pipelines: %w", err)
	}

	var metrics metricsResponse
	if err := gw.Get(ctx, metricsEndpoint+"?timeRange=1h", &metrics); err != nil {
		return nil, fmt.Errorf("failed to fetch metrics: %w", err)
	}

	totalFunctions := 0
	for _, p := range pipelines.Items {
		totalFunctions += len(p.Conf.Functions)
	}
	result.Metadata["total_pipelines"] = len(pipelines.Items)
	result.Metadata["total_functions"] = totalFunctions

	if len(pipelines.Items) == 0 {
		result.AddFinding(domain.Finding{
			ID:                 "pipeline-none-configured",
			Category:           "pipeline",
			Severity:           domain.SeverityInfo,
			Title:              "No Pipelines Configured",
			Description:        "No pipelines were found, so there is no processing path to analyze.",
			AffectedComponents: []string{"Pipelines"},
			Confidence:         domain.ConfidenceHigh,
		})
		return result, nil
	}

	regexIssues := 0
	slowPipelines := 0
	for _, p := range pipelines.Items {
		pm := metrics.Pipelines[p.ID]
		if a.checkLatency(p.ID, pm, result) {
			slowPipelines++
		}
		a.checkDropped(p.ID, pm, result)
		for _, fn := range p.Conf.Functions {
			if fn.Disabled {
				continue
			}
			if a.checkRegexFunction(p.ID, fn, result) {
				regexIssues++
			}
		}
	}
	result.Metadata["slow_pipelines"] = slowPipelines
	result.Metadata["regex_issues"] = regexIssues

	return result, nil
}

// checkLatency reports whether the pipeline is slow and raises a finding
// when it is
func (a *PipelineAnalyzer) checkLatency(pipelineID string, pm pipelineMetrics, result *domain.AnalyzerResult) bool {
	if pm.In.Events <= 0 || pm.ProcessingTimeMS <= 0 {
		return false
	}
	avgLatency := pm.ProcessingTimeMS / pm.In.Events
	if avgLatency < latencyWarningMS {
		return false
	}

	severity := domain.SeverityMedium
	impact := ""
	if avgLatency >= latencyCriticalMS {
		severity = domain.SeverityHigh
		impact = "Events queue behind this pipeline, raising end-to-end delivery latency"
	}

	result.AddFinding(domain.Finding{
		ID:                 "pipeline-slow-" + pipelineID,
		Category:           "pipeline",
		Severity:           severity,
		Title:              fmt.Sprintf("Pipeline %s Processing Slowly", pipelineID),
		Description:        fmt.Sprintf("Pipeline %s averages %.2fms per event over the last hour.", pipelineID, avgLatency),
		AffectedComponents: []string{"Pipelines", pipelineID},
		RemediationSteps: []string{
			"Profile the pipeline to find the slowest functions",
			"Move cheap filter functions ahead of expensive transforms",
			"Replace heavy regex or code functions with simpler equivalents where possible",
		},
		EstimatedImpact: impact,
		Confidence:      domain.ConfidenceHigh,
		Metadata:        map[string]any{"avg_latency_ms": avgLatency, "events_in": pm.In.Events},
	})

	if severity == domain.SeverityHigh {
		result.AddRecommendation(domain.Recommendation{
			ID:          "pipeline-tune-" + pipelineID,
			Type:        "performance",
			Priority:    domain.PriorityP1,
			Title:       fmt.Sprintf("Tune pipeline %s for per-event latency", pipelineID),
			Description: fmt.Sprintf("Pipeline %s spends %.2fms per event, well past the %.0fms threshold.", pipelineID, avgLatency, latencyCriticalMS),
			Rationale:   "Per-event cost compounds at high volume; tuning the slowest pipeline recovers fleet capacity.",
			ImplementationSteps: []string{
				"Capture sample events and measure per-function timing",
				"Reorder or replace the dominant cost functions",
				"Re-measure average latency after each change",
			},
			ImpactEstimate: domain.ImpactEstimate{
				PerformanceImprovement: fmt.Sprintf("Reduce per-event latency below %.0fms", latencyWarningMS),
				TimeToImplement:        "0.5-1 day",
			},
			Effort:          "medium",
			RelatedFindings: []string{"pipeline-slow-" + pipelineID},
		})
	}

	return true
}

func (a *PipelineAnalyzer) checkDropped(pipelineID string, pm pipelineMetrics, result *domain.AnalyzerResult) {
	if pm.Dropped.Events <= 0 {
		return
	}

	result.AddFinding(domain.Finding{
		ID:                 "pipeline-dropped-" + pipelineID,
		Category:           "pipeline",
		Severity:           domain.SeverityMedium,
		Title:              fmt.Sprintf("Pipeline %s Dropping Events", pipelineID),
		Description:        fmt.Sprintf("Pipeline %s dropped %.0f events in the last hour.", pipelineID, pm.Dropped.Events),
		AffectedComponents: []string{"Pipelines", pipelineID},
		RemediationSteps: []string{
			"Confirm whether drops are intentional filtering or backpressure losses",
			"Check destination health and persistent queue configuration",
		},
		Confidence: domain.ConfidenceMedium,
		Metadata:   map[string]any{"dropped_events": pm.Dropped.Events},
	})
}

// checkRegexFunction inspects a regex function's pattern for complexity
// hazards and reports whether any were found
func (a *PipelineAnalyzer) checkRegexFunction(pipelineID string, fn functionPayload, result *domain.AnalyzerResult) bool {
	if fn.Type != "regex_extract" && fn.Type != "regex_filter" {
		return false
	}
	pattern := fn.Conf.Regex
	if pattern == "" {
		pattern = fn.Conf.Pattern
	}
	if pattern == "" {
		return false
	}

	var issues []string
	if len(pattern) > regexMaxLength {
		issues = append(issues, fmt.Sprintf("very long pattern (%d chars)", len(pattern)))
	}
	if nestedQuantifierPattern.MatchString(pattern) {
		issues = append(issues, "nested quantifiers (backtracking risk)")
	}
	if (strings.Contains(pattern, ".*") || strings.Contains(pattern, ".+")) &&
		!strings.HasPrefix(pattern, "^") && !strings.HasSuffix(pattern, "$") {
		issues = append(issues, "unbounded wildcard without anchors")
	}
	if len(issues) == 0 {
		return false
	}

	findingID := fmt.Sprintf("pipeline-regex-%s-%s", pipelineID, fn.ID)
	result.AddFinding(domain.Finding{
		ID:                 findingID,
		Category:           "pipeline",
		Severity:           domain.SeverityMedium,
		Title:              fmt.Sprintf("Complex Regex in %s:%s", pipelineID, fn.ID),
		Description:        fmt.Sprintf("Regex function %s in pipeline %s has potential performance issues: %s.", fn.ID, pipelineID, strings.Join(issues, ", ")),
		AffectedComponents: []string{"Pipelines", pipelineID, fn.ID},
		RemediationSteps: []string{
			"Add anchors to constrain where the pattern can match",
			"Replace nested quantifiers with explicit character classes",
			"Test the pattern against representative data and measure timing",
		},
		Confidence: domain.ConfidenceMedium,
		Metadata:   map[string]any{"pattern_length": len(pattern), "issues": issues},
	})

	result.AddRecommendation(domain.Recommendation{
		ID:          "pipeline-regex-rewrite-" + pipelineID + "-" + fn.ID,
		Type:        "optimization",
		Priority:    domain.PriorityP2,
		Title:       fmt.Sprintf("Simplify regex in %s:%s", pipelineID, fn.ID),
		Description: "Rewrite the flagged pattern to remove backtracking hazards.",
		Rationale:   "Pathological regex patterns can stall a worker on a single hostile event.",
		ImplementationSteps: []string{
			"Rewrite the pattern with anchors and bounded quantifiers",
			"Validate extraction results against sample events before deploying",
		},
		BeforeState:     "Unbounded pattern evaluated against every event",
		AfterState:      "Anchored, bounded pattern with predictable cost",
		Effort:          "low",
		RelatedFindings: []string{findingID},
	})

	return true
}
