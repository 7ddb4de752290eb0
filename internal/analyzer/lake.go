package analyzer

import (
	"context"
	"fmt"

	"github.com/flowmetrics/pipecheck/domain"
)

// Dataset retention thresholds in days
const (
	retentionVeryShortDays      = 7
	retentionShortDays          = 14
	retentionRecommendedMinDays = 30
)

// Rough storage saving from columnar conversion, used for the impact
// estimate on format recommendations
const parquetReductionRatio = 0.6

// LakeAnalyzer examines lake datasets and lakehouses: retention windows
// too short for incident investigation, storage formats that inflate
// cost, and lakehouses in a bad state.
type LakeAnalyzer struct{}

// NewLakeAnalyzer creates the lake analyzer
func NewLakeAnalyzer() *LakeAnalyzer {
	return &LakeAnalyzer{}
}

// Objective returns "lake"
func (a *LakeAnalyzer) Objective() string { return "lake" }

// Description returns the listing summary
func (a *LakeAnalyzer) Description() string {
	return "Lake dataset retention, storage format, and lakehouse state analysis"
}

// SupportedProducts returns lake only
func (a *LakeAnalyzer) SupportedProducts() []domain.Product {
	return []domain.Product{domain.ProductLake}
}

// EstimatedCalls returns 2: datasets and lakehouses
func (a *LakeAnalyzer) EstimatedCalls() int { return 2 }

// RequiredPermissions lists the read scopes Analyze needs
func (a *LakeAnalyzer) RequiredPermissions() []string {
	return []string{"read:lake:datasets", "read:lake:lakehouses"}
}

// SupportsPartialResults returns true
func (a *LakeAnalyzer) SupportsPartialResults() bool { return true }

type datasetsResponse struct {
	Items []datasetPayload `json:"items"`
}

type datasetPayload struct {
	ID            string  `json:"id"`
	RetentionDays int     `json:"retention_days"`
	Format        string  `json:"format"`
	SizeGB        float64 `json:"size_gb"`
}

type lakehousesResponse struct {
	Items []lakehousePayload `json:"items"`
}

type lakehousePayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Analyze fetches lake inventory and reports retention and format findings
func (a *LakeAnalyzer) Analyze(ctx context.Context, gw domain.Gateway) (*domain.AnalyzerResult, error) {
	result := domain.NewAnalyzerResult(a.Objective(), a.SupportedProducts())

	var datasets datasetsResponse
	if err := gw.Get(ctx, datasetsEndpoint, &datasets); err != nil {
		return nil, fmt.Errorf("failed to fetch datasets: %w", err)
	}

	var lakehouses lakehousesResponse
	if err := gw.Get(ctx, lakehousesEndpoint, &lakehouses); err != nil {
		return nil, fmt.Errorf("failed to fetch lakehouses: %w", err)
	}

	result.Metadata["dataset_count"] = len(datasets.Items)
	result.Metadata["lakehouse_count"] = len(lakehouses.Items)

	if len(datasets.Items) == 0 {
		result.AddFinding(domain.Finding{
			ID:                 "lake-no-datasets",
			Category:           "lake",
			Severity:           domain.SeverityInfo,
			Title:              "No Lake Datasets Configured",
			Description:        "The lake has no datasets, so there is no retention or storage configuration to analyze.",
			AffectedComponents: []string{"Lake"},
			Confidence:         domain.ConfidenceHigh,
		})
	}

	shortRetention := 0
	jsonDatasets := 0
	for _, ds := range datasets.Items {
		if a.checkRetention(ds, result) {
			shortRetention++
		}
		if a.checkFormat(ds, result) {
			jsonDatasets++
		}
	}
	result.Metadata["short_retention_datasets"] = shortRetention
	result.Metadata["json_datasets"] = jsonDatasets

	for _, lh := range lakehouses.Items {
		a.checkLakehouse(lh, result)
	}

	return result, nil
}

// checkRetention reports whether the dataset retention is below the
// recommended minimum and raises a finding when it is
func (a *LakeAnalyzer) checkRetention(ds datasetPayload, result *domain.AnalyzerResult) bool {
	if ds.RetentionDays <= 0 || ds.RetentionDays >= retentionRecommendedMinDays {
		return false
	}

	severity := domain.SeverityLow
	switch {
	case ds.RetentionDays < retentionVeryShortDays:
		severity = domain.SeverityHigh
	case ds.RetentionDays < retentionShortDays:
		severity = domain.SeverityMedium
	}

	findingID := "lake-retention-" + ds.ID
	finding := domain.Finding{
		ID:                 findingID,
		Category:           "lake",
		Severity:           severity,
		Title:              fmt.Sprintf("Short Retention on Dataset %s", ds.ID),
		Description:        fmt.Sprintf("Dataset %s retains data for %d days, below the recommended minimum of %d days for incident investigation.", ds.ID, ds.RetentionDays, retentionRecommendedMinDays),
		AffectedComponents: []string{"Lake", ds.ID},
		Confidence:         domain.ConfidenceHigh,
		Metadata:           map[string]any{"retention_days": ds.RetentionDays},
	}
	if severity != domain.SeverityLow {
		finding.RemediationSteps = []string{
			fmt.Sprintf("Raise retention on %s to at least %d days", ds.ID, retentionRecommendedMinDays),
			"Review compliance requirements that may mandate longer windows",
		}
	}
	if severity == domain.SeverityHigh {
		finding.EstimatedImpact = "Data needed for incident investigation or replay expires before it can be used"
	}
	result.AddFinding(finding)

	if severity == domain.SeverityHigh {
		result.AddRecommendation(domain.Recommendation{
			ID:          "lake-extend-retention-" + ds.ID,
			Type:        "configuration",
			Priority:    domain.PriorityP1,
			Title:       fmt.Sprintf("Extend retention on dataset %s", ds.ID),
			Description: fmt.Sprintf("Raise retention from %d to %d days so investigations have a usable replay window.", ds.RetentionDays, retentionRecommendedMinDays),
			Rationale:   "Very short retention silently discards the data most incident response depends on.",
			ImplementationSteps: []string{
				"Estimate the storage cost of the longer window from current daily volume",
				fmt.Sprintf("Set retention_days to %d on the dataset", retentionRecommendedMinDays),
				"Confirm ingestion continues and storage growth matches the estimate",
			},
			ImpactEstimate: domain.ImpactEstimate{
				PerformanceImprovement: fmt.Sprintf("Extends the replay window from %d to %d days", ds.RetentionDays, retentionRecommendedMinDays),
				TimeToImplement:        "1 hour",
			},
			Effort:          "low",
			RelatedFindings: []string{findingID},
		})
	}

	return true
}

// checkFormat reports whether the dataset is stored as raw JSON and
// recommends columnar conversion when it is
func (a *LakeAnalyzer) checkFormat(ds datasetPayload, result *domain.AnalyzerResult) bool {
	if ds.Format != "json" {
		return false
	}

	findingID := "lake-format-" + ds.ID
	result.AddFinding(domain.Finding{
		ID:                 findingID,
		Category:           "lake",
		Severity:           domain.SeverityMedium,
		Title:              fmt.Sprintf("Dataset %s Stored as Raw JSON", ds.ID),
		Description:        fmt.Sprintf("Dataset %s (%.0f GB) is stored as raw JSON. Columnar formats compress better and scan faster.", ds.ID, ds.SizeGB),
		AffectedComponents: []string{"Lake", ds.ID},
		RemediationSteps: []string{
			"Convert the dataset to Parquet",
			"Verify downstream queries against the converted data",
		},
		Confidence: domain.ConfidenceHigh,
		Metadata:   map[string]any{"format": ds.Format, "size_gb": ds.SizeGB},
	})

	reduction := ds.SizeGB * parquetReductionRatio
	result.AddRecommendation(domain.Recommendation{
		ID:          "lake-convert-" + ds.ID,
		Type:        "optimization",
		Priority:    domain.PriorityP2,
		Title:       fmt.Sprintf("Convert dataset %s to Parquet", ds.ID),
		Description: "Columnar storage cuts both storage footprint and query scan time.",
		Rationale:   "JSON-at-rest pays repeated parse cost on every query and compresses poorly.",
		ImplementationSteps: []string{
			"Create a Parquet-formatted copy of the dataset",
			"Repoint queries and retire the JSON copy after validation",
		},
		BeforeState: fmt.Sprintf("%.0f GB stored as raw JSON", ds.SizeGB),
		AfterState:  "Parquet with columnar compression and predicate pushdown",
		ImpactEstimate: domain.ImpactEstimate{
			StorageReductionGB: &reduction,
			TimeToImplement:    "0.5-1 day",
		},
		Effort:          "medium",
		RelatedFindings: []string{findingID},
	})

	return true
}

func (a *LakeAnalyzer) checkLakehouse(lh lakehousePayload, result *domain.AnalyzerResult) {
	switch lh.Status {
	case "", "ready", "running":
		return
	}

	result.AddFinding(domain.Finding{
		ID:                 "lake-lakehouse-" + lh.ID,
		Category:           "lake",
		Severity:           domain.SeverityHigh,
		Title:              fmt.Sprintf("Lakehouse %s Not Ready", lh.ID),
		Description:        fmt.Sprintf("Lakehouse %s reports status %q.", lh.ID, lh.Status),
		AffectedComponents: []string{"Lake", lh.ID},
		RemediationSteps: []string{
			"Check the lakehouse provisioning state and recent events",
			"Retry provisioning or contact support if the state persists",
		},
		EstimatedImpact: "Queries against this lakehouse fail or fall back to slow scans",
		Confidence:      domain.ConfidenceHigh,
		Metadata:        map[string]any{"status": lh.Status},
	})
}
