package service

import (
	"sort"

	"github.com/flowmetrics/pipecheck/domain"
)

// ResultAggregator orders and filters merged analysis output. Sorts are
// stable: entries at the same rank keep their insertion order.
type ResultAggregator struct{}

// NewResultAggregator creates an aggregator
func NewResultAggregator() *ResultAggregator {
	return &ResultAggregator{}
}

// SortFindingsBySeverity orders findings critical first, in place
func (a *ResultAggregator) SortFindingsBySeverity(findings []domain.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return domain.SeverityRank(findings[i].Severity) < domain.SeverityRank(findings[j].Severity)
	})
}

// SortRecommendationsByPriority orders recommendations p0 first, in place
func (a *ResultAggregator) SortRecommendationsByPriority(recs []domain.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		return domain.PriorityRank(recs[i].Priority) < domain.PriorityRank(recs[j].Priority)
	})
}

// FilterByProduct returns a new run containing only the findings and
// recommendations tagged for the given product. Entries without tags
// apply to every product and always survive the filter. The input run
// is not modified.
func (a *ResultAggregator) FilterByProduct(run *domain.AnalysisRun, product domain.Product) *domain.AnalysisRun {
	filtered := *run

	filtered.Findings = make([]domain.Finding, 0, len(run.Findings))
	for _, f := range run.Findings {
		if f.HasProduct(product) {
			filtered.Findings = append(filtered.Findings, f)
		}
	}

	filtered.Recommendations = make([]domain.Recommendation, 0, len(run.Recommendations))
	for _, r := range run.Recommendations {
		if r.HasProduct(product) {
			filtered.Recommendations = append(filtered.Recommendations, r)
		}
	}

	return &filtered
}

// CountBySeverity returns finding counts keyed by severity
func (a *ResultAggregator) CountBySeverity(findings []domain.Finding) map[domain.Severity]int {
	counts := make(map[domain.Severity]int)
	for i := range findings {
		counts[findings[i].Severity]++
	}
	return counts
}

// CountByPriority returns recommendation counts keyed by priority
func (a *ResultAggregator) CountByPriority(recs []domain.Recommendation) map[domain.Priority]int {
	counts := make(map[domain.Priority]int)
	for i := range recs {
		counts[recs[i].Priority]++
	}
	return counts
}
