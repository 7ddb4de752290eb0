package domain

import "time"

// Severity classifies how urgently a finding needs attention
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// SeverityRank returns the sort rank for a severity (critical first).
// Unknown severities sort last.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	default:
		return 99
	}
}

// Priority classifies how soon a recommendation should be implemented
type Priority string

const (
	PriorityP0 Priority = "p0"
	PriorityP1 Priority = "p1"
	PriorityP2 Priority = "p2"
	PriorityP3 Priority = "p3"
)

// PriorityRank returns the sort rank for a priority (p0 first)
func PriorityRank(p Priority) int {
	switch p {
	case PriorityP0:
		return 0
	case PriorityP1:
		return 1
	case PriorityP2:
		return 2
	case PriorityP3:
		return 3
	default:
		return 99
	}
}

// Product identifies which product in the suite a finding or
// recommendation applies to
type Product string

const (
	ProductStream Product = "stream"
	ProductEdge   Product = "edge"
	ProductLake   Product = "lake"
	ProductSearch Product = "search"
)

// AllProducts returns the full product set, used as the default tag list
func AllProducts() []Product {
	return []Product{ProductStream, ProductEdge, ProductLake, ProductSearch}
}

// Confidence expresses how certain an analyzer is about a finding
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Finding is an identified problem or improvement opportunity with
// remediation guidance. Findings are immutable once added to a result.
type Finding struct {
	ID                 string         `json:"id" yaml:"id"`
	Category           string         `json:"category" yaml:"category"`
	Severity           Severity       `json:"severity" yaml:"severity"`
	Title              string         `json:"title" yaml:"title"`
	Description        string         `json:"description" yaml:"description"`
	AffectedComponents []string       `json:"affected_components,omitempty" yaml:"affected_components,omitempty"`
	RemediationSteps   []string       `json:"remediation_steps,omitempty" yaml:"remediation_steps,omitempty"`
	EstimatedImpact    string         `json:"estimated_impact,omitempty" yaml:"estimated_impact,omitempty"`
	Confidence         Confidence     `json:"confidence" yaml:"confidence"`
	ProductTags        []Product      `json:"product_tags" yaml:"product_tags"`
	DetectedAt         time.Time      `json:"detected_at" yaml:"detected_at"`
	Metadata           map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Validate checks the severity-dependent invariants:
// critical/high/medium findings need remediation steps, and
// critical/high findings need a non-empty estimated impact.
func (f *Finding) Validate() error {
	if f.ID == "" {
		return &ValidationError{Kind: "finding", ID: f.ID, Reason: "id is required"}
	}
	if f.Title == "" || f.Description == "" {
		return &ValidationError{Kind: "finding", ID: f.ID, Reason: "title and description are required"}
	}
	if SeverityRank(f.Severity) == 99 {
		return &ValidationError{Kind: "finding", ID: f.ID, Reason: "unknown severity " + string(f.Severity)}
	}
	switch f.Severity {
	case SeverityCritical, SeverityHigh:
		if len(f.RemediationSteps) == 0 {
			return &ValidationError{Kind: "finding", ID: f.ID, Reason: "remediation steps required for " + string(f.Severity) + " severity"}
		}
		if f.EstimatedImpact == "" {
			return &ValidationError{Kind: "finding", ID: f.ID, Reason: "estimated impact required for " + string(f.Severity) + " severity"}
		}
	case SeverityMedium:
		if len(f.RemediationSteps) == 0 {
			return &ValidationError{Kind: "finding", ID: f.ID, Reason: "remediation steps required for medium severity"}
		}
	}
	return nil
}

// HasProduct reports whether the finding applies to the given product.
// An empty tag list means "all known products".
func (f *Finding) HasProduct(p Product) bool {
	if len(f.ProductTags) == 0 {
		return true
	}
	for _, tag := range f.ProductTags {
		if tag == p {
			return true
		}
	}
	return false
}

// ImpactEstimate quantifies the expected effect of a recommendation
type ImpactEstimate struct {
	CostSavingsAnnual      *float64 `json:"cost_savings_annual,omitempty" yaml:"cost_savings_annual,omitempty"`
	PerformanceImprovement string   `json:"performance_improvement,omitempty" yaml:"performance_improvement,omitempty"`
	StorageReductionGB     *float64 `json:"storage_reduction_gb,omitempty" yaml:"storage_reduction_gb,omitempty"`
	TimeToImplement        string   `json:"time_to_implement,omitempty" yaml:"time_to_implement,omitempty"`
}

// HasMetrics reports whether at least one quantitative metric is set
func (e ImpactEstimate) HasMetrics() bool {
	return e.CostSavingsAnnual != nil ||
		e.StorageReductionGB != nil ||
		e.PerformanceImprovement != ""
}

// Recommendation is an actionable suggestion with priority and impact
type Recommendation struct {
	ID                  string         `json:"id" yaml:"id"`
	Type                string         `json:"type" yaml:"type"`
	Priority            Priority       `json:"priority" yaml:"priority"`
	Title               string         `json:"title" yaml:"title"`
	Description         string         `json:"description" yaml:"description"`
	Rationale           string         `json:"rationale" yaml:"rationale"`
	ImplementationSteps []string       `json:"implementation_steps" yaml:"implementation_steps"`
	BeforeState         string         `json:"before_state,omitempty" yaml:"before_state,omitempty"`
	AfterState          string         `json:"after_state,omitempty" yaml:"after_state,omitempty"`
	ImpactEstimate      ImpactEstimate `json:"impact_estimate" yaml:"impact_estimate"`
	Effort              string         `json:"effort" yaml:"effort"` // low, medium, high
	RelatedFindings     []string       `json:"related_findings,omitempty" yaml:"related_findings,omitempty"`
	ProductTags         []Product      `json:"product_tags" yaml:"product_tags"`
	CreatedAt           time.Time      `json:"created_at" yaml:"created_at"`
}

// Validate checks the priority- and type-dependent invariants:
// p0/p1 recommendations need at least one quantitative impact metric,
// optimization recommendations need before/after state.
func (r *Recommendation) Validate() error {
	if r.ID == "" {
		return &ValidationError{Kind: "recommendation", ID: r.ID, Reason: "id is required"}
	}
	if PriorityRank(r.Priority) == 99 {
		return &ValidationError{Kind: "recommendation", ID: r.ID, Reason: "unknown priority " + string(r.Priority)}
	}
	if len(r.ImplementationSteps) == 0 {
		return &ValidationError{Kind: "recommendation", ID: r.ID, Reason: "at least one implementation step is required"}
	}
	if (r.Priority == PriorityP0 || r.Priority == PriorityP1) && !r.ImpactEstimate.HasMetrics() {
		return &ValidationError{Kind: "recommendation", ID: r.ID, Reason: "impact estimate must carry a metric for " + string(r.Priority) + " priority"}
	}
	if r.Type == "optimization" && (r.BeforeState == "" || r.AfterState == "") {
		return &ValidationError{Kind: "recommendation", ID: r.ID, Reason: "before/after state required for optimization recommendations"}
	}
	return nil
}

// HasProduct reports whether the recommendation applies to the given
// product. An empty tag list means "all known products".
func (r *Recommendation) HasProduct(p Product) bool {
	if len(r.ProductTags) == 0 {
		return true
	}
	for _, tag := range r.ProductTags {
		if tag == p {
			return true
		}
	}
	return false
}
