package domain

import "time"

// HealthStatus is the label derived from a 0-100 health score
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusCritical  HealthStatus = "critical"
	StatusUnknown   HealthStatus = "unknown"
)

// ComponentHealth is the scoring engine's assessment of one component
type ComponentHealth struct {
	Name    string             `json:"name" yaml:"name"`
	Score   float64            `json:"score" yaml:"score"`
	Status  HealthStatus       `json:"status" yaml:"status"`
	Issues  []string           `json:"issues,omitempty" yaml:"issues,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// IsCritical reports whether the component score is below the critical line
func (c ComponentHealth) IsCritical() bool {
	return c.Score < 50
}

// IsHealthy reports whether the component score is in the healthy band
func (c ComponentHealth) IsHealthy() bool {
	return c.Score >= 90
}

// HealthScore is the overall deployment assessment attached to a run
type HealthScore struct {
	Score      float64           `json:"score" yaml:"score"`
	Status     HealthStatus      `json:"status" yaml:"status"`
	Components []ComponentHealth `json:"components,omitempty" yaml:"components,omitempty"`
}

// WorkerNode is a snapshot of one remote processing unit
type WorkerNode struct {
	ID            string  `json:"id" yaml:"id"`
	Host          string  `json:"host" yaml:"host"`
	Group         string  `json:"group,omitempty" yaml:"group,omitempty"`
	Version       string  `json:"version,omitempty" yaml:"version,omitempty"`
	CPUPercent    float64 `json:"cpu_percent" yaml:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent" yaml:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent" yaml:"disk_percent"`
	Status        string  `json:"status,omitempty" yaml:"status,omitempty"`
}

// AnalyzerResult accumulates one analyzer's output. It is owned by the
// analyzer while it runs and read-only once handed to the orchestrator.
type AnalyzerResult struct {
	Objective       string           `json:"objective" yaml:"objective"`
	Findings        []Finding        `json:"findings" yaml:"findings"`
	Recommendations []Recommendation `json:"recommendations" yaml:"recommendations"`
	Workers         []WorkerNode     `json:"workers,omitempty" yaml:"workers,omitempty"`
	Metadata        map[string]any   `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Success         bool             `json:"success" yaml:"success"`
	Error           string           `json:"error,omitempty" yaml:"error,omitempty"`

	defaultTags []Product
}

// NewAnalyzerResult creates an empty successful result for an objective.
// Findings and recommendations added without product tags inherit
// defaultTags.
func NewAnalyzerResult(objective string, defaultTags []Product) *AnalyzerResult {
	return &AnalyzerResult{
		Objective:       objective,
		Findings:        []Finding{},
		Recommendations: []Recommendation{},
		Metadata:        map[string]any{},
		Success:         true,
		defaultTags:     defaultTags,
	}
}

// AddFinding validates and appends a finding. Invalid findings are a
// programmer error and panic with a *ValidationError.
func (r *AnalyzerResult) AddFinding(f Finding) {
	if len(f.ProductTags) == 0 && len(r.defaultTags) > 0 {
		f.ProductTags = append([]Product(nil), r.defaultTags...)
	}
	if f.DetectedAt.IsZero() {
		f.DetectedAt = time.Now().UTC()
	}
	if err := f.Validate(); err != nil {
		panic(err)
	}
	r.Findings = append(r.Findings, f)
}

// AddRecommendation validates and appends a recommendation. Invalid
// recommendations are a programmer error and panic with a *ValidationError.
func (r *AnalyzerResult) AddRecommendation(rec Recommendation) {
	if len(rec.ProductTags) == 0 && len(r.defaultTags) > 0 {
		rec.ProductTags = append([]Product(nil), r.defaultTags...)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := rec.Validate(); err != nil {
		panic(err)
	}
	r.Recommendations = append(r.Recommendations, rec)
}

// Fail marks the result as failed with an error message
func (r *AnalyzerResult) Fail(msg string) {
	r.Success = false
	r.Error = msg
}

// CountBySeverity returns the number of findings at the given severity
func (r *AnalyzerResult) CountBySeverity(s Severity) int {
	n := 0
	for i := range r.Findings {
		if r.Findings[i].Severity == s {
			n++
		}
	}
	return n
}

// RunStatus is the terminal state of an analysis run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// AnalysisRun is the top-level record of one diagnostic execution.
// It is the sole contract with report generators and presentation layers.
type AnalysisRun struct {
	ID                 string           `json:"id" yaml:"id"`
	DeploymentID       string           `json:"deployment_id" yaml:"deployment_id"`
	Status             RunStatus        `json:"status" yaml:"status"`
	ObjectivesAnalyzed []string         `json:"objectives_analyzed" yaml:"objectives_analyzed"`
	StartedAt          time.Time        `json:"started_at" yaml:"started_at"`
	CompletedAt        time.Time        `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	DurationSeconds    float64          `json:"duration_seconds" yaml:"duration_seconds"`
	CallsUsed          int              `json:"api_calls_used" yaml:"api_calls_used"`
	HealthScore        *HealthScore     `json:"health_score,omitempty" yaml:"health_score,omitempty"`
	Findings           []Finding        `json:"findings" yaml:"findings"`
	Recommendations    []Recommendation `json:"recommendations" yaml:"recommendations"`
	Workers            []WorkerNode     `json:"workers,omitempty" yaml:"workers,omitempty"`
	Errors             []string         `json:"errors,omitempty" yaml:"errors,omitempty"`
	PartialCompletion  bool             `json:"partial_completion" yaml:"partial_completion"`
	Metadata           map[string]any   `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// AnalyzerInfo describes a registered analyzer for listing surfaces
type AnalyzerInfo struct {
	Name                string    `json:"name" yaml:"name"`
	Description         string    `json:"description" yaml:"description"`
	EstimatedCalls      int       `json:"estimated_calls" yaml:"estimated_calls"`
	RequiredPermissions []string  `json:"required_permissions,omitempty" yaml:"required_permissions,omitempty"`
	SupportedProducts   []Product `json:"supported_products" yaml:"supported_products"`
}
