package domain

import (
	"errors"
	"testing"
)

// Error tests

func TestDomainError_Error(t *testing.T) {
	err := DomainError{
		Code:    "TEST_ERROR",
		Message: "test message",
	}
	expected := "[TEST_ERROR] test message"
	if err.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, err.Error())
	}

	cause := errors.New("underlying error")
	errWithCause := DomainError{
		Code:    "TEST_ERROR",
		Message: "test message",
		Cause:   cause,
	}
	expectedWithCause := "[TEST_ERROR] test message: underlying error"
	if errWithCause.Error() != expectedWithCause {
		t.Errorf("Expected '%s', got '%s'", expectedWithCause, errWithCause.Error())
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := DomainError{Code: "TEST_ERROR", Message: "test", Cause: cause}

	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	errNoCause := DomainError{Code: "TEST_ERROR", Message: "test"}
	if errNoCause.Unwrap() != nil {
		t.Error("Unwrap should return nil when no cause")
	}
}

func TestDomainError_Is(t *testing.T) {
	err := NewBudgetExhaustedError(3, 3)
	if !errors.Is(err, DomainError{Code: ErrCodeBudgetExhausted}) {
		t.Error("errors.Is should match on code")
	}
	if errors.Is(err, DomainError{Code: ErrCodeTimeout}) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestNewBudgetExhaustedError(t *testing.T) {
	err := NewBudgetExhaustedError(3, 3)

	domainErr, ok := err.(DomainError)
	if !ok {
		t.Fatal("Should return DomainError type")
	}
	if domainErr.Code != ErrCodeBudgetExhausted {
		t.Errorf("Expected code '%s', got '%s'", ErrCodeBudgetExhausted, domainErr.Code)
	}
	if domainErr.Message != "api call budget exhausted (3/3)" {
		t.Errorf("Unexpected message: %s", domainErr.Message)
	}
}

func TestNewAuthFailedError(t *testing.T) {
	err := NewAuthFailedError("invalid bearer token")
	domainErr := err.(DomainError)
	if domainErr.Code != ErrCodeAuthFailed {
		t.Errorf("Expected code '%s', got '%s'", ErrCodeAuthFailed, domainErr.Code)
	}
}

// Severity and priority ranks

func TestSeverityRank(t *testing.T) {
	tests := []struct {
		severity Severity
		rank     int
	}{
		{SeverityCritical, 0},
		{SeverityHigh, 1},
		{SeverityMedium, 2},
		{SeverityLow, 3},
		{SeverityInfo, 4},
		{Severity("bogus"), 99},
	}

	for _, tt := range tests {
		if got := SeverityRank(tt.severity); got != tt.rank {
			t.Errorf("SeverityRank(%s) = %d, want %d", tt.severity, got, tt.rank)
		}
	}
}

func TestPriorityRank(t *testing.T) {
	tests := []struct {
		priority Priority
		rank     int
	}{
		{PriorityP0, 0},
		{PriorityP1, 1},
		{PriorityP2, 2},
		{PriorityP3, 3},
		{Priority("p9"), 99},
	}

	for _, tt := range tests {
		if got := PriorityRank(tt.priority); got != tt.rank {
			t.Errorf("PriorityRank(%s) = %d, want %d", tt.priority, got, tt.rank)
		}
	}
}

// Finding validation

func validFinding(severity Severity) Finding {
	f := Finding{
		ID:          "finding-test-001",
		Category:    "health",
		Severity:    severity,
		Title:       "Test finding",
		Description: "A finding used in tests",
		Confidence:  ConfidenceHigh,
	}
	switch severity {
	case SeverityCritical, SeverityHigh:
		f.RemediationSteps = []string{"fix it"}
		f.EstimatedImpact = "service degradation"
	case SeverityMedium:
		f.RemediationSteps = []string{"fix it"}
	}
	return f
}

func TestFinding_Validate(t *testing.T) {
	for _, sev := range []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo} {
		f := validFinding(sev)
		if err := f.Validate(); err != nil {
			t.Errorf("valid %s finding rejected: %v", sev, err)
		}
	}
}

func TestFinding_Validate_RemediationRequired(t *testing.T) {
	for _, sev := range []Severity{SeverityCritical, SeverityHigh, SeverityMedium} {
		f := validFinding(sev)
		f.RemediationSteps = nil
		if err := f.Validate(); err == nil {
			t.Errorf("%s finding without remediation steps should be invalid", sev)
		}
	}

	// low/info don't need remediation
	f := validFinding(SeverityLow)
	f.RemediationSteps = nil
	if err := f.Validate(); err != nil {
		t.Errorf("low finding without remediation steps should be valid: %v", err)
	}
}

func TestFinding_Validate_ImpactRequired(t *testing.T) {
	for _, sev := range []Severity{SeverityCritical, SeverityHigh} {
		f := validFinding(sev)
		f.EstimatedImpact = ""
		if err := f.Validate(); err == nil {
			t.Errorf("%s finding without estimated impact should be invalid", sev)
		}
	}

	f := validFinding(SeverityMedium)
	f.EstimatedImpact = ""
	if err := f.Validate(); err != nil {
		t.Errorf("medium finding without estimated impact should be valid: %v", err)
	}
}

func TestFinding_HasProduct(t *testing.T) {
	f := validFinding(SeverityInfo)
	f.ProductTags = []Product{ProductLake}

	if !f.HasProduct(ProductLake) {
		t.Error("expected lake tag to match")
	}
	if f.HasProduct(ProductStream) {
		t.Error("stream should not match a lake-only finding")
	}

	// empty tag list means all products
	f.ProductTags = nil
	if !f.HasProduct(ProductStream) || !f.HasProduct(ProductSearch) {
		t.Error("untagged finding should match every product")
	}
}

// Recommendation validation

func floatPtr(v float64) *float64 { return &v }

func validRecommendation(priority Priority) Recommendation {
	r := Recommendation{
		ID:                  "rec-test-001",
		Type:                "scaling",
		Priority:            priority,
		Title:               "Test recommendation",
		Description:         "A recommendation used in tests",
		Rationale:           "because the tests say so",
		ImplementationSteps: []string{"do the thing"},
		Effort:              "low",
	}
	if priority == PriorityP0 || priority == PriorityP1 {
		r.ImpactEstimate = ImpactEstimate{CostSavingsAnnual: floatPtr(1200)}
	}
	return r
}

func TestRecommendation_Validate(t *testing.T) {
	for _, p := range []Priority{PriorityP0, PriorityP1, PriorityP2, PriorityP3} {
		r := validRecommendation(p)
		if err := r.Validate(); err != nil {
			t.Errorf("valid %s recommendation rejected: %v", p, err)
		}
	}
}

func TestRecommendation_Validate_ImpactMetricRequired(t *testing.T) {
	for _, p := range []Priority{PriorityP0, PriorityP1} {
		r := validRecommendation(p)
		r.ImpactEstimate = ImpactEstimate{TimeToImplement: "1h"} // not quantitative
		if err := r.Validate(); err == nil {
			t.Errorf("%s recommendation without impact metric should be invalid", p)
		}
	}

	r := validRecommendation(PriorityP2)
	r.ImpactEstimate = ImpactEstimate{}
	if err := r.Validate(); err != nil {
		t.Errorf("p2 recommendation without impact metric should be valid: %v", err)
	}
}

func TestRecommendation_Validate_OptimizationNeedsStates(t *testing.T) {
	r := validRecommendation(PriorityP2)
	r.Type = "optimization"
	if err := r.Validate(); err == nil {
		t.Error("optimization without before/after state should be invalid")
	}

	r.BeforeState = "2.4TB/day at full volume"
	r.AfterState = "240GB/day sampled"
	if err := r.Validate(); err != nil {
		t.Errorf("optimization with states should be valid: %v", err)
	}
}

func TestRecommendation_Validate_StepsRequired(t *testing.T) {
	r := validRecommendation(PriorityP3)
	r.ImplementationSteps = nil
	if err := r.Validate(); err == nil {
		t.Error("recommendation without implementation steps should be invalid")
	}
}

// AnalyzerResult

func TestAnalyzerResult_AddFinding(t *testing.T) {
	result := NewAnalyzerResult("health", []Product{ProductStream})

	result.AddFinding(validFinding(SeverityHigh))

	if len(result.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(result.Findings))
	}
	f := result.Findings[0]
	if len(f.ProductTags) != 1 || f.ProductTags[0] != ProductStream {
		t.Errorf("finding should inherit default product tags, got %v", f.ProductTags)
	}
	if f.DetectedAt.IsZero() {
		t.Error("DetectedAt should be stamped")
	}
}

func TestAnalyzerResult_AddFinding_PanicsOnInvalid(t *testing.T) {
	result := NewAnalyzerResult("health", nil)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic for invalid finding")
		}
		if _, ok := r.(*ValidationError); !ok {
			t.Fatalf("expected *ValidationError, got %T", r)
		}
	}()

	bad := validFinding(SeverityCritical)
	bad.RemediationSteps = nil
	result.AddFinding(bad)
}

func TestAnalyzerResult_CountBySeverity(t *testing.T) {
	result := NewAnalyzerResult("health", nil)
	result.AddFinding(validFinding(SeverityCritical))
	result.AddFinding(validFinding(SeverityHigh))
	result.AddFinding(validFinding(SeverityHigh))

	if got := result.CountBySeverity(SeverityHigh); got != 2 {
		t.Errorf("expected 2 high findings, got %d", got)
	}
	if got := result.CountBySeverity(SeverityInfo); got != 0 {
		t.Errorf("expected 0 info findings, got %d", got)
	}
}

func TestAnalyzerResult_Fail(t *testing.T) {
	result := NewAnalyzerResult("health", nil)
	result.Fail("boom")

	if result.Success {
		t.Error("result should be unsuccessful after Fail")
	}
	if result.Error != "boom" {
		t.Errorf("unexpected error message: %s", result.Error)
	}
}
