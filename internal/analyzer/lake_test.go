package analyzer

import (
	"context"
	"testing"

	"github.com/flowmetrics/pipecheck/domain"
	"github.com/flowmetrics/pipecheck/internal/testutil"
)

func TestLakeAnalyzer_RetentionTiers(t *testing.T) {
	gw := testutil.NewFakeGateway(map[string]string{
		datasetsEndpoint: `{"items": [
			{"id": "ds-tiny", "retention_days": 3, "format": "parquet", "size_gb": 10},
			{"id": "ds-short", "retention_days": 10, "format": "parquet", "size_gb": 20},
			{"id": "ds-thin", "retention_days": 21, "format": "parquet", "size_gb": 15},
			{"id": "ds-ok", "retention_days": 90, "format": "parquet", "size_gb": 200}
		]}`,
		lakehousesEndpoint: `{"items": []}`,
	})

	result, err := NewLakeAnalyzer().Analyze(context.Background(), gw)
	testutil.AssertNoError(t, err)

	tests := []struct {
		id       string
		severity domain.Severity
	}{
		{"lake-retention-ds-tiny", domain.SeverityHigh},
		{"lake-retention-ds-short", domain.SeverityMedium},
		{"lake-retention-ds-thin", domain.SeverityLow},
	}
	for _, tt := range tests {
		if got := findingByID(t, result, tt.id).Severity; got != tt.severity {
			t.Errorf("%s severity = %s, want %s", tt.id, got, tt.severity)
		}
	}
	if hasFinding(result, "lake-retention-ds-ok") {
		t.Error("90-day retention should not produce a finding")
	}

	rec := recommendationByID(t, result, "lake-extend-retention-ds-tiny")
	if rec.Priority != domain.PriorityP1 {
		t.Errorf("priority = %s, want p1", rec.Priority)
	}
	if rec.Type != "configuration" {
		t.Errorf("type = %s, want configuration", rec.Type)
	}
	if len(result.Recommendations) != 1 {
		t.Errorf("recommendations = %d, only very short retention earns one", len(result.Recommendations))
	}
	if result.Metadata["short_retention_datasets"] != 3 {
		t.Errorf("short_retention_datasets = %v, want 3", result.Metadata["short_retention_datasets"])
	}
}

func TestLakeAnalyzer_JSONFormat(t *testing.T) {
	gw := testutil.NewFakeGateway(map[string]string{
		datasetsEndpoint: `{"items": [
			{"id": "ds-raw", "retention_days": 60, "format": "json", "size_gb": 100}
		]}`,
		lakehousesEndpoint: `{"items": []}`,
	})

	result, err := NewLakeAnalyzer().Analyze(context.Background(), gw)
	testutil.AssertNoError(t, err)

	finding := findingByID(t, result, "lake-format-ds-raw")
	if finding.Severity != domain.SeverityMedium {
		t.Errorf("severity = %s, want medium", finding.Severity)
	}

	rec := recommendationByID(t, result, "lake-convert-ds-raw")
	if rec.Type != "optimization" {
		t.Errorf("type = %s, want optimization", rec.Type)
	}
	if rec.BeforeState == "" || rec.AfterState == "" {
		t.Error("optimization recommendation needs before/after state")
	}
	if rec.ImpactEstimate.StorageReductionGB == nil || *rec.ImpactEstimate.StorageReductionGB != 60 {
		t.Errorf("storage reduction = %v, want 60", rec.ImpactEstimate.StorageReductionGB)
	}
	if len(rec.ProductTags) != 1 || rec.ProductTags[0] != domain.ProductLake {
		t.Errorf("product tags = %v, want [lake]", rec.ProductTags)
	}
}

func TestLakeAnalyzer_LakehouseNotReady(t *testing.T) {
	gw := testutil.NewFakeGateway(map[string]string{
		datasetsEndpoint: `{"items": [{"id": "ds-ok", "retention_days": 90, "format": "parquet", "size_gb": 5}]}`,
		lakehousesEndpoint: `{"items": [
			{"id": "lh-1", "status": "ready"},
			{"id": "lh-2", "status": "failed"}
		]}`,
	})

	result, err := NewLakeAnalyzer().Analyze(context.Background(), gw)
	testutil.AssertNoError(t, err)

	finding := findingByID(t, result, "lake-lakehouse-lh-2")
	if finding.Severity != domain.SeverityHigh {
		t.Errorf("severity = %s, want high", finding.Severity)
	}
	if hasFinding(result, "lake-lakehouse-lh-1") {
		t.Error("ready lakehouse should not produce a finding")
	}
}

func TestLakeAnalyzer_NoDatasets(t *testing.T) {
	gw := testutil.NewFakeGateway(map[string]string{
		datasetsEndpoint:   `{"items": []}`,
		lakehousesEndpoint: `{"items": []}`,
	})

	result, err := NewLakeAnalyzer().Analyze(context.Background(), gw)
	testutil.AssertNoError(t, err)

	finding := findingByID(t, result, "lake-no-datasets")
	if finding.Severity != domain.SeverityInfo {
		t.Errorf("severity = %s, want info", finding.Severity)
	}
	if result.Metadata["dataset_count"] != 0 {
		t.Errorf("dataset_count = %v", result.Metadata["dataset_count"])
	}
	if gw.CallsUsed() != 2 {
		t.Errorf("calls used = %d, want 2", gw.CallsUsed())
	}
}

func TestLakeAnalyzer_DatasetsFetchError(t *testing.T) {
	gw := testutil.NewFakeGateway(map[string]string{
		lakehousesEndpoint: `{"items": []}`,
	})

	_, err := NewLakeAnalyzer().Analyze(context.Background(), gw)
	testutil.AssertError(t, err)
}
