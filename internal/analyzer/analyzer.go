// Package analyzer provides the built-in diagnostic analyzers. Each
// analyzer owns one objective and talks to the deployment exclusively
// through the budget-constrained gateway it is handed.
package analyzer

import (
	"context"

	"github.com/flowmetrics/pipecheck/domain"
)

// Management API endpoints shared across analyzers
const (
	workersEndpoint      = "/api/v1/master/workers"
	systemStatusEndpoint = "/api/v1/system/status"
	metricsEndpoint      = "/api/v1/metrics"
	pipelinesEndpoint    = "/api/v1/master/pipelines"
	datasetsEndpoint     = "/api/v1/lake/datasets"
	lakehousesEndpoint   = "/api/v1/lake/lakehouses"
)

// Factories returns the factory for every built-in analyzer, in
// registration order.
func Factories() []domain.AnalyzerFactory {
	return []domain.AnalyzerFactory{
		func() domain.Analyzer { return NewHealthAnalyzer() },
		func() domain.Analyzer { return NewResourceAnalyzer() },
		func() domain.Analyzer { return NewPipelineAnalyzer() },
		func() domain.Analyzer { return NewLakeAnalyzer() },
	}
}

type workersResponse struct {
	Items []workerPayload `json:"items"`
}

type workerPayload struct {
	ID      string        `json:"id"`
	Host    string        `json:"host"`
	Group   string        `json:"group"`
	Version string        `json:"version"`
	Status  string        `json:"status"`
	Metrics workerMetrics `json:"metrics"`
}

type workerMetrics struct {
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
	DiskUsage   float64 `json:"disk_usage"`
}

// fetchWorkers retrieves the worker list and normalizes it into domain
// snapshots. Workers without an id fall back to their host name.
func fetchWorkers(ctx context.Context, gw domain.Gateway) ([]domain.WorkerNode, error) {
	var resp workersResponse
	if err := gw.Get(ctx, workersEndpoint, &resp); err != nil {
		return nil, err
	}

	workers := make([]domain.WorkerNode, 0, len(resp.Items))
	for _, item := range resp.Items {
		id := item.ID
		if id == "" {
			id = item.Host
		}
		workers = append(workers, domain.WorkerNode{
			ID:            id,
			Host:          item.Host,
			Group:         item.Group,
			Version:       item.Version,
			Status:        item.Status,
			CPUPercent:    item.Metrics.CPUUsage,
			MemoryPercent: item.Metrics.MemoryUsage,
			DiskPercent:   item.Metrics.DiskUsage,
		})
	}
	return workers, nil
}

type eventTotals struct {
	In  float64 `json:"in"`
	Out float64 `json:"out"`
}

type eventCounter struct {
	Events float64 `json:"events"`
}

type pipelineMetrics struct {
	In               eventCounter `json:"in"`
	Out              eventCounter `json:"out"`
	Dropped          eventCounter `json:"dropped"`
	ProcessingTimeMS float64      `json:"processing_time_ms"`
}

type metricsResponse struct {
	Events    eventTotals                `json:"events"`
	Pipelines map[string]pipelineMetrics `json:"pipelines"`
}
