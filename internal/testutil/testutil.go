// Package testutil provides fakes and helpers for testing analysis components
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/flowmetrics/pipecheck/domain"
)

// FakeGateway is an in-memory Gateway backed by canned JSON responses
// keyed by path. It tracks budget accounting the same way the real
// gateway does: one unit per call, successful or not.
type FakeGateway struct {
	mu sync.Mutex

	// Responses maps request paths to raw JSON payloads
	Responses map[string]string

	// Errors maps request paths to forced errors, checked before Responses
	Errors map[string]error

	// ProbeResult is returned verbatim by Probe
	ProbeResult domain.ConnectionTestResult

	// MaxCalls caps the budget; 0 means 100
	MaxCalls int

	calls     int
	paths     []string
	opened    bool
	closed    bool
	openError error
}

// NewFakeGateway creates a fake with the given path -> JSON payload map
func NewFakeGateway(responses map[string]string) *FakeGateway {
	return &FakeGateway{
		Responses: responses,
		Errors:    map[string]error{},
		MaxCalls:  100,
	}
}

// Open marks the gateway as opened
func (f *FakeGateway) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openError != nil {
		return f.openError
	}
	f.opened = true
	return nil
}

// Close marks the gateway as closed
func (f *FakeGateway) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// FailOpen makes Open return the given error
func (f *FakeGateway) FailOpen(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openError = err
}

// Get serves the canned payload for path
func (f *FakeGateway) Get(ctx context.Context, path string, out any) error {
	return f.serve(path, out)
}

// Post serves the canned payload for path, ignoring the body
func (f *FakeGateway) Post(ctx context.Context, path string, body, out any) error {
	return f.serve(path, out)
}

func (f *FakeGateway) serve(path string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	max := f.MaxCalls
	if max == 0 {
		max = 100
	}
	if f.calls >= max {
		return domain.NewBudgetExhaustedError(f.calls, max)
	}
	f.calls++
	f.paths = append(f.paths, path)

	if err, ok := f.Errors[path]; ok {
		return err
	}

	payload, ok := f.Responses[path]
	if !ok {
		return domain.NewNotFoundError(path)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("testutil: bad canned payload for %s: %w", path, err)
	}
	return nil
}

// Probe returns the configured probe result and consumes one budget unit
func (f *FakeGateway) Probe(ctx context.Context) domain.ConnectionTestResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.ProbeResult
}

// CallsUsed returns the number of budget units consumed
func (f *FakeGateway) CallsUsed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// CallsRemaining returns the number of budget units left
func (f *FakeGateway) CallsRemaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := f.MaxCalls
	if max == 0 {
		max = 100
	}
	if rem := max - f.calls; rem > 0 {
		return rem
	}
	return 0
}

// RequestedPaths returns every path served so far, in order
func (f *FakeGateway) RequestedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

// Closed reports whether Close was called
func (f *FakeGateway) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// StubAnalyzer is a configurable Analyzer for orchestrator and registry tests
type StubAnalyzer struct {
	Name           string
	Desc           string
	Products       []domain.Product
	Calls          int
	Permissions    []string
	Partial        bool
	AnalyzeFunc    func(ctx context.Context, gw domain.Gateway) (*domain.AnalyzerResult, error)
	analyzeCounter int
	mu             sync.Mutex
}

// Objective returns the stub's objective name
func (s *StubAnalyzer) Objective() string { return s.Name }

// Description returns the stub's description
func (s *StubAnalyzer) Description() string { return s.Desc }

// SupportedProducts returns the stub's product list
func (s *StubAnalyzer) SupportedProducts() []domain.Product {
	if s.Products == nil {
		return domain.AllProducts()
	}
	return s.Products
}

// EstimatedCalls returns the stub's call estimate
func (s *StubAnalyzer) EstimatedCalls() int {
	if s.Calls == 0 {
		return 1
	}
	return s.Calls
}

// RequiredPermissions returns the stub's permission list
func (s *StubAnalyzer) RequiredPermissions() []string { return s.Permissions }

// SupportsPartialResults reports the stub's isolation mode
func (s *StubAnalyzer) SupportsPartialResults() bool { return s.Partial }

// Analyze delegates to AnalyzeFunc, or returns an empty successful result
func (s *StubAnalyzer) Analyze(ctx context.Context, gw domain.Gateway) (*domain.AnalyzerResult, error) {
	s.mu.Lock()
	s.analyzeCounter++
	s.mu.Unlock()
	if s.AnalyzeFunc != nil {
		return s.AnalyzeFunc(ctx, gw)
	}
	return domain.NewAnalyzerResult(s.Name, s.Products), nil
}

// AnalyzeCount returns how many times Analyze ran
func (s *StubAnalyzer) AnalyzeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyzeCounter
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected error but got nil")
	}
}
