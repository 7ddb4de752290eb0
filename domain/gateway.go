package domain

import (
	"context"
	"time"
)

// Gateway is the budget-constrained access point to the remote management
// API. Every Get/Post consumes exactly one budget unit regardless of
// success or failure. Implementations must be safe for concurrent use.
type Gateway interface {
	// Open establishes the network session. Close must be called on every
	// exit path once Open succeeds; Close is idempotent.
	Open(ctx context.Context) error
	Close() error

	// Get performs a GET against path and decodes the JSON response into out.
	// out may be nil to discard the body.
	Get(ctx context.Context, path string, out any) error

	// Post performs a POST with a JSON body and decodes the response into out
	Post(ctx context.Context, path string, body, out any) error

	// Probe runs the lightweight connection test against the version
	// endpoint. It never returns an error: failures are described in the
	// result.
	Probe(ctx context.Context) ConnectionTestResult

	// CallsUsed returns the number of budget units consumed so far
	CallsUsed() int

	// CallsRemaining returns the number of budget units left
	CallsRemaining() int
}

// ConnectionTestResult is the outcome of probing the management API
type ConnectionTestResult struct {
	Success        bool      `json:"success" yaml:"success"`
	Message        string    `json:"message" yaml:"message"`
	ResponseTimeMS float64   `json:"response_time_ms" yaml:"response_time_ms"`
	ProductVersion string    `json:"product_version,omitempty" yaml:"product_version,omitempty"`
	Product        Product   `json:"product,omitempty" yaml:"product,omitempty"`
	URL            string    `json:"url" yaml:"url"`
	Error          string    `json:"error,omitempty" yaml:"error,omitempty"`
	TestedAt       time.Time `json:"tested_at" yaml:"tested_at"`
}
