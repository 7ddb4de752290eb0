package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flowmetrics/pipecheck/domain"
	"github.com/flowmetrics/pipecheck/internal/limiter"
)

// VersionEndpoint is the lightweight probe target. It answers without
// special permissions on every supported product.
const VersionEndpoint = "/api/v1/version"

const userAgent = "pipecheck/1.0"

// maxErrorBodyBytes bounds how much of an error response is kept for messages
const maxErrorBodyBytes = 2048

// GatewayOptions configures an APIGateway
type GatewayOptions struct {
	BaseURL            string
	AuthToken          string
	Timeout            time.Duration
	InsecureSkipVerify bool
	Limiter            *limiter.RateLimiter
	Logger             *zap.SugaredLogger
}

// APIGateway is the production Gateway implementation. Every request
// claims one budget unit from the shared rate limiter before touching
// the network, regardless of the eventual outcome.
type APIGateway struct {
	baseURL string
	token   string
	timeout time.Duration
	limiter *limiter.RateLimiter
	log     *zap.SugaredLogger

	mu     sync.Mutex
	client *http.Client

	productMu      sync.Mutex
	product        domain.Product
	productVersion string
}

// NewAPIGateway creates a gateway for the given deployment. A nil
// limiter gets the default budget; a nil logger is silent.
func NewAPIGateway(opts GatewayOptions) *APIGateway {
	lim := opts.Limiter
	if lim == nil {
		lim = limiter.New(limiter.DefaultMaxCalls, limiter.DefaultWindow, limiter.DefaultBackoff())
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	g := &APIGateway{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.AuthToken,
		timeout: timeout,
		limiter: lim,
		log:     log,
	}
	if opts.InsecureSkipVerify {
		g.client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}
	}
	return g
}

// Open establishes the network session
func (g *APIGateway) Open(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		g.client = &http.Client{Timeout: g.timeout}
	}
	g.log.Debugw("gateway opened", "base_url", g.baseURL, "timeout", g.timeout)
	return nil
}

// Close releases the session. Safe to call multiple times.
func (g *APIGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		g.client.CloseIdleConnections()
		g.client = nil
	}
	return nil
}

// Get performs a GET against path and decodes the JSON response into out
func (g *APIGateway) Get(ctx context.Context, path string, out any) error {
	return g.do(ctx, http.MethodGet, path, nil, out)
}

// Post performs a POST with a JSON body and decodes the response into out
func (g *APIGateway) Post(ctx context.Context, path string, body, out any) error {
	return g.do(ctx, http.MethodPost, path, body, out)
}

func (g *APIGateway) do(ctx context.Context, method, path string, body, out any) error {
	g.mu.Lock()
	client := g.client
	g.mu.Unlock()
	if client == nil {
		return domain.NewInvalidInputError("gateway not opened", nil)
	}

	if err := g.limiter.Acquire(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return domain.NewInvalidInputError("failed to encode request body", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return domain.NewInvalidInputError(fmt.Sprintf("invalid request for %s", path), err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	g.log.Debugw("api request", "method", method, "path", path)

	resp, err := client.Do(req)
	if err != nil {
		mapped := g.mapTransportError(path, err)
		if berr := g.limiter.RecordFailure(ctx); berr != nil {
			return berr
		}
		g.log.Warnw("api request failed", "method", method, "path", path, "error", err)
		return mapped
	}
	defer func() { _ = resp.Body.Close() }()

	g.log.Infow("api response", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		mapped := g.mapStatusError(resp.StatusCode, path)
		if berr := g.limiter.RecordFailure(ctx); berr != nil {
			return berr
		}
		return mapped
	}

	g.limiter.RecordSuccess()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewDomainError(domain.ErrCodeUnexpected,
			fmt.Sprintf("failed to decode response from %s", path), err)
	}
	return nil
}

func (g *APIGateway) mapStatusError(status int, path string) error {
	switch status {
	case http.StatusUnauthorized:
		return domain.NewAuthFailedError("authentication failed - invalid bearer token")
	case http.StatusForbidden:
		return domain.NewForbiddenError("access forbidden - insufficient permissions")
	case http.StatusNotFound:
		return domain.NewNotFoundError(path)
	default:
		return domain.NewUnexpectedResponseError(status, path)
	}
}

func (g *APIGateway) mapTransportError(path string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return domain.NewTimeoutError(path, err)
	}
	return domain.NewUnreachableError("cannot reach management API - check URL and network", err)
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// versionResponse is the shape of the version endpoint payload
type versionResponse struct {
	Version string `json:"version"`
	Product string `json:"product"`
}

// Probe runs the connection test against the version endpoint. Failures
// never surface as errors: each outcome maps to a distinct message in
// the result.
func (g *APIGateway) Probe(ctx context.Context) domain.ConnectionTestResult {
	result := domain.ConnectionTestResult{
		URL:      g.baseURL + VersionEndpoint,
		TestedAt: time.Now().UTC(),
	}

	g.mu.Lock()
	client := g.client
	g.mu.Unlock()
	if client == nil {
		result.Message = "gateway not opened"
		result.Error = "gateway not opened"
		return result
	}

	if err := g.limiter.Acquire(ctx); err != nil {
		result.Message = "API call budget exhausted"
		result.Error = err.Error()
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+VersionEndpoint, nil)
	if err != nil {
		result.Message = "invalid base URL"
		result.Error = err.Error()
		return result
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := client.Do(req)
	result.ResponseTimeMS = round2(float64(time.Since(start)) / float64(time.Millisecond))

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			result.Message = fmt.Sprintf("connection timeout after %s", g.timeout)
		} else {
			result.Message = "cannot connect to management API - check URL and network"
		}
		result.Error = err.Error()
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var version versionResponse
		if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
			result.Message = "malformed version response"
			result.Error = err.Error()
			return result
		}
		product := g.detectProduct(version)
		result.Success = true
		result.Product = product
		result.ProductVersion = version.Version
		result.Message = fmt.Sprintf("successfully connected to %s %s", productName(product), version.Version)
		g.limiter.RecordSuccess()
	case http.StatusUnauthorized:
		result.Message = "authentication failed - invalid bearer token"
		result.Error = httpError(resp)
	case http.StatusForbidden:
		result.Message = "access forbidden - insufficient permissions"
		result.Error = httpError(resp)
	case http.StatusNotFound:
		result.Message = "API endpoint not found - verify URL and product version"
		result.Error = httpError(resp)
	default:
		result.Message = fmt.Sprintf("unexpected response code: %d", resp.StatusCode)
		result.Error = httpError(resp)
	}

	g.log.Infow("connection probe", "success", result.Success, "message", result.Message,
		"response_time_ms", result.ResponseTimeMS)
	return result
}

// detectProduct resolves the deployment flavor from the version payload,
// defaulting to stream when the endpoint does not advertise one
func (g *APIGateway) detectProduct(v versionResponse) domain.Product {
	g.productMu.Lock()
	defer g.productMu.Unlock()

	product := domain.Product(strings.ToLower(v.Product))
	switch product {
	case domain.ProductStream, domain.ProductEdge, domain.ProductLake, domain.ProductSearch:
	default:
		product = domain.ProductStream
	}
	g.product = product
	g.productVersion = v.Version
	return product
}

// Product returns the detected deployment flavor, empty before the
// first successful probe
func (g *APIGateway) Product() domain.Product {
	g.productMu.Lock()
	defer g.productMu.Unlock()
	return g.product
}

// ProductVersion returns the detected product version
func (g *APIGateway) ProductVersion() string {
	g.productMu.Lock()
	defer g.productMu.Unlock()
	return g.productVersion
}

// CallsUsed returns the number of budget units consumed
func (g *APIGateway) CallsUsed() int {
	return g.limiter.Used()
}

// CallsRemaining returns the number of budget units left
func (g *APIGateway) CallsRemaining() int {
	return g.limiter.Remaining()
}

func productName(p domain.Product) string {
	switch p {
	case domain.ProductStream:
		return "Stream"
	case domain.ProductEdge:
		return "Edge"
	case domain.ProductLake:
		return "Lake"
	case domain.ProductSearch:
		return "Search"
	default:
		return "deployment"
	}
}

func httpError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
