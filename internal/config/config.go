package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default connection settings
const (
	// DefaultRequestTimeout bounds a single management API request
	DefaultRequestTimeout = 30 * time.Second

	// DefaultProduct is assumed when the deployment does not advertise one
	DefaultProduct = "stream"
)

// Default budget settings
const (
	// DefaultMaxCalls is the hard per-run API call ceiling
	DefaultMaxCalls = 100

	// DefaultWindowSeconds is the sliding rate window length
	DefaultWindowSeconds = 300

	// DefaultInitialBackoffSeconds is the first retry delay after a failure
	DefaultInitialBackoffSeconds = 1.0

	// DefaultMaxBackoffSeconds caps the exponential backoff delay
	DefaultMaxBackoffSeconds = 60.0

	// DefaultBackoffMultiplier is the exponential backoff growth factor
	DefaultBackoffMultiplier = 2.0
)

// Default analysis settings
const (
	// DefaultConcurrency of 1 runs analyzers sequentially so call ordering
	// stays deterministic
	DefaultConcurrency = 1
)

// EnvPrefix is the prefix for environment variable overrides
const EnvPrefix = "PIPECHECK"

// Config represents the main configuration structure
type Config struct {
	// Connection holds the management API endpoint settings
	Connection ConnectionConfig `json:"connection" mapstructure:"connection" yaml:"connection"`

	// Budget holds the call budget and rate limit settings
	Budget BudgetConfig `json:"budget" mapstructure:"budget" yaml:"budget"`

	// Analysis holds analyzer selection and execution settings
	Analysis AnalysisConfig `json:"analysis" mapstructure:"analysis" yaml:"analysis"`

	// Output holds output formatting configuration
	Output OutputConfig `json:"output" mapstructure:"output" yaml:"output"`
}

// ConnectionConfig holds settings for reaching the management API
type ConnectionConfig struct {
	// BaseURL is the root of the management API, e.g. https://deployment.example.com:9000
	BaseURL string `json:"base_url" mapstructure:"base_url" yaml:"base_url"`

	// AuthToken is the bearer token presented on every request
	AuthToken string `json:"auth_token" mapstructure:"auth_token" yaml:"auth_token"`

	// TimeoutSeconds bounds a single request
	TimeoutSeconds float64 `json:"timeout_seconds" mapstructure:"timeout_seconds" yaml:"timeout_seconds"`

	// Product identifies the deployment flavor: stream, edge, lake, search
	Product string `json:"product" mapstructure:"product" yaml:"product"`

	// DeploymentID labels the deployment in reports. Defaults to the host
	// portion of BaseURL when empty.
	DeploymentID string `json:"deployment_id" mapstructure:"deployment_id" yaml:"deployment_id"`

	// InsecureSkipVerify disables TLS certificate verification
	InsecureSkipVerify bool `json:"insecure_skip_verify" mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// BudgetConfig holds the shared call budget and backoff settings
type BudgetConfig struct {
	// MaxCalls is the hard per-run ceiling on management API calls
	MaxCalls int `json:"max_calls" mapstructure:"max_calls" yaml:"max_calls"`

	// WindowSeconds is the sliding rate window length
	WindowSeconds float64 `json:"window_seconds" mapstructure:"window_seconds" yaml:"window_seconds"`

	// EnableBackoff turns exponential backoff after failures on or off
	EnableBackoff bool `json:"enable_backoff" mapstructure:"enable_backoff" yaml:"enable_backoff"`

	// InitialBackoffSeconds is the first backoff delay
	InitialBackoffSeconds float64 `json:"initial_backoff_seconds" mapstructure:"initial_backoff_seconds" yaml:"initial_backoff_seconds"`

	// MaxBackoffSeconds caps the backoff delay
	MaxBackoffSeconds float64 `json:"max_backoff_seconds" mapstructure:"max_backoff_seconds" yaml:"max_backoff_seconds"`

	// BackoffMultiplier is the backoff growth factor
	BackoffMultiplier float64 `json:"backoff_multiplier" mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`
}

// AnalysisConfig holds analyzer selection and execution settings
type AnalysisConfig struct {
	// Objectives selects which analyzers run. Empty means all registered.
	Objectives []string `json:"objectives" mapstructure:"objectives" yaml:"objectives"`

	// Concurrency is the number of analyzers allowed to run at once.
	// 1 means sequential execution.
	Concurrency int `json:"concurrency" mapstructure:"concurrency" yaml:"concurrency"`
}

// OutputConfig holds configuration for output formatting
type OutputConfig struct {
	// Format specifies the output format: json, yaml
	Format string `json:"format" mapstructure:"format" yaml:"format"`

	// Path writes the report to a file instead of stdout when set
	Path string `json:"path,omitempty" mapstructure:"path" yaml:"path,omitempty"`

	// ShowProgress controls the interactive progress display
	ShowProgress bool `json:"show_progress" mapstructure:"show_progress" yaml:"show_progress"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Connection: ConnectionConfig{
			TimeoutSeconds: DefaultRequestTimeout.Seconds(),
			Product:        DefaultProduct,
		},
		Budget: BudgetConfig{
			MaxCalls:              DefaultMaxCalls,
			WindowSeconds:         DefaultWindowSeconds,
			EnableBackoff:         true,
			InitialBackoffSeconds: DefaultInitialBackoffSeconds,
			MaxBackoffSeconds:     DefaultMaxBackoffSeconds,
			BackoffMultiplier:     DefaultBackoffMultiplier,
		},
		Analysis: AnalysisConfig{
			Objectives:  []string{},
			Concurrency: DefaultConcurrency,
		},
		Output: OutputConfig{
			Format:       "json",
			ShowProgress: true,
		},
	}
}

// LoadConfig loads configuration from the given file, or discovers one
// when path is empty. Environment variables with the PIPECHECK_ prefix
// override file values; a .env file in the working directory is loaded
// first if present.
func LoadConfig(configPath string) (*Config, error) {
	// Best effort: a missing .env file is not an error
	_ = godotenv.Load()

	if configPath == "" {
		configPath = findDefaultConfig()
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	config := DefaultConfig()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnvKeys makes env-only overrides visible to Unmarshal. AutomaticEnv
// alone does not surface keys absent from the config file.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"connection.base_url",
		"connection.auth_token",
		"connection.timeout_seconds",
		"connection.product",
		"connection.deployment_id",
		"connection.insecure_skip_verify",
		"budget.max_calls",
		"budget.window_seconds",
		"budget.enable_backoff",
		"budget.initial_backoff_seconds",
		"budget.max_backoff_seconds",
		"budget.backoff_multiplier",
		"analysis.concurrency",
		"output.format",
		"output.path",
		"output.show_progress",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// searchConfigInDirectory searches for configuration files in a specific directory
func searchConfigInDirectory(dir string, candidates []string) string {
	for _, candidate := range candidates {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// findDefaultConfig looks for default configuration files in common locations
func findDefaultConfig() string {
	candidates := []string{
		"pipecheck.yaml",
		"pipecheck.yml",
		".pipecheck.yaml",
		".pipecheck.yml",
	}

	if config := searchConfigInDirectory(".", candidates); config != "" {
		return config
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		if config := searchConfigInDirectory(filepath.Join(xdgConfig, "pipecheck"), candidates); config != "" {
			return config
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		if config := searchConfigInDirectory(filepath.Join(home, ".config", "pipecheck"), candidates); config != "" {
			return config
		}
	}

	if envConfig := os.Getenv(EnvPrefix + "_CONFIG"); envConfig != "" {
		if _, err := os.Stat(envConfig); err == nil {
			return envConfig
		}
	}

	return ""
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	if c.Connection.TimeoutSeconds <= 0 {
		return fmt.Errorf("connection.timeout_seconds must be > 0, got %v", c.Connection.TimeoutSeconds)
	}

	validProducts := map[string]bool{
		"stream": true,
		"edge":   true,
		"lake":   true,
		"search": true,
	}
	if !validProducts[c.Connection.Product] {
		return fmt.Errorf("invalid connection.product '%s', must be one of: stream, edge, lake, search", c.Connection.Product)
	}

	if c.Budget.MaxCalls < 1 {
		return fmt.Errorf("budget.max_calls must be >= 1, got %d", c.Budget.MaxCalls)
	}
	if c.Budget.WindowSeconds <= 0 {
		return fmt.Errorf("budget.window_seconds must be > 0, got %v", c.Budget.WindowSeconds)
	}
	if c.Budget.InitialBackoffSeconds <= 0 {
		return fmt.Errorf("budget.initial_backoff_seconds must be > 0, got %v", c.Budget.InitialBackoffSeconds)
	}
	if c.Budget.MaxBackoffSeconds < c.Budget.InitialBackoffSeconds {
		return fmt.Errorf("budget.max_backoff_seconds (%v) must be >= initial_backoff_seconds (%v)",
			c.Budget.MaxBackoffSeconds, c.Budget.InitialBackoffSeconds)
	}
	if c.Budget.BackoffMultiplier < 1 {
		return fmt.Errorf("budget.backoff_multiplier must be >= 1, got %v", c.Budget.BackoffMultiplier)
	}

	if c.Analysis.Concurrency < 1 {
		return fmt.Errorf("analysis.concurrency must be >= 1, got %d", c.Analysis.Concurrency)
	}

	validFormats := map[string]bool{
		"json": true,
		"yaml": true,
	}
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("invalid output.format '%s', must be one of: json, yaml", c.Output.Format)
	}

	return nil
}

// RequestTimeout returns the per-request timeout as a duration
func (c *ConnectionConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// EffectiveDeploymentID returns the configured deployment label, falling
// back to the base URL host when unset
func (c *ConnectionConfig) EffectiveDeploymentID() string {
	if c.DeploymentID != "" {
		return c.DeploymentID
	}
	id := c.BaseURL
	id = strings.TrimPrefix(id, "https://")
	id = strings.TrimPrefix(id, "http://")
	if i := strings.IndexAny(id, "/:"); i >= 0 {
		id = id[:i]
	}
	if id == "" {
		return "unknown"
	}
	return id
}

// Window returns the rate window as a duration
func (c *BudgetConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds * float64(time.Second))
}

// InitialBackoff returns the initial backoff delay as a duration
func (c *BudgetConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffSeconds * float64(time.Second))
}

// MaxBackoff returns the backoff cap as a duration
func (c *BudgetConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffSeconds * float64(time.Second))
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("connection", config.Connection)
	v.Set("budget", config.Budget)
	v.Set("analysis", config.Analysis)
	v.Set("output", config.Output)

	return v.WriteConfig()
}
