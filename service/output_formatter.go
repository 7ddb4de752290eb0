package service

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/flowmetrics/pipecheck/domain"
)

// OutputFormat names a report serialization format
type OutputFormat string

// Supported output formats
const (
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

// ParseOutputFormat validates a format name
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case FormatJSON, FormatYAML:
		return OutputFormat(s), nil
	default:
		return "", domain.NewInvalidInputError(
			fmt.Sprintf("unknown output format %q, must be one of: json, yaml", s), nil)
	}
}

// OutputFormatter serializes analysis runs for presentation layers
type OutputFormatter struct{}

// NewOutputFormatter creates a formatter
func NewOutputFormatter() *OutputFormatter {
	return &OutputFormatter{}
}

// Write serializes the run to w in the given format
func (f *OutputFormatter) Write(run *domain.AnalysisRun, format OutputFormat, w io.Writer) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("failed to encode run as JSON: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("failed to encode run as YAML: %w", err)
		}
		return nil
	default:
		return domain.NewInvalidInputError(fmt.Sprintf("unknown output format %q", format), nil)
	}
}

// WriteConnectionTest serializes a probe result to w
func (f *OutputFormatter) WriteConnectionTest(result domain.ConnectionTestResult, format OutputFormat, w io.Writer) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(result)
	default:
		return domain.NewInvalidInputError(fmt.Sprintf("unknown output format %q", format), nil)
	}
}

// WriteAnalyzerList serializes analyzer metadata to w
func (f *OutputFormatter) WriteAnalyzerList(infos []domain.AnalyzerInfo, format OutputFormat, w io.Writer) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(infos)
	default:
		return domain.NewInvalidInputError(fmt.Sprintf("unknown output format %q", format), nil)
	}
}
