// Package config loads and validates the toolchain configuration from
// JSON or YAML files, with .env overlay for AI credentials.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface. Zero values are replaced by
// defaults in Default(); files only need to set what they change.
type Config struct {
	// Validation stage toggles.
	EnableSyntaxValidation bool `json:"enable_syntax_validation" yaml:"enable_syntax_validation"`
	EnableTestValidation   bool `json:"enable_test_validation" yaml:"enable_test_validation"`
	EnableAIValidation     bool `json:"enable_ai_validation" yaml:"enable_ai_validation"`
	StopOnFirstFailure     bool `json:"stop_on_first_failure" yaml:"stop_on_first_failure"`

	// Test stage settings.
	TestTimeout     int      `json:"test_timeout" yaml:"test_timeout"` // seconds
	TestPatterns    []string `json:"test_patterns" yaml:"test_patterns"`
	TestDirectories []string `json:"test_directories" yaml:"test_directories"`

	// AI backend tuning.
	AIModel       string  `json:"ai_model" yaml:"ai_model"`
	AIMaxTokens   int     `json:"ai_max_tokens" yaml:"ai_max_tokens"`
	AITemperature float32 `json:"ai_temperature" yaml:"ai_temperature"`
	AITimeout     int     `json:"ai_timeout" yaml:"ai_timeout"` // seconds per request

	// Extraction settings.
	IncludePatterns []string `json:"include_patterns" yaml:"include_patterns"`
	ExcludePatterns []string `json:"exclude_patterns" yaml:"exclude_patterns"`
	Concurrency     int      `json:"concurrency" yaml:"concurrency"`

	// Entry point heuristic.
	EntryPointNames []string `json:"entry_point_names" yaml:"entry_point_names"`
	EntryPointFiles []string `json:"entry_point_files" yaml:"entry_point_files"`

	// Output settings.
	OutputFormat   string `json:"output_format" yaml:"output_format"` // json, yaml, text
	SaveReport     bool   `json:"save_report" yaml:"save_report"`
	ReportFilename string `json:"report_filename" yaml:"report_filename"`
}

// Default returns the configuration used when no file overrides it.
// Values mirror the defaults the validation system has always shipped with.
func Default() *Config {
	return &Config{
		EnableSyntaxValidation: true,
		EnableTestValidation:   true,
		EnableAIValidation:     true,
		StopOnFirstFailure:     false,
		TestTimeout:            300,
		TestPatterns:           []string{"test_*", "*_test.*", "*.test.*"},
		TestDirectories:        []string{"tests", "test"},
		AIModel:                "gpt-4",
		AIMaxTokens:            2000,
		AITemperature:          0.1,
		AITimeout:              60,
		IncludePatterns:        []string{"*"},
		ExcludePatterns: []string{
			".git", ".codegen", "node_modules", "vendor", "dist",
			"__pycache__", ".venv", "venv", "*.min.js",
		},
		Concurrency:     4,
		EntryPointNames: []string{"main", "run"},
		EntryPointFiles: []string{"main", "app", "index"},
		OutputFormat:    "json",
		SaveReport:      true,
		ReportFilename:  "validation_report.json",
	}
}

// Load reads a config file (JSON or YAML, by extension) over the defaults.
// An empty path returns the defaults untouched. A .env file next to the
// config (or in the working directory) is loaded first so AI credentials
// are available without exporting them by hand.
func Load(path string) (*Config, error) {
	// Missing .env is fine; it only exists in configured environments.
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// Validate reports every invalid setting rather than stopping at the first.
func (c *Config) Validate() []string {
	var errs []string
	if c.TestTimeout <= 0 {
		errs = append(errs, "test_timeout must be positive")
	}
	if c.AIMaxTokens <= 0 {
		errs = append(errs, "ai_max_tokens must be positive")
	}
	if c.AITemperature < 0 || c.AITemperature > 2 {
		errs = append(errs, "ai_temperature must be between 0 and 2")
	}
	if c.Concurrency <= 0 {
		errs = append(errs, "concurrency must be positive")
	}
	switch c.OutputFormat {
	case "json", "yaml", "text":
	default:
		errs = append(errs, "output_format must be json, yaml, or text")
	}
	return errs
}
