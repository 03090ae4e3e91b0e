// Package config provides configuration for the stac-table tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration shared by every stac-table command.
type Config struct {
	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`

	// Storage holds default backend connection options, keyed like
	// fsspec storage options (account_name, region, endpoint_url, ...)
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Generate holds the default generation options
	Generate GenerateConfig `json:"generate" yaml:"generate"`

	// Output configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Validation configuration
	Validation ValidationConfig `json:"validation" yaml:"validation"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Format is text or json
	Format string `json:"format" yaml:"format"`
}

// StorageConfig holds storage backend configuration.
type StorageConfig struct {
	// Options are passed to the backend resolved from the dataset URI
	Options map[string]string `json:"options" yaml:"options"`
}

// GenerateConfig holds the default options of a generation run.
type GenerateConfig struct {
	// InferBBox computes the item bbox from the geometry column
	InferBBox bool `json:"infer_bbox" yaml:"infer_bbox"`

	// BBoxColumn names the geometry column used for the bbox (default: primary column)
	BBoxColumn string `json:"bbox_column" yaml:"bbox_column"`

	// InferGeometry computes the item geometry as the union of all geometries
	InferGeometry bool `json:"infer_geometry" yaml:"infer_geometry"`

	// DatetimeColumn is the column used to infer datetimes
	DatetimeColumn string `json:"datetime_column" yaml:"datetime_column"`

	// InferDatetime is one of no, midpoint, unique, range
	InferDatetime string `json:"infer_datetime" yaml:"infer_datetime"`

	// CountRows sets table:row_count
	CountRows bool `json:"count_rows" yaml:"count_rows"`

	// AssetKey is the key of the data asset
	AssetKey string `json:"asset_key" yaml:"asset_key"`

	// Proj extracts projection information
	Proj bool `json:"proj" yaml:"proj"`

	// Validate validates generated documents against their schemas
	Validate bool `json:"validate" yaml:"validate"`
}

// OutputConfig holds output configuration.
type OutputConfig struct {
	// Dir is the output location; a local path or an object storage URI
	Dir string `json:"dir" yaml:"dir"`

	// Indent pretty-prints written documents
	Indent bool `json:"indent" yaml:"indent"`
}

// ValidationConfig holds JSON schema validation configuration.
type ValidationConfig struct {
	// SchemaDir holds offline copies of schemas; files are matched by the
	// URI path below the host, e.g. stac-extensions.github.io/table/v1.2.0/schema.json
	SchemaDir string `json:"schema_dir" yaml:"schema_dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Options: map[string]string{},
		},
		Generate: GenerateConfig{
			InferDatetime: "no",
			CountRows:     true,
			AssetKey:      "data",
			Proj:          true,
			Validate:      true,
		},
		Output: OutputConfig{
			Dir:    ".",
			Indent: true,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	switch c.Generate.InferDatetime {
	case "no", "midpoint", "unique", "range":
	default:
		return fmt.Errorf("invalid generate.infer_datetime: %s (must be no, midpoint, unique, or range)", c.Generate.InferDatetime)
	}

	if c.Generate.InferDatetime != "no" && c.Generate.DatetimeColumn == "" {
		return fmt.Errorf("generate.datetime_column is required when generate.infer_datetime is %s", c.Generate.InferDatetime)
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if cfg.Storage.Options == nil {
		cfg.Storage.Options = map[string]string{}
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the STACTABLE_ prefix; storage options use
// STACTABLE_STORAGE_OPTION_<NAME>, e.g. STACTABLE_STORAGE_OPTION_ACCOUNT_NAME.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("STACTABLE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STACTABLE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Generation defaults
	if v := os.Getenv("STACTABLE_INFER_DATETIME"); v != "" {
		cfg.Generate.InferDatetime = v
	}
	if v := os.Getenv("STACTABLE_DATETIME_COLUMN"); v != "" {
		cfg.Generate.DatetimeColumn = v
	}
	if v := os.Getenv("STACTABLE_COUNT_ROWS"); v != "" {
		cfg.Generate.CountRows = parseBool(v)
	}
	if v := os.Getenv("STACTABLE_PROJ"); v != "" {
		cfg.Generate.Proj = parseBool(v)
	}
	if v := os.Getenv("STACTABLE_VALIDATE"); v != "" {
		cfg.Generate.Validate = parseBool(v)
	}

	// Output configuration
	if v := os.Getenv("STACTABLE_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("STACTABLE_SCHEMA_DIR"); v != "" {
		cfg.Validation.SchemaDir = v
	}

	// Storage options
	const optionPrefix = "STACTABLE_STORAGE_OPTION_"
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, optionPrefix) || value == "" {
			continue
		}
		if cfg.Storage.Options == nil {
			cfg.Storage.Options = map[string]string{}
		}
		cfg.Storage.Options[strings.ToLower(strings.TrimPrefix(key, optionPrefix))] = value
	}
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}
