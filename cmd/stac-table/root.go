package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/stactable/stac-table/internal/catalog"
	"github.com/stactable/stac-table/internal/config"
	stacerrors "github.com/stactable/stac-table/internal/errors"
	"github.com/stactable/stac-table/internal/stac"
	"github.com/stactable/stac-table/internal/storage"
)

// cliContext holds the state shared by every command once flags are parsed.
type cliContext struct {
	configFile     string
	envFile        string
	logLevel       string
	logFormat      string
	storageOptions []string
	schemaDir      string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	cc := &cliContext{}
	root := &cobra.Command{
		Use:   "stac-table",
		Short: "generate STAC metadata for Parquet datasets",
		Long: `
Generate STAC Items describing tabular Parquet and GeoParquet datasets with the
table extension: column schema, row count, projection, and spatial and temporal
extent. Collections group items and carry table:columns or table:tables.

Configuration is layered: defaults, then --config, then .env and STACTABLE_*
environment variables, then flags.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cc.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cc.configFile, "config", "", "configuration file (YAML or JSON)")
	pf.StringVar(&cc.envFile, "env-file", "", "dotenv file to load (default: .env when present)")
	pf.StringVar(&cc.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&cc.logFormat, "log-format", "", "log format: text or json")
	pf.StringArrayVar(&cc.storageOptions, "storage-option", nil, "storage backend option as key=value (repeatable)")
	pf.StringVar(&cc.schemaDir, "schema-dir", "", "directory of offline JSON schemas")

	root.AddCommand(
		newItemCommand(cc),
		newCollectionCommand(cc),
		newBatchCommand(cc),
		newVersionCommand(),
	)
	return root
}

// load builds the configuration and the logger.
func (cc *cliContext) load() error {
	if cc.envFile != "" {
		if err := godotenv.Load(cc.envFile); err != nil {
			return stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidOption,
				"load env file "+cc.envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidOption, "load .env", err)
	}

	cfg := config.DefaultConfig()
	if cc.configFile != "" {
		loaded, err := config.LoadFromFile(cc.configFile)
		if err != nil {
			return stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidOption,
				"load configuration", err)
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)

	if cc.logLevel != "" {
		cfg.Log.Level = cc.logLevel
	}
	if cc.logFormat != "" {
		cfg.Log.Format = cc.logFormat
	}
	if cc.schemaDir != "" {
		cfg.Validation.SchemaDir = cc.schemaDir
	}
	opts, err := parseKeyValues(cc.storageOptions)
	if err != nil {
		return err
	}
	for k, v := range opts {
		cfg.Storage.Options[k] = v
	}

	cc.cfg = cfg
	cc.logger = newLogger(cfg.Log)
	slog.SetDefault(cc.logger)
	return nil
}

// validate checks the configuration once command flags are applied.
func (cc *cliContext) validate() error {
	if err := cc.cfg.Validate(); err != nil {
		return stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidOption,
			"invalid configuration", err)
	}
	return nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// validator returns the schema validator, preloaded with the offline
// schemas of the configured schema directory.
func (cc *cliContext) validator() (*stac.JSONSchemaValidator, error) {
	v := stac.NewJSONSchemaValidator(stac.WithValidatorLogger(cc.logger))
	if dir := cc.cfg.Validation.SchemaDir; dir != "" {
		if err := v.LoadSchemaDir(dir); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// parseKeyValues parses key=value pairs. Keys are lowercased.
func parseKeyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, stacerrors.NewInvalidArgumentf(stacerrors.CodeInvalidOption,
				"expected key=value, got %q", kv)
		}
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out, nil
}

// parseJSONValues parses key=value pairs whose values are JSON, falling
// back to the raw string when a value is not valid JSON.
func parseJSONValues(pairs []string) (map[string]interface{}, error) {
	raw, err := parseKeyValues(pairs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		var decoded interface{}
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			decoded = v
		}
		out[k] = decoded
	}
	return out, nil
}

// writeOutput writes doc to output, a local path or object storage URI.
// An empty output or "-" means stdout.
func writeOutput(ctx context.Context, stdout io.Writer, doc interface{}, output string, indent bool, storageOpts map[string]string) error {
	data, err := catalog.Encode(doc, indent)
	if err != nil {
		return err
	}
	if output == "" || output == "-" {
		_, err := stdout.Write(data)
		return err
	}
	store, path, err := storage.Resolve(ctx, output, storageOpts)
	if err != nil {
		return err
	}
	return store.Put(ctx, path, data)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "stac-table version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
