package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/connectorkit/openapi2connector/internal/connector"
	"github.com/connectorkit/openapi2connector/internal/spec"
)

// GenerateConfig captures all inputs that influence the generate command
// after merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Spec       string
	Name       string
	Out        string
	Endpoints  []string
	AllSchemas bool
	ConfigPath string
	DryRun     bool
	Force      bool
	Verbose    bool
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Out: "."}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate connector metadata and schema documents from an OpenAPI document",
		Long: "Generate a connector metadata descriptor and a denormalized schema document " +
			"from an OpenAPI 3.x document. Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  openapi2connector generate --spec petstore.yaml --out ./out
  openapi2connector generate --spec https://example.com/openapi.json --name petstore --endpoints "GET /pets"`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("spec", "", "Path or URL to the OpenAPI document")
	flags.String("name", "", "Override the connector name derived from the document title")
	flags.String("out", "", "Output directory (current directory when omitted)")
	flags.StringSlice("endpoints", nil, `Only include these endpoints ("METHOD /path" pairs)`)
	flags.Bool("all-schemas", false, "Include every component schema, not only those endpoints reference")
	flags.String("config", "", "Config file path (YAML)")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output files when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	if flags.Changed("spec") {
		value, err := flags.GetString("spec")
		if err != nil {
			return err
		}
		cfg.Spec = strings.TrimSpace(value)
	}
	if flags.Changed("name") {
		value, err := flags.GetString("name")
		if err != nil {
			return err
		}
		cfg.Name = strings.TrimSpace(value)
	}
	if flags.Changed("out") {
		value, err := flags.GetString("out")
		if err != nil {
			return err
		}
		cfg.Out = strings.TrimSpace(value)
	}
	if flags.Changed("endpoints") {
		value, err := flags.GetStringSlice("endpoints")
		if err != nil {
			return err
		}
		cfg.Endpoints = sanitizeList(value)
	}
	if flags.Changed("all-schemas") {
		value, err := flags.GetBool("all-schemas")
		if err != nil {
			return err
		}
		cfg.AllSchemas = value
	}
	if flags.Changed("dry-run") {
		value, err := flags.GetBool("dry-run")
		if err != nil {
			return err
		}
		cfg.DryRun = value
	}
	if flags.Changed("force") {
		value, err := flags.GetBool("force")
		if err != nil {
			return err
		}
		cfg.Force = value
	}
	if flags.Changed("verbose") {
		value, err := flags.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Spec = strings.TrimSpace(c.Spec)
	c.Name = strings.TrimSpace(c.Name)
	c.Out = strings.TrimSpace(c.Out)
	if c.Out == "" {
		c.Out = "."
	}
	c.Endpoints = sanitizeList(c.Endpoints)
}

func (c *GenerateConfig) validate() error {
	if c.Spec == "" {
		return newUsageError("generate: --spec is required (set via flag or config file)")
	}
	for _, pair := range c.Endpoints {
		if len(strings.Fields(pair)) != 2 {
			return newUsageError(fmt.Sprintf("generate: invalid --endpoints entry %q (want \"METHOD /path\")", pair))
		}
	}
	return nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	logger := newLogger()

	res, err := connector.ResolveEndpoints(ctx, cfg.Spec, spec.NewSelection(cfg.Endpoints), connector.Options{
		Name: cfg.Name,
	})
	if err != nil {
		var se *spec.Error
		if errors.As(err, &se) {
			msg := fmt.Sprintf("spec: %s", se.Message)
			if se.Location != "" {
				msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
			}
			return newUsageError(msg)
		}
		return err
	}
	if v := res.Document.Version(); v != "" && !strings.HasPrefix(v, "3") {
		logger.Warn("document does not declare OpenAPI 3.x, proceeding anyway", "version", v)
	}
	if len(res.Endpoints) == 0 {
		logger.Warn("no endpoints matched", "spec", cfg.Spec)
	}

	artifacts, err := connector.BuildArtifacts(res, cfg.AllSchemas)
	if err != nil {
		return fmt.Errorf("build artifacts: %w", err)
	}

	metaPath := filepath.Join(cfg.Out, res.APIName+"_datasource_plugin_meta.json")
	schemaPath := filepath.Join(cfg.Out, res.APIName+"_default_schema.orx")

	if cfg.DryRun {
		printPlan(cfg.Out, metaPath, schemaPath)
		return nil
	}

	if !cfg.Force {
		for _, p := range []string{metaPath, schemaPath} {
			if _, err := os.Stat(p); err == nil {
				return newUsageError(fmt.Sprintf("generate: %s already exists (use --force to overwrite)", p))
			}
		}
	}

	if err := os.MkdirAll(cfg.Out, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", cfg.Out, err)
	}
	if err := os.WriteFile(metaPath, artifacts.Metadata, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", metaPath, err)
	}
	if err := os.WriteFile(schemaPath, artifacts.Schema, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", schemaPath, err)
	}

	logger.Info("generated connector artifacts",
		"endpoints", len(res.Endpoints),
		"metadata", metaPath,
		"schema", schemaPath)
	return nil
}

func printPlan(outDir string, paths ...string) {
	abs := outDir
	if ap, err := filepath.Abs(outDir); err == nil {
		abs = ap
	}
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", abs, len(paths))
	for _, p := range paths {
		fmt.Fprintf(os.Stdout, "- %s\n", filepath.Base(p))
	}
}

func sanitizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		switch normalizeKey(key) {
		case "spec":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Spec = str
		case "name":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Name = str
		case "out":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Out = str
		case "endpoints":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Endpoints = sanitizeList(list)
		case "allschemas":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.AllSchemas = val
		case "dryrun":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.DryRun = val
		case "force":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Force = val
		case "verbose":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Verbose = val
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
