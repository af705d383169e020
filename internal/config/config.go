// Package config loads project configuration files, follows their extends
// chains and applies CJSESM_ environment overrides.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/rollup/plugins-sub001/internal/commonjs"
	"github.com/rollup/plugins-sub001/internal/pipeline"
	"github.com/rollup/plugins-sub001/internal/safeio"
)

const (
	readConfigFileErrFmt = "read config file %s: %w"
	parseConfigErrFmt    = "parse config file %s: %w"
)

// FileNames are the config files looked up in the project root, in order.
var FileNames = []string{".cjsesm.yml", ".cjsesm.yaml", "cjsesm.json", "cjsesm.toml"}

//go:embed schema.json
var schemaJSON string

var schema = gojsonschema.NewStringLoader(schemaJSON)

// Config is the resolved configuration of one project.
type Config struct {
	Include               []string
	Exclude               []string
	Strict                pipeline.StrictPolicy
	Commonjs              commonjs.Options
	DynamicRequireTargets []string
	Workers               int
	Link                  pipeline.LinkMode
	External              []string
	Cache                 pipeline.CacheOptions
	// Path is the config file that was loaded, empty when none was found.
	Path string
	// Sources lists every applied config file, highest precedence first.
	Sources []string
}

func Defaults() Config {
	return Config{Commonjs: commonjs.DefaultOptions()}
}

// PipelineOptions returns the build options for a project at root. A relative
// cache path is taken against root.
func (c Config) PipelineOptions(root string) pipeline.Options {
	opts := pipeline.DefaultOptions(root)
	opts.Commonjs = c.Commonjs
	opts.Include = c.Include
	opts.Exclude = c.Exclude
	opts.Strict = c.Strict
	opts.DynamicRequireTargets = c.DynamicRequireTargets
	opts.Link = c.Link
	if c.Workers > 0 {
		opts.Workers = c.Workers
	}
	cache := c.Cache
	if cache.Enabled {
		if cache.Path == "" {
			cache.Path = pipeline.DefaultCacheDir
		}
		if !filepath.IsAbs(cache.Path) {
			cache.Path = filepath.Join(root, cache.Path)
		}
	}
	opts.Cache = pipeline.NewCache(cache)
	return opts
}

// Load resolves the configuration of the project at root. explicitPath, when
// set, names the config file and must exist.
func Load(root, explicitPath string) (Config, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return Config{}, fmt.Errorf("resolve project root: %w", err)
	}
	explicitProvided := strings.TrimSpace(explicitPath) != ""
	configPath, found, err := resolveConfigPath(rootAbs, strings.TrimSpace(explicitPath))
	if err != nil {
		return Config{}, err
	}

	merged := rawConfig{}
	var sources []string
	if found {
		resolver := newExtendsResolver(rootAbs)
		result, err := resolver.resolveFile(configPath, explicitProvided)
		if err != nil {
			return Config{}, err
		}
		merged = result.config
		for i := len(result.appliedLow) - 1; i >= 0; i-- {
			sources = append(sources, result.appliedLow[i])
		}
	}
	if err := applyEnv(&merged, newEnv()); err != nil {
		return Config{}, err
	}

	cfg, err := merged.resolve()
	if err != nil {
		if found {
			return Config{}, fmt.Errorf(parseConfigErrFmt, configPath, err)
		}
		return Config{}, err
	}
	if found {
		cfg.Path = configPath
	}
	cfg.Sources = sources
	return cfg, nil
}

func resolveConfigPath(root, explicitPath string) (string, bool, error) {
	if explicitPath != "" {
		candidate := explicitPath
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(root, candidate)
		}
		candidate = filepath.Clean(candidate)
		if _, err := os.Stat(candidate); err != nil {
			if os.IsNotExist(err) {
				return "", false, fmt.Errorf("config file not found: %s", candidate)
			}
			return "", false, fmt.Errorf(readConfigFileErrFmt, candidate, err)
		}
		return candidate, true, nil
	}
	for _, name := range FileNames {
		candidate := filepath.Join(root, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !os.IsNotExist(err) {
			return "", false, fmt.Errorf(readConfigFileErrFmt, candidate, err)
		}
	}
	return "", false, nil
}

func readConfigFile(root, path string, explicitProvided bool) ([]byte, error) {
	if !explicitProvided || isPathUnderRoot(root, path) {
		return safeio.ReadFileUnder(root, path)
	}
	return safeio.ReadFile(path)
}

type rawCache struct {
	Enabled  *bool   `yaml:"enabled" json:"enabled" toml:"enabled"`
	Path     *string `yaml:"path" json:"path" toml:"path"`
	ReadOnly *bool   `yaml:"readOnly" json:"readOnly" toml:"readOnly"`
}

type rawConfig struct {
	Extends                 any      `yaml:"extends" json:"extends" toml:"extends"`
	Include                 []string `yaml:"include" json:"include" toml:"include"`
	Exclude                 []string `yaml:"exclude" json:"exclude" toml:"exclude"`
	StrictRequires          any      `yaml:"strictRequires" json:"strictRequires" toml:"strictRequires"`
	DefaultIsModuleExports  *string  `yaml:"defaultIsModuleExports" json:"defaultIsModuleExports" toml:"defaultIsModuleExports"`
	EsmExternals            *bool    `yaml:"esmExternals" json:"esmExternals" toml:"esmExternals"`
	TransformMixedEsModules *bool    `yaml:"transformMixedEsModules" json:"transformMixedEsModules" toml:"transformMixedEsModules"`
	IgnoreDynamicRequires   *bool    `yaml:"ignoreDynamicRequires" json:"ignoreDynamicRequires" toml:"ignoreDynamicRequires"`
	DynamicRequireErrors    *string  `yaml:"dynamicRequireErrors" json:"dynamicRequireErrors" toml:"dynamicRequireErrors"`
	DynamicRequireTargets   []string `yaml:"dynamicRequireTargets" json:"dynamicRequireTargets" toml:"dynamicRequireTargets"`
	RequireReturnsDefault   *string  `yaml:"requireReturnsDefault" json:"requireReturnsDefault" toml:"requireReturnsDefault"`
	SourceMap               *bool    `yaml:"sourceMap" json:"sourceMap" toml:"sourceMap"`
	Workers                 *int     `yaml:"workers" json:"workers" toml:"workers"`
	Link                    *string  `yaml:"link" json:"link" toml:"link"`
	External                []string `yaml:"external" json:"external" toml:"external"`
	Cache                   rawCache `yaml:"cache" json:"cache" toml:"cache"`
}

// parseConfig validates data against the config schema and decodes it,
// rejecting unknown fields.
func parseConfig(path string, data []byte) (rawConfig, error) {
	format := configFormat(path)
	document, err := decodeDocument(format, data)
	if err != nil {
		return rawConfig{}, err
	}
	if err := validateDocument(document); err != nil {
		return rawConfig{}, err
	}

	var cfg rawConfig
	switch format {
	case "json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return rawConfig{}, fmt.Errorf("invalid JSON config: %w", err)
		}
	case "toml":
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return rawConfig{}, fmt.Errorf("invalid TOML config: %w", err)
		}
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return rawConfig{}, fmt.Errorf("invalid YAML config: %w", err)
		}
	}
	return cfg, nil
}

func configFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

// decodeDocument decodes data into plain maps and slices for schema
// validation. An empty YAML file is an empty object.
func decodeDocument(format string, data []byte) (any, error) {
	var document any
	switch format {
	case "json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		if err := decoder.Decode(&document); err != nil {
			return nil, fmt.Errorf("invalid JSON config: %w", err)
		}
		if decoder.More() {
			return nil, fmt.Errorf("invalid JSON config: multiple JSON values")
		}
	case "toml":
		if err := toml.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("invalid TOML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("invalid YAML config: %w", err)
		}
	}
	if document == nil {
		document = map[string]any{}
	}
	return document, nil
}

func validateDocument(document any) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if result.Valid() {
		return nil
	}
	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
}

// merge overlays higher onto c. Lists replace rather than append.
func (c rawConfig) merge(higher rawConfig) rawConfig {
	merged := c
	merged.Extends = nil
	if len(higher.Include) > 0 {
		merged.Include = append([]string{}, higher.Include...)
	}
	if len(higher.Exclude) > 0 {
		merged.Exclude = append([]string{}, higher.Exclude...)
	}
	if higher.StrictRequires != nil {
		merged.StrictRequires = higher.StrictRequires
	}
	if len(higher.DynamicRequireTargets) > 0 {
		merged.DynamicRequireTargets = append([]string{}, higher.DynamicRequireTargets...)
	}
	if len(higher.External) > 0 {
		merged.External = append([]string{}, higher.External...)
	}
	mergePointer(&merged.DefaultIsModuleExports, higher.DefaultIsModuleExports)
	mergePointer(&merged.EsmExternals, higher.EsmExternals)
	mergePointer(&merged.TransformMixedEsModules, higher.TransformMixedEsModules)
	mergePointer(&merged.IgnoreDynamicRequires, higher.IgnoreDynamicRequires)
	mergePointer(&merged.DynamicRequireErrors, higher.DynamicRequireErrors)
	mergePointer(&merged.RequireReturnsDefault, higher.RequireReturnsDefault)
	mergePointer(&merged.SourceMap, higher.SourceMap)
	mergePointer(&merged.Workers, higher.Workers)
	mergePointer(&merged.Link, higher.Link)
	mergePointer(&merged.Cache.Enabled, higher.Cache.Enabled)
	mergePointer(&merged.Cache.Path, higher.Cache.Path)
	mergePointer(&merged.Cache.ReadOnly, higher.Cache.ReadOnly)
	return merged
}

func mergePointer[T any](target **T, higher *T) {
	if higher != nil {
		*target = higher
	}
}

// resolve turns the merged raw values into a Config on top of the defaults.
func (c rawConfig) resolve() (Config, error) {
	cfg := Defaults()
	cfg.Include = normalizePatterns(c.Include)
	cfg.Exclude = normalizePatterns(c.Exclude)
	cfg.DynamicRequireTargets = normalizePatterns(c.DynamicRequireTargets)
	cfg.External = normalizePatterns(c.External)

	strict, err := parseStrictRequires(c.StrictRequires)
	if err != nil {
		return Config{}, err
	}
	cfg.Strict = strict

	if c.DefaultIsModuleExports != nil {
		if cfg.Commonjs.DefaultIsModuleExports, err = commonjs.ParseDefaultMode(*c.DefaultIsModuleExports); err != nil {
			return Config{}, err
		}
	}
	if c.RequireReturnsDefault != nil {
		if cfg.Commonjs.RequireReturnsDefault, err = commonjs.ParseReturnsDefault(*c.RequireReturnsDefault); err != nil {
			return Config{}, err
		}
	}
	if c.DynamicRequireErrors != nil {
		if cfg.Commonjs.DynamicRequireErrors, err = commonjs.ParseErrorMode(*c.DynamicRequireErrors); err != nil {
			return Config{}, err
		}
	}
	if c.Link != nil {
		if cfg.Link, err = ParseLinkMode(*c.Link); err != nil {
			return Config{}, err
		}
	}
	setBool(&cfg.Commonjs.EsmExternals, c.EsmExternals)
	setBool(&cfg.Commonjs.TransformMixedEsModules, c.TransformMixedEsModules)
	setBool(&cfg.Commonjs.IgnoreDynamicRequires, c.IgnoreDynamicRequires)
	setBool(&cfg.Commonjs.SourceMap, c.SourceMap)
	if c.Workers != nil {
		if *c.Workers < 0 {
			return Config{}, fmt.Errorf("workers must not be negative, got %d", *c.Workers)
		}
		cfg.Workers = *c.Workers
	}
	setBool(&cfg.Cache.Enabled, c.Cache.Enabled)
	setBool(&cfg.Cache.ReadOnly, c.Cache.ReadOnly)
	if c.Cache.Path != nil {
		cfg.Cache.Path = strings.TrimSpace(*c.Cache.Path)
	}
	return cfg, nil
}

func setBool(target *bool, value *bool) {
	if value != nil {
		*target = *value
	}
}

// parseStrictRequires accepts a boolean, a mode name or a list of globs.
func parseStrictRequires(value any) (pipeline.StrictPolicy, error) {
	switch v := value.(type) {
	case nil:
		return pipeline.StrictPolicy{}, nil
	case bool:
		if v {
			return pipeline.StrictPolicy{Mode: pipeline.StrictAlways}, nil
		}
		return pipeline.StrictPolicy{Mode: pipeline.StrictNever}, nil
	case string:
		mode, err := pipeline.ParseStrictMode(v)
		return pipeline.StrictPolicy{Mode: mode}, err
	case []string:
		return pipeline.StrictPolicy{Mode: pipeline.StrictMatch, Globs: normalizePatterns(v)}, nil
	case []any:
		globs, err := stringList("strictRequires", v)
		if err != nil {
			return pipeline.StrictPolicy{}, err
		}
		return pipeline.StrictPolicy{Mode: pipeline.StrictMatch, Globs: normalizePatterns(globs)}, nil
	default:
		return pipeline.StrictPolicy{}, fmt.Errorf("invalid strictRequires %v", value)
	}
}

func ParseLinkMode(value string) (pipeline.LinkMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "query":
		return pipeline.LinkQuery, nil
	case "file":
		return pipeline.LinkFile, nil
	default:
		return 0, fmt.Errorf("invalid link mode %q", value)
	}
}

func stringList(field string, values []any) ([]string, error) {
	out := make([]string, 0, len(values))
	for i, value := range values {
		text, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be a string", field, i)
		}
		out = append(out, text)
	}
	return out, nil
}

func normalizePatterns(patterns []string) []string {
	if len(patterns) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(patterns))
	normalized := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		trimmed := strings.TrimSpace(pattern)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

func isPathUnderRoot(rootPath, targetPath string) bool {
	relative, err := filepath.Rel(rootPath, targetPath)
	if err != nil {
		return false
	}
	return relative != ".." && !strings.HasPrefix(relative, ".."+string(os.PathSeparator))
}
