package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CJSESM"

func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

var (
	envBools = map[string]func(*rawConfig) **bool{
		"esm_externals":              func(c *rawConfig) **bool { return &c.EsmExternals },
		"transform_mixed_es_modules": func(c *rawConfig) **bool { return &c.TransformMixedEsModules },
		"ignore_dynamic_requires":    func(c *rawConfig) **bool { return &c.IgnoreDynamicRequires },
		"source_map":                 func(c *rawConfig) **bool { return &c.SourceMap },
		"cache.enabled":              func(c *rawConfig) **bool { return &c.Cache.Enabled },
		"cache.read_only":            func(c *rawConfig) **bool { return &c.Cache.ReadOnly },
	}
	envStrings = map[string]func(*rawConfig) **string{
		"default_is_module_exports": func(c *rawConfig) **string { return &c.DefaultIsModuleExports },
		"dynamic_require_errors":    func(c *rawConfig) **string { return &c.DynamicRequireErrors },
		"require_returns_default":   func(c *rawConfig) **string { return &c.RequireReturnsDefault },
		"link":                      func(c *rawConfig) **string { return &c.Link },
		"cache.path":                func(c *rawConfig) **string { return &c.Cache.Path },
	}
	envLists = map[string]func(*rawConfig) *[]string{
		"include":                 func(c *rawConfig) *[]string { return &c.Include },
		"exclude":                 func(c *rawConfig) *[]string { return &c.Exclude },
		"external":                func(c *rawConfig) *[]string { return &c.External },
		"dynamic_require_targets": func(c *rawConfig) *[]string { return &c.DynamicRequireTargets },
	}
)

// applyEnv overlays CJSESM_* variables onto cfg. Lists are comma separated.
// CJSESM_STRICT_REQUIRES takes a mode name or a comma separated glob list.
func applyEnv(cfg *rawConfig, v *viper.Viper) error {
	for key, field := range envBools {
		if !v.IsSet(key) {
			continue
		}
		value, err := parseEnvBool(key, v.GetString(key))
		if err != nil {
			return err
		}
		*field(cfg) = &value
	}
	for key, field := range envStrings {
		if v.IsSet(key) {
			value := strings.TrimSpace(v.GetString(key))
			*field(cfg) = &value
		}
	}
	for key, field := range envLists {
		if v.IsSet(key) {
			*field(cfg) = splitList(v.GetString(key))
		}
	}
	if v.IsSet("workers") {
		workers := v.GetInt("workers")
		cfg.Workers = &workers
	}
	if v.IsSet("strict_requires") {
		value := strings.TrimSpace(v.GetString("strict_requires"))
		if strings.ContainsAny(value, ",*/") {
			cfg.StrictRequires = splitList(value)
		} else {
			cfg.StrictRequires = value
		}
	}
	return nil
}

func parseEnvBool(key, value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off", "":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s_%s value %q", EnvPrefix, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), value)
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
