package commonjs

import (
	"fmt"
	"strings"
)

type DefaultMode string

const (
	// DefaultAuto uses exports.default as the ES default when the module sets
	// __esModule, and module.exports otherwise.
	DefaultAuto DefaultMode = "auto"
	// DefaultAlways always uses module.exports as the ES default.
	DefaultAlways DefaultMode = "always"
)

type ReturnsDefault string

const (
	// ReturnsDefaultAuto makes require() of an ES module without named
	// exports return its default export.
	ReturnsDefaultAuto ReturnsDefault = "auto"
	// ReturnsDefaultNamespace always returns the namespace object.
	ReturnsDefaultNamespace ReturnsDefault = "namespace"
)

type ErrorMode string

const (
	ErrorModeError ErrorMode = "error"
	ErrorModeWarn  ErrorMode = "warn"
)

// Options controls per-module generation.
type Options struct {
	DefaultIsModuleExports  DefaultMode
	RequireReturnsDefault   ReturnsDefault
	EsmExternals            bool
	TransformMixedEsModules bool
	IgnoreDynamicRequires   bool
	DynamicRequireErrors    ErrorMode
	SourceMap               bool
}

func DefaultOptions() Options {
	return Options{
		DefaultIsModuleExports: DefaultAuto,
		RequireReturnsDefault:  ReturnsDefaultAuto,
		DynamicRequireErrors:   ErrorModeError,
		SourceMap:              true,
	}
}

func ParseDefaultMode(value string) (DefaultMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(DefaultAuto):
		return DefaultAuto, nil
	case string(DefaultAlways), "true":
		return DefaultAlways, nil
	default:
		return "", fmt.Errorf("invalid defaultIsModuleExports %q", value)
	}
}

func ParseReturnsDefault(value string) (ReturnsDefault, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(ReturnsDefaultAuto):
		return ReturnsDefaultAuto, nil
	case string(ReturnsDefaultNamespace), "false":
		return ReturnsDefaultNamespace, nil
	default:
		return "", fmt.Errorf("invalid requireReturnsDefault %q", value)
	}
}

func ParseErrorMode(value string) (ErrorMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(ErrorModeError):
		return ErrorModeError, nil
	case string(ErrorModeWarn):
		return ErrorModeWarn, nil
	default:
		return "", fmt.Errorf("invalid dynamicRequireErrors %q", value)
	}
}
