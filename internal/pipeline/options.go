package pipeline

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/rollup/plugins-sub001/internal/commonjs"
)

// StrictMode selects which modules are wrapped beyond those whose source
// demands it.
type StrictMode uint8

const (
	// StrictAuto wraps cycle members, dynamic require targets and modules
	// that are only required conditionally.
	StrictAuto StrictMode = iota
	// StrictAlways wraps every CommonJS module.
	StrictAlways
	// StrictNever only wraps modules whose own source requires it.
	StrictNever
	// StrictMatch behaves like StrictAuto and also wraps modules matching
	// the policy globs.
	StrictMatch
)

type StrictPolicy struct {
	Mode  StrictMode
	Globs []string
}

// ParseStrictMode parses the scalar forms of the strictRequires option.
func ParseStrictMode(value string) (StrictMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "auto":
		return StrictAuto, nil
	case "always", "true":
		return StrictAlways, nil
	case "never", "false":
		return StrictNever, nil
	default:
		return 0, fmt.Errorf("invalid strictRequires %q", value)
	}
}

func (p StrictPolicy) graphReasons() bool {
	return p.Mode != StrictNever
}

func (p StrictPolicy) forces(rel string) bool {
	switch p.Mode {
	case StrictAlways:
		return true
	case StrictMatch:
		return matchAny(p.Globs, rel)
	default:
		return false
	}
}

// LinkMode decides how require proxies are addressed.
type LinkMode uint8

const (
	// LinkQuery addresses the proxy of a.js as "./a.js?commonjs-require".
	LinkQuery LinkMode = iota
	// LinkFile addresses it as the sibling file "./a.js.commonjs-require.js".
	LinkFile
)

type Options struct {
	// Root is the project directory. Relative paths in reports, __filename
	// values and filter globs are taken against it.
	Root     string
	Commonjs commonjs.Options
	// Include and Exclude are doublestar globs over root-relative paths. An
	// empty Include admits every module.
	Include []string
	Exclude []string
	Strict  StrictPolicy
	// DynamicRequireTargets are globs of modules that are always wrapped
	// because they may be required by computed paths.
	DynamicRequireTargets []string
	Workers               int
	// Cache is shared across builds when set.
	Cache *Cache
	Link  LinkMode
}

func DefaultOptions(root string) Options {
	return Options{
		Root:     root,
		Commonjs: commonjs.DefaultOptions(),
		Workers:  runtime.NumCPU(),
	}
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.NumCPU()
	}
	return o.Workers
}

// admits reports whether the module at rel is transformed.
func (o Options) admits(rel string) bool {
	if len(o.Include) > 0 && !matchAny(o.Include, rel) {
		return false
	}
	return !matchAny(o.Exclude, rel)
}

func matchAny(globs []string, rel string) bool {
	for _, glob := range globs {
		if ok, err := doublestar.Match(filepath.ToSlash(glob), rel); err == nil && ok {
			return true
		}
	}
	return false
}

// relPath returns the slash-separated path of id below root, or the cleaned
// id itself when it lies outside.
func relPath(root, id string) string {
	if root == "" {
		return filepath.ToSlash(id)
	}
	rel, err := filepath.Rel(root, id)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(filepath.Clean(id))
	}
	return filepath.ToSlash(rel)
}
