package pipeline

import (
	"sort"

	"github.com/rollup/plugins-sub001/internal/commonjs"
	"github.com/rollup/plugins-sub001/internal/dynrequire"
	"github.com/rollup/plugins-sub001/internal/report"
	"github.com/rollup/plugins-sub001/internal/sourcemap"
)

type Kind string

const (
	KindCommonJS Kind = "commonjs"
	KindESM      Kind = "esm"
	KindJSON     Kind = "json"
	// KindExcluded modules are loaded but filtered out of the transform.
	KindExcluded Kind = "excluded"
)

// Module is the finalized record of one module. Records are never modified
// once a phase publishes them; regeneration produces a new record.
type Module struct {
	ID     string
	Rel    string
	Source []byte
	Kind   Kind

	Analysis       *commonjs.Analysis
	Classification commonjs.Classification
	Strategy       commonjs.Strategy
	Sites          []*dynrequire.Site
	// Dependencies are the resolved local modules this one requires or
	// imports, sorted.
	Dependencies []string

	Code        string
	Map         *sourcemap.Map
	Changed     bool
	SideEffects bool
	// Proxy is the module's require proxy. It is set for wrapped modules and
	// for every module another module requires.
	Proxy       *commonjs.Output
	Regenerated bool

	sourceDigest string
	links        []commonjs.Link
	sitePlans    []commonjs.SitePlan
}

// Meta is the per-module information other build steps may query.
type Meta struct {
	IsCommonJS     bool
	Shape          commonjs.Shape
	Names          []string
	HasDynamicKeys bool
	Strict         bool
	Reasons        []string
	Strategy       commonjs.Strategy
}

// Build is the result of a successful graph build.
type Build struct {
	Root    string
	Modules map[string]*Module
	// Order lists module ids sorted by path.
	Order       []string
	Cycles [][]string
	// Diagnostics holds the warnings reported while building.
	Diagnostics []report.Diagnostic
	Cache       *Cache
}

func (b *Build) Module(id string) (*Module, bool) {
	m, ok := b.Modules[id]
	return m, ok
}

// Meta returns the classification facts of id.
func (b *Build) Meta(id string) (Meta, bool) {
	m, ok := b.Modules[id]
	if !ok {
		return Meta{}, false
	}
	return Meta{
		IsCommonJS:     m.Kind == KindCommonJS,
		Shape:          m.Classification.Shape,
		Names:          m.Classification.Names,
		HasDynamicKeys: m.Classification.HasDynamicKeys,
		Strict:         m.Classification.Strict,
		Reasons:        m.Classification.Reasons,
		Strategy:       m.Strategy,
	}, true
}

// Proxy returns the require proxy of the module with the given id.
func (b *Build) Proxy(id string) (*commonjs.Output, bool) {
	m, ok := b.Modules[id]
	if !ok || m.Proxy == nil {
		return nil, false
	}
	return m.Proxy, true
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
