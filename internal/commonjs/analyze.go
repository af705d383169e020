// Package commonjs detects CommonJS modules, classifies their export shape
// and rewrites them into ES modules.
package commonjs

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rollup/plugins-sub001/internal/dynrequire"
	"github.com/rollup/plugins-sub001/internal/jsast"
)

// Span is a byte range of the original source.
type Span struct {
	Start int
	End   int
}

func spanOf(node *sitter.Node) Span {
	return Span{Start: int(node.StartByte()), End: int(node.EndByte())}
}

// Require is a require() call whose argument folds to a literal string.
type Require struct {
	Request  string
	Call     Span
	Lazy     bool
	Location jsast.Location
}

// DynamicCall is a require() or import() call with a computed argument.
type DynamicCall struct {
	Kind     dynrequire.Kind
	Callee   Span
	Argument *sitter.Node
	Location jsast.Location
}

// Ref is a free reference to one of the CommonJS module-scope bindings.
type Ref struct {
	Name string
	Span
	Shorthand bool
}

// Analysis holds the facts read from one module. It is computed once per
// source text and never modified afterwards.
type Analysis struct {
	ID              string
	File            *jsast.File
	IsCommonJS      bool
	HasESMSyntax    bool
	UsesNodeGlobals bool
	ESModuleFlag    bool
	TopLevelReturn  bool
	TopLevelThis    bool
	Hashbang        *Span

	Requires     []Require
	DynamicCalls []DynamicCall
	// Imports lists the sources of static ES imports, re-exports and
	// literal import() calls.
	Imports      []string
	BareRequires []Ref
	ModuleRefs   []Ref
	GlobalRefs   []Ref
	Identifiers  map[string]bool

	writes      []exportWrite
	topShadowed map[string]bool
}

var commonJSTokens = regexp.MustCompile(`\b(?:require|module|exports|__filename|__dirname|import|export)\b`)

// Analyze parses source and collects the CommonJS facts of the module. Source
// that mentions none of the relevant tokens is not parsed at all.
func Analyze(ctx context.Context, parser *jsast.Parser, id string, source []byte) (*Analysis, error) {
	analysis := &Analysis{ID: id, Identifiers: map[string]bool{}}
	if !commonJSTokens.Match(source) {
		return analysis, nil
	}
	file, err := parser.Parse(ctx, id, source)
	if err != nil {
		return nil, err
	}
	analysis.File = file
	scan(analysis)

	ext := strings.ToLower(filepath.Ext(id))
	switch {
	case analysis.HasESMSyntax || ext == ".mjs":
		analysis.IsCommonJS = false
	case ext == ".cjs":
		analysis.IsCommonJS = true
	default:
		analysis.IsCommonJS = analysis.hasCommonJSConstructs()
	}
	analysis.UsesNodeGlobals = len(analysis.GlobalRefs) > 0
	return analysis, nil
}

func (a *Analysis) hasCommonJSConstructs() bool {
	if len(a.Requires) > 0 || len(a.BareRequires) > 0 || len(a.ModuleRefs) > 0 || len(a.GlobalRefs) > 0 {
		return true
	}
	for _, call := range a.DynamicCalls {
		if call.Kind == dynrequire.KindRequire {
			return true
		}
	}
	return false
}

// HasRequires reports whether the module calls require at all.
func (a *Analysis) HasRequires() bool {
	if len(a.Requires) > 0 || len(a.BareRequires) > 0 {
		return true
	}
	for _, call := range a.DynamicCalls {
		if call.Kind == dynrequire.KindRequire {
			return true
		}
	}
	return false
}

// Source returns the original module text.
func (a *Analysis) Source() string {
	if a.File == nil {
		return ""
	}
	return string(a.File.Content)
}
