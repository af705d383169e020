package commonjs

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"

	"github.com/rollup/plugins-sub001/internal/dynrequire"
	"github.com/rollup/plugins-sub001/internal/jsast"
	"github.com/rollup/plugins-sub001/internal/report"
	"github.com/rollup/plugins-sub001/internal/sourcemap"
)

// TransformOptions configures a single-module transform.
type TransformOptions struct {
	Options
	// Resolve locates package roots for package-rooted dynamic patterns.
	Resolve dynrequire.ResolveFunc
	// Strict forces the wrapped strategy.
	Strict bool
}

// Result is the outcome of transforming one module without a module graph.
type Result struct {
	// Code is the module replacement. It equals the source when nothing
	// changed.
	Code           string
	Map            *sourcemap.Map
	Changed        bool
	SideEffects    bool
	Proxy          *Output
	Analysis       *Analysis
	Classification Classification
	Strategy       Strategy
	Sites          []*dynrequire.Site
	Diagnostics    []report.Diagnostic
}

// Transform rewrites one module in isolation. Relative requires are linked
// to "<request>?commonjs-require" proxies and bare requires are treated as
// external. Fatal diagnostics are returned as a *report.BuildError.
func Transform(ctx context.Context, source []byte, id string, opts TransformOptions) (*Result, error) {
	analysis, err := Analyze(ctx, jsast.NewParser(), id, source)
	if err != nil {
		return nil, parseFailure(id, err)
	}
	result := &Result{Code: string(source), Analysis: analysis}
	if analysis.File == nil {
		return result, nil
	}

	resolve := opts.Resolve
	if resolve == nil {
		resolve = func(context.Context, string, string) (string, error) { return "", nil }
	}
	sites, err := PlanSites(ctx, analysis, opts.Options, resolve, func(importer, target string) string {
		rel, relErr := filepath.Rel(filepath.Dir(importer), target)
		if relErr != nil {
			rel = target
		}
		return RelativeSpecifier(filepath.ToSlash(rel)) + ProxySuffix
	})
	if err != nil {
		return nil, err
	}
	result.Diagnostics = sites.Diagnostics
	if sites.HasErrors() {
		return nil, &report.BuildError{Diagnostics: sites.Diagnostics}
	}

	var reasons []string
	if opts.Strict {
		reasons = append(reasons, ReasonStrictRequires)
	}
	result.Classification = Classify(analysis, opts.Options, reasons...)
	result.Strategy = StrategyFor(analysis, result.Classification)
	base := path.Base(filepath.ToSlash(id))
	plan := Plan{
		Strategy:       result.Strategy,
		Requires:       standaloneLinks(analysis),
		Sites:          sites.Plans,
		ProxySpecifier: "./" + base + ProxySuffix,
		RelativePath:   base,
	}
	generated, err := Generate(analysis, result.Classification, plan, opts.Options)
	if err != nil {
		return nil, err
	}
	result.Sites = sites.Sites
	result.Proxy = generated.Proxy
	if generated.Module != nil {
		result.Code = generated.Module.Code
		result.Map = generated.Module.Map
		result.Changed = true
		result.SideEffects = generated.Module.SideEffects
	}
	return result, nil
}

// StrategyFor picks the emission strategy of a classified module.
func StrategyFor(analysis *Analysis, class Classification) Strategy {
	switch {
	case !analysis.IsCommonJS:
		return StrategyNone
	case class.Strict:
		return StrategyWrapped
	default:
		return StrategyStatic
	}
}

func standaloneLinks(analysis *Analysis) []Link {
	links := make([]Link, 0, len(analysis.Requires))
	for _, req := range analysis.Requires {
		if IsRelative(req.Request) {
			links = append(links, Link{Specifier: req.Request + ProxySuffix})
			continue
		}
		links = append(links, Link{Specifier: req.Request, External: true})
	}
	return links
}

// IsRelative reports whether a request is resolved against the importer's
// directory.
func IsRelative(request string) bool {
	return request == "." || request == ".." || strings.HasPrefix(request, "./") || strings.HasPrefix(request, "../")
}

// RelativeSpecifier prefixes a slash-separated relative path with "./" when
// it does not already climb out of the directory.
func RelativeSpecifier(rel string) string {
	if strings.HasPrefix(rel, "../") || strings.HasPrefix(rel, "./") {
		return rel
	}
	return "./" + rel
}

// ParseDiagnostic converts a parse failure of id into a fatal located
// diagnostic.
func ParseDiagnostic(id string, err error) report.Diagnostic {
	diagnostic := report.Diagnostic{Severity: report.SeverityError, Code: report.CodeParseError, Message: err.Error()}
	var syntaxErr *jsast.SyntaxError
	if errors.As(err, &syntaxErr) {
		diagnostic.Message = syntaxErr.Message()
		diagnostic.Location = &report.Location{File: id, Line: syntaxErr.Location.Line, Column: syntaxErr.Location.Column}
	}
	return diagnostic
}

func parseFailure(id string, err error) error {
	return &report.BuildError{Diagnostics: []report.Diagnostic{ParseDiagnostic(id, err)}}
}
