package commonjs

import (
	"context"
	"errors"
	"fmt"

	"github.com/rollup/plugins-sub001/internal/dynrequire"
	"github.com/rollup/plugins-sub001/internal/jsast"
	"github.com/rollup/plugins-sub001/internal/report"
)

// SiteResult is the outcome of planning the dynamic calls of one module.
type SiteResult struct {
	Plans       []SitePlan
	Sites       []*dynrequire.Site
	Diagnostics []report.Diagnostic
}

// ProxyFunc returns the specifier, as seen from importer, of the require
// proxy of target.
type ProxyFunc func(importer, target string) string

// PlanSites derives the glob of every dynamic require() and import() call,
// enumerates its matches and decides how the call is emitted. Pattern
// violations are returned as error diagnostics unless the options downgrade
// them to warnings.
func PlanSites(ctx context.Context, analysis *Analysis, opts Options, resolve dynrequire.ResolveFunc, proxy ProxyFunc) (*SiteResult, error) {
	result := &SiteResult{
		Plans: make([]SitePlan, len(analysis.DynamicCalls)),
		Sites: make([]*dynrequire.Site, len(analysis.DynamicCalls)),
	}
	rewritesRequires := analysis.IsCommonJS || opts.TransformMixedEsModules
	for i, call := range analysis.DynamicCalls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if call.Kind == dynrequire.KindRequire {
			if !rewritesRequires {
				continue
			}
			if opts.IgnoreDynamicRequires {
				result.Plans[i] = SitePlan{Mode: SiteFallback}
				result.Diagnostics = append(result.Diagnostics, siteDiagnostic(report.SeverityWarning, report.CodeIgnoredDynamicRequire,
					fmt.Sprintf("dynamic require(%s) is left to fail at runtime", analysis.File.Text(call.Argument)), call.Location))
				continue
			}
		}

		site, err := dynrequire.Analyze(ctx, call.Kind, call.Argument, analysis.File, resolve)
		var patternErr *dynrequire.PatternError
		switch {
		case errors.As(err, &patternErr):
			if opts.DynamicRequireErrors != ErrorModeWarn {
				result.Diagnostics = append(result.Diagnostics, siteDiagnostic(report.SeverityError, report.CodeDynamicPattern, patternErr.Message, patternErr.Location))
				continue
			}
			result.Diagnostics = append(result.Diagnostics, siteDiagnostic(report.SeverityWarning, report.CodeDynamicPattern, patternErr.Message, patternErr.Location))
			if call.Kind == dynrequire.KindRequire {
				result.Plans[i] = SitePlan{Mode: SiteFallback}
			}
			continue
		case err != nil:
			return nil, err
		case site == nil:
			if call.Kind == dynrequire.KindRequire {
				result.Plans[i] = SitePlan{Mode: SiteFallback}
			}
			continue
		}

		result.Sites[i] = site
		cases := make([]SiteCase, 0, len(site.Matches))
		for _, match := range site.Matches {
			specifier := match.Key
			if call.Kind == dynrequire.KindRequire {
				specifier = proxy(analysis.ID, match.Path)
			}
			cases = append(cases, SiteCase{Key: match.Key, Specifier: specifier})
		}
		result.Plans[i] = SitePlan{Mode: SiteDispatch, Cases: cases}
	}
	return result, nil
}

func siteDiagnostic(severity report.Severity, code, message string, location jsast.Location) report.Diagnostic {
	return report.Diagnostic{
		Severity: severity,
		Code:     code,
		Message:  message,
		Location: &report.Location{File: location.File, Line: location.Line, Column: location.Column},
	}
}

// HasErrors reports whether any diagnostic is fatal.
func (r *SiteResult) HasErrors() bool {
	for _, diagnostic := range r.Diagnostics {
		if diagnostic.Severity == report.SeverityError {
			return true
		}
	}
	return false
}
