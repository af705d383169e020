package pipeline

import (
	"time"

	"github.com/rollup/plugins-sub001/internal/commonjs"
	"github.com/rollup/plugins-sub001/internal/dynrequire"
	"github.com/rollup/plugins-sub001/internal/report"
)

// Report summarizes the build for the formatters.
func (b *Build) Report(now time.Time) report.Report {
	rep := report.Report{
		SchemaVersion: report.SchemaVersion,
		GeneratedAt:   now.UTC(),
		Root:          b.Root,
		Cycles:        b.Cycles,
		Diagnostics:   b.Diagnostics,
		Summary:       &report.Summary{CycleCount: len(b.Cycles)},
	}
	if b.Cache != nil {
		rep.Cache = b.Cache.Metadata()
	}
	for _, id := range b.Order {
		m := b.Modules[id]
		entry := moduleReport(b.Root, m)
		rep.Modules = append(rep.Modules, entry)
		rep.Summary.ModuleCount++
		rep.Summary.DynamicSiteCount += len(entry.DynamicSites)
		if m.Kind != KindCommonJS {
			continue
		}
		rep.Summary.CommonJSCount++
		switch m.Strategy {
		case commonjs.StrategyStatic:
			rep.Summary.StaticCount++
		case commonjs.StrategyWrapped:
			rep.Summary.WrappedCount++
		}
	}
	return rep
}

func moduleReport(root string, m *Module) report.ModuleReport {
	entry := report.ModuleReport{
		ID:          m.Rel,
		Kind:        string(m.Kind),
		Strategy:    m.Strategy.String(),
		SideEffects: m.SideEffects,
		Regenerated: m.Regenerated,
	}
	if m.Kind == KindCommonJS {
		class := m.Classification
		entry.Shape = class.Shape.String()
		entry.Names = class.Names
		entry.HasDynamicKeys = class.HasDynamicKeys
		entry.ESModuleFlag = class.ESModuleFlag
		entry.Reasons = class.Reasons
	}
	for _, site := range m.Sites {
		if site == nil {
			continue
		}
		entry.DynamicSites = append(entry.DynamicSites, siteReport(root, site))
	}
	return entry
}

func siteReport(root string, site *dynrequire.Site) report.DynamicSiteReport {
	matches := make([]string, 0, len(site.Matches))
	for _, match := range site.Matches {
		matches = append(matches, match.Key)
	}
	return report.DynamicSiteReport{
		Kind:           site.Kind.String(),
		Expression:     site.Expression,
		Glob:           site.Glob,
		BareImportRoot: site.BareImportRoot,
		Matches:        matches,
		Location: report.Location{
			File:   relPath(root, site.Location.File),
			Line:   site.Location.Line,
			Column: site.Location.Column,
		},
	}
}
