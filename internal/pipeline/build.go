package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/rollup/plugins-sub001/internal/commonjs"
	"github.com/rollup/plugins-sub001/internal/dynrequire"
	"github.com/rollup/plugins-sub001/internal/graph"
	"github.com/rollup/plugins-sub001/internal/jsast"
	"github.com/rollup/plugins-sub001/internal/output"
	"github.com/rollup/plugins-sub001/internal/report"
	"github.com/rollup/plugins-sub001/internal/resolve"
)

// errModuleFailed stops a wave once a module produced a fatal diagnostic.
var errModuleFailed = errors.New("module failed")

var analyzedExtensions = map[string]bool{
	"":     true,
	".js":  true,
	".cjs": true,
	".mjs": true,
	".jsx": true,
}

type Builder struct {
	opts     Options
	resolver Resolver
	loader   Loader
	reporter Reporter
	parser   *jsast.Parser
}

type BuilderOption func(*Builder)

func WithResolver(resolver Resolver) BuilderOption {
	return func(b *Builder) {
		b.resolver = resolver
	}
}

func WithLoader(loader Loader) BuilderOption {
	return func(b *Builder) {
		b.loader = loader
	}
}

func WithReporter(reporter Reporter) BuilderOption {
	return func(b *Builder) {
		b.reporter = reporter
	}
}

func NewBuilder(opts Options, options ...BuilderOption) *Builder {
	if opts.Cache == nil {
		opts.Cache = NewMemoryCache()
	}
	b := &Builder{
		opts:     opts,
		resolver: resolve.New(nil),
		loader:   FSLoader{},
		reporter: discardReporter{},
		parser:   jsast.NewParser(),
	}
	for _, option := range options {
		option(b)
	}
	return b
}

func (b *Builder) Options() Options {
	return b.opts
}

// discovered is what loading one module contributes to the graph.
type discovered struct {
	module      *Module
	deps        []string
	required    []string
	lazy        []string
	dynamic     []string
	diagnostics []report.Diagnostic
}

func (d *discovered) fatal() bool {
	for _, diagnostic := range d.diagnostics {
		if diagnostic.Severity == report.SeverityError {
			return true
		}
	}
	return false
}

type buildState struct {
	b *Builder

	modules  map[string]*Module
	required map[string]bool
	lazy     map[string]bool
	dynamic  map[string]bool
	fatal    []report.Diagnostic
	warnings []report.Diagnostic
}

// Build loads every module reachable from entries, classifies it against the
// whole graph and generates its output. Fatal diagnostics are returned
// together as a *report.BuildError.
func (b *Builder) Build(ctx context.Context, entries []string) (*Build, error) {
	s := &buildState{
		b:        b,
		modules:  map[string]*Module{},
		required: map[string]bool{},
		lazy:     map[string]bool{},
		dynamic:  map[string]bool{},
	}
	ids, err := s.entryIDs(entries)
	if err != nil {
		return nil, err
	}
	if err := s.discover(ctx, ids); err != nil {
		return nil, err
	}
	output.Phase("discover", len(s.modules))

	g := graph.New()
	for _, id := range sortedModuleIDs(s.modules) {
		g.AddNode(id)
		for _, dep := range s.modules[id].Dependencies {
			if _, ok := s.modules[dep]; ok {
				g.AddEdge(id, dep)
			}
		}
	}
	cycles := g.Cycles()
	reasons := s.graphReasons(g.Members())

	if err := s.generateAll(ctx, 1, s.phaseOne()); err != nil {
		return nil, err
	}
	if err := s.generateAll(ctx, 2, s.phaseTwo(reasons)); err != nil {
		return nil, err
	}
	s.attachProxies()

	build := &Build{
		Root:        b.opts.Root,
		Modules:     s.modules,
		Order:       sortedModuleIDs(s.modules),
		Diagnostics: s.warnings,
		Cache:       b.opts.Cache,
	}
	for _, cycle := range cycles {
		rel := make([]string, 0, len(cycle))
		for _, id := range cycle {
			rel = append(rel, relPath(b.opts.Root, id))
		}
		build.Cycles = append(build.Cycles, rel)
	}
	for _, warning := range b.opts.Cache.Warnings() {
		output.Warn(warning)
	}
	return build, nil
}

// entryIDs makes entries absolute and adds every file matched by the
// dynamic require target globs.
func (s *buildState) entryIDs(entries []string) ([]string, error) {
	root := s.b.opts.Root
	seen := map[string]bool{}
	for _, entry := range entries {
		if !filepath.IsAbs(entry) {
			entry = filepath.Join(root, entry)
		}
		seen[filepath.Clean(entry)] = true
	}
	if len(s.b.opts.DynamicRequireTargets) > 0 && root != "" {
		fsys := os.DirFS(root)
		for _, pattern := range s.b.opts.DynamicRequireTargets {
			matches, err := doublestar.Glob(fsys, strings.TrimPrefix(filepath.ToSlash(pattern), "./"), doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("dynamic require targets %q: %w", pattern, err)
			}
			for _, match := range matches {
				id := filepath.Join(root, filepath.FromSlash(match))
				seen[id] = true
				s.dynamic[id] = true
			}
		}
	}
	return sortedKeys(seen), nil
}

// discover loads the graph breadth first. Each wave loads the modules found
// by the previous one in parallel.
func (s *buildState) discover(ctx context.Context, entries []string) error {
	seen := map[string]bool{}
	for _, id := range entries {
		seen[id] = true
	}
	frontier := entries
	for len(frontier) > 0 {
		results := make([]*discovered, len(frontier))
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(s.b.opts.workers())
		for i, id := range frontier {
			group.Go(func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						results[i] = &discovered{diagnostics: []report.Diagnostic{internalError(relPath(s.b.opts.Root, id), r)}}
						err = errModuleFailed
					}
				}()
				if err := groupCtx.Err(); err != nil {
					return err
				}
				d, err := s.load(groupCtx, id)
				if err != nil {
					return err
				}
				results[i] = d
				if d.fatal() {
					return errModuleFailed
				}
				return nil
			})
		}
		err := group.Wait()

		next := map[string]bool{}
		for _, d := range results {
			if d == nil {
				continue
			}
			s.merge(d)
			for _, dep := range d.deps {
				if !seen[dep] {
					seen[dep] = true
					next[dep] = true
				}
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil && !errors.Is(err, errModuleFailed) && !errors.Is(err, context.Canceled) {
			return err
		}
		if len(s.fatal) > 0 {
			return s.failure()
		}
		frontier = sortedKeys(next)
	}
	return nil
}

func (s *buildState) merge(d *discovered) {
	for _, diagnostic := range d.diagnostics {
		diagnostic = s.relocate(diagnostic)
		if diagnostic.Severity == report.SeverityError {
			s.fatal = append(s.fatal, diagnostic)
			continue
		}
		s.warnings = append(s.warnings, diagnostic)
		s.b.reporter.Warn(diagnostic)
	}
	if d.module != nil {
		s.modules[d.module.ID] = d.module
	}
	for _, id := range d.required {
		s.required[id] = true
	}
	for _, id := range d.lazy {
		s.lazy[id] = true
	}
	for _, id := range d.dynamic {
		s.dynamic[id] = true
	}
}

// relocate rewrites absolute diagnostic paths relative to the root.
func (s *buildState) relocate(diagnostic report.Diagnostic) report.Diagnostic {
	if diagnostic.Location == nil || !filepath.IsAbs(diagnostic.Location.File) {
		return diagnostic
	}
	location := *diagnostic.Location
	location.File = relPath(s.b.opts.Root, location.File)
	diagnostic.Location = &location
	return diagnostic
}

func (s *buildState) failure() error {
	diagnostics := append([]report.Diagnostic(nil), s.fatal...)
	sort.SliceStable(diagnostics, func(i, j int) bool {
		return locationKey(diagnostics[i]) < locationKey(diagnostics[j])
	})
	return &report.BuildError{Diagnostics: diagnostics}
}

func locationKey(diagnostic report.Diagnostic) string {
	if diagnostic.Location == nil {
		return ""
	}
	return fmt.Sprintf("%s:%08d:%08d", diagnostic.Location.File, diagnostic.Location.Line, diagnostic.Location.Column)
}

func internalError(rel string, recovered any) report.Diagnostic {
	return report.Diagnostic{
		Severity: report.SeverityError,
		Code:     report.CodeInternalError,
		Message:  fmt.Sprintf("transform of %s failed: %v", rel, recovered),
		Location: &report.Location{File: rel},
	}
}

// load reads and analyzes one module and resolves what it requires.
func (s *buildState) load(ctx context.Context, id string) (*discovered, error) {
	opts := s.b.opts
	rel := relPath(opts.Root, id)
	source, err := s.b.loader.Load(ctx, id)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return &discovered{diagnostics: []report.Diagnostic{{
			Severity: report.SeverityError,
			Code:     report.CodeLoadError,
			Message:  err.Error(),
			Location: &report.Location{File: rel},
		}}}, nil
	}

	m := &Module{ID: id, Rel: rel, Source: source, Code: string(source), SideEffects: true, sourceDigest: sha256Hex(source)}
	d := &discovered{module: m}
	ext := strings.ToLower(filepath.Ext(id))
	switch {
	case ext == ".json":
		m.Kind = KindJSON
		return d, nil
	case !analyzedExtensions[ext] || !opts.admits(rel):
		m.Kind = KindExcluded
		return d, nil
	}

	analysis, err := commonjs.Analyze(ctx, s.b.parser, id, source)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		d.diagnostics = append(d.diagnostics, commonjs.ParseDiagnostic(rel, err))
		return d, nil
	}
	m.Analysis = analysis
	m.Kind = KindESM
	if analysis.IsCommonJS {
		m.Kind = KindCommonJS
	}

	deps := map[string]bool{}
	if analysis.IsCommonJS || opts.Commonjs.TransformMixedEsModules {
		m.links = make([]commonjs.Link, 0, len(analysis.Requires))
		for _, req := range analysis.Requires {
			link, err := s.link(ctx, m, req, d)
			if err != nil {
				return nil, err
			}
			m.links = append(m.links, link)
			if !link.External {
				target := d.required[len(d.required)-1]
				deps[target] = true
			}
		}
	}
	for _, specifier := range analysis.Imports {
		resolution, err := s.b.resolver.Resolve(ctx, specifier, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			continue
		}
		if !resolution.External && resolution.Path != "" {
			deps[resolution.Path] = true
		}
	}

	sites, err := commonjs.PlanSites(ctx, analysis, opts.Commonjs, s.resolveFile, opts.ProxySpecifier)
	if err != nil {
		return nil, err
	}
	d.diagnostics = append(d.diagnostics, sites.Diagnostics...)
	m.sitePlans = sites.Plans
	m.Sites = sites.Sites
	for _, site := range sites.Sites {
		if site == nil {
			continue
		}
		for _, match := range site.Matches {
			deps[match.Path] = true
			if site.Kind == dynrequire.KindRequire {
				d.required = append(d.required, match.Path)
				d.dynamic = append(d.dynamic, match.Path)
			}
		}
	}
	m.Dependencies = sortedKeys(deps)
	d.deps = m.Dependencies
	return d, nil
}

// link decides what a literal require of m is rewritten to. Local targets
// are recorded in d.required.
func (s *buildState) link(ctx context.Context, m *Module, req commonjs.Require, d *discovered) (commonjs.Link, error) {
	resolution, err := s.b.resolver.Resolve(ctx, req.Request, m.ID)
	switch {
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return commonjs.Link{}, ctxErr
		}
		d.diagnostics = append(d.diagnostics, report.Diagnostic{
			Severity: report.SeverityWarning,
			Code:     report.CodeUnresolvedRequire,
			Message:  fmt.Sprintf("could not resolve %q", req.Request),
			Location: &report.Location{File: m.Rel, Line: req.Location.Line, Column: req.Location.Column},
		})
		return commonjs.Link{Specifier: req.Request, External: true}, nil
	case resolution.External || resolution.Path == "":
		return commonjs.Link{Specifier: req.Request, External: true}, nil
	}
	d.required = append(d.required, resolution.Path)
	if req.Lazy {
		d.lazy = append(d.lazy, resolution.Path)
	}
	return commonjs.Link{Specifier: s.b.opts.ProxySpecifier(m.ID, resolution.Path)}, nil
}

func (s *buildState) resolveFile(ctx context.Context, specifier, importer string) (string, error) {
	resolution, err := s.b.resolver.Resolve(ctx, specifier, importer)
	if err != nil {
		return "", err
	}
	return resolution.Path, nil
}

// graphReasons collects the strictness reasons only the whole graph knows.
func (s *buildState) graphReasons(cycleMembers map[string]bool) map[string][]string {
	policy := s.b.opts.Strict
	reasons := map[string][]string{}
	for id, m := range s.modules {
		if m.Kind != KindCommonJS {
			continue
		}
		var list []string
		if policy.graphReasons() {
			if cycleMembers[id] {
				list = append(list, commonjs.ReasonCycle)
			}
			if s.dynamic[id] {
				list = append(list, commonjs.ReasonDynamicTarget)
			}
			if s.lazy[id] {
				list = append(list, commonjs.ReasonConditional)
			}
		}
		if policy.forces(m.Rel) {
			list = append(list, commonjs.ReasonStrictRequires)
		}
		if len(list) > 0 {
			reasons[id] = list
		}
	}
	return reasons
}

// phaseTask generates one module with the given graph reasons.
type phaseTask struct {
	id      string
	reasons []string
}

func (s *buildState) phaseOne() []phaseTask {
	tasks := make([]phaseTask, 0, len(s.modules))
	for _, id := range sortedModuleIDs(s.modules) {
		if s.modules[id].Analysis != nil {
			tasks = append(tasks, phaseTask{id: id})
		}
	}
	return tasks
}

func (s *buildState) phaseTwo(reasons map[string][]string) []phaseTask {
	tasks := make([]phaseTask, 0, len(reasons))
	for _, id := range sortedKeys(setOf(reasons)) {
		tasks = append(tasks, phaseTask{id: id, reasons: reasons[id]})
	}
	return tasks
}

func setOf(reasons map[string][]string) map[string]bool {
	set := make(map[string]bool, len(reasons))
	for id := range reasons {
		set[id] = true
	}
	return set
}

// generateAll runs one generation phase. Records of the previous phase are
// read concurrently and replaced only after every task finished.
func (s *buildState) generateAll(ctx context.Context, phase int, tasks []phaseTask) error {
	results := make([]*Module, len(tasks))
	failures := make([]*report.Diagnostic, len(tasks))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.b.opts.workers())
	for i, task := range tasks {
		current := s.modules[task.id]
		group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					diagnostic := internalError(current.Rel, r)
					failures[i] = &diagnostic
					err = errModuleFailed
				}
			}()
			if err := groupCtx.Err(); err != nil {
				return err
			}
			next, err := s.generate(current, phase, task.reasons)
			if err != nil {
				diagnostic := report.Diagnostic{
					Severity: report.SeverityError,
					Code:     report.CodeInternalError,
					Message:  err.Error(),
					Location: &report.Location{File: current.Rel},
				}
				failures[i] = &diagnostic
				return errModuleFailed
			}
			results[i] = next
			return nil
		})
	}
	err := group.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	for _, failure := range failures {
		if failure != nil {
			s.fatal = append(s.fatal, *failure)
		}
	}
	if len(s.fatal) > 0 {
		return s.failure()
	}
	if err != nil {
		return err
	}
	for _, next := range results {
		if next != nil {
			s.modules[next.ID] = next
		}
	}
	name := "generate"
	if phase > 1 {
		name = "regenerate"
	}
	output.Phase(name, len(tasks))
	return nil
}

// cacheSlot identifies the option set a module was generated under.
type cacheSlot struct {
	Options  commonjs.Options  `json:"options"`
	Link     LinkMode          `json:"link"`
	Root     string            `json:"root"`
	Strategy commonjs.Strategy `json:"strategy"`
}

type cacheInput struct {
	Source         string                  `json:"source"`
	Classification commonjs.Classification `json:"classification"`
	Plan           commonjs.Plan           `json:"plan"`
}

// generate returns a new record for current classified with reasons. In the
// second phase a module whose strategy is unchanged keeps its code and only
// gets the new classification.
func (s *buildState) generate(current *Module, phase int, reasons []string) (*Module, error) {
	opts := s.b.opts
	class := commonjs.Classify(current.Analysis, opts.Commonjs, reasons...)
	strategy := commonjs.StrategyFor(current.Analysis, class)
	next := *current
	next.Classification = class
	next.Strategy = strategy
	if phase > 1 && strategy == current.Strategy {
		return &next, nil
	}
	next.Regenerated = phase > 1

	plan := commonjs.Plan{
		Strategy:       strategy,
		Requires:       current.links,
		Sites:          current.sitePlans,
		ProxySpecifier: opts.ProxySpecifier(current.ID, current.ID),
		RelativePath:   current.Rel,
	}
	entry, err := newCacheEntry(current.ID,
		cacheSlot{Options: opts.Commonjs, Link: opts.Link, Root: opts.Root, Strategy: strategy},
		cacheInput{Source: current.sourceDigest, Classification: class, Plan: plan})
	if err != nil {
		return nil, err
	}
	value, ok := opts.Cache.lookup(entry)
	if !ok {
		generated, err := commonjs.Generate(current.Analysis, class, plan, opts.Commonjs)
		if err != nil {
			return nil, err
		}
		value = cachedOutput{Code: string(current.Source), SideEffects: true, Proxy: generated.Proxy}
		if generated.Module != nil {
			value.Code = generated.Module.Code
			value.Map = generated.Module.Map
			value.SideEffects = generated.Module.SideEffects
			value.Changed = true
		}
		if err := opts.Cache.store(entry, value); err != nil {
			output.Module(current.Rel).Warn("module cache write failed", "err", err)
		}
	}
	next.Code = value.Code
	next.Map = value.Map
	next.Changed = value.Changed
	next.SideEffects = value.SideEffects
	next.Proxy = value.Proxy

	if current.Kind == KindCommonJS {
		output.Module(current.Rel).Debug("module generated", "shape", class.Shape, "strict", class.Strict, output.KeyPhase, phase)
	}
	return &next, nil
}

// attachProxies gives every required module that is not wrapped its proxy.
func (s *buildState) attachProxies() {
	for id := range s.required {
		m, ok := s.modules[id]
		if !ok || m.Strategy == commonjs.StrategyWrapped {
			continue
		}
		kind := commonjs.TargetESM
		switch {
		case m.Kind == KindJSON:
			kind = commonjs.TargetJSON
		case m.Kind == KindCommonJS:
			kind = commonjs.TargetCommonJS
		}
		next := *m
		next.Proxy = commonjs.Proxy(kind, "./"+path.Base(filepath.ToSlash(id)), s.b.opts.Commonjs)
		s.modules[id] = &next
	}
}

func sortedModuleIDs(modules map[string]*Module) []string {
	ids := make([]string, 0, len(modules))
	for id := range modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
