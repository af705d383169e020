package commonjs

import (
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rollup/plugins-sub001/internal/dynrequire"
	"github.com/rollup/plugins-sub001/internal/jsast"
	"github.com/rollup/plugins-sub001/internal/sourcemap"
	"github.com/rollup/plugins-sub001/internal/splice"
)

// ProxySuffix marks the specifier of a module's require proxy.
const ProxySuffix = "?commonjs-require"

// Link is what a literal require() call is rewritten to.
type Link struct {
	// Specifier is imported in place of the original request.
	Specifier string
	// External targets are imported directly instead of through a proxy.
	External bool
}

type SiteMode uint8

const (
	// SiteKeep leaves the call untouched.
	SiteKeep SiteMode = iota
	// SiteDispatch routes the call through a generated switch.
	SiteDispatch
	// SiteFallback routes a require through a stand-in that throws.
	SiteFallback
)

type SiteCase struct {
	Key       string
	Specifier string
}

type SitePlan struct {
	Mode  SiteMode
	Cases []SiteCase
}

// Plan carries the graph decisions generation depends on. Requires and Sites
// run parallel to Analysis.Requires and Analysis.DynamicCalls.
type Plan struct {
	Strategy Strategy
	Requires []Link
	Sites    []SitePlan
	// ProxySpecifier is the module's own require proxy as imported by the
	// module face of a wrapped module.
	ProxySpecifier string
	// RelativePath is the slash-separated path from the project root, used
	// for __filename and __dirname.
	RelativePath string
}

type Output struct {
	Code        string
	Map         *sourcemap.Map
	SideEffects bool
}

// Generated is the emitted code for one module. Module replaces the module
// source and is nil when nothing changed. Proxy is set for wrapped modules
// and holds the deferred factory.
type Generated struct {
	Module *Output
	Proxy  *Output
}

type generator struct {
	analysis *Analysis
	class    Classification
	plan     Plan
	opts     Options
	names    *namer
	editor   *splice.Editor
	base     string

	imports      []string
	bindings     map[string]string
	requireCount int
	helpers      []string
	normalize    string
	fallback     string
}

// Generate emits the module according to plan.Strategy.
func Generate(analysis *Analysis, class Classification, plan Plan, opts Options) (*Generated, error) {
	if analysis.File == nil {
		return &Generated{}, nil
	}
	g := &generator{
		analysis: analysis,
		class:    class,
		plan:     plan,
		opts:     opts,
		names:    newNamer(analysis.Identifiers),
		editor:   splice.New(analysis.Source()),
		base:     baseName(analysis.ID),
		bindings: map[string]string{},
	}
	if err := g.rewriteCalls(); err != nil {
		return nil, fmt.Errorf("generate %s: %w", analysis.ID, err)
	}
	if plan.Strategy != StrategyNone && !analysis.IsCommonJS {
		return nil, fmt.Errorf("generate %s: %s strategy needs a CommonJS module", analysis.ID, plan.Strategy)
	}

	var (
		generated *Generated
		err       error
	)
	switch plan.Strategy {
	case StrategyStatic:
		generated, err = g.static()
	case StrategyWrapped:
		generated, err = g.wrapped()
	default:
		generated, err = g.passthrough()
	}
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", analysis.ID, err)
	}
	return generated, nil
}

func (g *generator) rewriteCalls() error {
	a := g.analysis
	if a.IsCommonJS || g.opts.TransformMixedEsModules {
		if len(g.plan.Requires) != len(a.Requires) {
			return fmt.Errorf("plan links %d of %d requires", len(g.plan.Requires), len(a.Requires))
		}
		for i, req := range a.Requires {
			if err := g.editor.Overwrite(req.Call.Start, req.Call.End, g.requireExpression(g.plan.Requires[i])); err != nil {
				return err
			}
		}
	}

	if len(g.plan.Sites) != 0 && len(g.plan.Sites) != len(a.DynamicCalls) {
		return fmt.Errorf("plan covers %d of %d dynamic calls", len(g.plan.Sites), len(a.DynamicCalls))
	}
	for i, site := range g.plan.Sites {
		call := a.DynamicCalls[i]
		var callee string
		switch site.Mode {
		case SiteDispatch:
			callee = g.dispatch(call.Kind, site.Cases)
		case SiteFallback:
			callee = g.fallbackName()
		default:
			continue
		}
		if err := g.editor.Overwrite(call.Callee.Start, call.Callee.End, callee); err != nil {
			return err
		}
	}

	if !a.IsCommonJS {
		return nil
	}
	for _, ref := range a.BareRequires {
		if err := g.editor.Overwrite(ref.Start, ref.End, refText(ref, g.fallbackName())); err != nil {
			return err
		}
	}
	return nil
}

func refText(ref Ref, replacement string) string {
	if ref.Shorthand {
		return ref.Name + ": " + replacement
	}
	return replacement
}

func (g *generator) requireExpression(link Link) string {
	if link.External {
		return g.externalBinding(link.Specifier)
	}
	return g.localBinding(link.Specifier) + "()"
}

func (g *generator) localBinding(specifier string) string {
	key := "local\x00" + specifier
	if name, ok := g.bindings[key]; ok {
		return name
	}
	name := g.names.alloc("require$$" + strconv.Itoa(g.requireCount))
	g.requireCount++
	g.bindings[key] = name
	g.imports = append(g.imports, "import { __require as "+name+" } from "+jsast.Quote(specifier)+";")
	return name
}

func (g *generator) externalBinding(specifier string) string {
	key := "external\x00" + specifier
	if name, ok := g.bindings[key]; ok {
		return name
	}
	name := g.names.alloc("require$$" + strconv.Itoa(g.requireCount))
	g.requireCount++
	g.bindings[key] = name
	if g.opts.EsmExternals {
		g.imports = append(g.imports, "import * as "+name+" from "+jsast.Quote(specifier)+";")
	} else {
		g.imports = append(g.imports, "import "+name+" from "+jsast.Quote(specifier)+";")
	}
	return name
}

func (g *generator) dispatch(kind dynrequire.Kind, cases []SiteCase) string {
	normalize := g.normalizeName()
	dispatchCases := make([]dynrequire.Case, 0, len(cases))
	if kind == dynrequire.KindImport {
		name := g.names.alloc("dynamicImport")
		for _, c := range cases {
			dispatchCases = append(dispatchCases, dynrequire.Case{Key: c.Key, Expression: dynrequire.ImportExpression(c.Specifier)})
		}
		g.helpers = append(g.helpers, dynrequire.ImportDispatch(name, normalize, dispatchCases))
		return name
	}
	name := g.names.alloc("dynamicRequire")
	for _, c := range cases {
		dispatchCases = append(dispatchCases, dynrequire.Case{Key: c.Key, Expression: g.localBinding(c.Specifier) + "()"})
	}
	g.helpers = append(g.helpers, dynrequire.RequireDispatch(name, normalize, dispatchCases))
	return name
}

func (g *generator) normalizeName() string {
	if g.normalize == "" {
		g.normalize = g.names.alloc("normalizePath")
		g.helpers = append(g.helpers, dynrequire.NormalizeHelper(g.normalize))
	}
	return g.normalize
}

func (g *generator) fallbackName() string {
	if g.fallback == "" {
		g.fallback = g.names.alloc("commonjsRequire")
		g.helpers = append(g.helpers, dynrequire.FallbackRequire(g.fallback))
	}
	return g.fallback
}

func (g *generator) rewriteGlobals() error {
	filename := g.plan.RelativePath
	if filename == "" {
		filename = path.Base(filepath.ToSlash(g.analysis.ID))
	}
	filename = "/" + strings.TrimPrefix(filepath.ToSlash(filename), "/")
	for _, ref := range g.analysis.GlobalRefs {
		value := filename
		if ref.Name == "__dirname" {
			value = path.Dir(filename)
		}
		if err := g.editor.Overwrite(ref.Start, ref.End, refText(ref, jsast.Quote(value))); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) removeHashbang() error {
	if g.analysis.Hashbang == nil {
		return nil
	}
	return g.editor.Remove(g.analysis.Hashbang.Start, g.analysis.Hashbang.End)
}

func (g *generator) prelude() string {
	var b strings.Builder
	for _, line := range g.imports {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if len(g.imports) > 0 {
		b.WriteByte('\n')
	}
	for _, helper := range g.helpers {
		b.WriteString(helper)
		b.WriteByte('\n')
	}
	return b.String()
}

func (g *generator) result() (string, *sourcemap.Map) {
	if !g.opts.SourceMap {
		return g.editor.String(), nil
	}
	name := path.Base(filepath.ToSlash(g.analysis.ID))
	return g.editor.Result(name, name)
}

func (g *generator) static() (*Generated, error) {
	a := g.analysis
	moduleName := g.names.alloc(g.base + "Module")
	exportsName := g.names.alloc(g.base + "Exports")
	if err := g.rewriteGlobals(); err != nil {
		return nil, err
	}
	for _, ref := range a.ModuleRefs {
		name := moduleName
		if ref.Name == "exports" {
			name = exportsName
		}
		if err := g.editor.Overwrite(ref.Start, ref.End, refText(ref, name)); err != nil {
			return nil, err
		}
	}
	locals := g.inPlaceExports()
	if err := g.removeHashbang(); err != nil {
		return nil, err
	}

	g.editor.Prepend(g.prelude() +
		"var " + moduleName + " = { exports: {} };\n" +
		"var " + exportsName + " = " + moduleName + ".exports;\n")

	resultName := g.names.alloc(g.base)
	var trailer strings.Builder
	if !strings.HasSuffix(a.Source(), "\n") {
		trailer.WriteByte('\n')
	}
	trailer.WriteString("\nvar " + resultName + " = " + moduleName + ".exports;\n")
	trailer.WriteString(exportTrailer(g.names, g.class, resultName, locals))
	g.editor.Append(trailer.String())

	code, sourceMap := g.result()
	return &Generated{Module: &Output{Code: code, Map: sourceMap, SideEffects: !pureBody(a)}}, nil
}

// inPlaceExports turns each top-level `exports.NAME = value;` statement that
// is the only write of NAME into `var NAME = exports.NAME = value;` so the
// export binding is declared where the value is produced.
func (g *generator) inPlaceExports() map[string]string {
	a := g.analysis
	if g.class.Shape != ShapeNamedOnly {
		return nil
	}
	counts := map[string]int{}
	for _, w := range a.writes {
		if w.kind == writeNamed {
			counts[w.name]++
		}
	}
	wanted := map[string]bool{}
	for _, name := range g.class.Names {
		wanted[name] = true
	}
	locals := map[string]string{}
	for i := range a.writes {
		w := &a.writes[i]
		if w.kind != writeNamed || w.define || w.augmented || w.nested || !wanted[w.name] || counts[w.name] != 1 {
			continue
		}
		stmt := w.node.Parent()
		if stmt == nil || stmt.Type() != "expression_statement" || stmt.Parent() == nil || stmt.Parent().Type() != "program" {
			continue
		}
		if right := jsast.Unwrap(w.value); right != nil && right.Type() == "assignment_expression" {
			continue
		}
		local := g.names.alloc(w.name)
		g.editor.Insert(int(stmt.StartByte()), "var "+local+" = ")
		locals[w.name] = local
	}
	return locals
}

// exportTrailer emits the ES exports of a module whose final module.exports
// value is bound to resultName.
func exportTrailer(names *namer, class Classification, resultName string, locals map[string]string) string {
	var b strings.Builder
	b.WriteString("export { " + resultName + " as __moduleExports };\n")
	switch class.Default {
	case DefaultModuleExports:
		b.WriteString("export default " + resultName + ";\n")
	case DefaultExportsDefault:
		b.WriteString("export default " + resultName + ".default;\n")
	}
	specifiers := make([]string, 0, len(class.Names))
	for _, name := range class.Names {
		local, ok := locals[name]
		if !ok {
			local = names.alloc(name)
			b.WriteString("var " + local + " = " + resultName + "." + name + ";\n")
		}
		if local == name {
			specifiers = append(specifiers, name)
		} else {
			specifiers = append(specifiers, local+" as "+name)
		}
	}
	if len(specifiers) > 0 {
		b.WriteString("export { " + strings.Join(specifiers, ", ") + " };\n")
	}
	return b.String()
}

func (g *generator) wrapped() (*Generated, error) {
	if err := g.rewriteGlobals(); err != nil {
		return nil, err
	}
	if err := g.removeHashbang(); err != nil {
		return nil, err
	}
	suffix := capitalize(g.base)
	hasRequired := g.names.alloc("hasRequired" + suffix)
	moduleName := g.names.alloc(g.base + "Module")
	requireName := g.names.alloc("require" + suffix)

	g.editor.Prepend(g.prelude() +
		"var " + hasRequired + ";\n" +
		"var " + moduleName + ";\n\n" +
		"function " + requireName + " () {\n" +
		"\tif (" + hasRequired + ") return " + moduleName + ".exports;\n" +
		"\t" + hasRequired + " = 1;\n" +
		"\t" + moduleName + " = { exports: {} };\n" +
		"\t(function (module, exports) {\n")
	g.editor.Append("\n\t}).call(" + moduleName + ".exports, " + moduleName + ", " + moduleName + ".exports);\n" +
		"\treturn " + moduleName + ".exports;\n" +
		"}\n\n" +
		"export { " + requireName + " as __require };\n")

	code, sourceMap := g.result()
	return &Generated{
		Module: g.face(),
		Proxy:  &Output{Code: code, Map: sourceMap},
	}, nil
}

// face is the module a wrapped module's importers see: it runs the factory
// once and re-exports its result.
func (g *generator) face() *Output {
	names := newNamer(nil)
	suffix := capitalize(g.base)
	requireName := names.alloc("require" + suffix)
	resultName := names.alloc(g.base)
	specifier := g.plan.ProxySpecifier
	if specifier == "" {
		specifier = "./" + path.Base(filepath.ToSlash(g.analysis.ID)) + ProxySuffix
	}

	var b strings.Builder
	b.WriteString("import { __require as " + requireName + " } from " + jsast.Quote(specifier) + ";\n\n")
	b.WriteString("var " + resultName + " = " + requireName + "();\n")
	b.WriteString(exportTrailer(names, g.class, resultName, nil))
	return &Output{Code: b.String(), SideEffects: true}
}

func (g *generator) passthrough() (*Generated, error) {
	if !g.editor.Changed() {
		return &Generated{}, nil
	}
	if err := g.removeHashbang(); err != nil {
		return nil, err
	}
	g.editor.Prepend(g.prelude())
	code, sourceMap := g.result()
	return &Generated{Module: &Output{Code: code, Map: sourceMap, SideEffects: true}}, nil
}
