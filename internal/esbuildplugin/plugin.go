// Package esbuildplugin exposes the transform as an esbuild plugin. The module
// graph is built once per esbuild build in OnStart; resolve and load hooks
// then serve transformed modules and require proxies from it.
package esbuildplugin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/rollup/plugins-sub001/internal/commonjs"
	"github.com/rollup/plugins-sub001/internal/output"
	"github.com/rollup/plugins-sub001/internal/pipeline"
	"github.com/rollup/plugins-sub001/internal/report"
	"github.com/rollup/plugins-sub001/internal/sourcemap"
)

const (
	Name = "commonjs"
	// Namespace holds every require proxy.
	Namespace = "commonjs-require"
)

var (
	proxyFilter  = `(\?commonjs-require|\.commonjs-require\.js)$`
	moduleFilter = `\.(c|m)?jsx?$`
)

type Plugin struct {
	ctx     context.Context
	builder *pipeline.Builder

	mu    sync.RWMutex
	build *pipeline.Build
}

// New returns a plugin that builds its graph with builder. ctx bounds every
// graph build the plugin starts.
func New(ctx context.Context, builder *pipeline.Builder) *Plugin {
	return &Plugin{ctx: ctx, builder: builder}
}

// Build returns the graph of the most recent successful esbuild build.
func (p *Plugin) Build() *pipeline.Build {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.build
}

func (p *Plugin) Plugin() api.Plugin {
	return api.Plugin{Name: Name, Setup: p.setup}
}

func (p *Plugin) setup(build api.PluginBuild) {
	entries := p.entryPoints(build.InitialOptions)
	build.OnStart(func() (api.OnStartResult, error) {
		return p.start(entries)
	})
	build.OnResolve(api.OnResolveOptions{Filter: proxyFilter}, p.resolveProxy)
	build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: Namespace}, p.loadProxy)
	build.OnLoad(api.OnLoadOptions{Filter: moduleFilter, Namespace: "file"}, p.loadModule)
}

func (p *Plugin) entryPoints(options *api.BuildOptions) []string {
	if options == nil {
		return nil
	}
	base := options.AbsWorkingDir
	if base == "" {
		base = p.builder.Options().Root
	}
	entries := make([]string, 0, len(options.EntryPoints)+len(options.EntryPointsAdvanced))
	add := func(entry string) {
		if !filepath.IsAbs(entry) {
			entry = filepath.Join(base, entry)
		}
		entries = append(entries, entry)
	}
	for _, entry := range options.EntryPoints {
		add(entry)
	}
	for _, entry := range options.EntryPointsAdvanced {
		add(entry.InputPath)
	}
	return entries
}

func (p *Plugin) start(entries []string) (api.OnStartResult, error) {
	result, err := p.builder.Build(p.ctx, entries)
	if err != nil {
		var buildErr *report.BuildError
		if errors.As(err, &buildErr) {
			return api.OnStartResult{Errors: messages(p.builder.Options().Root, buildErr.Diagnostics)}, nil
		}
		return api.OnStartResult{}, err
	}
	p.mu.Lock()
	p.build = result
	p.mu.Unlock()
	output.Debug("module graph ready", output.KeyModules, len(result.Modules))
	return api.OnStartResult{Warnings: messages(result.Root, result.Diagnostics)}, nil
}

func (p *Plugin) resolveProxy(args api.OnResolveArgs) (api.OnResolveResult, error) {
	target, ok := pipeline.ProxyTarget(args.Path)
	if !ok {
		return api.OnResolveResult{}, nil
	}
	if !filepath.IsAbs(target) {
		dir := args.ResolveDir
		if dir == "" {
			importer := args.Importer
			if proxied, isProxy := pipeline.ProxyTarget(importer); isProxy {
				importer = proxied
			}
			dir = filepath.Dir(importer)
		}
		target = filepath.Join(dir, filepath.FromSlash(target))
	}
	return api.OnResolveResult{Path: target + commonjs.ProxySuffix, Namespace: Namespace}, nil
}

func (p *Plugin) loadProxy(args api.OnLoadArgs) (api.OnLoadResult, error) {
	target, _ := pipeline.ProxyTarget(args.Path)
	build := p.Build()
	if build == nil {
		return api.OnLoadResult{}, errors.New("module graph was not built")
	}
	proxy, ok := build.Proxy(target)
	if !ok {
		return api.OnLoadResult{}, fmt.Errorf("no require proxy for %s", target)
	}
	contents, err := withInlineMap(proxy.Code, proxy.Map)
	if err != nil {
		return api.OnLoadResult{}, err
	}
	return api.OnLoadResult{
		PluginName: Name,
		Contents:   &contents,
		ResolveDir: filepath.Dir(target),
		Loader:     api.LoaderJS,
	}, nil
}

// loadModule serves transformed modules. Unchanged modules fall through to
// esbuild's own loader.
func (p *Plugin) loadModule(args api.OnLoadArgs) (api.OnLoadResult, error) {
	build := p.Build()
	if build == nil {
		return api.OnLoadResult{}, nil
	}
	m, ok := build.Module(args.Path)
	if !ok || !m.Changed {
		return api.OnLoadResult{}, nil
	}
	contents, err := withInlineMap(m.Code, m.Map)
	if err != nil {
		return api.OnLoadResult{}, err
	}
	return api.OnLoadResult{
		PluginName: Name,
		Contents:   &contents,
		ResolveDir: filepath.Dir(args.Path),
		Loader:     api.LoaderJS,
	}, nil
}

func withInlineMap(code string, sourceMap *sourcemap.Map) (string, error) {
	if sourceMap == nil {
		return code, nil
	}
	url, err := sourceMap.DataURL()
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	return code + "//# sourceMappingURL=" + url + "\n", nil
}

// messages converts diagnostics for esbuild. The diagnostic code travels in
// Detail since esbuild drops message IDs it does not know.
func messages(root string, diagnostics []report.Diagnostic) []api.Message {
	out := make([]api.Message, 0, len(diagnostics))
	for _, diagnostic := range diagnostics {
		message := api.Message{PluginName: Name, Text: diagnostic.Message, Detail: diagnostic.Code}
		if location := diagnostic.Location; location != nil {
			file := location.File
			if root != "" && !filepath.IsAbs(file) {
				file = filepath.Join(root, filepath.FromSlash(file))
			}
			message.Location = &api.Location{File: file, Line: location.Line, Column: max(location.Column-1, 0)}
		}
		out = append(out, message)
	}
	return out
}
