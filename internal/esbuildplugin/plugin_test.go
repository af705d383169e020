package esbuildplugin

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollup/plugins-sub001/internal/commonjs"
	"github.com/rollup/plugins-sub001/internal/pipeline"
	"github.com/rollup/plugins-sub001/internal/report"
	"github.com/rollup/plugins-sub001/internal/testutil"
)

// bundle builds entry.mjs under root with the plugin and returns the esbuild
// result together with the plugin.
func bundle(t *testing.T, root string, strict pipeline.StrictMode) (api.BuildResult, *Plugin) {
	t.Helper()
	opts := pipeline.DefaultOptions(root)
	opts.Workers = 2
	opts.Strict = pipeline.StrictPolicy{Mode: strict}
	plugin := New(context.Background(), pipeline.NewBuilder(opts, pipeline.WithLoader(pipeline.FSLoader{Root: root})))
	result := api.Build(api.BuildOptions{
		EntryPoints:   []string{"entry.mjs"},
		AbsWorkingDir: root,
		Bundle:        true,
		Write:         false,
		Format:        api.FormatIIFE,
		Plugins:       []api.Plugin{plugin.Plugin()},
		LogLevel:      api.LogLevelSilent,
	})
	return result, plugin
}

// run executes the bundle of root and returns the value the entry stored in
// globalThis.output.
func run(t *testing.T, root string, strict pipeline.StrictMode) string {
	t.Helper()
	result, _ := bundle(t, root, strict)
	require.Empty(t, result.Errors)
	require.Len(t, result.OutputFiles, 1)

	vm := goja.New()
	_, err := vm.RunString(string(result.OutputFiles[0].Contents))
	require.NoError(t, err)
	return vm.Get("output").String()
}

func TestCircularRequiresSeePartialExports(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"entry.mjs": "import { fromB } from './a.js';\nglobalThis.output = fromB;\n",
		"a.js":      "exports.name = 'a';\nconst b = require('./b.js');\nexports.fromB = b.name + ':' + b.seen;\n",
		"b.js":      "exports.name = 'b';\nconst c = require('./c.js');\nexports.seen = c.seen;\n",
		"c.js":      "const a = require('./a.js');\nexports.seen = a.name;\nexports.name = 'c';\n",
	})
	assert.Equal(t, "b:a", run(t, root, pipeline.StrictAuto))
}

func TestStaticAndWrappedOutputAgree(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"entry.mjs": "import lib, { sum } from './lib.js';\nglobalThis.output = JSON.stringify({ lib, sum });\n",
		"lib.js":    "const util = require('./util.js');\nmodule.exports = { sum: util.add(1, 2), kind: typeof util.add };\n",
		"util.js":   "exports.add = function (a, b) {\n\treturn a + b;\n};\n",
	})
	want := `{"lib":{"sum":3,"kind":"function"},"sum":3}`
	assert.Equal(t, want, run(t, root, pipeline.StrictNever))
	assert.Equal(t, want, run(t, root, pipeline.StrictAlways))
}

func TestUMDWrapperStaysStatic(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"entry.mjs": "import lib from './umd.js';\nglobalThis.output = lib.version + ':' + lib.add(2, 3);\n",
		"umd.js": "(function (factory) {\n" +
			"\tif (typeof module === 'object' && module.exports) {\n" +
			"\t\tmodule.exports = factory();\n" +
			"\t} else {\n" +
			"\t\tglobalThis.lib = factory();\n" +
			"\t}\n" +
			"})(function () {\n" +
			"\treturn { version: '1.0', add: function (a, b) { return a + b; } };\n" +
			"});\n",
	})
	result, plugin := bundle(t, root, pipeline.StrictAuto)
	require.Empty(t, result.Errors)
	var umd *pipeline.Module
	for _, m := range plugin.Build().Modules {
		if m.Rel == "umd.js" {
			umd = m
		}
	}
	require.NotNil(t, umd)
	assert.Equal(t, commonjs.StrategyStatic, umd.Strategy)
	assert.Equal(t, "1.0:5", run(t, root, pipeline.StrictAuto))
}

func TestFunctionExportKeepsAttachedNames(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"entry.mjs": "import fn, { bar } from './foo.js';\nglobalThis.output = [typeof fn, fn(), fn.bar, bar].join(',');\n",
		"foo.js":    "module.exports = function foo() { return 'called'; };\nmodule.exports.bar = 'b';\n",
	})
	assert.Equal(t, "function,called,b,b", run(t, root, pipeline.StrictNever))
	assert.Equal(t, "function,called,b,b", run(t, root, pipeline.StrictAlways))
}

func TestNamedOnlyModulesHaveNoDefault(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"entry.mjs": "import named from './named.js';\nglobalThis.output = named;\n",
		"named.js":  "exports.a = 1;\nexports.b = 2;\n",
	})
	result, _ := bundle(t, root, pipeline.StrictAuto)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Text, `"default"`)
}

func TestConditionalRequiresStayLazy(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"entry.mjs": "import state from './state.js';\nimport main from './main.js';\nglobalThis.output = state.log.join(',') + '|' + main.load().value;\n",
		"state.js":  "module.exports = { log: [] };\n",
		"main.js":   "const state = require('./state.js');\nstate.log.push('main');\nmodule.exports = { load: function () {\n\tif (true) {\n\t\treturn require('./heavy.js');\n\t}\n} };\n",
		"heavy.js":  "require('./state.js').log.push('heavy');\nexports.value = 42;\n",
	})
	assert.Equal(t, "main|42", run(t, root, pipeline.StrictAuto))
}

func TestBuildErrorsBecomeMessages(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"entry.mjs": "import broken from './broken.js';\nglobalThis.output = broken;\n",
		"broken.js": "module.exports = {;\n",
	})
	result, plugin := bundle(t, root, pipeline.StrictAuto)
	var message *api.Message
	for i := range result.Errors {
		if result.Errors[i].PluginName == Name {
			message = &result.Errors[i]
		}
	}
	require.NotNil(t, message, "errors: %+v", result.Errors)
	assert.Equal(t, report.CodeParseError, message.Detail)
	require.NotNil(t, message.Location)
	assert.Equal(t, filepath.Join(root, "broken.js"), message.Location.File)
	assert.Equal(t, 1, message.Location.Line)
	assert.Nil(t, plugin.Build())
}

func TestProxyResolution(t *testing.T) {
	plugin := &Plugin{}
	dir := filepath.Join(string(filepath.Separator), "project", "src")
	result, err := plugin.resolveProxy(api.OnResolveArgs{Path: "../lib/a.js?commonjs-require", ResolveDir: dir})
	require.NoError(t, err)
	assert.Equal(t, Namespace, result.Namespace)
	assert.Equal(t, filepath.Join(string(filepath.Separator), "project", "lib", "a.js")+"?commonjs-require", result.Path)

	fromProxy, err := plugin.resolveProxy(api.OnResolveArgs{
		Path:     "./b.js.commonjs-require.js",
		Importer: filepath.Join(dir, "a.js") + "?commonjs-require",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "b.js")+"?commonjs-require", fromProxy.Path)
}

func TestInlineSourceMaps(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"entry.mjs": "import { a } from './named.js';\nglobalThis.output = a;\n",
		"named.js":  "exports.a = 1;\n",
	})
	_, plugin := bundle(t, root, pipeline.StrictAuto)
	build := plugin.Build()
	require.NotNil(t, build)

	m, ok := build.Module(filepath.Join(root, "named.js"))
	require.True(t, ok)
	contents, err := withInlineMap(m.Code, m.Map)
	require.NoError(t, err)
	assert.True(t, strings.Contains(contents, "//# sourceMappingURL=data:application/json;charset=utf-8;base64,"))
}
