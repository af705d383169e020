package resolve

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollup/plugins-sub001/internal/testutil"
)

func fixture(t *testing.T) string {
	t.Helper()
	return testutil.TempTree(t, map[string]string{
		"src/main.js":                          "",
		"src/lib/a.js":                         "",
		"src/lib/b.cjs":                        "",
		"src/lib/data.json":                    "{}",
		"src/dir/index.js":                     "",
		"src/pkgdir/package.json":              `{"main":"entry"}`,
		"src/pkgdir/entry.js":                  "",
		"node_modules/plain/package.json":      `{"name":"plain","main":"lib/plain.js"}`,
		"node_modules/plain/lib/plain.js":      "",
		"node_modules/plain/lib/extra.js":      "",
		"node_modules/cond/package.json":       `{"exports":{".":{"import":"./esm.mjs","require":"./cjs.js"},"./feature":"./feature.js"}}`,
		"node_modules/cond/cjs.js":             "",
		"node_modules/cond/esm.mjs":            "",
		"node_modules/cond/feature.js":         "",
		"node_modules/@scope/pkg/package.json": `{"exports":"./main.js"}`,
		"node_modules/@scope/pkg/main.js":      "",
		"node_modules/noindex/package.json":    `{}`,
		"node_modules/noindex/index.js":        "",
		"node_modules/broken/package.json":     `{`,
		"node_modules/broken/index.cjs":        "",
	})
}

func TestResolveFiles(t *testing.T) {
	root := fixture(t)
	r := New(nil)
	importer := filepath.Join(root, "src", "main.js")
	cases := map[string]string{
		"./lib/a.js":        "src/lib/a.js",
		"./lib/a":           "src/lib/a.js",
		"./lib/b":           "src/lib/b.cjs",
		"./lib/data":        "src/lib/data.json",
		"./dir":             "src/dir/index.js",
		"./pkgdir":          "src/pkgdir/entry.js",
		"plain":             "node_modules/plain/lib/plain.js",
		"plain/lib/extra":   "node_modules/plain/lib/extra.js",
		"cond":              "node_modules/cond/cjs.js",
		"cond/feature":      "node_modules/cond/feature.js",
		"@scope/pkg":        "node_modules/@scope/pkg/main.js",
		"noindex":           "node_modules/noindex/index.js",
		"broken":            "node_modules/broken/index.cjs",
		"cond/package.json": "node_modules/cond/package.json",
	}
	for specifier, want := range cases {
		resolution, err := r.Resolve(context.Background(), specifier, importer)
		require.NoError(t, err, specifier)
		assert.Equal(t, filepath.Join(root, filepath.FromSlash(want)), resolution.Path, specifier)
		assert.False(t, resolution.External, specifier)
	}
}

func TestResolveExternals(t *testing.T) {
	root := fixture(t)
	r := New([]string{"plain", " "})
	importer := filepath.Join(root, "src", "main.js")

	for _, specifier := range []string{"fs", "node:fs", "fs/promises", "node:test"} {
		resolution, err := r.Resolve(context.Background(), specifier, importer)
		require.NoError(t, err)
		assert.True(t, resolution.External && resolution.Builtin, specifier)
	}
	resolution, err := r.Resolve(context.Background(), "plain/lib/extra", importer)
	require.NoError(t, err)
	assert.True(t, resolution.External)
	assert.Empty(t, resolution.Path)
}

func TestResolveNotFound(t *testing.T) {
	root := fixture(t)
	r := New(nil)
	importer := filepath.Join(root, "src", "main.js")
	for _, specifier := range []string{"./missing", "missing-pkg", "cond/hidden", "@scope"} {
		_, err := r.Resolve(context.Background(), specifier, importer)
		assert.True(t, errors.Is(err, ErrNotFound), "%s: %v", specifier, err)
	}
}

func TestResolveHonorsCancellation(t *testing.T) {
	_, err := New(nil).Resolve(testutil.CanceledContext(), "./a.js", "/src/main.js")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveFileForPackageManifest(t *testing.T) {
	root := fixture(t)
	path, err := New(nil).ResolveFile(context.Background(), "plain/package.json", filepath.Join(root, "src", "main.js"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "node_modules", "plain", "package.json"), path)
}

func TestIsBuiltin(t *testing.T) {
	assert.True(t, IsBuiltin("path"))
	assert.True(t, IsBuiltin("node:anything"))
	assert.False(t, IsBuiltin("node:"))
	assert.False(t, IsBuiltin("lodash"))
}
