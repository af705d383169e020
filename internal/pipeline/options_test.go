package pipeline

import (
	"path/filepath"
	"testing"
)

func TestParseStrictMode(t *testing.T) {
	cases := map[string]StrictMode{
		"":       StrictAuto,
		"auto":   StrictAuto,
		" TRUE ": StrictAlways,
		"always": StrictAlways,
		"false":  StrictNever,
		"never":  StrictNever,
	}
	for input, want := range cases {
		got, err := ParseStrictMode(input)
		if err != nil || got != want {
			t.Fatalf("ParseStrictMode(%q) = %v, %v; want %v", input, got, err, want)
		}
	}
	if _, err := ParseStrictMode("debug"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestOptionsAdmits(t *testing.T) {
	opts := Options{Include: []string{"src/**"}, Exclude: []string{"src/vendor/**"}}
	if !opts.admits("src/a.js") {
		t.Fatalf("expected src/a.js to be admitted")
	}
	if opts.admits("src/vendor/b.js") || opts.admits("lib/c.js") {
		t.Fatalf("expected filtered modules to be rejected")
	}
	if !(Options{}).admits("anything.js") {
		t.Fatalf("expected empty filters to admit every module")
	}
}

func TestRelPath(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "project")
	if got := relPath(root, filepath.Join(root, "src", "a.js")); got != "src/a.js" {
		t.Fatalf("unexpected relative path %q", got)
	}
	outside := filepath.Join(string(filepath.Separator), "other", "b.js")
	if got := relPath(root, outside); got != filepath.ToSlash(outside) {
		t.Fatalf("expected outside path to stay absolute, got %q", got)
	}
}

func TestProxySpecifiers(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "project")
	importer := filepath.Join(root, "src", "main.js")
	target := filepath.Join(root, "lib", "util.js")

	query := Options{}
	if got := query.ProxySpecifier(importer, target); got != "../lib/util.js?commonjs-require" {
		t.Fatalf("unexpected query specifier %q", got)
	}
	if got := query.ProxySpecifier(importer, importer); got != "./main.js?commonjs-require" {
		t.Fatalf("unexpected self specifier %q", got)
	}

	file := Options{Link: LinkFile}
	if got := file.ProxySpecifier(importer, target); got != "../lib/util.js.commonjs-require.js" {
		t.Fatalf("unexpected file specifier %q", got)
	}
	if got := file.ProxyPath(target); got != target+FileProxySuffix {
		t.Fatalf("unexpected proxy path %q", got)
	}

	for _, id := range []string{query.ProxyPath(target), file.ProxyPath(target)} {
		if got, ok := ProxyTarget(id); !ok || got != target {
			t.Fatalf("ProxyTarget(%q) = %q, %v", id, got, ok)
		}
	}
	if _, ok := ProxyTarget(target); ok {
		t.Fatalf("expected plain module not to be a proxy")
	}
}
