package commonjs

import "testing"

func TestBaseName(t *testing.T) {
	cases := map[string]string{
		"/src/foo.js":                "foo",
		"/src/node-only.js":          "nodeOnly",
		"/src/foo.bar.cjs":           "fooBar",
		"C:\\src\\util.js":           "util",
		"/src/index.js?commonjs-req": "index",
		"/src/3d.js":                 "_3d",
		"/src/---.js":                "module",
	}
	for id, want := range cases {
		if got := baseName(id); got != want {
			t.Fatalf("baseName(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestNamerAvoidsTakenAndReservedNames(t *testing.T) {
	names := newNamer(map[string]bool{"foo": true})
	if got := names.alloc("foo"); got != "foo$1" {
		t.Fatalf("expected foo$1, got %q", got)
	}
	if got := names.alloc("foo"); got != "foo$2" {
		t.Fatalf("expected foo$2, got %q", got)
	}
	if got := names.alloc("class"); got != "class$1" {
		t.Fatalf("expected class$1, got %q", got)
	}
	if got := names.alloc("a-b"); got != "a_b" {
		t.Fatalf("expected a_b, got %q", got)
	}
}

func TestIsIdentifierName(t *testing.T) {
	for name, want := range map[string]bool{
		"a":       true,
		"$_1":     true,
		"default": true,
		"1a":      false,
		"foo-bar": false,
		"":        false,
	} {
		if got := isIdentifierName(name); got != want {
			t.Fatalf("isIdentifierName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestProxyTargets(t *testing.T) {
	opts := DefaultOptions()
	cjs := Proxy(TargetCommonJS, "./a.js", opts).Code
	if cjs != "import { __moduleExports } from \"./a.js\";\n\nexport function __require () {\n\treturn __moduleExports;\n}\n" {
		t.Fatalf("unexpected commonjs proxy:\n%s", cjs)
	}
	mustParseModule(t, cjs)

	esm := Proxy(TargetESM, "./b.mjs", opts).Code
	assertContains(t, esm, "import * as namespace from \"./b.mjs\";", "keys[0] === 'default' ? namespace.default : namespace")
	mustParseModule(t, esm)

	opts.RequireReturnsDefault = ReturnsDefaultNamespace
	assertContains(t, Proxy(TargetESM, "./b.mjs", opts).Code, "\treturn namespace;\n")
	assertContains(t, Proxy(TargetJSON, "./c.json", opts).Code, "import json from \"./c.json\";")
}
