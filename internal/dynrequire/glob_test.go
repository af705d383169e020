package dynrequire

import (
	"context"
	"errors"
	"strings"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rollup/plugins-sub001/internal/jsast"
)

func parseArgument(t *testing.T, path, expr string) (*sitter.Node, *jsast.File) {
	t.Helper()
	file, err := jsast.NewParser().Parse(context.Background(), path, []byte("load("+expr+");\n"))
	if err != nil {
		t.Fatalf("parse %s: %v", expr, err)
	}
	statement := file.Root().NamedChild(0)
	call := statement.NamedChild(0)
	if call.Type() != "call_expression" {
		t.Fatalf("expected call_expression, got %s", call.Type())
	}
	return call.ChildByFieldName("arguments").NamedChild(0), file
}

func TestDeriveGlob(t *testing.T) {
	cases := []struct {
		expr string
		glob string
		pkg  string
	}{
		{expr: "`./foo/${bar}.js`", glob: "./foo/*.js"},
		{expr: "`./${foo}/${bar}.js`", glob: "./*/*.js"},
		{expr: `"./foo/".concat(bar, ".js")`, glob: "./foo/*.js"},
		{expr: `"./foo/" + bar + ".js"`, glob: "./foo/*.js"},
		{expr: "`./foo/${a}${b}.js`", glob: "./foo/*.js"},
		{expr: "`../locales/${lang}/messages.json`", glob: "../locales/*/messages.json"},
		{expr: "`./foo/${bar()}.js`", glob: "./foo/*.js"},
		{expr: "`./foo/${bar.baz}.js`", glob: "./foo/*.js"},
		{expr: "`./foo/[id]/${x}.js`", glob: `./foo/\[id\]/*.js`},
		{expr: "`pkg/locales/${x}.js`", glob: "pkg/locales/*.js", pkg: "pkg"},
		{expr: "`@scope/pkg/${x}.js`", glob: "@scope/pkg/*.js", pkg: "@scope/pkg"},
	}
	for _, tc := range cases {
		arg, file := parseArgument(t, "src/main.js", tc.expr)
		pattern, err := DeriveGlob(arg, file)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.expr, err)
		}
		if pattern == nil {
			t.Fatalf("%s: expected a pattern", tc.expr)
		}
		if pattern.Glob != tc.glob {
			t.Fatalf("%s: expected glob %q, got %q", tc.expr, tc.glob, pattern.Glob)
		}
		if pattern.Package != tc.pkg {
			t.Fatalf("%s: expected package %q, got %q", tc.expr, tc.pkg, pattern.Package)
		}
	}
}

func TestDeriveGlobPassThrough(t *testing.T) {
	for _, expr := range []string{
		`"./foo.js"`,
		"`./foo.js`",
		`"./foo" + ".js"`,
		"`data:text/javascript,${code}`",
		"`https://cdn.example.com/${name}.js`",
		"`http://cdn.example.com/${name}.js`",
	} {
		arg, file := parseArgument(t, "src/main.js", expr)
		pattern, err := DeriveGlob(arg, file)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", expr, err)
		}
		if pattern != nil {
			t.Fatalf("%s: expected pass-through, got %q", expr, pattern.Glob)
		}
	}
}

func TestDeriveGlobRejections(t *testing.T) {
	cases := []struct {
		expr    string
		path    string
		message string
	}{
		{expr: "`./*${foo}.js`", message: "A dynamic import cannot contain * characters."},
		{expr: "`${folder}/foo.js`", message: "cannot be statically analyzed."},
		{expr: "`/foo/${bar}.js`", message: "absolute imports are not supported."},
		{expr: "`./${foo}.js`", path: "dir/self.js", message: "cannot import their own directory"},
		{expr: "`./foo/${bar}`", message: "A file extension must be included"},
		{expr: "`foo${bar}.js`", message: "Variable bare imports are not supported."},
		{expr: `"./foo/" - bar`, message: "- operator is not supported."},
	}
	for _, tc := range cases {
		path := tc.path
		if path == "" {
			path = "src/main.js"
		}
		arg, file := parseArgument(t, path, tc.expr)
		_, err := DeriveGlob(arg, file)
		if err == nil {
			t.Fatalf("%s: expected error", tc.expr)
		}
		var patternErr *PatternError
		if !errors.As(err, &patternErr) {
			t.Fatalf("%s: expected *PatternError, got %T", tc.expr, err)
		}
		if !strings.Contains(err.Error(), tc.message) {
			t.Fatalf("%s: expected message containing %q, got %q", tc.expr, tc.message, err.Error())
		}
		if !strings.Contains(err.Error(), "For example: import(`./foo/${bar}.js`).") {
			t.Fatalf("%s: expected example in message, got %q", tc.expr, err.Error())
		}
		if patternErr.Location.File != path || patternErr.Location.Line != 1 || patternErr.Location.Column != 6 {
			t.Fatalf("%s: unexpected location %+v", tc.expr, patternErr.Location)
		}
	}
}

func TestDeriveGlobInvalidImportQuotesSource(t *testing.T) {
	arg, file := parseArgument(t, "src/main.js", "`${folder}/foo.js`")
	_, err := DeriveGlob(arg, file)
	if err == nil || !strings.Contains(err.Error(), "invalid import \"`${folder}/foo.js`\".") {
		t.Fatalf("expected source in message, got %v", err)
	}
}

func TestDeriveGlobIsDeterministic(t *testing.T) {
	arg, file := parseArgument(t, "src/main.js", "`./foo/${bar}/${baz}.js`")
	first, err := DeriveGlob(arg, file)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := DeriveGlob(arg, file)
		if err != nil || again.Glob != first.Glob {
			t.Fatalf("expected stable glob %q, got %v %v", first.Glob, again, err)
		}
	}
}

func TestLiteralValue(t *testing.T) {
	cases := map[string]string{
		`"./a" + ".js"`:           "./a.js",
		`"./a".concat("/b", ".js")`: "./a/b.js",
		"`./x.js`":                "./x.js",
	}
	for expr, want := range cases {
		arg, file := parseArgument(t, "src/main.js", expr)
		got, ok := LiteralValue(arg, file.Content)
		if !ok || got != want {
			t.Fatalf("%s: expected %q, got %q (%v)", expr, want, got, ok)
		}
	}
	arg, file := parseArgument(t, "src/main.js", `"./a" + name`)
	if _, ok := LiteralValue(arg, file.Content); ok {
		t.Fatalf("expected non-literal")
	}
}
