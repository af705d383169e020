package dynrequire

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dop251/goja"

	"github.com/rollup/plugins-sub001/internal/testutil"
)

func fileResolver(root string) ResolveFunc {
	return func(_ context.Context, specifier, _ string) (string, error) {
		candidate := filepath.Join(root, "node_modules", filepath.FromSlash(specifier))
		if _, err := os.Stat(candidate); err != nil {
			return "", err
		}
		return candidate, nil
	}
}

func TestAnalyzeEnumeratesRelativeMatches(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"locales/en.js", "locales/fr.js", "locales/.hidden.js", "locales/de.json", "locales/nested/x.js"} {
		testutil.MustWriteFile(t, filepath.Join(root, "src", name), "module.exports = 1;\n")
	}
	importer := filepath.Join(root, "src", "main.js")
	testutil.MustWriteFile(t, importer, "")

	arg, file := parseArgument(t, importer, "`./locales/${lang}.js`")
	site, err := Analyze(context.Background(), KindRequire, arg, file, fileResolver(root))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if site == nil {
		t.Fatalf("expected site")
	}
	keys := make([]string, 0, len(site.Matches))
	for _, match := range site.Matches {
		keys = append(keys, match.Key)
	}
	if strings.Join(keys, ",") != "./locales/en.js,./locales/fr.js" {
		t.Fatalf("unexpected keys %v", keys)
	}
	if site.Matches[0].Path != filepath.Join(root, "src", "locales", "en.js") {
		t.Fatalf("unexpected path %s", site.Matches[0].Path)
	}
	if site.Glob != "./locales/*.js" || site.Kind != KindRequire || site.BareImportRoot != "" {
		t.Fatalf("unexpected site %+v", site)
	}
}

func TestAnalyzeExcludesImporter(t *testing.T) {
	root := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(root, "src", "pages", "a.js"), "")
	testutil.MustWriteFile(t, filepath.Join(root, "src", "pages", "b.js"), "")
	importer := filepath.Join(root, "src", "pages", "a.js")

	arg, file := parseArgument(t, importer, "`../pages/${name}.js`")
	site, err := Analyze(context.Background(), KindImport, arg, file, fileResolver(root))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(site.Matches) != 1 || site.Matches[0].Key != "../pages/b.js" {
		t.Fatalf("unexpected matches %+v", site.Matches)
	}
}

func TestAnalyzePackageRootedPattern(t *testing.T) {
	root := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(root, "node_modules", "pkg", "package.json"), `{"name":"pkg"}`)
	testutil.MustWriteFile(t, filepath.Join(root, "node_modules", "pkg", "lang", "a.js"), "")
	testutil.MustWriteFile(t, filepath.Join(root, "node_modules", "pkg", "lang", "b.js"), "")
	importer := filepath.Join(root, "src", "main.js")

	arg, file := parseArgument(t, importer, "`pkg/lang/${x}.js`")
	site, err := Analyze(context.Background(), KindImport, arg, file, fileResolver(root))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if site.BareImportRoot != filepath.Join(root, "node_modules", "pkg") {
		t.Fatalf("unexpected bare root %q", site.BareImportRoot)
	}
	if len(site.Matches) != 2 || site.Matches[0].Key != "pkg/lang/a.js" || site.Matches[1].Key != "pkg/lang/b.js" {
		t.Fatalf("unexpected matches %+v", site.Matches)
	}
}

func TestAnalyzeUnresolvablePackage(t *testing.T) {
	root := t.TempDir()
	arg, file := parseArgument(t, filepath.Join(root, "main.js"), "`missing/lang/${x}.js`")
	_, err := Analyze(context.Background(), KindImport, arg, file, fileResolver(root))
	var patternErr *PatternError
	if !errors.As(err, &patternErr) {
		t.Fatalf("expected pattern error, got %v", err)
	}
	if !strings.Contains(err.Error(), `could not resolve module "missing"`) {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRequireDispatchRunsMatchingCase(t *testing.T) {
	vm := goja.New()
	source := NormalizeHelper("normalizePath") +
		RequireDispatch("dispatch", "normalizePath", []Case{
			{Key: "./locales/en.js", Expression: `"english"`},
			{Key: "./locales/fr.js", Expression: `"french"`},
		})
	if _, err := vm.RunString(source); err != nil {
		t.Fatalf("load dispatch: %v", err)
	}
	value, err := vm.RunString(`dispatch("./locales/../locales/fr.js")`)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if value.String() != "french" {
		t.Fatalf("expected french, got %s", value.String())
	}
	_, err = vm.RunString(`dispatch("./locales/de.js")`)
	if err == nil || !strings.Contains(err.Error(), `Could not dynamically require "./locales/de.js"`) {
		t.Fatalf("expected dynamic require error, got %v", err)
	}
}

func TestImportDispatchRejectsAsynchronously(t *testing.T) {
	vm := goja.New()
	source := "var queueMicrotask = undefined; var pending = [];\n" +
		"function setTimeout(fn) { pending.push(fn); }\n" +
		NormalizeHelper("normalizePath") +
		ImportDispatch("dispatch", "normalizePath", nil) +
		`var state = "pending";
var promise = dispatch("./nope.js");
promise.then(function () { state = "resolved"; }, function (err) { state = err.message; });
var before = state;
`
	if _, err := vm.RunString(source); err != nil {
		t.Fatalf("load dispatch: %v", err)
	}
	if vm.Get("before").String() != "pending" {
		t.Fatalf("expected rejection to be deferred")
	}
	if _, err := vm.RunString("pending.forEach(function (fn) { fn(); });"); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := vm.Get("state").String(); got != "Unknown variable dynamic import: ./nope.js" {
		t.Fatalf("unexpected state %q", got)
	}
}
