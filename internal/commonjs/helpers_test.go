package commonjs

import (
	"context"
	"testing"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"

	"github.com/rollup/plugins-sub001/internal/jsast"
)

func mustAnalyze(t *testing.T, id, source string) *Analysis {
	t.Helper()
	analysis, err := Analyze(context.Background(), jsast.NewParser(), id, []byte(source))
	if err != nil {
		t.Fatalf("analyze %s: %v", id, err)
	}
	return analysis
}

func mustTransform(t *testing.T, id, source string, opts TransformOptions) *Result {
	t.Helper()
	result, err := Transform(context.Background(), []byte(source), id, opts)
	if err != nil {
		t.Fatalf("transform %s: %v", id, err)
	}
	return result
}

// mustParseModule fails the test when code is not a syntactically valid ES
// module.
func mustParseModule(t *testing.T, code string) {
	t.Helper()
	if _, err := js.Parse(parse.NewInputString(code), js.Options{}); err != nil {
		t.Fatalf("generated code does not parse: %v\n%s", err, code)
	}
}
