package report

import (
	"encoding/json"
	"testing"
)

func sampleSARIFReport() Report {
	return Report{
		SchemaVersion: SchemaVersion,
		Diagnostics: []Diagnostic{
			{
				Severity: SeverityError,
				Code:     CodeDynamicPattern,
				Message:  "A file extension must be included in the static part of the import.",
				Location: &Location{File: "src\\main.js", Line: 3, Column: 9},
			},
			{
				Severity: SeverityWarning,
				Code:     CodeUnresolvedRequire,
				Message:  `could not resolve "missing"`,
				Location: &Location{File: "src/a.js", Line: 1, Column: 1},
			},
			{
				Severity: SeverityError,
				Code:     CodeDynamicPattern,
				Message:  "A dynamic import cannot contain * characters.",
			},
		},
	}
}

func TestFormatSARIFResults(t *testing.T) {
	output, err := NewFormatter().Format(sampleSARIFReport(), FormatSARIF)
	if err != nil {
		t.Fatalf("format sarif: %v", err)
	}
	var log sarifLog
	if err := json.Unmarshal([]byte(output), &log); err != nil {
		t.Fatalf("decode sarif: %v", err)
	}
	if len(log.Runs) != 1 {
		t.Fatalf("expected one run, got %d", len(log.Runs))
	}
	run := log.Runs[0]
	if len(run.Tool.Driver.Rules) != 2 {
		t.Fatalf("expected two distinct rules, got %+v", run.Tool.Driver.Rules)
	}
	if len(run.Results) != 3 {
		t.Fatalf("expected three results, got %d", len(run.Results))
	}
	first := run.Results[0]
	if first.RuleID != "commonjs/dynamic-pattern" || first.Level != "error" {
		t.Fatalf("unexpected first result %+v", first)
	}
	if first.Message.Text != "A dynamic import cannot contain * characters." || len(first.Locations) != 0 {
		t.Fatalf("expected results sorted by message, got %+v", first)
	}
	second := run.Results[1]
	if second.Locations[0].PhysicalLocation.ArtifactLocation.URI != "src/main.js" {
		t.Fatalf("expected slash-normalized uri, got %+v", second.Locations)
	}
	if run.Results[2].Level != "warning" {
		t.Fatalf("expected warning level, got %q", run.Results[2].Level)
	}
}

func TestFormatSARIFDynamicSiteNotes(t *testing.T) {
	rep := Report{
		SchemaVersion: SchemaVersion,
		Modules: []ModuleReport{{
			DynamicSites: []DynamicSiteReport{{
				Kind:       "require",
				Expression: "`./locales/${lang}.js`",
				Glob:       "./locales/*.js",
				Matches:    []string{"locales/en.js", "locales/fr.js"},
				Location:   Location{File: "src/i18n.js", Line: 4, Column: 10},
			}},
		}},
	}
	output, err := NewFormatter().Format(rep, FormatSARIF)
	if err != nil {
		t.Fatalf("format sarif: %v", err)
	}
	var log sarifLog
	if err := json.Unmarshal([]byte(output), &log); err != nil {
		t.Fatalf("decode sarif: %v", err)
	}
	run := log.Runs[0]
	if len(run.Results) != 1 || len(run.Tool.Driver.Rules) != 1 {
		t.Fatalf("expected one note, got %+v", run)
	}
	note := run.Results[0]
	if note.RuleID != "commonjs/dynamic-require" || note.Level != "note" {
		t.Fatalf("unexpected note %+v", note)
	}
	if note.Message.Text != "require(`./locales/${lang}.js`) matches 2 modules via ./locales/*.js" {
		t.Fatalf("unexpected message %q", note.Message.Text)
	}
	if run.Tool.Driver.Rules[0].Help == nil {
		t.Fatalf("expected rule help text")
	}
}

func TestRuleID(t *testing.T) {
	cases := map[string]string{
		CodeIgnoredDynamicRequire: "commonjs/ignored-dynamic-require",
		" PARSE_ERROR ":           "commonjs/parse-error",
		"":                        "commonjs/unknown",
	}
	for code, want := range cases {
		if got := ruleID(code); got != want {
			t.Fatalf("ruleID(%q) = %q, want %q", code, got, want)
		}
	}
}
