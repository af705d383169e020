package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rollup/plugins-sub001/internal/app"
	"github.com/rollup/plugins-sub001/internal/report"
)

type fakeRunner struct {
	output  string
	err     error
	called  bool
	lastReq app.Request
}

func (f *fakeRunner) Execute(_ context.Context, req app.Request) (string, error) {
	f.called = true
	f.lastReq = req
	return f.output, f.err
}

func runCLI(t *testing.T, runner *fakeRunner, args ...string) (int, string, string) {
	t.Helper()
	var out bytes.Buffer
	var errOut bytes.Buffer
	code := New(runner, &out, &errOut).Run(context.Background(), args)
	return code, out.String(), errOut.String()
}

func TestRunHelp(t *testing.T) {
	code, out, errOut := runCLI(t, &fakeRunner{}, "--help")
	if code != ExitOK {
		t.Fatalf("expected code 0, got %d", code)
	}
	if !strings.Contains(out, "Usage:") || !strings.Contains(out, "analyze") {
		t.Fatalf("expected usage output, got %q", out)
	}
	if errOut != "" {
		t.Fatalf("expected no stderr output, got %q", errOut)
	}
}

func TestRunWithoutArgsPrintsHelp(t *testing.T) {
	runner := &fakeRunner{}
	code, out, _ := runCLI(t, runner)
	if code != ExitOK || !strings.Contains(out, "Usage:") {
		t.Fatalf("expected help, got %d %q", code, out)
	}
	if runner.called {
		t.Fatalf("expected runner not to be called")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	code, out, errOut := runCLI(t, &fakeRunner{}, "nope")
	if code != ExitUsage {
		t.Fatalf("expected usage code, got %d", code)
	}
	if !strings.Contains(errOut, "unknown command") || !strings.Contains(errOut, "Usage:") {
		t.Fatalf("expected parse error output, got %q", errOut)
	}
	if out != "" {
		t.Fatalf("expected no stdout output, got %q", out)
	}
}

func TestRunUsageErrors(t *testing.T) {
	cases := map[string][]string{
		"missing entries": {"build"},
		"unknown flag":    {"analyze", "--bogus", "main.js"},
		"bad format":      {"analyze", "--format", "xml", "main.js"},
		"version args":    {"version", "extra"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			runner := &fakeRunner{}
			code, _, errOut := runCLI(t, runner, args...)
			if code != ExitUsage {
				t.Fatalf("expected usage code, got %d (%q)", code, errOut)
			}
			if !strings.HasPrefix(errOut, "error: ") {
				t.Fatalf("expected error prefix, got %q", errOut)
			}
			if runner.called {
				t.Fatalf("expected runner not to be called")
			}
		})
	}
}

func TestRunBuildForwardsRequest(t *testing.T) {
	runner := &fakeRunner{output: "built"}
	code, out, _ := runCLI(t, runner, "build", "--root", "project", "-c", "custom.yml", "--out", "lib", "-f", "json", "src/main.js", "src/worker.js")
	if code != ExitOK {
		t.Fatalf("expected code 0, got %d", code)
	}
	if out != "built\n" {
		t.Fatalf("expected runner output with trailing newline, got %q", out)
	}
	req := runner.lastReq
	if req.Mode != app.ModeBuild || req.Root != "project" || req.ConfigPath != "custom.yml" || req.OutDir != "lib" {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.Format != report.FormatJSON || strings.Join(req.Entries, ",") != "src/main.js,src/worker.js" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestRunAnalyzeDefaults(t *testing.T) {
	runner := &fakeRunner{output: "table\n"}
	code, _, _ := runCLI(t, runner, "analyze", "main.js")
	if code != ExitOK {
		t.Fatalf("expected code 0, got %d", code)
	}
	req := runner.lastReq
	defaults := app.DefaultRequest()
	if req.Mode != app.ModeAnalyze || req.Root != defaults.Root || req.Format != report.FormatTable || req.ConfigPath != "" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestRunConfigFromEnvironment(t *testing.T) {
	t.Setenv(configEnv, "env.yml")
	runner := &fakeRunner{}
	if code, _, _ := runCLI(t, runner, "analyze", "main.js"); code != ExitOK {
		t.Fatalf("expected code 0, got %d", code)
	}
	if runner.lastReq.ConfigPath != "env.yml" {
		t.Fatalf("expected config from environment, got %q", runner.lastReq.ConfigPath)
	}

	runner = &fakeRunner{}
	if code, _, _ := runCLI(t, runner, "analyze", "--config", "flag.yml", "main.js"); code != ExitOK {
		t.Fatalf("expected code 0, got %d", code)
	}
	if runner.lastReq.ConfigPath != "flag.yml" {
		t.Fatalf("expected flag to win over environment, got %q", runner.lastReq.ConfigPath)
	}
}

func TestRunRunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	code, _, errOut := runCLI(t, runner, "analyze", "main.js")
	if code != ExitError {
		t.Fatalf("expected code 1, got %d", code)
	}
	if strings.TrimSpace(errOut) != "boom" {
		t.Fatalf("expected runner error on stderr, got %q", errOut)
	}
}

func TestRunBuildFailure(t *testing.T) {
	runner := &fakeRunner{
		output: "Diagnostics:\n- error [commonjs] broken.js:1:19: Unexpected token\n",
		err:    fmt.Errorf("%w: %w", app.ErrBuildFailed, &report.BuildError{}),
	}
	code, out, errOut := runCLI(t, runner, "build", "main.js")
	if code != ExitBuildFailed {
		t.Fatalf("expected code 3, got %d", code)
	}
	if !strings.Contains(out, "Unexpected token") {
		t.Fatalf("expected diagnostics on stdout, got %q", out)
	}
	if !strings.Contains(errOut, "build failed") {
		t.Fatalf("expected failure on stderr, got %q", errOut)
	}
}

func TestRunVersion(t *testing.T) {
	runner := &fakeRunner{}
	code, out, _ := runCLI(t, runner, "version")
	if code != ExitOK || !strings.HasPrefix(out, "cjsesm ") {
		t.Fatalf("expected version output, got %d %q", code, out)
	}
	if runner.called {
		t.Fatalf("expected runner not to be called")
	}
}
