package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rollup/plugins-sub001/internal/cli"
	"github.com/rollup/plugins-sub001/internal/testutil"
)

func TestRunExitCodes(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"main.js":   "const { greet } = require('./greet.js');\nmodule.exports = greet('world');\n",
		"greet.js":  "exports.greet = function (name) { return 'hello ' + name; };\n",
		"broken.js": "module.exports = {;\n",
	})
	cases := []struct {
		name      string
		args      []string
		code      int
		stdout    string
		stderr    string
		quietSide string
	}{
		{name: "help", args: []string{"--help"}, code: cli.ExitOK, stdout: "Usage:", quietSide: "stderr"},
		{name: "unknown command", args: []string{"nope"}, code: cli.ExitUsage, stderr: "unknown command", quietSide: "stdout"},
		{name: "analyze", args: []string{"analyze", "--root", root, "main.js"}, code: cli.ExitOK, stdout: "greet.js"},
		{name: "build failure", args: []string{"build", "--root", root, "--out", "broken-dist", "broken.js"}, code: cli.ExitBuildFailed, stdout: "broken.js"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			code := run(context.Background(), tc.args, &out, &errOut)
			if code != tc.code {
				t.Fatalf("expected exit code %d, got %d (stderr %q)", tc.code, code, errOut.String())
			}
			if !strings.Contains(out.String(), tc.stdout) || !strings.Contains(errOut.String(), tc.stderr) {
				t.Fatalf("unexpected output\nstdout: %s\nstderr: %s", out.String(), errOut.String())
			}
			if (tc.quietSide == "stdout" && out.Len() != 0) || (tc.quietSide == "stderr" && errOut.Len() != 0) {
				t.Fatalf("expected nothing on %s", tc.quietSide)
			}
		})
	}
}

func TestRunBuildWritesDist(t *testing.T) {
	root := testutil.TempTree(t, map[string]string{
		"main.js":  "const { greet } = require('./greet.js');\nmodule.exports = greet('world');\n",
		"greet.js": "exports.greet = function (name) { return 'hello ' + name; };\n",
	})
	var out, errOut bytes.Buffer
	if code := run(context.Background(), []string{"build", "--root", root, "main.js"}, &out, &errOut); code != cli.ExitOK {
		t.Fatalf("expected exit code 0, got %d: %s", code, errOut.String())
	}
	greet := testutil.MustReadFile(t, filepath.Join(root, "dist", "greet.js"))
	if !strings.Contains(greet, "greet") {
		t.Fatalf("unexpected output:\n%s", greet)
	}
}
