// Package cli maps command lines onto app requests and app results onto exit
// codes.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rollup/plugins-sub001/internal/app"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitUsage       = 2
	ExitBuildFailed = 3
)

type Runner interface {
	Execute(ctx context.Context, req app.Request) (string, error)
}

type CLI struct {
	Runner Runner
	Out    io.Writer
	Err    io.Writer
}

func New(runner Runner, out io.Writer, errOut io.Writer) *CLI {
	return &CLI{
		Runner: runner,
		Out:    out,
		Err:    errOut,
	}
}

// runError marks a failure reported by the runner. Every other error out of
// cobra is a usage error.
type runError struct {
	err error
}

func (e *runError) Error() string { return e.err.Error() }

func (e *runError) Unwrap() error { return e.err }

func (c *CLI) Run(ctx context.Context, args []string) int {
	root := c.newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var failure *runError
	if !errors.As(err, &failure) {
		fmt.Fprintf(c.Err, "error: %v\n\n", err)
		usage := root
		if sub, _, findErr := root.Find(args); findErr == nil {
			usage = sub
		}
		fmt.Fprint(c.Err, usage.UsageString())
		return ExitUsage
	}

	fmt.Fprintln(c.Err, failure.err.Error())
	if errors.Is(failure.err, app.ErrBuildFailed) {
		return ExitBuildFailed
	}
	return ExitError
}

// execute runs req and prints whatever the runner produced, even on failure.
func (c *CLI) execute(cmd *cobra.Command, req app.Request) error {
	output, err := c.Runner.Execute(cmd.Context(), req)
	if output != "" {
		fmt.Fprint(c.Out, output)
		if !strings.HasSuffix(output, "\n") {
			fmt.Fprintln(c.Out)
		}
	}
	if err != nil {
		return &runError{err: err}
	}
	return nil
}
