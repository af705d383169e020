// Package pipeline builds a module graph from entry points and transforms
// every reachable CommonJS module in two phases.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rollup/plugins-sub001/internal/report"
	"github.com/rollup/plugins-sub001/internal/resolve"
	"github.com/rollup/plugins-sub001/internal/safeio"
)

// Resolver locates the module a specifier refers to.
type Resolver interface {
	Resolve(ctx context.Context, specifier, importer string) (resolve.Resolution, error)
}

// Loader reads module sources.
type Loader interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

// Reporter receives non-fatal diagnostics as they are produced. It may be
// called from several goroutines.
type Reporter interface {
	Warn(diagnostic report.Diagnostic)
}

type ReporterFunc func(diagnostic report.Diagnostic)

func (f ReporterFunc) Warn(diagnostic report.Diagnostic) {
	f(diagnostic)
}

type discardReporter struct{}

func (discardReporter) Warn(report.Diagnostic) {}

// FSLoader loads modules from disk. When Root is set, paths outside it are
// refused.
type FSLoader struct {
	Root string
}

func (l FSLoader) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		data []byte
		err  error
	)
	if l.Root != "" {
		data, err = safeio.ReadFileUnder(l.Root, path)
	} else {
		data, err = safeio.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return data, nil
}
