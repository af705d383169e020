// Package app runs builds and analyses for the command line.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rollup/plugins-sub001/internal/config"
	"github.com/rollup/plugins-sub001/internal/output"
	"github.com/rollup/plugins-sub001/internal/pipeline"
	"github.com/rollup/plugins-sub001/internal/report"
	"github.com/rollup/plugins-sub001/internal/resolve"
)

var (
	ErrUnknownMode = errors.New("unknown mode")
	ErrNoEntries   = errors.New("at least one entry module is required")
	// ErrBuildFailed wraps the fatal diagnostics of a failed build.
	ErrBuildFailed = errors.New("build failed")
)

type App struct {
	Formatter report.Formatter
	Reporter  pipeline.Reporter
	Now       func() time.Time
}

func New() *App {
	return &App{
		Formatter: report.NewFormatter(),
		Reporter:  pipeline.ReporterFunc(output.LogDiagnostic),
		Now:       time.Now,
	}
}

func (a *App) Execute(ctx context.Context, req Request) (string, error) {
	switch req.Mode {
	case ModeBuild, ModeAnalyze:
	default:
		return "", ErrUnknownMode
	}
	if len(req.Entries) == 0 {
		return "", ErrNoEntries
	}

	root, err := filepath.Abs(req.Root)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}
	cfg, err := config.Load(root, req.ConfigPath)
	if err != nil {
		return "", err
	}
	if cfg.Path != "" {
		output.Debug("config loaded", "path", cfg.Path, "sources", len(cfg.Sources))
	}

	opts := cfg.PipelineOptions(root)
	if req.Mode == ModeBuild {
		// Query proxies cannot be written to disk.
		opts.Link = pipeline.LinkFile
	}
	builder := pipeline.NewBuilder(opts,
		pipeline.WithResolver(resolve.New(cfg.External)),
		pipeline.WithLoader(pipeline.FSLoader{Root: root}),
		pipeline.WithReporter(a.Reporter),
	)

	build, err := builder.Build(ctx, req.Entries)
	if err != nil {
		return a.formatFailure(root, req.Format, err)
	}
	reportData := build.Report(a.Now())
	reportData.Warnings = append(reportData.Warnings, opts.Cache.Warnings()...)

	if req.Mode == ModeBuild {
		outDir := req.OutDir
		if !filepath.IsAbs(outDir) {
			outDir = filepath.Join(root, outDir)
		}
		files, err := writeOutputs(outDir, build)
		if err != nil {
			return "", err
		}
		reportData.Outputs = files
		output.Info("build complete", output.KeyModules, len(build.Order), "files", len(files), "out", outDir)
	}
	return a.Formatter.Format(reportData, req.Format)
}

// formatFailure renders the fatal diagnostics of a failed build. Errors
// that carry no diagnostics are returned unchanged.
func (a *App) formatFailure(root string, format report.Format, err error) (string, error) {
	var buildErr *report.BuildError
	if !errors.As(err, &buildErr) {
		return "", err
	}
	failed := fmt.Errorf("%w: %w", ErrBuildFailed, err)
	formatted, formatErr := a.Formatter.Format(report.Report{
		SchemaVersion: report.SchemaVersion,
		GeneratedAt:   a.Now().UTC(),
		Root:          root,
		Diagnostics:   buildErr.Diagnostics,
	}, format)
	if formatErr != nil {
		return "", failed
	}
	return formatted, failed
}
