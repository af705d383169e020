package app

import (
	"github.com/rollup/plugins-sub001/internal/report"
)

type Mode string

const (
	// ModeBuild transforms the graph and writes it to OutDir.
	ModeBuild Mode = "build"
	// ModeAnalyze reports the classification of every module without
	// writing anything.
	ModeAnalyze Mode = "analyze"
)

type Request struct {
	Mode Mode
	// Root is the project directory. Config files and relative entries are
	// looked up in it.
	Root       string
	Entries    []string
	ConfigPath string
	Format     report.Format
	OutDir     string
}

func DefaultRequest() Request {
	return Request{
		Mode:   ModeAnalyze,
		Root:   ".",
		Format: report.FormatTable,
		OutDir: "dist",
	}
}
