// Package output provides logging and terminal styling for the command line.
package output

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Keys shared by every log line that refers to the module graph.
const (
	KeyModule  = "module"
	KeyModules = "modules"
	KeyPhase   = "phase"
)

// Logger writes to stderr until SetupLoggingTo replaces it.
var Logger = newLogger(os.Stderr, false)

func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: verbose,
		TimeFormat:      "15:04:05",
	})
}

// SetupLoggingTo sends log lines to w. Verbose enables debug lines and
// timestamps.
func SetupLoggingTo(w io.Writer, verbose bool) {
	Logger = newLogger(w, verbose)
}

// Module returns a logger whose lines carry the root-relative module path.
func Module(rel string) *log.Logger {
	return Logger.With(KeyModule, rel)
}

// Phase logs the end of a build phase over count modules.
func Phase(phase string, count int) {
	Logger.Debug("phase complete", KeyPhase, phase, KeyModules, count)
}

func Debug(msg string, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

func Info(msg string, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

func Warn(msg string, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}
