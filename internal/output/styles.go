package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/rollup/plugins-sub001/internal/report"
)

var (
	// ColorCyan marks module paths.
	ColorCyan = lipgloss.Color("14")
	// ColorGreen marks successful summaries.
	ColorGreen = lipgloss.Color("82")
	// ColorYellow marks warnings.
	ColorYellow = lipgloss.Color("220")
	// ColorBoldRed marks fatal diagnostics.
	ColorBoldRed = lipgloss.Color("204")
)

var (
	StyleNoun    = lipgloss.NewStyle().Foreground(ColorCyan)
	StyleDim     = lipgloss.NewStyle().Faint(true)
	StyleSummary = lipgloss.NewStyle().Bold(true)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorGreen)
)

// SeverityStyle returns the style of a diagnostic severity label.
func SeverityStyle(severity report.Severity) lipgloss.Style {
	switch severity {
	case report.SeverityError:
		return lipgloss.NewStyle().Bold(true).Foreground(ColorBoldRed)
	case report.SeverityWarning:
		return lipgloss.NewStyle().Foreground(ColorYellow)
	default:
		return lipgloss.NewStyle()
	}
}

// FormatDiagnostic renders a diagnostic as one styled line.
func FormatDiagnostic(diagnostic report.Diagnostic) string {
	line := SeverityStyle(diagnostic.Severity).Render(string(diagnostic.Severity)) + " " +
		StyleDim.Render("["+report.Plugin+"]") + " "
	if diagnostic.Location != nil {
		line += StyleNoun.Render(diagnostic.Location.String()) + ": "
	}
	return line + diagnostic.Message
}

// LogDiagnostic sends a diagnostic to the logger at the level matching its
// severity.
func LogDiagnostic(diagnostic report.Diagnostic) {
	keyvals := []interface{}{"code", diagnostic.Code}
	if diagnostic.Location != nil {
		keyvals = append(keyvals, "at", diagnostic.Location.String())
	}
	logger := Logger
	if diagnostic.Location != nil {
		logger = Module(diagnostic.Location.File)
	}
	if diagnostic.Severity == report.SeverityError {
		logger.Error(diagnostic.Message, keyvals...)
		return
	}
	logger.Warn(diagnostic.Message, keyvals...)
}
