package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
)

type Formatter struct{}

func NewFormatter() Formatter {
	return Formatter{}
}

func (f Formatter) Format(report Report, format Format) (string, error) {
	switch format {
	case FormatTable:
		return formatTable(report), nil
	case FormatJSON:
		payload, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", err
		}
		return string(payload) + "\n", nil
	case FormatSARIF:
		return formatSARIF(report)
	default:
		return "", ErrUnknownFormat
	}
}

func formatTable(report Report) string {
	if len(report.Modules) == 0 {
		return formatEmpty(report)
	}

	var buffer bytes.Buffer
	appendSummary(&buffer, report.Summary)
	appendCycles(&buffer, report.Cycles)

	writer := tabwriter.NewWriter(&buffer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(writer, strings.Join([]string{"Module", "Kind", "Shape", "Strategy", "Exports", "Reasons"}, "\t"))
	for _, module := range report.Modules {
		_, _ = fmt.Fprintln(writer, formatTableRow(module))
	}
	_ = writer.Flush()

	appendDynamicSites(&buffer, report.Modules)
	appendCache(&buffer, report.Cache)
	appendOutputs(&buffer, report.Outputs)
	appendDiagnostics(&buffer, report.Diagnostics)
	appendWarnings(&buffer, report)
	return buffer.String()
}

func appendSummary(buffer *bytes.Buffer, summary *Summary) {
	if summary == nil {
		return
	}
	_, _ = fmt.Fprintf(
		buffer,
		"Summary: %d modules, %d CommonJS (%d static, %d wrapped), %d cycles, %d dynamic sites\n\n",
		summary.ModuleCount,
		summary.CommonJSCount,
		summary.StaticCount,
		summary.WrappedCount,
		summary.CycleCount,
		summary.DynamicSiteCount,
	)
}

func appendCycles(buffer *bytes.Buffer, cycles [][]string) {
	if len(cycles) == 0 {
		return
	}
	buffer.WriteString("Cycles:\n")
	for _, cycle := range cycles {
		buffer.WriteString("- ")
		buffer.WriteString(strings.Join(cycle, " -> "))
		buffer.WriteString("\n")
	}
	buffer.WriteString("\n")
}

func formatTableRow(module ModuleReport) string {
	shape := module.Shape
	if shape == "" {
		shape = "-"
	}
	if module.HasDynamicKeys {
		shape += "+dynamic-keys"
	}
	strategy := module.Strategy
	if module.Regenerated {
		strategy += " (regenerated)"
	}
	return strings.Join([]string{
		module.ID,
		module.Kind,
		shape,
		strategy,
		formatNames(module.Names),
		formatReasons(module.Reasons),
	}, "\t")
}

func formatNames(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

func formatReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "-"
	}
	return strings.Join(reasons, ", ")
}

func appendDynamicSites(buffer *bytes.Buffer, modules []ModuleReport) {
	wroteHeader := false
	for _, module := range modules {
		for _, site := range module.DynamicSites {
			if !wroteHeader {
				buffer.WriteString("\nDynamic sites:\n")
				wroteHeader = true
			}
			_, _ = fmt.Fprintf(buffer, "- %s %s(%s) glob %s: %d matches\n", site.Location.String(), site.Kind, site.Expression, site.Glob, len(site.Matches))
		}
	}
}

func appendCache(buffer *bytes.Buffer, cache *CacheMetadata) {
	if cache == nil || !cache.Enabled {
		return
	}
	_, _ = fmt.Fprintf(buffer, "\nCache: %d hits, %d misses, %d writes\n", cache.Hits, cache.Misses, cache.Writes)
	for _, invalidation := range cache.Invalidations {
		_, _ = fmt.Fprintf(buffer, "- %s: %s\n", invalidation.Key, invalidation.Reason)
	}
}

func appendOutputs(buffer *bytes.Buffer, outputs []OutputFile) {
	if len(outputs) == 0 {
		return
	}
	total := 0
	for _, file := range outputs {
		total += file.Bytes
	}
	_, _ = fmt.Fprintf(buffer, "\nWrote %d files (%d bytes)\n", len(outputs), total)
}

func appendDiagnostics(buffer *bytes.Buffer, diagnostics []Diagnostic) {
	if len(diagnostics) == 0 {
		return
	}
	buffer.WriteString("\nDiagnostics:\n")
	for _, diagnostic := range diagnostics {
		buffer.WriteString("- ")
		buffer.WriteString(string(diagnostic.Severity))
		buffer.WriteString(" ")
		buffer.WriteString(diagnostic.String())
		buffer.WriteString("\n")
	}
}

func formatEmpty(report Report) string {
	var buffer bytes.Buffer
	buffer.WriteString("No modules to report.\n")
	appendDiagnostics(&buffer, report.Diagnostics)
	appendWarnings(&buffer, report)
	return buffer.String()
}

func appendWarnings(buffer *bytes.Buffer, report Report) {
	if len(report.Warnings) == 0 {
		return
	}
	buffer.WriteString("\nWarnings:\n")
	for _, warning := range report.Warnings {
		buffer.WriteString("- ")
		buffer.WriteString(warning)
		buffer.WriteString("\n")
	}
}
