package report

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatSARIF Format = "sarif"
)

const SchemaVersion = "0.1.0"

// Plugin prefixes every diagnostic message.
const Plugin = "commonjs"

var ErrUnknownFormat = errors.New("unknown format")

func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatSARIF):
		return FormatSARIF, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, value)
	}
}

type Report struct {
	SchemaVersion string         `json:"schemaVersion"`
	GeneratedAt   time.Time      `json:"generatedAt"`
	Root          string         `json:"root"`
	Modules       []ModuleReport `json:"modules"`
	Cycles        [][]string     `json:"cycles,omitempty"`
	Summary       *Summary       `json:"summary,omitempty"`
	Cache         *CacheMetadata `json:"cache,omitempty"`
	Diagnostics   []Diagnostic   `json:"diagnostics,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	Outputs       []OutputFile   `json:"outputs,omitempty"`
}

type ModuleReport struct {
	ID             string              `json:"id"`
	Kind           string              `json:"kind"`
	Shape          string              `json:"shape,omitempty"`
	Names          []string            `json:"names,omitempty"`
	HasDynamicKeys bool                `json:"hasDynamicKeys,omitempty"`
	ESModuleFlag   bool                `json:"esModuleFlag,omitempty"`
	Strategy       string              `json:"strategy"`
	Reasons        []string            `json:"reasons,omitempty"`
	SideEffects    bool                `json:"sideEffects"`
	Regenerated    bool                `json:"regenerated,omitempty"`
	DynamicSites   []DynamicSiteReport `json:"dynamicSites,omitempty"`
}

type DynamicSiteReport struct {
	Kind           string   `json:"kind"`
	Expression     string   `json:"expression"`
	Glob           string   `json:"glob"`
	BareImportRoot string   `json:"bareImportRoot,omitempty"`
	Matches        []string `json:"matches"`
	Location       Location `json:"location"`
}

type Summary struct {
	ModuleCount      int `json:"moduleCount"`
	CommonJSCount    int `json:"commonJSCount"`
	StaticCount      int `json:"staticCount"`
	WrappedCount     int `json:"wrappedCount"`
	CycleCount       int `json:"cycleCount"`
	DynamicSiteCount int `json:"dynamicSiteCount"`
}

type OutputFile struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

type CacheMetadata struct {
	Enabled       bool                `json:"enabled"`
	Path          string              `json:"path,omitempty"`
	ReadOnly      bool                `json:"readOnly,omitempty"`
	Hits          int                 `json:"hits"`
	Misses        int                 `json:"misses"`
	Writes        int                 `json:"writes"`
	Invalidations []CacheInvalidation `json:"invalidations,omitempty"`
}

type CacheInvalidation struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (l Location) String() string {
	if l.Line == 0 {
		return l.File
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic codes.
const (
	CodeParseError            = "PARSE_ERROR"
	CodeDynamicPattern        = "DYNAMIC_PATTERN"
	CodeUnresolvedRequire     = "UNRESOLVED_REQUIRE"
	CodeLoadError             = "LOAD_ERROR"
	CodeInternalError         = "INTERNAL_ERROR"
	CodeIgnoredDynamicRequire = "IGNORED_DYNAMIC_REQUIRE"
)

type Diagnostic struct {
	Severity Severity  `json:"severity"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	Location *Location `json:"location,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Location == nil {
		return "[" + Plugin + "] " + d.Message
	}
	return "[" + Plugin + "] " + d.Location.String() + ": " + d.Message
}

func (d Diagnostic) Error() string {
	return d.String()
}

// BuildError carries every fatal diagnostic of a failed build.
type BuildError struct {
	Diagnostics []Diagnostic
}

func (e *BuildError) Error() string {
	lines := make([]string, 0, len(e.Diagnostics))
	for _, diagnostic := range e.Diagnostics {
		lines = append(lines, diagnostic.String())
	}
	return strings.Join(lines, "\n")
}

// Unwrap exposes each diagnostic so errors.As can match a single one.
func (e *BuildError) Unwrap() []error {
	errs := make([]error, 0, len(e.Diagnostics))
	for _, diagnostic := range e.Diagnostics {
		errs = append(errs, diagnostic)
	}
	return errs
}
