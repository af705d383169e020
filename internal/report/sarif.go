package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"
)

const (
	sarifSchemaURI = "https://json.schemastore.org/sarif-2.1.0.json"
	sarifVersion   = "2.1.0"
)

// ruleDynamicRequire reports expanded dynamic require sites. It has no
// diagnostic code because expansion is not a problem.
const ruleDynamicRequire = "DYNAMIC_REQUIRE"

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	InformationURI string      `json:"informationUri,omitempty"`
	Version        string      `json:"version,omitempty"`
	Rules          []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string     `json:"id"`
	Name             string     `json:"name,omitempty"`
	ShortDescription sarifText  `json:"shortDescription"`
	Help             *sarifText `json:"help,omitempty"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level,omitempty"`
	Message   sarifText       `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifText struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation struct {
		ArtifactLocation struct {
			URI string `json:"uri"`
		} `json:"artifactLocation"`
		Region *sarifRegion `json:"region,omitempty"`
	} `json:"physicalLocation"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
}

var ruleDescriptions = map[string]struct {
	short string
	help  string
}{
	CodeParseError:            {short: "Module source could not be parsed", help: "Fix the syntax error; no output is produced for unparseable modules."},
	CodeDynamicPattern:        {short: "Variable require or import pattern is not supported", help: "Start the pattern with ./ or ../, keep it inside a specific directory and include the file extension."},
	CodeUnresolvedRequire:     {short: "Required module could not be resolved", help: "The require is kept as an external import; make sure the host can resolve it."},
	CodeLoadError:             {short: "Module source could not be loaded", help: "Check that the file exists and is readable."},
	CodeInternalError:         {short: "Transform failed unexpectedly", help: "Report the module that triggered the failure."},
	CodeIgnoredDynamicRequire: {short: "Dynamic require left for runtime", help: "The call throws at runtime unless the path is reachable through another require."},
	ruleDynamicRequire:        {short: "Dynamic require expanded to a dispatch table", help: "Every module matching the glob is bundled; narrow the pattern to bundle less."},
}

// formatSARIF emits one result per diagnostic and a note per expanded
// dynamic require site.
func formatSARIF(rep Report) (string, error) {
	rules := map[string]sarifRule{}
	var results []sarifResult
	add := func(code string, severity Severity, message string, location *Location) {
		id := ruleID(code)
		if _, ok := rules[id]; !ok {
			rules[id] = newSARIFRule(id, code)
		}
		result := sarifResult{RuleID: id, Level: sarifLevel(severity), Message: sarifText{Text: message}}
		if location != nil {
			if loc, ok := sarifLocationOf(*location); ok {
				result.Locations = []sarifLocation{loc}
			}
		}
		results = append(results, result)
	}

	for _, diagnostic := range rep.Diagnostics {
		add(diagnostic.Code, diagnostic.Severity, diagnostic.Message, diagnostic.Location)
	}
	for _, module := range rep.Modules {
		for _, site := range module.DynamicSites {
			location := site.Location
			add(ruleDynamicRequire, "", fmt.Sprintf("%s(%s) matches %d modules via %s", site.Kind, site.Expression, len(site.Matches), site.Glob), &location)
		}
	}
	if results == nil {
		results = []sarifResult{}
	}
	slices.SortStableFunc(results, func(a, b sarifResult) int {
		return cmp.Or(
			cmp.Compare(a.RuleID, b.RuleID),
			cmp.Compare(a.Message.Text, b.Message.Text),
			cmp.Compare(locationKey(a), locationKey(b)),
		)
	})

	ids := make([]string, 0, len(rules))
	for id := range rules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	driver := sarifDriver{
		Name:           "cjsesm",
		InformationURI: "https://github.com/rollup/plugins",
		Version:        cmp.Or(strings.TrimSpace(rep.SchemaVersion), SchemaVersion),
	}
	for _, id := range ids {
		driver.Rules = append(driver.Rules, rules[id])
	}

	payload, err := json.MarshalIndent(sarifLog{
		Schema:  sarifSchemaURI,
		Version: sarifVersion,
		Runs:    []sarifRun{{Tool: sarifTool{Driver: driver}, Results: results}},
	}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(payload) + "\n", nil
}

// ruleID turns a diagnostic code such as DYNAMIC_PATTERN into
// "commonjs/dynamic-pattern".
func ruleID(code string) string {
	name := strings.ToLower(strings.TrimSpace(code))
	name = strings.Trim(strings.ReplaceAll(name, "_", "-"), "-")
	if name == "" {
		name = "unknown"
	}
	return Plugin + "/" + name
}

func newSARIFRule(id, code string) sarifRule {
	description := ruleDescriptions[code]
	rule := sarifRule{
		ID:               id,
		Name:             strings.TrimPrefix(id, Plugin+"/"),
		ShortDescription: sarifText{Text: cmp.Or(description.short, code)},
	}
	if description.help != "" {
		rule.Help = &sarifText{Text: description.help}
	}
	return rule
}

func sarifLocationOf(location Location) (sarifLocation, bool) {
	file := strings.TrimSpace(location.File)
	if file == "" {
		return sarifLocation{}, false
	}
	var loc sarifLocation
	loc.PhysicalLocation.ArtifactLocation.URI = path.Clean(strings.ReplaceAll(file, "\\", "/"))
	if location.Line > 0 || location.Column > 0 {
		loc.PhysicalLocation.Region = &sarifRegion{StartLine: location.Line, StartColumn: location.Column}
	}
	return loc, true
}

func locationKey(result sarifResult) string {
	if len(result.Locations) == 0 {
		return ""
	}
	physical := result.Locations[0].PhysicalLocation
	key := physical.ArtifactLocation.URI
	if physical.Region != nil {
		key += fmt.Sprintf(":%09d:%09d", physical.Region.StartLine, physical.Region.StartColumn)
	}
	return key
}

func sarifLevel(severity Severity) string {
	switch severity {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}
