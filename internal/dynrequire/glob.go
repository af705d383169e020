package dynrequire

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rollup/plugins-sub001/internal/jsast"
)

const example = "For example: import(`./foo/${bar}.js`)."

var (
	ownDirectoryStarExtension = regexp.MustCompile(`^\./\*\.\w+$`)
	packageNamePattern        = regexp.MustCompile(`^(?:@[a-z0-9-~][a-z0-9-._~]*/)?[a-z0-9-~][a-z0-9-._~]*`)
	globMeta                  = regexp.MustCompile(`[\\?\[\]{}]`)
)

// PatternError is a rejected variable import or require pattern.
type PatternError struct {
	Message  string
	Location jsast.Location
}

func (e *PatternError) Error() string {
	if e.Location.Line == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.Location.File, e.Location.Line, e.Location.Column, e.Message)
}

func withExample(message string) string {
	if strings.Contains(message, example) {
		return message
	}
	return message + " " + example
}

type globError string

// ExpressionToGlob converts a call argument into a glob. Literal chunks are
// escaped, and every non-literal sub-expression becomes a single "*". A
// literal containing "*" is rejected.
func ExpressionToGlob(node *sitter.Node, content []byte) (string, error) {
	node = jsast.Unwrap(node)
	if node == nil {
		return "*", nil
	}
	switch node.Type() {
	case "template_string":
		return templateToGlob(node, content)
	case "string":
		value, _ := jsast.StringValue(node, content)
		return sanitize(value)
	case "binary_expression":
		return binaryToGlob(node, content)
	case "call_expression":
		return callToGlob(node, content)
	default:
		return "*", nil
	}
}

func templateToGlob(node *sitter.Node, content []byte) (string, error) {
	var b strings.Builder
	for _, part := range jsast.TemplateParts(node, content) {
		var (
			chunk string
			err   error
		)
		if part.Expression != nil {
			chunk, err = ExpressionToGlob(part.Expression, content)
		} else {
			chunk, err = sanitize(part.Literal)
		}
		if err != nil {
			return "", err
		}
		b.WriteString(chunk)
	}
	return b.String(), nil
}

func binaryToGlob(node *sitter.Node, content []byte) (string, error) {
	operator := jsast.NodeText(node.ChildByFieldName("operator"), content)
	if operator != "+" {
		return "", globError(operator + " operator is not supported.")
	}
	left, err := ExpressionToGlob(node.ChildByFieldName("left"), content)
	if err != nil {
		return "", err
	}
	right, err := ExpressionToGlob(node.ChildByFieldName("right"), content)
	if err != nil {
		return "", err
	}
	return left + right, nil
}

func callToGlob(node *sitter.Node, content []byte) (string, error) {
	callee := jsast.Unwrap(node.ChildByFieldName("function"))
	if callee == nil || callee.Type() != "member_expression" {
		return "*", nil
	}
	if jsast.NodeText(callee.ChildByFieldName("property"), content) != "concat" {
		return "*", nil
	}
	glob, err := ExpressionToGlob(callee.ChildByFieldName("object"), content)
	if err != nil {
		return "", err
	}
	args := node.ChildByFieldName("arguments")
	for i := 0; args != nil && i < int(args.NamedChildCount()); i++ {
		chunk, err := ExpressionToGlob(args.NamedChild(i), content)
		if err != nil {
			return "", err
		}
		glob += chunk
	}
	return glob, nil
}

func sanitize(literal string) (string, error) {
	if literal == "" {
		return "", nil
	}
	if strings.Contains(literal, "*") {
		return "", globError("A dynamic import cannot contain * characters.")
	}
	return globMeta.ReplaceAllString(literal, `\$0`), nil
}

func (e globError) Error() string {
	return string(e)
}

// Pattern is a validated variable import pattern.
type Pattern struct {
	Glob string
	// Package is set when the glob is rooted at an installed package rather
	// than the importer's directory.
	Package string
}

// DeriveGlob converts the argument of a require or import call into a
// validated Pattern. It returns nil when the argument is not a variable
// pattern (no wildcard, or a URL) and should be left alone.
func DeriveGlob(node *sitter.Node, file *jsast.File) (*Pattern, error) {
	glob, err := ExpressionToGlob(node, file.Content)
	if err != nil {
		return nil, &PatternError{Message: withExample(err.Error()), Location: file.Location(node)}
	}
	if shouldIgnore(glob) {
		return nil, nil
	}
	for strings.Contains(glob, "**") {
		glob = strings.ReplaceAll(glob, "**", "*")
	}
	if err := validateGlob(glob, file.Text(node)); err != nil {
		return nil, &PatternError{Message: withExample(err.Error()), Location: file.Location(node)}
	}
	pattern := &Pattern{Glob: glob}
	if !strings.HasPrefix(glob, "./") && !strings.HasPrefix(glob, "../") {
		pattern.Package = packageNamePattern.FindString(glob)
	}
	return pattern, nil
}

// LiteralValue folds an argument built only from string literals, template
// strings without substitutions, "+" and ".concat" into its value.
func LiteralValue(node *sitter.Node, content []byte) (string, bool) {
	node = jsast.Unwrap(node)
	if node == nil {
		return "", false
	}
	switch node.Type() {
	case "string", "template_string":
		return jsast.StringValue(node, content)
	case "binary_expression":
		if jsast.NodeText(node.ChildByFieldName("operator"), content) != "+" {
			return "", false
		}
		left, ok := LiteralValue(node.ChildByFieldName("left"), content)
		if !ok {
			return "", false
		}
		right, ok := LiteralValue(node.ChildByFieldName("right"), content)
		return left + right, ok
	case "call_expression":
		callee := jsast.Unwrap(node.ChildByFieldName("function"))
		if callee == nil || callee.Type() != "member_expression" || jsast.NodeText(callee.ChildByFieldName("property"), content) != "concat" {
			return "", false
		}
		value, ok := LiteralValue(callee.ChildByFieldName("object"), content)
		if !ok {
			return "", false
		}
		args := node.ChildByFieldName("arguments")
		for i := 0; args != nil && i < int(args.NamedChildCount()); i++ {
			chunk, ok := LiteralValue(args.NamedChild(i), content)
			if !ok {
				return "", false
			}
			value += chunk
		}
		return value, true
	default:
		return "", false
	}
}

func shouldIgnore(glob string) bool {
	if !strings.Contains(unescapedWildcards(glob), "*") {
		return true
	}
	for _, prefix := range []string{"data:", "http:", "https:"} {
		if strings.HasPrefix(glob, prefix) {
			return true
		}
	}
	return false
}

func validateGlob(glob, source string) error {
	if strings.HasPrefix(glob, "*") {
		return globError("invalid import \"" + source + "\". It cannot be statically analyzed. Variable dynamic imports must start with ./ and be limited to a specific directory.")
	}
	if strings.HasPrefix(glob, "/") {
		return globError("Variable absolute imports are not supported. Imports must start with ./ in the static part of the import.")
	}
	if !strings.HasPrefix(glob, "./") && !strings.HasPrefix(glob, "../") {
		name := packageNamePattern.FindString(glob)
		if name == "" || strings.Contains(name, "*") || !strings.HasPrefix(glob[len(name):], "/") {
			return globError("Variable bare imports are not supported. Imports must start with ./ in the static part of the import or be package-rooted.")
		}
	}
	if ownDirectoryStarExtension.MatchString(glob) {
		return globError("Variable imports cannot import their own directory, place imports in a separate directory or make the import filename more specific.")
	}
	if extname(glob) == "" {
		return globError("A file extension must be included in the static part of the import.")
	}
	return nil
}

// extname mirrors Node's path.extname: a leading dot of the base name does not
// start an extension.
func extname(glob string) string {
	base := path.Base(glob)
	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 {
		return ""
	}
	return base[idx:]
}

// unescapedWildcards drops escaped characters so only wildcards inserted by
// the converter remain visible.
func unescapedWildcards(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		if glob[i] == '\\' && i+1 < len(glob) {
			i++
			continue
		}
		b.WriteByte(glob[i])
	}
	return b.String()
}

func unescape(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		if glob[i] == '\\' && i+1 < len(glob) {
			i++
		}
		b.WriteByte(glob[i])
	}
	return b.String()
}
