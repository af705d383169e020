package jsast

import (
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

func NodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return string(content[node.StartByte():node.EndByte()])
}

func FirstNamedChildOfType(node *sitter.Node, types ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		for _, typ := range types {
			if child.Type() == typ {
				return child
			}
		}
	}
	return nil
}

// Unwrap strips any number of enclosing parentheses.
func Unwrap(node *sitter.Node) *sitter.Node {
	for node != nil && node.Type() == "parenthesized_expression" && node.NamedChildCount() == 1 {
		node = node.NamedChild(0)
	}
	return node
}

// SameNode reports whether a and b denote the same syntax node.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// IsFunction reports whether node introduces a function scope.
func IsFunction(node *sitter.Node) bool {
	switch node.Type() {
	case "function_declaration", "generator_function_declaration",
		"function_expression", "function", "generator_function",
		"arrow_function", "method_definition":
		return true
	default:
		return false
	}
}

// IsLoop reports whether node is an iteration statement.
func IsLoop(node *sitter.Node) bool {
	switch node.Type() {
	case "for_statement", "for_in_statement", "while_statement", "do_statement":
		return true
	default:
		return false
	}
}

// StringValue returns the cooked value of a string literal node, or of a
// template string without substitutions.
func StringValue(node *sitter.Node, content []byte) (string, bool) {
	node = Unwrap(node)
	if node == nil {
		return "", false
	}
	switch node.Type() {
	case "string":
		text := NodeText(node, content)
		if len(text) < 2 {
			return "", false
		}
		return Unescape(text[1 : len(text)-1]), true
	case "template_string":
		if FirstNamedChildOfType(node, "template_substitution") != nil {
			return "", false
		}
		text := NodeText(node, content)
		if len(text) < 2 {
			return "", false
		}
		return Unescape(text[1 : len(text)-1]), true
	default:
		return "", false
	}
}

// TemplatePart is either a cooked literal chunk or an interpolated expression.
type TemplatePart struct {
	Literal    string
	Expression *sitter.Node
}

// TemplateParts splits a template string into alternating literal chunks and
// substitution expressions, in source order. Empty chunks are omitted.
func TemplateParts(node *sitter.Node, content []byte) []TemplatePart {
	start := node.StartByte() + 1
	end := node.EndByte() - 1
	parts := make([]TemplatePart, 0, 3)
	pos := start
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "template_substitution" {
			continue
		}
		if child.StartByte() > pos {
			parts = append(parts, TemplatePart{Literal: Unescape(string(content[pos:child.StartByte()]))})
		}
		parts = append(parts, TemplatePart{Expression: child.NamedChild(0)})
		pos = child.EndByte()
	}
	if end > pos {
		parts = append(parts, TemplatePart{Literal: Unescape(string(content[pos:end]))})
	}
	return parts
}

// Unescape cooks the escape sequences of a JavaScript string body.
func Unescape(raw string) string {
	if !strings.Contains(raw, `\`) {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			b.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
		case '\r':
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		case 'x':
			if r, n := parseHex(raw[i+1:], 2); n > 0 {
				b.WriteRune(r)
				i += n
				continue
			}
			b.WriteByte('x')
		case 'u':
			if r, n := parseUnicodeEscape(raw[i+1:]); n > 0 {
				b.WriteRune(r)
				i += n
				continue
			}
			b.WriteByte('u')
		default:
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}

func parseHex(s string, width int) (rune, int) {
	if len(s) < width {
		return 0, 0
	}
	v, err := strconv.ParseUint(s[:width], 16, 32)
	if err != nil {
		return 0, 0
	}
	return rune(v), width
}

func parseUnicodeEscape(s string) (rune, int) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 2 {
			return 0, 0
		}
		v, err := strconv.ParseUint(s[1:end], 16, 32)
		if err != nil || v > utf8.MaxRune {
			return 0, 0
		}
		return rune(v), end + 1
	}
	return parseHex(s, 4)
}

// Quote returns s as a double-quoted JavaScript string literal.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\u2028':
			b.WriteString(`\u2028`)
		case '\u2029':
			b.WriteString(`\u2029`)
		default:
			if r < 0x20 {
				b.WriteString(`\x`)
				b.WriteString(strconv.FormatInt(int64(r)+0x100, 16)[1:])
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
