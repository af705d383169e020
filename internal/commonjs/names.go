package commonjs

import (
	"path"
	"strconv"
	"strings"
	"unicode"
)

var reservedWords = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true,
	"delete": true, "do": true, "else": true, "enum": true, "export": true,
	"extends": true, "false": true, "finally": true, "for": true,
	"function": true, "if": true, "implements": true, "import": true,
	"in": true, "instanceof": true, "interface": true, "let": true,
	"new": true, "null": true, "package": true, "private": true,
	"protected": true, "public": true, "return": true, "static": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true, "yield": true, "arguments": true, "eval": true,
	"undefined": true, "NaN": true, "Infinity": true,
	"require": true, "module": true, "exports": true,
	"__filename": true, "__dirname": true,
}

// namer hands out identifiers that collide neither with each other nor with
// any identifier of the source module.
type namer struct {
	used map[string]bool
}

func newNamer(taken map[string]bool) *namer {
	used := make(map[string]bool, len(taken))
	for name := range taken {
		used[name] = true
	}
	return &namer{used: used}
}

func (n *namer) alloc(base string) string {
	base = legalIdentifier(base)
	name := base
	for i := 1; n.used[name] || reservedWords[name]; i++ {
		name = base + "$" + strconv.Itoa(i)
	}
	n.used[name] = true
	return name
}

func isIdentifierName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '$' || r == '_' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}

func legalIdentifier(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '$' || r == '_' || unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// baseName derives a camel-cased variable stem from a module id.
func baseName(id string) string {
	if i := strings.IndexAny(id, "?#"); i >= 0 {
		id = id[:i]
	}
	id = strings.ReplaceAll(id, "\\", "/")
	base := path.Base(id)
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	parts := strings.FieldsFunc(base, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '$' && r != '_'
	})
	if len(parts) == 0 {
		return "module"
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, part := range parts[1:] {
		b.WriteString(capitalize(part))
	}
	return legalIdentifier(b.String())
}

func capitalize(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}
