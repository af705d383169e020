package commonjs

import (
	"strings"

	"github.com/rollup/plugins-sub001/internal/jsast"
)

// TargetKind is what a require proxy points at.
type TargetKind uint8

const (
	// TargetCommonJS is a CommonJS module emitted with the static strategy.
	TargetCommonJS TargetKind = iota
	TargetESM
	TargetJSON
)

// Proxy returns the require proxy of a module that is not wrapped. Every
// proxy exports __require(), which returns what require() of the target
// evaluates to.
func Proxy(kind TargetKind, specifier string, opts Options) *Output {
	quoted := jsast.Quote(specifier)
	var b strings.Builder
	switch kind {
	case TargetCommonJS:
		b.WriteString("import { __moduleExports } from " + quoted + ";\n\n")
		b.WriteString("export function __require () {\n\treturn __moduleExports;\n}\n")
	case TargetJSON:
		b.WriteString("import json from " + quoted + ";\n\n")
		b.WriteString("export function __require () {\n\treturn json;\n}\n")
	default:
		b.WriteString("import * as namespace from " + quoted + ";\n\n")
		if opts.RequireReturnsDefault == ReturnsDefaultNamespace {
			b.WriteString("export function __require () {\n\treturn namespace;\n}\n")
			break
		}
		b.WriteString("export function __require () {\n" +
			"\tvar keys = Object.keys(namespace);\n" +
			"\treturn keys.length === 1 && keys[0] === 'default' ? namespace.default : namespace;\n" +
			"}\n")
	}
	return &Output{Code: b.String()}
}
