package dynrequire

import (
	"strings"

	"github.com/rollup/plugins-sub001/internal/jsast"
)

// Case is one arm of a dispatch function: the normalized key and the
// JavaScript expression returned for it.
type Case struct {
	Key        string
	Expression string
}

// RequireDispatch returns a synchronous dispatch function. Unknown keys throw,
// matching a failed require.
func RequireDispatch(name, normalizeName string, cases []Case) string {
	var b strings.Builder
	b.WriteString("function " + name + "(path) {\n")
	b.WriteString("\tswitch (" + normalizeName + "(path)) {\n")
	writeCases(&b, cases)
	b.WriteString("\t\tdefault: throw new Error('Could not dynamically require \"' + path + '\". Please configure the dynamicRequireTargets or/and ignoreDynamicRequires option to enable this require.');\n")
	b.WriteString("\t}\n}\n")
	return b.String()
}

// ImportDispatch returns an asynchronous dispatch function. Unknown keys
// produce a promise rejected on a later tick.
func ImportDispatch(name, normalizeName string, cases []Case) string {
	var b strings.Builder
	b.WriteString("function " + name + "(path) {\n")
	b.WriteString("\tswitch (" + normalizeName + "(path)) {\n")
	writeCases(&b, cases)
	b.WriteString("\t\tdefault: return new Promise(function (resolve, reject) {\n")
	b.WriteString("\t\t\t(typeof queueMicrotask === 'function' ? queueMicrotask : setTimeout)(\n")
	b.WriteString("\t\t\t\treject.bind(null, new Error(\"Unknown variable dynamic import: \" + path))\n")
	b.WriteString("\t\t\t);\n")
	b.WriteString("\t\t});\n")
	b.WriteString("\t}\n}\n")
	return b.String()
}

// FallbackRequire returns a require stand-in that always throws. Requires
// left unresolved on purpose are routed to it.
func FallbackRequire(name string) string {
	return "function " + name + "(path) {\n" +
		"\tthrow new Error('Could not dynamically require \"' + path + '\". Please configure the dynamicRequireTargets or/and ignoreDynamicRequires option to enable this require.');\n" +
		"}\n"
}

func writeCases(b *strings.Builder, cases []Case) {
	for _, c := range cases {
		b.WriteString("\t\tcase " + jsast.Quote(c.Key) + ": return " + c.Expression + ";\n")
	}
}

// ImportExpression returns an import() call for a literal specifier.
func ImportExpression(specifier string) string {
	return "import(" + jsast.Quote(specifier) + ")"
}
