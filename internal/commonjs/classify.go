package commonjs

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rollup/plugins-sub001/internal/jsast"
)

// DefaultKind says what the ES default export of a CommonJS module is bound to.
type DefaultKind uint8

const (
	DefaultNone DefaultKind = iota
	DefaultModuleExports
	DefaultExportsDefault
)

// Classification is the export shape and emission constraints of a module.
type Classification struct {
	Shape Shape
	// Names are the ES export names in first-write order. The name default is
	// never listed; it only feeds Default.
	Names          []string
	HasDynamicKeys bool
	ESModuleFlag   bool
	Default        DefaultKind
	Strict         bool
	Reasons        []string
}

// reassignKey stands for module.exports itself in definite-write sets.
const reassignKey = "\x00module.exports"

type classifier struct {
	analysis       *Analysis
	writeAt        map[int]*exportWrite
	reassigned     bool
	firstReassign  int
	reassignCount  int
	definiteWrites map[string]bool
}

// Classify derives the export shape and strictness of an analyzed module.
// graphReasons carries strictness reasons that only the module graph knows,
// such as cycle membership. Classify never fails: anything it cannot read
// degrades to a dynamic shape or a strict module.
func Classify(analysis *Analysis, opts Options, graphReasons ...string) Classification {
	result := Classification{ESModuleFlag: analysis.ESModuleFlag}
	if !analysis.IsCommonJS || analysis.File == nil {
		return result
	}

	c := newClassifier(analysis)
	names := make([]string, 0)
	seen := map[string]bool{}
	addName := func(name string) {
		if seen[name] {
			return
		}
		if !isIdentifierName(name) || name == "__moduleExports" {
			result.HasDynamicKeys = true
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	dynamic := false
	exportsReplaced := false
	nested := false
	for i := range analysis.writes {
		w := &analysis.writes[i]
		if w.nested {
			nested = true
		}
		switch w.kind {
		case writeNamed:
			if !c.live(w) {
				continue
			}
			if w.nested || !c.definiteWrites[w.name] {
				result.HasDynamicKeys = true
				continue
			}
			addName(w.name)
		case writeComputed:
			if c.reassigned && !w.viaModule {
				continue
			}
			dynamic = true
		case writeExportsObject:
			dynamic = true
			exportsReplaced = true
		case writeUnknownKeys:
			result.HasDynamicKeys = true
		case writeModuleExports:
			if c.reassignCount != 1 || w.nested || w.augmented || !c.definiteWrites[reassignKey] {
				result.HasDynamicKeys = true
				continue
			}
			keys, unknown := objectKeys(w.value, analysis.File.Content)
			for _, key := range keys {
				addName(key)
			}
			if unknown {
				result.HasDynamicKeys = true
			}
		}
	}
	if exportsReplaced {
		names = names[:0]
	}

	result.Shape = shapeOf(dynamic, c.reassigned, len(names) > 0, result.HasDynamicKeys)
	result.Default = defaultOf(result, seen["default"], opts)
	for _, name := range names {
		if name != "default" {
			result.Names = append(result.Names, name)
		}
	}

	if nested {
		result.Reasons = append(result.Reasons, ReasonNestedExports)
	}
	if analysis.TopLevelReturn {
		result.Reasons = append(result.Reasons, ReasonTopLevelReturn)
	}
	if analysis.TopLevelThis {
		result.Reasons = append(result.Reasons, ReasonTopLevelThis)
	}
	for _, reason := range graphReasons {
		if !containsString(result.Reasons, reason) {
			result.Reasons = append(result.Reasons, reason)
		}
	}
	result.Strict = len(result.Reasons) > 0
	return result
}

func shapeOf(dynamic, reassigned, named, dynamicKeys bool) Shape {
	switch {
	case dynamic:
		return ShapeDynamic
	case reassigned && named:
		return ShapeMixed
	case reassigned:
		return ShapeDefaultOnly
	case named:
		return ShapeNamedOnly
	case dynamicKeys:
		return ShapeDynamic
	default:
		return ShapeNone
	}
}

func defaultOf(result Classification, namedDefault bool, opts Options) DefaultKind {
	switch {
	case opts.DefaultIsModuleExports == DefaultAlways:
		return DefaultModuleExports
	case result.ESModuleFlag:
		return DefaultExportsDefault
	case result.Shape == ShapeDefaultOnly, result.Shape == ShapeMixed, result.Shape == ShapeDynamic:
		return DefaultModuleExports
	case result.HasDynamicKeys, namedDefault:
		return DefaultModuleExports
	default:
		return DefaultNone
	}
}

func newClassifier(analysis *Analysis) *classifier {
	c := &classifier{analysis: analysis, writeAt: map[int]*exportWrite{}, firstReassign: -1}
	for i := range analysis.writes {
		w := &analysis.writes[i]
		c.writeAt[w.pos] = w
		if w.kind == writeModuleExports {
			c.reassignCount++
			if !c.reassigned || w.pos < c.firstReassign {
				c.firstReassign = w.pos
			}
			c.reassigned = true
		}
	}
	c.definiteWrites = map[string]bool{}
	root := analysis.File.Root()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		for key := range c.definite(root.NamedChild(i)) {
			c.definiteWrites[key] = true
		}
	}
	return c
}

// live reports whether a named write lands on the object that ends up as
// module.exports.
func (c *classifier) live(w *exportWrite) bool {
	if !c.reassigned {
		return true
	}
	return w.viaModule && w.pos > c.firstReassign
}

// definite returns the keys a top-level statement writes on every path
// through it.
func (c *classifier) definite(stmt *sitter.Node) map[string]bool {
	if stmt == nil {
		return nil
	}
	switch stmt.Type() {
	case "expression_statement":
		set := map[string]bool{}
		for i := 0; i < int(stmt.NamedChildCount()); i++ {
			c.collectExpression(stmt.NamedChild(i), set)
		}
		return set
	case "statement_block":
		set := map[string]bool{}
		for i := 0; i < int(stmt.NamedChildCount()); i++ {
			for key := range c.definite(stmt.NamedChild(i)) {
				set[key] = true
			}
		}
		return set
	case "if_statement":
		alternative := stmt.ChildByFieldName("alternative")
		if alternative == nil {
			return nil
		}
		if alternative.Type() == "else_clause" {
			alternative = firstStatement(alternative)
		}
		then := c.definite(stmt.ChildByFieldName("consequence"))
		otherwise := c.definite(alternative)
		set := map[string]bool{}
		for key := range then {
			if otherwise[key] {
				set[key] = true
			}
		}
		return set
	default:
		return nil
	}
}

func firstStatement(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child.Type() != "comment" {
			return child
		}
	}
	return nil
}

func (c *classifier) collectExpression(node *sitter.Node, set map[string]bool) {
	node = jsast.Unwrap(node)
	if node == nil {
		return
	}
	switch node.Type() {
	case "assignment_expression", "augmented_assignment_expression", "call_expression":
		if w := c.writeAt[int(node.StartByte())]; w != nil && jsast.SameNode(w.node, node) {
			switch {
			case w.kind == writeModuleExports:
				set[reassignKey] = true
			case w.kind == writeNamed && c.live(w):
				set[w.name] = true
			}
		}
		if node.Type() != "call_expression" {
			c.collectExpression(node.ChildByFieldName("right"), set)
		}
	case "sequence_expression":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			c.collectExpression(node.NamedChild(i), set)
		}
	}
}

// objectKeys lists the static keys of an object literal. unknown is set when
// the value may carry keys that cannot be named.
func objectKeys(value *sitter.Node, content []byte) ([]string, bool) {
	value = jsast.Unwrap(value)
	if value == nil {
		return nil, true
	}
	switch value.Type() {
	case "object":
	case "function", "function_expression", "generator_function", "arrow_function", "class",
		"string", "number", "template_string", "true", "false", "null", "undefined":
		return nil, false
	default:
		return nil, true
	}

	keys := make([]string, 0, value.NamedChildCount())
	unknown := false
	for i := 0; i < int(value.NamedChildCount()); i++ {
		child := value.NamedChild(i)
		switch child.Type() {
		case "pair":
			key := child.ChildByFieldName("key")
			if key == nil {
				unknown = true
				continue
			}
			switch key.Type() {
			case "property_identifier":
				keys = append(keys, jsast.NodeText(key, content))
			case "string":
				name, _ := jsast.StringValue(key, content)
				keys = append(keys, name)
			default:
				unknown = true
			}
		case "shorthand_property_identifier":
			keys = append(keys, jsast.NodeText(child, content))
		case "method_definition":
			name := child.ChildByFieldName("name")
			if name != nil && name.Type() == "property_identifier" {
				keys = append(keys, jsast.NodeText(name, content))
			} else {
				unknown = true
			}
		case "comment":
		default:
			unknown = true
		}
	}
	return keys, unknown
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
