package commonjs

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rollup/plugins-sub001/internal/jsast"
)

// pureBody reports whether every top-level statement only declares bindings
// or assigns side-effect-free values to the export object.
func pureBody(a *Analysis) bool {
	root := a.File.Root()
	content := a.File.Content
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if !pureStatement(root.NamedChild(i), a, content) {
			return false
		}
	}
	return true
}

func pureStatement(stmt *sitter.Node, a *Analysis, content []byte) bool {
	switch stmt.Type() {
	case "comment", "empty_statement", "hash_bang_line",
		"function_declaration", "generator_function_declaration", "class_declaration":
		return true
	case "lexical_declaration", "variable_declaration":
		for i := 0; i < int(stmt.NamedChildCount()); i++ {
			declarator := stmt.NamedChild(i)
			if declarator.Type() != "variable_declarator" {
				continue
			}
			if value := declarator.ChildByFieldName("value"); value != nil && !pureExpression(value, content) {
				return false
			}
		}
		return true
	case "expression_statement":
		expr := jsast.Unwrap(firstStatement(stmt))
		if expr == nil {
			return true
		}
		if expr.Type() == "string" {
			return true
		}
		if expr.Type() != "assignment_expression" {
			return false
		}
		if !writesExportObject(expr, a) {
			return false
		}
		return pureExpression(expr.ChildByFieldName("right"), content)
	default:
		return false
	}
}

func writesExportObject(assignment *sitter.Node, a *Analysis) bool {
	for _, w := range a.writes {
		if jsast.SameNode(w.node, assignment) {
			return w.kind == writeNamed || w.kind == writeModuleExports
		}
	}
	return false
}

func pureExpression(node *sitter.Node, content []byte) bool {
	node = jsast.Unwrap(node)
	if node == nil {
		return true
	}
	switch node.Type() {
	case "string", "number", "true", "false", "null", "undefined", "identifier", "regex",
		"function", "function_expression", "generator_function", "arrow_function", "class":
		return true
	case "template_string":
		return jsast.FirstNamedChildOfType(node, "template_substitution") == nil
	case "array":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if !pureExpression(node.NamedChild(i), content) {
				return false
			}
		}
		return true
	case "object":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "shorthand_property_identifier", "method_definition", "comment":
			case "pair":
				if key := child.ChildByFieldName("key"); key != nil && key.Type() == "computed_property_name" {
					return false
				}
				if !pureExpression(child.ChildByFieldName("value"), content) {
					return false
				}
			default:
				return false
			}
		}
		return true
	default:
		return false
	}
}
