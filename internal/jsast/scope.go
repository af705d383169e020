package jsast

import sitter "github.com/smacker/go-tree-sitter"

// Declarations returns the names from interest that scope declares for its own
// body: parameters, var/let/const bindings, function and class declarations,
// catch parameters and import bindings. Nested functions are not entered, but
// the names of nested function declarations are counted.
//
// Block scoping is approximated at function level, which errs towards treating
// a CommonJS binding as shadowed.
func Declarations(scope *sitter.Node, content []byte, interest map[string]bool) map[string]bool {
	declared := make(map[string]bool)
	add := func(name string) {
		if interest[name] {
			declared[name] = true
		}
	}

	if scope.Type() != "program" {
		if name := scope.ChildByFieldName("name"); name != nil && scope.Type() != "function_declaration" && scope.Type() != "generator_function_declaration" && scope.Type() != "method_definition" {
			add(NodeText(name, content))
		}
		if params := scope.ChildByFieldName("parameters"); params != nil {
			collectPatternNames(params, content, add)
		}
		if param := scope.ChildByFieldName("parameter"); param != nil {
			collectPatternNames(param, content, add)
		}
	}

	body := scope
	if scope.Type() != "program" {
		body = scope.ChildByFieldName("body")
	}
	if body == nil {
		return declared
	}
	collectBodyDeclarations(body, content, add)
	return declared
}

func collectBodyDeclarations(node *sitter.Node, content []byte, add func(string)) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "function_declaration", "generator_function_declaration", "class_declaration":
			if name := child.ChildByFieldName("name"); name != nil {
				add(NodeText(name, content))
			}
			if child.Type() == "class_declaration" {
				collectBodyDeclarations(child, content, add)
			}
			continue
		case "variable_declarator":
			if name := child.ChildByFieldName("name"); name != nil {
				collectPatternNames(name, content, add)
			}
		case "catch_clause":
			if param := child.ChildByFieldName("parameter"); param != nil {
				collectPatternNames(param, content, add)
			}
		case "import_clause", "namespace_import", "import_specifier":
			collectImportNames(child, content, add)
			continue
		}
		if IsFunction(child) {
			continue
		}
		collectBodyDeclarations(child, content, add)
	}
}

func collectImportNames(node *sitter.Node, content []byte, add func(string)) {
	switch node.Type() {
	case "import_specifier":
		if alias := node.ChildByFieldName("alias"); alias != nil {
			add(NodeText(alias, content))
			return
		}
		if name := node.ChildByFieldName("name"); name != nil {
			add(NodeText(name, content))
		}
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "identifier":
			add(NodeText(child, content))
		default:
			collectImportNames(child, content, add)
		}
	}
}

// collectPatternNames reports every identifier bound by a parameter list or a
// destructuring pattern.
func collectPatternNames(node *sitter.Node, content []byte, add func(string)) {
	switch node.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		add(NodeText(node, content))
		return
	case "assignment_pattern", "object_assignment_pattern":
		if left := node.ChildByFieldName("left"); left != nil {
			collectPatternNames(left, content, add)
		}
		return
	case "pair_pattern":
		if value := node.ChildByFieldName("value"); value != nil {
			collectPatternNames(value, content, add)
		}
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		collectPatternNames(node.NamedChild(i), content, add)
	}
}
