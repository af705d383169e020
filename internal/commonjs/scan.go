package commonjs

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rollup/plugins-sub001/internal/dynrequire"
	"github.com/rollup/plugins-sub001/internal/jsast"
)

var moduleScope = map[string]bool{
	"require":    true,
	"module":     true,
	"exports":    true,
	"__filename": true,
	"__dirname":  true,
}

type writeKind uint8

const (
	writeNamed writeKind = iota
	writeModuleExports
	writeExportsObject
	writeComputed
	writeUnknownKeys
)

// exportWrite is one assignment or definition that touches the export object.
type exportWrite struct {
	kind      writeKind
	name      string
	viaModule bool
	nested    bool
	define    bool
	augmented bool
	pos       int
	node      *sitter.Node
	value     *sitter.Node
}

// frame is the context threaded down the walk. It is copied per child, never
// shared.
type frame struct {
	shadowed  map[string]bool
	fnDepth   int
	thisDepth int
	loopDepth int
	lazy      bool
	// eagerFns counts the enclosing functions that are invoked as soon as
	// they are defined, outside any other function or loop.
	eagerFns int
}

// nestedWrite reports whether an export write here may run after the module
// body has finished.
func (f frame) nestedWrite() bool {
	return f.fnDepth > f.eagerFns || f.loopDepth > 0
}

type scanner struct {
	analysis *Analysis
	content  []byte
}

func scan(analysis *Analysis) {
	s := &scanner{analysis: analysis, content: analysis.File.Content}
	root := analysis.File.Root()
	top := frame{shadowed: jsast.Declarations(root, s.content, moduleScope)}
	analysis.topShadowed = top.shadowed
	s.walk(root, top)
}

func (s *scanner) walk(node *sitter.Node, f frame) {
	switch {
	case jsast.IsFunction(node):
		eager := !f.nestedWrite() && immediatelyInvoked(node, s.content)
		f = s.enterFunction(node, f)
		if eager {
			f.eagerFns++
		}
	case jsast.IsLoop(node):
		f.loopDepth++
		f.lazy = true
	case node.Type() == "class_body":
		f.thisDepth++
	}
	s.visit(node, f)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		childFrame := f
		if deferredChild(node, child, s.content) {
			childFrame.lazy = true
		}
		s.walk(child, childFrame)
	}
}

func (s *scanner) enterFunction(node *sitter.Node, f frame) frame {
	f.fnDepth++
	f.lazy = true
	if node.Type() != "arrow_function" {
		f.thisDepth++
	}
	declared := jsast.Declarations(node, s.content, moduleScope)
	if len(declared) == 0 {
		return f
	}
	shadowed := make(map[string]bool, len(f.shadowed)+len(declared))
	for name := range f.shadowed {
		shadowed[name] = true
	}
	for name := range declared {
		shadowed[name] = true
	}
	f.shadowed = shadowed
	return f
}

// immediatelyInvoked reports whether fn is a synchronous function expression
// called where it is defined, as in `(function () {})()` or
// `(function () {}).call(this)`.
func immediatelyInvoked(fn *sitter.Node, content []byte) bool {
	switch fn.Type() {
	case "function_expression", "function", "arrow_function":
	default:
		return false
	}
	if first := fn.Child(0); first != nil && first.Type() == "async" {
		return false
	}
	callee := fn
	parent := callee.Parent()
	for parent != nil && parent.Type() == "parenthesized_expression" {
		callee, parent = parent, parent.Parent()
	}
	if parent != nil && parent.Type() == "member_expression" && jsast.SameNode(parent.ChildByFieldName("object"), callee) {
		switch jsast.NodeText(parent.ChildByFieldName("property"), content) {
		case "call", "apply":
		default:
			return false
		}
		callee, parent = parent, parent.Parent()
	}
	return parent != nil && parent.Type() == "call_expression" && jsast.SameNode(parent.ChildByFieldName("function"), callee)
}

// deferredChild reports whether child only runs on some executions of node.
func deferredChild(node, child *sitter.Node, content []byte) bool {
	switch node.Type() {
	case "if_statement", "ternary_expression":
		return !jsast.SameNode(child, node.ChildByFieldName("condition"))
	case "switch_statement", "try_statement":
		return true
	case "binary_expression":
		switch jsast.NodeText(node.ChildByFieldName("operator"), content) {
		case "&&", "||", "??":
			return jsast.SameNode(child, node.ChildByFieldName("right"))
		}
	}
	return false
}

func (s *scanner) visit(node *sitter.Node, f frame) {
	switch node.Type() {
	case "hash_bang_line":
		span := spanOf(node)
		s.analysis.Hashbang = &span
	case "import_statement", "export_statement":
		s.analysis.HasESMSyntax = true
		if source := node.ChildByFieldName("source"); source != nil {
			if value, ok := jsast.StringValue(source, s.content); ok {
				s.analysis.Imports = append(s.analysis.Imports, value)
			}
		}
	case "identifier":
		name := jsast.NodeText(node, s.content)
		s.analysis.Identifiers[name] = true
		s.visitIdentifier(node, name, f, false)
	case "shorthand_property_identifier":
		name := jsast.NodeText(node, s.content)
		s.analysis.Identifiers[name] = true
		s.visitIdentifier(node, name, f, true)
	case "shorthand_property_identifier_pattern":
		s.analysis.Identifiers[jsast.NodeText(node, s.content)] = true
	case "this":
		if f.thisDepth == 0 {
			s.analysis.TopLevelThis = true
		}
	case "return_statement":
		if f.fnDepth == 0 {
			s.analysis.TopLevelReturn = true
		}
	case "call_expression":
		s.visitCall(node, f)
	case "assignment_expression", "augmented_assignment_expression":
		s.visitAssignment(node, f)
	}
}

func (s *scanner) visitIdentifier(node *sitter.Node, name string, f frame, shorthand bool) {
	if !moduleScope[name] || f.shadowed[name] {
		return
	}
	switch name {
	case "require":
		if !shorthand && isCallee(node) {
			return
		}
		s.analysis.BareRequires = append(s.analysis.BareRequires, Ref{Name: name, Span: spanOf(node), Shorthand: shorthand})
	case "module", "exports":
		s.analysis.ModuleRefs = append(s.analysis.ModuleRefs, Ref{Name: name, Span: spanOf(node), Shorthand: shorthand})
	default:
		s.analysis.GlobalRefs = append(s.analysis.GlobalRefs, Ref{Name: name, Span: spanOf(node), Shorthand: shorthand})
	}
}

func isCallee(node *sitter.Node) bool {
	parent := node.Parent()
	return parent != nil && parent.Type() == "call_expression" && jsast.SameNode(parent.ChildByFieldName("function"), node)
}

func firstArgument(args *sitter.Node) *sitter.Node {
	if args == nil || args.Type() != "arguments" {
		return nil
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		if child := args.NamedChild(i); child.Type() != "comment" {
			return child
		}
	}
	return nil
}

func argumentAt(args *sitter.Node, index int) *sitter.Node {
	if args == nil || args.Type() != "arguments" {
		return nil
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		if index == 0 {
			return child
		}
		index--
	}
	return nil
}

func (s *scanner) visitCall(node *sitter.Node, f frame) {
	callee := node.ChildByFieldName("function")
	if callee == nil {
		return
	}
	args := node.ChildByFieldName("arguments")
	switch callee.Type() {
	case "identifier":
		if jsast.NodeText(callee, s.content) != "require" || f.shadowed["require"] {
			return
		}
		argument := firstArgument(args)
		if argument == nil {
			s.analysis.BareRequires = append(s.analysis.BareRequires, Ref{Name: "require", Span: spanOf(callee)})
			return
		}
		if request, ok := dynrequire.LiteralValue(argument, s.content); ok {
			s.analysis.Requires = append(s.analysis.Requires, Require{
				Request:  request,
				Call:     spanOf(node),
				Lazy:     f.lazy,
				Location: s.analysis.File.Location(node),
			})
			return
		}
		s.analysis.DynamicCalls = append(s.analysis.DynamicCalls, DynamicCall{
			Kind:     dynrequire.KindRequire,
			Callee:   spanOf(callee),
			Argument: argument,
			Location: s.analysis.File.Location(argument),
		})
	case "import":
		argument := firstArgument(args)
		if argument == nil {
			return
		}
		if request, ok := dynrequire.LiteralValue(argument, s.content); ok {
			s.analysis.Imports = append(s.analysis.Imports, request)
			return
		}
		s.analysis.DynamicCalls = append(s.analysis.DynamicCalls, DynamicCall{
			Kind:     dynrequire.KindImport,
			Callee:   spanOf(callee),
			Argument: argument,
			Location: s.analysis.File.Location(argument),
		})
	case "member_expression":
		s.visitObjectCall(node, callee, args, f)
	}
}

// visitObjectCall records Object.defineProperty and Object.assign calls that
// target the export object.
func (s *scanner) visitObjectCall(node, callee, args *sitter.Node, f frame) {
	object := jsast.Unwrap(callee.ChildByFieldName("object"))
	if object == nil || object.Type() != "identifier" || jsast.NodeText(object, s.content) != "Object" {
		return
	}
	target := argumentAt(args, 0)
	isTarget, viaModule := exportObject(target, s.content, f.shadowed)
	if !isTarget {
		return
	}
	write := exportWrite{
		viaModule: viaModule,
		nested:    f.nestedWrite(),
		pos:       int(node.StartByte()),
		node:      node,
	}
	switch jsast.NodeText(callee.ChildByFieldName("property"), s.content) {
	case "defineProperty":
		key, ok := dynrequire.LiteralValue(argumentAt(args, 1), s.content)
		if !ok {
			write.kind = writeComputed
			break
		}
		if key == "__esModule" {
			s.analysis.ESModuleFlag = true
			return
		}
		write.kind = writeNamed
		write.name = key
		write.define = true
	case "assign":
		write.kind = writeUnknownKeys
	default:
		return
	}
	s.analysis.writes = append(s.analysis.writes, write)
}

func (s *scanner) visitAssignment(node *sitter.Node, f frame) {
	left := jsast.Unwrap(node.ChildByFieldName("left"))
	if left == nil {
		return
	}
	write := exportWrite{
		nested:    f.nestedWrite(),
		augmented: node.Type() == "augmented_assignment_expression",
		pos:       int(node.StartByte()),
		node:      node,
		value:     node.ChildByFieldName("right"),
	}
	switch left.Type() {
	case "identifier":
		if !isFree(left, "exports", s.content, f.shadowed) {
			return
		}
		write.kind = writeExportsObject
	case "member_expression", "subscript_expression":
		kind, name, viaModule, ok := memberTarget(left, s.content, f.shadowed)
		if !ok {
			return
		}
		write.kind = kind
		write.name = name
		write.viaModule = viaModule
	default:
		return
	}
	if write.kind == writeNamed && write.name == "__esModule" {
		s.analysis.ESModuleFlag = true
		return
	}
	s.analysis.writes = append(s.analysis.writes, write)
}

func isFree(node *sitter.Node, name string, content []byte, shadowed map[string]bool) bool {
	return node != nil && node.Type() == "identifier" && !shadowed[name] && jsast.NodeText(node, content) == name
}

// memberKey returns the static key of a member or subscript expression.
func memberKey(node *sitter.Node, content []byte) (string, bool) {
	if node.Type() == "member_expression" {
		property := node.ChildByFieldName("property")
		if property == nil || property.Type() == "private_property_identifier" {
			return "", false
		}
		return jsast.NodeText(property, content), true
	}
	return dynrequire.LiteralValue(node.ChildByFieldName("index"), content)
}

func isModuleExports(node *sitter.Node, content []byte, shadowed map[string]bool) bool {
	node = jsast.Unwrap(node)
	if node == nil || (node.Type() != "member_expression" && node.Type() != "subscript_expression") {
		return false
	}
	if !isFree(jsast.Unwrap(node.ChildByFieldName("object")), "module", content, shadowed) {
		return false
	}
	key, ok := memberKey(node, content)
	return ok && key == "exports"
}

// exportObject reports whether node denotes the export object, either as the
// free exports binding or as module.exports.
func exportObject(node *sitter.Node, content []byte, shadowed map[string]bool) (bool, bool) {
	node = jsast.Unwrap(node)
	if isFree(node, "exports", content, shadowed) {
		return true, false
	}
	if isModuleExports(node, content, shadowed) {
		return true, true
	}
	return false, false
}

// memberTarget classifies the left-hand side of an assignment.
func memberTarget(left *sitter.Node, content []byte, shadowed map[string]bool) (writeKind, string, bool, bool) {
	if isModuleExports(left, content, shadowed) {
		return writeModuleExports, "", true, true
	}
	isTarget, viaModule := exportObject(left.ChildByFieldName("object"), content, shadowed)
	if !isTarget {
		return 0, "", false, false
	}
	key, ok := memberKey(left, content)
	if !ok {
		return writeComputed, "", viaModule, true
	}
	return writeNamed, key, viaModule, true
}
