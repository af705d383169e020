// Package jsast wraps the tree-sitter JavaScript grammar with the small set of
// helpers the interop transform needs: parsing with located syntax errors,
// node text and literal extraction, and declaration scanning.
package jsast

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// File is a parsed module. The tree is never edited after Parse returns. Node
// accessors share a cache inside the tree, so a File must not be walked by two
// goroutines at once.
type File struct {
	Path    string
	Content []byte
	Tree    *sitter.Tree
}

// Root returns the program node.
func (f *File) Root() *sitter.Node {
	return f.Tree.RootNode()
}

// Text returns the source text covered by node.
func (f *File) Text(node *sitter.Node) string {
	return NodeText(node, f.Content)
}

// Location returns the one-based position of node.
func (f *File) Location(node *sitter.Node) Location {
	return LocationOf(f.Path, node)
}

type Location struct {
	File   string
	Line   int
	Column int
}

func LocationOf(path string, node *sitter.Node) Location {
	if node == nil {
		return Location{File: path}
	}
	return Location{
		File:   path,
		Line:   int(node.StartPoint().Row) + 1,
		Column: int(node.StartPoint().Column) + 1,
	}
}

// SyntaxError reports the first ERROR or MISSING node of a tree. Missing
// holds the node type the parser had to insert, if any.
type SyntaxError struct {
	Location Location
	Snippet  string
	Missing  string
}

// Message describes the error without its location.
func (e *SyntaxError) Message() string {
	switch {
	case e.Missing != "":
		return fmt.Sprintf("missing %q", e.Missing)
	case e.Snippet == "":
		return "unexpected end of input"
	default:
		return fmt.Sprintf("unexpected token %q", e.Snippet)
	}
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Location.File, e.Location.Line, e.Location.Column, e.Message())
}

type Parser struct {
	js *sitter.Language
}

func NewParser() *Parser {
	return &Parser{js: javascript.GetLanguage()}
}

// Parse parses content as JavaScript. A tree containing syntax errors is
// rejected with a *SyntaxError carrying the first error location.
func (p *Parser) Parse(ctx context.Context, path string, content []byte) (*File, error) {
	if err := p.checkExtension(path); err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(p.js)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned nil tree for %s", path)
	}
	file := &File{Path: path, Content: content, Tree: tree}
	if tree.RootNode().HasError() {
		return nil, firstSyntaxError(file)
	}
	return file, nil
}

func (p *Parser) checkExtension(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case "", ".js", ".cjs", ".mjs", ".jsx":
		return nil
	default:
		return fmt.Errorf("unsupported extension: %s", ext)
	}
}

func firstSyntaxError(file *File) *SyntaxError {
	var found *sitter.Node
	var visit func(node *sitter.Node) bool
	visit = func(node *sitter.Node) bool {
		if node.Type() == "ERROR" || node.IsMissing() {
			found = node
			return true
		}
		if !node.HasError() {
			return false
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			if visit(node.Child(i)) {
				return true
			}
		}
		return false
	}
	root := file.Root()
	if !visit(root) || found == nil {
		return &SyntaxError{Location: file.Location(root)}
	}
	if found.IsMissing() {
		return &SyntaxError{Location: file.Location(found), Missing: found.Type()}
	}
	snippet := file.Text(found)
	if idx := strings.IndexByte(snippet, '\n'); idx >= 0 {
		snippet = snippet[:idx]
	}
	if len(snippet) > 40 {
		snippet = snippet[:40]
	}
	return &SyntaxError{Location: file.Location(found), Snippet: snippet}
}
