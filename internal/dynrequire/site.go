// Package dynrequire turns require() and import() calls with computed
// arguments into build-time globs and runtime dispatch tables.
package dynrequire

import (
	"context"
	"errors"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rollup/plugins-sub001/internal/jsast"
)

type Kind uint8

const (
	KindRequire Kind = iota
	KindImport
)

func (k Kind) String() string {
	if k == KindImport {
		return "import"
	}
	return "require"
}

// Site is a require or import call whose argument is not a plain literal.
type Site struct {
	Kind           Kind
	Expression     string
	Location       jsast.Location
	Glob           string
	BareImportRoot string
	Matches        []Match
}

// Analyze derives the glob for one call argument and enumerates its matches.
// A nil site with a nil error means the call is not a variable import and is
// left untouched.
func Analyze(ctx context.Context, kind Kind, argument *sitter.Node, file *jsast.File, resolve ResolveFunc) (*Site, error) {
	pattern, err := DeriveGlob(argument, file)
	if err != nil || pattern == nil {
		return nil, err
	}
	matches, bareRoot, err := Enumerate(ctx, pattern, file.Path, resolve)
	if err != nil {
		var rule globError
		if errors.As(err, &rule) {
			return nil, &PatternError{Message: withExample(rule.Error()), Location: file.Location(argument)}
		}
		return nil, err
	}
	return &Site{
		Kind:           kind,
		Expression:     file.Text(argument),
		Location:       file.Location(argument),
		Glob:           pattern.Glob,
		BareImportRoot: bareRoot,
		Matches:        matches,
	}, nil
}
