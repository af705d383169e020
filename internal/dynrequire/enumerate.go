package dynrequire

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ResolveFunc resolves a specifier from importer to an absolute file path.
type ResolveFunc func(ctx context.Context, specifier, importer string) (string, error)

// Match is one file a variable pattern can reach at runtime.
type Match struct {
	// Key is the normalized request string the dispatch table switches on.
	Key string
	// Path is the absolute file path.
	Path string
}

// Enumerate lists the files pattern matches from importer, sorted by key and
// without the importer itself. For package-rooted patterns the package
// directory is located through resolve and returned as the bare import root.
func Enumerate(ctx context.Context, pattern *Pattern, importer string, resolve ResolveFunc) ([]Match, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	glob := pattern.Glob
	baseDir := filepath.Dir(importer)
	bareRoot := ""
	requestPrefix := ""
	if pattern.Package != "" {
		manifest, err := resolve(ctx, pattern.Package+"/package.json", importer)
		if err != nil || manifest == "" {
			return nil, "", globError(fmt.Sprintf("could not resolve module %q", pattern.Package))
		}
		bareRoot = filepath.Dir(manifest)
		baseDir = bareRoot
		requestPrefix = pattern.Package + "/"
		glob = "./" + strings.TrimPrefix(glob, pattern.Package+"/")
	}

	staticDir, rest := splitStatic(glob)
	root := filepath.Join(baseDir, filepath.FromSlash(unescape(staticDir)))
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, bareRoot, nil
	}

	found, err := doublestar.Glob(os.DirFS(root), rest, doublestar.WithFilesOnly())
	if err != nil {
		return nil, bareRoot, fmt.Errorf("enumerate %s: %w", pattern.Glob, err)
	}

	importerAbs := filepath.Clean(importer)
	seen := make(map[string]bool, len(found))
	matches := make([]Match, 0, len(found))
	for _, rel := range found {
		if hiddenSegment(rel) {
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if abs == importerAbs {
			continue
		}
		request := path.Join(unescape(staticDir), rel)
		if requestPrefix != "" {
			request = requestPrefix + Normalize(request)
		} else if !strings.HasPrefix(request, ".") {
			request = "./" + request
		}
		key := Key(request)
		if seen[key] {
			continue
		}
		seen[key] = true
		matches = append(matches, Match{Key: key, Path: abs})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Key < matches[j].Key
	})
	return matches, bareRoot, nil
}

// splitStatic separates the leading wildcard-free directory segments of a
// relative glob from the remaining pattern.
func splitStatic(glob string) (string, string) {
	segments := strings.Split(glob, "/")
	i := 0
	for i < len(segments)-1 && !strings.Contains(unescapedWildcards(segments[i]), "*") {
		i++
	}
	staticDir := strings.Join(segments[:i], "/")
	if staticDir == "" {
		staticDir = "."
	}
	return staticDir, strings.Join(segments[i:], "/")
}

func hiddenSegment(rel string) bool {
	for _, segment := range strings.Split(rel, "/") {
		if strings.HasPrefix(segment, ".") || segment == "node_modules" {
			return true
		}
	}
	return false
}
