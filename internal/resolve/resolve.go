// Package resolve implements the Node.js module resolution the build host
// uses for literal requires and package-rooted dynamic patterns.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rollup/plugins-sub001/internal/safeio"
)

// ErrNotFound is returned when no file satisfies a specifier.
var ErrNotFound = errors.New("module not found")

// Resolution is where a specifier points. External resolutions are left to
// the runtime and carry no path.
type Resolution struct {
	Path     string
	External bool
	Builtin  bool
}

// Extensions are tried, in order, for specifiers without a matching file.
var Extensions = []string{".js", ".cjs", ".mjs", ".json"}

// conditions are the package.json exports conditions honored for require(),
// in priority order.
var conditions = []string{"require", "node", "default", "import"}

type packageJSON struct {
	Main    string `json:"main"`
	Module  string `json:"module"`
	Exports any    `json:"exports"`
}

// Resolver resolves specifiers against the file system. It is safe for
// concurrent use.
type Resolver struct {
	external []string

	mu        sync.Mutex
	manifests map[string]*packageJSON
}

// New returns a resolver. Specifiers equal to an entry of external, or below
// it, are never looked up.
func New(external []string) *Resolver {
	cleaned := make([]string, 0, len(external))
	for _, name := range external {
		if name = strings.TrimSpace(name); name != "" {
			cleaned = append(cleaned, name)
		}
	}
	return &Resolver{external: cleaned, manifests: map[string]*packageJSON{}}
}

// Resolve resolves specifier as required from importer.
func (r *Resolver) Resolve(ctx context.Context, specifier, importer string) (Resolution, error) {
	if err := ctx.Err(); err != nil {
		return Resolution{}, err
	}
	if IsBuiltin(specifier) {
		return Resolution{External: true, Builtin: true}, nil
	}
	if r.isExternal(specifier) {
		return Resolution{External: true}, nil
	}

	var (
		path string
		ok   bool
	)
	switch {
	case filepath.IsAbs(specifier):
		path, ok = r.resolvePath(filepath.Clean(specifier))
	case isRelative(specifier):
		path, ok = r.resolvePath(filepath.Join(filepath.Dir(importer), filepath.FromSlash(specifier)))
	default:
		path, ok = r.resolvePackage(specifier, filepath.Dir(importer))
	}
	if !ok {
		return Resolution{}, fmt.Errorf("resolve %q from %s: %w", specifier, importer, ErrNotFound)
	}
	return Resolution{Path: path}, nil
}

// ResolveFile is Resolve restricted to files. External specifiers resolve to
// an empty path.
func (r *Resolver) ResolveFile(ctx context.Context, specifier, importer string) (string, error) {
	resolution, err := r.Resolve(ctx, specifier, importer)
	if err != nil {
		return "", err
	}
	return resolution.Path, nil
}

func (r *Resolver) isExternal(specifier string) bool {
	for _, name := range r.external {
		if specifier == name || strings.HasPrefix(specifier, name+"/") {
			return true
		}
	}
	return false
}

func isRelative(specifier string) bool {
	return specifier == "." || specifier == ".." || strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// resolvePath tries path as a file, then with each extension, then as a
// directory.
func (r *Resolver) resolvePath(path string) (string, bool) {
	if isFile(path) {
		return path, true
	}
	for _, ext := range Extensions {
		if isFile(path + ext) {
			return path + ext, true
		}
	}
	return r.resolveDirectory(path)
}

func (r *Resolver) resolveDirectory(dir string) (string, bool) {
	if !isDir(dir) {
		return "", false
	}
	if pkg := r.manifest(dir); pkg != nil && strings.TrimSpace(pkg.Main) != "" {
		if path, ok := r.resolvePath(filepath.Join(dir, filepath.FromSlash(pkg.Main))); ok {
			return path, true
		}
	}
	for _, ext := range Extensions {
		if candidate := filepath.Join(dir, "index"+ext); isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// resolvePackage walks up from dir looking for node_modules/<name>.
func (r *Resolver) resolvePackage(specifier, dir string) (string, bool) {
	name, subpath, ok := splitPackage(specifier)
	if !ok {
		return "", false
	}
	for {
		root := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
		if isDir(root) {
			return r.resolveInPackage(root, subpath)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func (r *Resolver) resolveInPackage(root, subpath string) (string, bool) {
	pkg := r.manifest(root)
	if pkg != nil && pkg.Exports != nil && subpath != "package.json" {
		key := "."
		if subpath != "" {
			key = "./" + subpath
		}
		target, ok := exportTarget(pkg.Exports, key)
		if !ok {
			return "", false
		}
		path := filepath.Join(root, filepath.FromSlash(target))
		return path, isFile(path)
	}
	if subpath == "" {
		return r.resolveDirectory(root)
	}
	return r.resolvePath(filepath.Join(root, filepath.FromSlash(subpath)))
}

// splitPackage splits a bare specifier into its package name and subpath.
func splitPackage(specifier string) (string, string, bool) {
	parts := strings.SplitN(specifier, "/", 3)
	if strings.HasPrefix(specifier, "@") {
		if len(parts) < 2 || parts[1] == "" {
			return "", "", false
		}
		name := parts[0] + "/" + parts[1]
		if len(parts) == 3 {
			return name, parts[2], true
		}
		return name, "", true
	}
	name, subpath, _ := strings.Cut(specifier, "/")
	return name, subpath, name != ""
}

// exportTarget looks up key (".", "./sub") in a package.json exports value.
func exportTarget(exports any, key string) (string, bool) {
	switch typed := exports.(type) {
	case string:
		return typed, key == "."
	case []any:
		for _, item := range typed {
			if target, ok := exportTarget(item, key); ok {
				return target, true
			}
		}
		return "", false
	case map[string]any:
		if hasSubpathKeys(typed) {
			value, ok := typed[key]
			if !ok {
				return "", false
			}
			return conditionTarget(value)
		}
		if key != "." {
			return "", false
		}
		return conditionTarget(typed)
	default:
		return "", false
	}
}

func hasSubpathKeys(exports map[string]any) bool {
	for key := range exports {
		if strings.HasPrefix(key, ".") {
			return true
		}
	}
	return false
}

func conditionTarget(value any) (string, bool) {
	switch typed := value.(type) {
	case string:
		return typed, true
	case []any:
		for _, item := range typed {
			if target, ok := conditionTarget(item); ok {
				return target, true
			}
		}
	case map[string]any:
		for _, condition := range conditions {
			if item, ok := typed[condition]; ok {
				if target, ok := conditionTarget(item); ok {
					return target, true
				}
			}
		}
	}
	return "", false
}

func (r *Resolver) manifest(dir string) *packageJSON {
	r.mu.Lock()
	pkg, ok := r.manifests[dir]
	r.mu.Unlock()
	if ok {
		return pkg
	}

	data, err := safeio.ReadFileUnder(dir, filepath.Join(dir, "package.json"))
	if err == nil {
		pkg = &packageJSON{}
		if json.Unmarshal(data, pkg) != nil {
			pkg = nil
		}
	}
	r.mu.Lock()
	r.manifests[dir] = pkg
	r.mu.Unlock()
	return pkg
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
