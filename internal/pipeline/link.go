package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/rollup/plugins-sub001/internal/commonjs"
)

// FileProxySuffix is appended to a module path to name its proxy file in
// LinkFile mode.
const FileProxySuffix = ".commonjs-require.js"

// ProxyPath returns the id of target's require proxy.
func (o Options) ProxyPath(target string) string {
	if o.Link == LinkFile {
		return target + FileProxySuffix
	}
	return target + commonjs.ProxySuffix
}

// ProxySpecifier returns the specifier importer uses for target's require
// proxy.
func (o Options) ProxySpecifier(importer, target string) string {
	rel, err := filepath.Rel(filepath.Dir(importer), target)
	if err != nil {
		rel = target
	}
	specifier := commonjs.RelativeSpecifier(filepath.ToSlash(rel))
	if o.Link == LinkFile {
		return specifier + FileProxySuffix
	}
	return specifier + commonjs.ProxySuffix
}

// ProxyTarget maps a proxy id back to its module. ok is false for ids that
// are not proxies.
func ProxyTarget(id string) (string, bool) {
	if target, ok := strings.CutSuffix(id, commonjs.ProxySuffix); ok {
		return target, true
	}
	if target, ok := strings.CutSuffix(id, FileProxySuffix); ok {
		return target, true
	}
	return "", false
}
