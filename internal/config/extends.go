package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

type extendsResolver struct {
	root  string
	stack []string
}

type resolveMergeResult struct {
	config     rawConfig
	appliedLow []string
}

func newExtendsResolver(root string) *extendsResolver {
	return &extendsResolver{root: root, stack: make([]string, 0, 8)}
}

// resolveFile loads path and everything it extends. Extended files apply in
// order; the file itself overrides all of them.
func (r *extendsResolver) resolveFile(path string, explicitProvided bool) (resolveMergeResult, error) {
	canonical, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return resolveMergeResult{}, fmt.Errorf("resolve config path: %w", err)
	}
	if err := r.push(canonical); err != nil {
		return resolveMergeResult{}, err
	}
	defer r.pop()

	data, err := readConfigFile(r.root, canonical, explicitProvided)
	if err != nil {
		return resolveMergeResult{}, fmt.Errorf(readConfigFileErrFmt, canonical, err)
	}
	cfg, err := parseConfig(canonical, data)
	if err != nil {
		return resolveMergeResult{}, fmt.Errorf(parseConfigErrFmt, canonical, err)
	}
	refs, err := extendsRefs(cfg.Extends)
	if err != nil {
		return resolveMergeResult{}, fmt.Errorf(parseConfigErrFmt, canonical, err)
	}

	merged := rawConfig{}
	var sources []string
	for idx, ref := range refs {
		target, err := resolveExtendsRef(canonical, ref)
		if err != nil {
			return resolveMergeResult{}, fmt.Errorf("parse config file %s: invalid extends[%d]: %w", canonical, idx, err)
		}
		parent, err := r.resolveFile(target, true)
		if err != nil {
			return resolveMergeResult{}, err
		}
		merged = merged.merge(parent.config)
		sources = append(sources, parent.appliedLow...)
	}
	merged = merged.merge(cfg)
	sources = append(sources, canonical)
	return resolveMergeResult{config: merged, appliedLow: dedupeStable(sources)}, nil
}

func extendsRefs(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		return stringList("extends", v)
	default:
		return nil, fmt.Errorf("extends must be a path or a list of paths")
	}
}

func resolveExtendsRef(currentPath, ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", fmt.Errorf("extends reference must not be empty")
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed), nil
	}
	return filepath.Clean(filepath.Join(filepath.Dir(currentPath), trimmed)), nil
}

func (r *extendsResolver) push(path string) error {
	for _, current := range r.stack {
		if current == path {
			chain := make([]string, 0, len(r.stack)+1)
			for _, entry := range append(append([]string{}, r.stack...), path) {
				chain = append(chain, r.display(entry))
			}
			return fmt.Errorf("config extends cycle detected: %s", strings.Join(chain, " -> "))
		}
	}
	r.stack = append(r.stack, path)
	return nil
}

func (r *extendsResolver) pop() {
	if len(r.stack) > 0 {
		r.stack = r.stack[:len(r.stack)-1]
	}
}

// display shortens paths below the project root.
func (r *extendsResolver) display(path string) string {
	if isPathUnderRoot(r.root, path) {
		if rel, err := filepath.Rel(r.root, path); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return path
}

func dedupeStable(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
