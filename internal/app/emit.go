package app

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/rollup/plugins-sub001/internal/pipeline"
	"github.com/rollup/plugins-sub001/internal/report"
	"github.com/rollup/plugins-sub001/internal/safeio"
	"github.com/rollup/plugins-sub001/internal/sourcemap"
)

// writeOutputs mirrors the module graph under outDir. Every module is
// written at its root-relative path, followed by its proxy file and source
// map when it has them.
func writeOutputs(outDir string, build *pipeline.Build) ([]report.OutputFile, error) {
	var files []report.OutputFile
	write := func(rel string, data []byte) error {
		target := filepath.Join(outDir, filepath.FromSlash(rel))
		if err := safeio.WriteFileUnder(outDir, target, data); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
		files = append(files, report.OutputFile{Path: filepath.ToSlash(rel), Bytes: len(data)})
		return nil
	}

	// emit writes code at rel, preceded by its source map when there is one.
	emit := func(rel, code string, sourceMap *sourcemap.Map) error {
		if sourceMap != nil {
			payload, err := sourceMap.JSON()
			if err != nil {
				return fmt.Errorf("encode source map of %s: %w", rel, err)
			}
			if err := write(rel+".map", payload); err != nil {
				return err
			}
			code += "\n//# sourceMappingURL=" + path.Base(rel) + ".map\n"
		}
		return write(rel, []byte(code))
	}

	for _, id := range build.Order {
		m := build.Modules[id]
		if err := emit(m.Rel, m.Code, m.Map); err != nil {
			return nil, err
		}
		if m.Proxy != nil {
			if err := emit(m.Rel+pipeline.FileProxySuffix, m.Proxy.Code, m.Proxy.Map); err != nil {
				return nil, err
			}
		}
	}
	return files, nil
}
