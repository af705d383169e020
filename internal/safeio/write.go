package safeio

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to a temporary sibling of path and renames it
// into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if os.Rename(tmpPath, path) == nil {
		return nil
	}
	_ = os.Remove(tmpPath)
	// Windows cannot rename over an existing file.
	return os.WriteFile(path, data, 0o600)
}

// WriteFileUnder atomically writes targetPath only if it resolves under
// rootDir.
func WriteFileUnder(rootDir, targetPath string, data []byte) error {
	rootAbs, rel, err := within(rootDir, targetPath)
	if err != nil {
		return err
	}
	if rel == "." {
		return fmt.Errorf("target is the root directory: %s", targetPath)
	}
	return WriteFileAtomic(filepath.Join(rootAbs, rel), data)
}
