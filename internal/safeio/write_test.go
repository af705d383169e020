package safeio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomicCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects", "ab.json")
	if err := WriteFileAtomic(path, []byte(`{"code":""}`)); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if err := WriteFileAtomic(path, []byte(`{"code":"x"}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != `{"code":"x"}` {
		t.Fatalf("unexpected content %q", data)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temporary files to be cleaned up, got %d entries", len(entries))
	}
}

func TestWriteFileUnderRejectsEscapes(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "dist")
	if err := WriteFileUnder(root, filepath.Join(root, "src", "a.js"), []byte("export {};\n")); err != nil {
		t.Fatalf("WriteFileUnder: %v", err)
	}
	err := WriteFileUnder(root, filepath.Join(parent, "a.js"), []byte("x"))
	if err == nil || !strings.Contains(err.Error(), "path escapes root") {
		t.Fatalf("expected escape error, got %v", err)
	}
	if err := WriteFileUnder(root, root, []byte("x")); err == nil {
		t.Fatal("expected error when writing over the root")
	}
}
