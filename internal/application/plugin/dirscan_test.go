package plugin

import (
	"os"
	"path/filepath"
	"testing"
)

func TestListPluginFilesReturnsOnlySOFilesSortedByPath(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.so", "a.so", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	files, err := listPluginFiles(dir)
	if err != nil {
		t.Fatalf("listPluginFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 .so files, got %d: %+v", len(files), files)
	}
	if filepath.Base(files[0].path) != "a.so" || filepath.Base(files[1].path) != "b.so" {
		t.Fatalf("expected sorted a.so, b.so order, got %s, %s", files[0].path, files[1].path)
	}
}

func TestReadDirReturnsErrorForMissingDirectory(t *testing.T) {
	if _, err := readDir(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
