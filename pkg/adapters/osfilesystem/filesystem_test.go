package osfilesystem

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSystem_WriteAndReadFile(t *testing.T) {
	fs := New()
	path := filepath.Join(t.TempDir(), "frame.png")

	if err := fs.WriteFile(path, []byte("first")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.WriteFile(path, []byte("second")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("expected %q, got %q", "second", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}
}

func TestFileSystem_WriteFileLeavesNoTemporaries(t *testing.T) {
	fs := New()
	dir := filepath.Join(t.TempDir(), "frames", "preview")

	for i := 0; i < 3; i++ {
		if err := fs.WriteFile(filepath.Join(dir, "frame.png"), []byte{byte(i)}); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "frame.png" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contents = %v, want [frame.png]", names)
	}
}

func TestFileSystem_MkdirAllAndExists(t *testing.T) {
	fs := New()
	dir := filepath.Join(t.TempDir(), "a", "b")

	if exists, err := fs.Exists(dir); err != nil || exists {
		t.Fatalf("Exists before MkdirAll = %v, %v", exists, err)
	}
	if err := fs.MkdirAll(dir); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if exists, err := fs.Exists(dir); err != nil || !exists {
		t.Errorf("Exists after MkdirAll = %v, %v", exists, err)
	}
}
