package probe

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), mode); err != nil {
		t.Fatal(err)
	}
}

func TestIsExecutableFile(t *testing.T) {
	dir := t.TempDir()

	exe := filepath.Join(dir, "tool")
	writeFile(t, exe, 0o755)
	plain := filepath.Join(dir, "notes.txt")
	writeFile(t, plain, 0o644)

	if !IsExecutableFile(exe) {
		t.Errorf("IsExecutableFile(%q) = false, want true", exe)
	}
	if IsExecutableFile(plain) {
		t.Errorf("IsExecutableFile(%q) = true, want false", plain)
	}
	if IsExecutableFile(filepath.Join(dir, "missing")) {
		t.Errorf("IsExecutableFile(missing) = true, want false")
	}
	if IsExecutableFile(dir) {
		t.Errorf("IsExecutableFile(directory) = true, want false")
	}
}

func TestExecutable_AbsolutePath(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "tool")
	writeFile(t, exe, 0o755)

	if !Executable(exe, nil) {
		t.Errorf("Executable(absolute) = false, want true")
	}
	if Executable(filepath.Join(dir, "missing"), nil) {
		t.Errorf("Executable(missing absolute) = true, want false")
	}
}

func TestExecutable_PathSearch(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeFile(t, filepath.Join(second, "tool"), 0o755)
	writeFile(t, filepath.Join(second, "script"), 0o644)

	dirs := []string{first, "", second}
	if !Executable("tool", dirs) {
		t.Errorf("Executable(tool) = false, want true")
	}
	if Executable("script", dirs) {
		t.Errorf("Executable(non-executable) = true, want false")
	}
	if Executable("tool", nil) {
		t.Errorf("Executable with empty search path = true, want false")
	}
}
