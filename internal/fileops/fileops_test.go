package fileops

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anvilcode/anvil/internal/patch"
)

func TestLocalBackendReadWriteDelete(t *testing.T) {
	dir := t.TempDir()
	backend := &LocalBackend{Root: dir}

	if _, err := backend.Write("a.txt", "hello"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	content, err := backend.Read("a.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if content != "hello" {
		t.Errorf("Read returned %q, want %q", content, "hello")
	}

	if _, err := backend.Delete("a.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if Exists(filepath.Join(dir, "a.txt")) {
		t.Errorf("a.txt should have been removed")
	}
}

func TestLocalBackendReadMissingFile(t *testing.T) {
	dir := t.TempDir()
	backend := &LocalBackend{Root: dir}

	_, err := backend.Read("missing.txt")
	if !errors.Is(err, patch.ErrFileNotFound) {
		t.Fatalf("Read on missing file: got %v, want ErrFileNotFound", err)
	}
}

func TestLocalBackendDeleteMissingFile(t *testing.T) {
	dir := t.TempDir()
	backend := &LocalBackend{Root: dir}

	_, err := backend.Delete("missing.txt")
	if !errors.Is(err, patch.ErrFileNotFound) {
		t.Fatalf("Delete on missing file: got %v, want ErrFileNotFound", err)
	}
}

func TestLocalBackendAbsolutePathIgnoresRoot(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "abs.txt")
	backend := &LocalBackend{Root: filepath.Join(dir, "unrelated")}

	if _, err := backend.Write(abs, "content"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "content" {
		t.Errorf("got %q, want %q", content, "content")
	}
}

func TestAppendFileCreatesAndAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")

	if _, err := AppendFile(path, "first\n"); err != nil {
		t.Fatalf("AppendFile: %v", err)
	}
	if _, err := AppendFile(path, "second\n"); err != nil {
		t.Fatalf("AppendFile: %v", err)
	}

	content, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if content != "first\nsecond\n" {
		t.Errorf("got %q", content)
	}
}

func TestDeleteFileRefusesDirectory(t *testing.T) {
	dir := t.TempDir()
	if _, err := DeleteFile(dir); err == nil {
		t.Errorf("expected error deleting a directory as a file")
	}
}

func TestRenameFile(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.txt")
	newPath := filepath.Join(dir, "new.txt")
	if err := WriteFile(oldPath, "data", 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := RenameFile(oldPath, newPath); err != nil {
		t.Fatalf("RenameFile: %v", err)
	}
	if Exists(oldPath) {
		t.Errorf("old path should no longer exist")
	}
	if !Exists(newPath) {
		t.Errorf("new path should exist")
	}
}

func TestMakeAndRemoveDirectory(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")

	if _, err := MakeDirectory(nested); err != nil {
		t.Fatalf("MakeDirectory: %v", err)
	}
	if !IsDir(nested) {
		t.Errorf("nested directory should exist")
	}

	if _, err := RemoveDirectory(filepath.Join(dir, "a")); err != nil {
		t.Fatalf("RemoveDirectory: %v", err)
	}
	if Exists(filepath.Join(dir, "a")) {
		t.Errorf("directory tree should have been removed")
	}
}

func TestTreeSkipsDotfilesAndLogs(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "keep.txt"), "1234")
	mustWrite(t, filepath.Join(dir, ".hidden"), "x")
	mustWrite(t, filepath.Join(dir, "debug.log"), "x")
	if err := os.Mkdir(filepath.Join(dir, "__pycache__"), 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	mustWrite(t, filepath.Join(dir, "__pycache__", "cached.txt"), "x")

	out, err := Tree(dir, 4)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if !strings.Contains(out, "keep.txt (4 bytes)") {
		t.Errorf("Tree output missing keep.txt entry: %q", out)
	}
	if strings.Contains(out, ".hidden") || strings.Contains(out, "debug.log") || strings.Contains(out, "__pycache__") {
		t.Errorf("Tree output should skip dotfiles/logs/__ entries: %q", out)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := WriteFile(path, content, 0644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}
