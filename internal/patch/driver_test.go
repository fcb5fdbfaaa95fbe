package patch

import (
	"strings"
	"testing"
)

// memBackend is an in-memory Backend used by the core package's own tests,
// independent of the concrete disk-backed implementation in internal/fileops.
type memBackend struct {
	files map[string]string
}

func newMemBackend() *memBackend {
	return &memBackend{files: make(map[string]string)}
}

func (b *memBackend) Read(path string) (string, error) {
	content, ok := b.files[path]
	if !ok {
		return "", ErrFileNotFound
	}
	return content, nil
}

func (b *memBackend) Write(path, content string) (string, error) {
	b.files[path] = content
	return "Wrote file: " + path, nil
}

func (b *memBackend) Delete(path string) (string, error) {
	if _, ok := b.files[path]; !ok {
		return "", ErrFileNotFound
	}
	delete(b.files, path)
	return "Deleted file: " + path, nil
}

func TestApplyPatchAddFile(t *testing.T) {
	backend := newMemBackend()
	text := "*** Begin Patch\n" +
		"*** Add File: new_file.py\n" +
		"+def hello():\n" +
		"+    print(\"Hello, world!\")\n" +
		"*** End Patch"

	if _, err := ApplyPatch(text, backend); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := backend.files["new_file.py"]
	if !ok {
		t.Fatalf("expected new_file.py to be written")
	}
	if !strings.Contains(got, "def hello():") || !strings.Contains(got, `print("Hello, world!")`) {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestApplyPatchDeleteFile(t *testing.T) {
	backend := newMemBackend()
	backend.files["old_file.py"] = "old content"

	text := "*** Begin Patch\n*** Delete File: old_file.py\n*** End Patch"
	if _, err := ApplyPatch(text, backend); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := backend.files["old_file.py"]; ok {
		t.Errorf("expected old_file.py to be deleted")
	}
}

func TestApplyPatchUpdateFileSimple(t *testing.T) {
	backend := newMemBackend()
	backend.files["test.py"] = "def example():\n    pass"

	text := "*** Begin Patch\n" +
		"*** Update File: test.py\n" +
		"-    pass\n" +
		"+    return 123\n" +
		"*** End Patch"

	if _, err := ApplyPatch(text, backend); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := backend.files["test.py"]
	if !strings.Contains(got, "return 123") || strings.Contains(got, "pass") {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestApplyPatchUpdateFileWithContext(t *testing.T) {
	backend := newMemBackend()
	backend.files["test.py"] = "class Example:\n" +
		"    def method1(self):\n" +
		"        return 1\n" +
		"\n" +
		"    def method2(self):\n" +
		"        pass\n" +
		"\n" +
		"    def method3(self):\n" +
		"        return 3"

	text := "*** Begin Patch\n" +
		"*** Update File: test.py\n" +
		"@@ def method2(self):\n" +
		"-        pass\n" +
		"+        return 2\n" +
		"*** End Patch"

	if _, err := ApplyPatch(text, backend); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := backend.files["test.py"]
	if !strings.Contains(got, "return 2") {
		t.Errorf("expected updated method2 body, got %q", got)
	}
	if !strings.Contains(got, "def method1(self):") || !strings.Contains(got, "def method3(self):") {
		t.Errorf("expected unrelated methods preserved, got %q", got)
	}
}

func TestApplyPatchMultipleOperations(t *testing.T) {
	backend := newMemBackend()
	backend.files["update_me.py"] = "old content"
	backend.files["delete_me.py"] = "to be deleted"

	text := "*** Begin Patch\n" +
		"*** Update File: update_me.py\n" +
		"-old content\n" +
		"+new content\n" +
		"*** Delete File: delete_me.py\n" +
		"*** Add File: create_me.py\n" +
		"+new file content\n" +
		"*** End Patch"

	if _, err := ApplyPatch(text, backend); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.files["update_me.py"] != "new content" {
		t.Errorf("update_me.py = %q, want %q", backend.files["update_me.py"], "new content")
	}
	if _, ok := backend.files["delete_me.py"]; ok {
		t.Errorf("expected delete_me.py to be deleted")
	}
	if backend.files["create_me.py"] != "new file content" {
		t.Errorf("create_me.py = %q, want %q", backend.files["create_me.py"], "new file content")
	}
}

func TestApplyPatchFileMove(t *testing.T) {
	backend := newMemBackend()
	backend.files["old_path.py"] = "def function():\n    old_implementation()"

	text := "*** Begin Patch\n" +
		"*** Update File: old_path.py\n" +
		"*** Move File To: new_path.py\n" +
		"-    old_implementation()\n" +
		"+    new_implementation()\n" +
		"*** End Patch"

	if _, err := ApplyPatch(text, backend); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := backend.files["old_path.py"]; ok {
		t.Errorf("expected old_path.py to be gone after move")
	}
	got, ok := backend.files["new_path.py"]
	if !ok {
		t.Fatalf("expected new_path.py to exist after move")
	}
	if !strings.Contains(got, "new_implementation()") {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestApplyPatchInvalidFormat(t *testing.T) {
	backend := newMemBackend()
	_, err := ApplyPatch("Invalid patch without proper format", backend)
	if err == nil || !strings.Contains(err.Error(), "Patch must start with") {
		t.Errorf("error = %v, want substring 'Patch must start with'", err)
	}
}

func TestApplyPatchMissingFileForUpdate(t *testing.T) {
	backend := newMemBackend()
	text := "*** Begin Patch\n" +
		"*** Update File: nonexistent.py\n" +
		"-old content\n" +
		"+new content\n" +
		"*** End Patch"

	_, err := ApplyPatch(text, backend)
	if err == nil || !strings.Contains(err.Error(), "File not found") {
		t.Errorf("error = %v, want substring 'File not found'", err)
	}
}

func TestApplyPatchAddExistingFile(t *testing.T) {
	backend := newMemBackend()
	backend.files["existing.py"] = "already exists"

	text := "*** Begin Patch\n" +
		"*** Add File: existing.py\n" +
		"+new content\n" +
		"*** End Patch"

	_, err := ApplyPatch(text, backend)
	if err == nil || !strings.Contains(err.Error(), "File already exists") {
		t.Errorf("error = %v, want substring 'File already exists'", err)
	}
}

func TestApplyPatchMoveOntoExistingFile(t *testing.T) {
	backend := newMemBackend()
	backend.files["old_path.py"] = "def function():\n    old_implementation()"
	backend.files["new_path.py"] = "def function():\n    already_here()"

	text := "*** Begin Patch\n" +
		"*** Update File: old_path.py\n" +
		"*** Move File To: new_path.py\n" +
		"-    old_implementation()\n" +
		"+    new_implementation()\n" +
		"*** End Patch"

	_, err := ApplyPatch(text, backend)
	if err == nil || !strings.Contains(err.Error(), "File already exists") {
		t.Errorf("error = %v, want substring 'File already exists'", err)
	}
	if backend.files["old_path.py"] != "def function():\n    old_implementation()" {
		t.Errorf("old_path.py should be unchanged after rejected move, got %q", backend.files["old_path.py"])
	}
	if backend.files["new_path.py"] != "def function():\n    already_here()" {
		t.Errorf("new_path.py should be unchanged after rejected move, got %q", backend.files["new_path.py"])
	}
}

func TestIdentifyFilesNeededMixed(t *testing.T) {
	text := "*** Begin Patch\n" +
		"*** Update File: update_me.py\n" +
		"*** Delete File: delete_me.py\n" +
		"*** Add File: new_file.py\n" +
		"*** End Patch"

	got := identifyFilesNeeded(text)
	want := map[string]bool{"update_me.py": true, "delete_me.py": true}
	if len(got) != len(want) {
		t.Fatalf("identifyFilesNeeded = %v, want keys %v", got, want)
	}
	for _, p := range got {
		if !want[p] {
			t.Errorf("unexpected path %q in %v", p, got)
		}
	}
}
