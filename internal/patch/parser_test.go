package patch

import (
	"strings"
	"testing"
)

func TestTextToPatchUpdateSimple(t *testing.T) {
	orig := FileSnapshot{"test.py": "def func():\n    pass"}
	text := "*** Begin Patch\n" +
		"*** Update File: test.py\n" +
		"-    pass\n" +
		"+    return 123\n" +
		"*** End Patch"

	p, _, err := TextToPatch(text, orig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	action, ok := p.Actions["test.py"]
	if !ok {
		t.Fatalf("expected action for test.py")
	}
	if action.Kind != ActionUpdate {
		t.Errorf("Kind = %v, want ActionUpdate", action.Kind)
	}
	if len(action.Chunks) != 1 {
		t.Errorf("len(Chunks) = %d, want 1", len(action.Chunks))
	}
}

func TestTextToPatchInvalidFormat(t *testing.T) {
	_, _, err := TextToPatch("Not a valid patch", FileSnapshot{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !containsMessage(err, "Invalid patch format") {
		t.Errorf("error = %v, want substring 'Invalid patch format'", err)
	}
}

func TestTextToPatchAddFile(t *testing.T) {
	text := "*** Begin Patch\n" +
		"*** Add File: new.py\n" +
		"+def hello():\n" +
		"+    print(\"world\")\n" +
		"*** End Patch"

	p, _, err := TextToPatch(text, FileSnapshot{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	action, ok := p.Actions["new.py"]
	if !ok {
		t.Fatalf("expected action for new.py")
	}
	if action.Kind != ActionAdd {
		t.Errorf("Kind = %v, want ActionAdd", action.Kind)
	}
	if want := "def hello():\n    print(\"world\")"; action.NewFile != want {
		t.Errorf("NewFile = %q, want %q", action.NewFile, want)
	}
}

func TestTextToPatchDefineRebase(t *testing.T) {
	orig := FileSnapshot{"test.py": "class Example:\n" +
		"    def method1(self):\n" +
		"        return 1\n" +
		"\n" +
		"    def method2(self):\n" +
		"        pass\n" +
		"\n" +
		"    def method3(self):\n" +
		"        return 3"}

	text := "*** Begin Patch\n" +
		"*** Update File: test.py\n" +
		"@@ def method2(self):\n" +
		"-        pass\n" +
		"+        return 2\n" +
		"*** End Patch"

	p, _, err := TextToPatch(text, orig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	action := p.Actions["test.py"]
	if len(action.Chunks) != 1 {
		t.Fatalf("len(Chunks) = %d, want 1", len(action.Chunks))
	}
}

func TestTextToPatchDuplicatePath(t *testing.T) {
	orig := FileSnapshot{"test.py": "content"}
	text := "*** Begin Patch\n" +
		"*** Update File: test.py\n" +
		"*** Update File: test.py\n" +
		"*** End Patch"

	_, _, err := TextToPatch(text, orig)
	if err == nil || !containsMessage(err, "Duplicate Path") {
		t.Errorf("error = %v, want substring 'Duplicate Path'", err)
	}
}

func TestTextToPatchMissingFile(t *testing.T) {
	text := "*** Begin Patch\n" +
		"*** Update File: nonexistent.py\n" +
		"-old content\n" +
		"+new content\n" +
		"*** End Patch"

	_, _, err := TextToPatch(text, FileSnapshot{})
	if err == nil || !containsMessage(err, "Missing File") {
		t.Errorf("error = %v, want substring 'Missing File'", err)
	}
}

func TestTextToPatchAddExistingFile(t *testing.T) {
	orig := FileSnapshot{"existing.py": "already exists"}
	text := "*** Begin Patch\n" +
		"*** Add File: existing.py\n" +
		"+new content\n" +
		"*** End Patch"

	_, _, err := TextToPatch(text, orig)
	if err == nil || !containsMessage(err, "File already exists") {
		t.Errorf("error = %v, want substring 'File already exists'", err)
	}
}

func TestTextToPatchInvalidContext(t *testing.T) {
	orig := FileSnapshot{"test.py": "def function():\n    return 1"}
	text := "*** Begin Patch\n" +
		"*** Update File: test.py\n" +
		" this context does not exist\n" +
		"-old line\n" +
		"+new line\n" +
		"*** End Patch"

	_, _, err := TextToPatch(text, orig)
	if err == nil || !containsMessage(err, "Invalid Context") {
		t.Errorf("error = %v, want substring 'Invalid Context'", err)
	}
}

func containsMessage(err error, substr string) bool {
	de, ok := err.(*DiffError)
	if !ok {
		return false
	}
	return strings.Contains(de.Message, substr)
}
