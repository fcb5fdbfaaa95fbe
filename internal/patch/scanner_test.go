package patch

import "testing"

func TestPeekNextSectionSimpleDelete(t *testing.T) {
	lines := []string{"-old line", "+new line", "*** End Patch"}
	context, chunks, next, eof, err := peekNextSection(lines, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eof {
		t.Errorf("expected eof = false")
	}
	if next != 2 {
		t.Errorf("next = %d, want 2", next)
	}
	if len(context) != 1 || context[0] != "old line" {
		t.Errorf("context = %v, want [old line] (deleted lines are part of the old-side context)", context)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].DelLines[0] != "old line" || chunks[0].InsLines[0] != "new line" {
		t.Errorf("unexpected chunk contents: %+v", chunks[0])
	}
}

func TestPeekNextSectionKeepContext(t *testing.T) {
	lines := []string{" keep1", "-del", "+ins", " keep2", "*** End Patch"}
	context, chunks, next, _, err := peekNextSection(lines, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantContext := []string{"keep1", "del", "keep2"}
	if len(context) != len(wantContext) || context[0] != wantContext[0] || context[1] != wantContext[1] || context[2] != wantContext[2] {
		t.Errorf("context = %v, want %v", context, wantContext)
	}
	if next != 4 {
		t.Errorf("next = %d, want 4", next)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].OrigIndex != 1 {
		t.Errorf("OrigIndex = %d, want 1", chunks[0].OrigIndex)
	}
}

func TestPeekNextSectionEndOfFile(t *testing.T) {
	lines := []string{"-old", "+new", "*** End of File", "*** End Patch"}
	_, _, next, eof, err := peekNextSection(lines, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !eof {
		t.Errorf("expected eof = true")
	}
	if next != 3 {
		t.Errorf("next = %d, want 3", next)
	}
}

func TestPeekNextSectionInvalidLine(t *testing.T) {
	lines := []string{"*** Something Weird", "*** End Patch"}
	_, _, _, _, err := peekNextSection(lines, 0)
	if err == nil {
		t.Fatalf("expected error for invalid line")
	}
}

func TestPeekNextSectionToleratesMissingLeadingSpace(t *testing.T) {
	lines := []string{"keep without leading space", "*** End Patch"}
	context, _, _, _, err := peekNextSection(lines, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(context) != 1 || context[0] != "keep without leading space" {
		t.Errorf("context = %v", context)
	}
}
