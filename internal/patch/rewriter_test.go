package patch

import "testing"

func TestRewriteSingleChunk(t *testing.T) {
	orig := []string{"a", "b", "c"}
	chunks := []Chunk{
		{OrigIndex: 1, DelLines: []string{"b"}, InsLines: []string{"B"}},
	}
	got, err := Rewrite(orig, chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "a\nB\nc"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewriteMultipleChunks(t *testing.T) {
	orig := []string{"a", "b", "c", "d", "e"}
	chunks := []Chunk{
		{OrigIndex: 1, DelLines: []string{"b"}, InsLines: []string{"B1", "B2"}},
		{OrigIndex: 3, DelLines: []string{"d"}, InsLines: nil},
	}
	got, err := Rewrite(orig, chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "a\nB1\nB2\nc\ne"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewriteOutOfOrderChunkErrors(t *testing.T) {
	orig := []string{"a", "b", "c"}
	chunks := []Chunk{
		{OrigIndex: 2, DelLines: []string{"c"}},
		{OrigIndex: 0, DelLines: []string{"a"}},
	}
	if _, err := Rewrite(orig, chunks); err == nil {
		t.Fatalf("expected error for out-of-order chunk")
	}
}

func TestRewriteOutOfBoundsChunkErrors(t *testing.T) {
	orig := []string{"a", "b"}
	chunks := []Chunk{
		{OrigIndex: 5, InsLines: []string{"x"}},
	}
	if _, err := Rewrite(orig, chunks); err == nil {
		t.Fatalf("expected error for out-of-bounds chunk")
	}
}
