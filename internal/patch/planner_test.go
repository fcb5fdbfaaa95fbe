package patch

import "testing"

func TestPatchToCommitAdd(t *testing.T) {
	p := newPatch()
	p.add("new.txt", PatchAction{Kind: ActionAdd, NewFile: "hello"})

	commit, err := PatchToCommit(p, FileSnapshot{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	change := commit.Changes["new.txt"]
	if change.Kind != ActionAdd || change.New != "hello" {
		t.Errorf("unexpected change: %+v", change)
	}
}

func TestPatchToCommitDelete(t *testing.T) {
	orig := FileSnapshot{"old.txt": "bye"}
	p := newPatch()
	p.add("old.txt", PatchAction{Kind: ActionDelete})

	commit, err := PatchToCommit(p, orig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	change := commit.Changes["old.txt"]
	if change.Kind != ActionDelete || change.Old != "bye" {
		t.Errorf("unexpected change: %+v", change)
	}
}

func TestPatchToCommitUpdateWithMove(t *testing.T) {
	orig := FileSnapshot{"old.txt": "a\nb\nc"}
	p := newPatch()
	p.add("old.txt", PatchAction{
		Kind:     ActionUpdate,
		MovePath: "new.txt",
		Chunks: []Chunk{
			{OrigIndex: 1, DelLines: []string{"b"}, InsLines: []string{"B"}},
		},
	})

	commit, err := PatchToCommit(p, orig)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	change := commit.Changes["old.txt"]
	if change.MovePath != "new.txt" {
		t.Errorf("MovePath = %q, want new.txt", change.MovePath)
	}
	if want := "a\nB\nc"; change.New != want {
		t.Errorf("New = %q, want %q", change.New, want)
	}
}

func TestPatchToCommitPreservesOrder(t *testing.T) {
	p := newPatch()
	p.add("b.txt", PatchAction{Kind: ActionAdd, NewFile: "b"})
	p.add("a.txt", PatchAction{Kind: ActionAdd, NewFile: "a"})

	commit, err := PatchToCommit(p, FileSnapshot{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(commit.Order) != 2 || commit.Order[0] != "b.txt" || commit.Order[1] != "a.txt" {
		t.Errorf("Order = %v, want [b.txt a.txt]", commit.Order)
	}
}
