package patch

import "strings"

// PatchToCommit turns a parsed Patch into a Commit: for each action it
// computes the concrete old/new content (or move target) without touching
// any backend. Update actions call Rewrite against orig's snapshot content.
func PatchToCommit(p Patch, orig FileSnapshot) (Commit, error) {
	commit := newCommit()

	for _, path := range p.Order {
		action := p.Actions[path]

		switch action.Kind {
		case ActionDelete:
			commit.add(path, FileChange{Kind: ActionDelete, Old: orig[path]})

		case ActionAdd:
			commit.add(path, FileChange{Kind: ActionAdd, New: action.NewFile})

		case ActionUpdate:
			origLines := strings.Split(orig[path], "\n")
			newContent, err := Rewrite(origLines, action.Chunks)
			if err != nil {
				return Commit{}, diffErrorf("%s: %s", path, err.Error())
			}
			change := FileChange{
				Kind: ActionUpdate,
				Old:  orig[path],
				New:  newContent,
			}
			if action.MovePath != "" {
				change.MovePath = action.MovePath
			}
			commit.add(path, change)
		}
	}

	return commit, nil
}
