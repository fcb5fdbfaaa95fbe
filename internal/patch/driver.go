package patch

import (
	"errors"
	"strings"
)

// ErrFileNotFound is the sentinel a Backend must return (wrapped or bare,
// matched with errors.Is) when Read or Delete is asked for a path that does
// not exist. ApplyPatch uses it to distinguish a missing file from any other
// I/O failure while loading the files an Update/Delete section references.
var ErrFileNotFound = errors.New("file not found")

// Backend is the file system the driver mutates through. Concrete
// implementations (the local disk, an in-memory map for tests) supply it;
// the core package never touches a filesystem directly.
type Backend interface {
	Read(path string) (string, error)
	Write(path, content string) (string, error)
	Delete(path string) (string, error)
}

// identifyFilesNeeded returns, in first-seen order, every path named by an
// Update or Delete section header — the files ApplyPatch must load before
// parsing can rebase any chunk.
func identifyFilesNeeded(text string) []string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	seen := make(map[string]bool)
	var result []string
	for _, line := range lines {
		var path string
		switch {
		case strings.HasPrefix(line, updateFilePrefix):
			path = line[len(updateFilePrefix):]
		case strings.HasPrefix(line, deleteFilePrefix):
			path = line[len(deleteFilePrefix):]
		default:
			continue
		}
		if !seen[path] {
			seen[path] = true
			result = append(result, path)
		}
	}
	return result
}

// identifyFilesAdded returns, in first-seen order, every path named by an
// Add File section header.
func identifyFilesAdded(text string) []string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	seen := make(map[string]bool)
	var result []string
	for _, line := range lines {
		if !strings.HasPrefix(line, addFilePrefix) {
			continue
		}
		path := line[len(addFilePrefix):]
		if !seen[path] {
			seen[path] = true
			result = append(result, path)
		}
	}
	return result
}

// loadFiles reads every path in paths through backend, wrapping a missing
// file as a DiffError naming the path.
func loadFiles(paths []string, backend Backend) (FileSnapshot, error) {
	orig := make(FileSnapshot, len(paths))
	for _, p := range paths {
		content, err := backend.Read(p)
		if err != nil {
			if errors.Is(err, ErrFileNotFound) {
				return nil, diffErrorf("File not found: %s", p)
			}
			return nil, err
		}
		orig[p] = content
	}
	return orig, nil
}

// applyCommit executes every change in commit, in declaration order, through
// backend. An Update with a MovePath writes the new path first and only
// then deletes the old one, so a failed delete never loses content that was
// already written under the new name.
func applyCommit(commit Commit, backend Backend) (string, error) {
	var results []string

	for _, path := range commit.Order {
		change := commit.Changes[path]

		switch change.Kind {
		case ActionDelete:
			result, err := backend.Delete(path)
			if err != nil {
				return "", err
			}
			results = append(results, result)

		case ActionAdd:
			result, err := backend.Write(path, change.New)
			if err != nil {
				return "", err
			}
			results = append(results, result)

		case ActionUpdate:
			if change.MovePath != "" {
				result, err := backend.Write(change.MovePath, change.New)
				if err != nil {
					return "", err
				}
				results = append(results, result)
				result, err = backend.Delete(path)
				if err != nil {
					return "", err
				}
				results = append(results, result)
			} else {
				result, err := backend.Write(path, change.New)
				if err != nil {
					return "", err
				}
				results = append(results, result)
			}
		}
	}

	return strings.Join(results, "\n"), nil
}

// ApplyPatch parses text as a patch document and applies it to backend in
// full: loading every file the patch's Update/Delete sections reference,
// checking Add targets don't already exist, parsing, planning a Commit,
// checking Move targets don't already exist, and finally writing every
// change through backend in the order the patch declared its sections. It
// returns the newline-joined results the Backend methods reported, or the
// first error encountered (a DiffError or a Backend error).
func ApplyPatch(text string, backend Backend) (string, error) {
	if !strings.HasPrefix(text, patchPrefix+"\n") {
		return "", diffErrorf("Patch must start with *** Begin Patch\\n")
	}

	paths := identifyFilesNeeded(text)
	orig, err := loadFiles(paths, backend)
	if err != nil {
		return "", err
	}

	addPaths := identifyFilesAdded(text)
	for _, path := range addPaths {
		if _, err := backend.Read(path); err == nil {
			return "", diffErrorf("Add File Error: File already exists: %s", path)
		} else if !errors.Is(err, ErrFileNotFound) {
			return "", err
		}
	}

	parsed, _, err := TextToPatch(text, orig)
	if err != nil {
		return "", err
	}

	commit, err := PatchToCommit(parsed, orig)
	if err != nil {
		return "", err
	}

	for _, path := range commit.Order {
		change := commit.Changes[path]
		if change.Kind != ActionUpdate || change.MovePath == "" {
			continue
		}
		if _, err := backend.Read(change.MovePath); err == nil {
			return "", diffErrorf("Update File Error: File already exists: %s", change.MovePath)
		} else if !errors.Is(err, ErrFileNotFound) {
			return "", err
		}
	}

	return applyCommit(commit, backend)
}
