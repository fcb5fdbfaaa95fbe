// Package fileops is the concrete local-filesystem implementation of the
// patch backend, plus the directory-listing and single-file primitives the
// agent's tool registry exposes alongside patch_file.
package fileops

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anvilcode/anvil/internal/patch"
)

// FileInfo describes a single filesystem entry.
type FileInfo struct {
	Path      string
	Content   string
	Size      int64
	Mode      os.FileMode
	IsDir     bool
	ModTime   int64
	Exists    bool
	IsSymlink bool
}

// GetFile reads a file and returns its contents and metadata. A missing
// path is not an error: the returned FileInfo has Exists == false.
func GetFile(path string) (*FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileInfo{Path: path, Exists: false}, nil
		}
		return nil, fmt.Errorf("error getting file info: %w", err)
	}

	fileInfo := &FileInfo{
		Path:      path,
		Size:      info.Size(),
		Mode:      info.Mode(),
		IsDir:     info.IsDir(),
		ModTime:   info.ModTime().Unix(),
		Exists:    true,
		IsSymlink: info.Mode()&os.ModeSymlink != 0,
	}

	if fileInfo.IsSymlink {
		target, err := os.Readlink(path)
		if err != nil {
			return nil, fmt.Errorf("error reading symlink: %w", err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		targetInfo, err := GetFile(target)
		if err != nil {
			return nil, fmt.Errorf("error getting symlink target info: %w", err)
		}
		fileInfo.IsDir = targetInfo.IsDir
		fileInfo.Size = targetInfo.Size
	}

	if fileInfo.IsDir {
		return fileInfo, nil
	}

	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	fileInfo.Content = string(content)

	return fileInfo, nil
}

// WriteFile writes content to path, creating parent directories as needed.
func WriteFile(path string, content string, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directories: %w", err)
	}
	if err := ioutil.WriteFile(path, []byte(content), mode); err != nil {
		return fmt.Errorf("error writing file: %w", err)
	}
	return nil
}

// ListDir lists the direct contents of a directory.
func ListDir(path string) ([]FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error getting directory info: %w", err)
	}
	if !info.IsDir() {
		return nil, errors.New("path is not a directory")
	}

	entries, err := ioutil.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("error reading directory: %w", err)
	}

	var result []FileInfo
	for _, entry := range entries {
		result = append(result, FileInfo{
			Path:      filepath.Join(path, entry.Name()),
			Size:      entry.Size(),
			Mode:      entry.Mode(),
			IsDir:     entry.IsDir(),
			ModTime:   entry.ModTime().Unix(),
			Exists:    true,
			IsSymlink: entry.Mode()&os.ModeSymlink != 0,
		})
	}

	return result, nil
}

// Exists reports whether path names an existing file or directory.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path names an existing directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile reports whether path names an existing, non-directory file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// treeEntry is one line of a Tree listing.
type treeEntry struct {
	path  string
	size  int64
	isDir bool
	depth int
}

// Tree walks root up to depth levels deep and returns a "path (N bytes)"
// line per entry, skipping dotfiles, "__"-prefixed entries, and *.log
// files. Directory sizes are the sum of their descendants within the depth
// limit; files below that limit are not counted.
func Tree(root string, depth int) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("error resolving path: %w", err)
	}

	var entries []treeEntry
	var scan func(current, rel string, level int) int64
	scan = func(current, rel string, level int) int64 {
		if level > depth {
			return 0
		}
		dirEntries, err := ioutil.ReadDir(current)
		if err != nil {
			return 0
		}
		sort.Slice(dirEntries, func(i, j int) bool { return dirEntries[i].Name() < dirEntries[j].Name() })

		var total int64
		for _, e := range dirEntries {
			entryRel := e.Name()
			if rel != "" {
				entryRel = filepath.Join(rel, e.Name())
			}
			entryPath := filepath.Join(current, e.Name())

			if e.Mode()&os.ModeSymlink != 0 {
				continue
			}

			if e.IsDir() {
				dirSize := scan(entryPath, entryRel, level+1)
				entries = append(entries, treeEntry{path: entryRel, size: dirSize, isDir: true, depth: level})
				total += dirSize
			} else {
				entries = append(entries, treeEntry{path: entryRel, size: e.Size(), isDir: false, depth: level})
				total += e.Size()
			}
		}
		return total
	}
	scan(absRoot, "", 1)

	var lines []string
	for _, e := range entries {
		if skipTreeEntry(e.path) {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s (%d bytes)", e.path, e.size))
	}
	return strings.Join(lines, "\n"), nil
}

func skipTreeEntry(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") || strings.HasPrefix(part, "__") || strings.HasSuffix(part, ".log") {
			return true
		}
	}
	return false
}

// ReadFile reads path as UTF-8 text for the single-file read_file tool.
func ReadFile(path string) (string, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// AppendFile appends content to path, creating parent directories and the
// file itself if either is missing.
func AppendFile(path, content string) (string, error) {
	dir := filepath.Dir(path)
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("error creating directories: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return "", err
	}
	return fmt.Sprintf("Appended to file: %s", path), nil
}

// DeleteFile removes a single file. It refuses to remove directories.
func DeleteFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if err := os.Remove(path); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted file: %s", path), nil
}

// RenameFile renames oldPath to newPath.
func RenameFile(oldPath, newPath string) (string, error) {
	if err := os.Rename(oldPath, newPath); err != nil {
		return "", err
	}
	return fmt.Sprintf("Renamed %s -> %s", oldPath, newPath), nil
}

// MakeDirectory creates path and any missing parents.
func MakeDirectory(path string) (string, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", err
	}
	return fmt.Sprintf("Created directory: %s", path), nil
}

// RemoveDirectory recursively removes path.
func RemoveDirectory(path string) (string, error) {
	if err := os.RemoveAll(path); err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed directory: %s", path), nil
}

// LocalBackend is the disk-backed patch.Backend the agent's patch_file
// tool applies commits through.
type LocalBackend struct {
	// Root anchors relative paths in the patch document; empty means the
	// process's current working directory.
	Root string
}

var _ patch.Backend = (*LocalBackend)(nil)

func (b *LocalBackend) resolve(path string) string {
	if b.Root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(b.Root, path)
}

// Read implements patch.Backend. A missing file is reported as
// patch.ErrFileNotFound, matching the contract ApplyPatch depends on.
func (b *LocalBackend) Read(path string) (string, error) {
	content, err := ioutil.ReadFile(b.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", patch.ErrFileNotFound
		}
		return "", err
	}
	return string(content), nil
}

// Write implements patch.Backend.
func (b *LocalBackend) Write(path, content string) (string, error) {
	full := b.resolve(path)
	if err := WriteFile(full, content, 0644); err != nil {
		return "", err
	}
	return fmt.Sprintf("Wrote file: %s", path), nil
}

// Delete implements patch.Backend. A missing file is reported as
// patch.ErrFileNotFound.
func (b *LocalBackend) Delete(path string) (string, error) {
	full := b.resolve(path)
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return "", patch.ErrFileNotFound
		}
		return "", err
	}
	if err := os.Remove(full); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted file: %s", path), nil
}
