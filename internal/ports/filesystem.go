package ports

import (
	"os"
	"path/filepath"
	"strings"
)

// FileSystem is the set of file operations an install run performs on
// the workspace and the install root.
type FileSystem interface {
	// MkdirTemp creates a new uniquely named directory, as os.MkdirTemp.
	MkdirTemp(dir, pattern string) (string, error)
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(path string, data []byte, perm os.FileMode) error
	// CopyDir copies the tree rooted at src into dest, which must not exist.
	CopyDir(src, dest string) error
	Rename(oldPath, newPath string) error
	RemoveAll(path string) error
	Exists(path string) bool
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}
