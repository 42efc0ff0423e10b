package install

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Marker files that identify a plugin root, and the plugin directory suffix.
const (
	MarkerMain   = "main.lua"
	MarkerMeta   = "_meta.lua"
	PluginSuffix = ".koplugin"
)

// Locate returns the plugin root inside base: base itself when it holds
// both marker files, otherwise the first qualifying directory found by
// LocateFS. It reports false when no directory qualifies.
func Locate(base string) (string, bool) {
	rel, ok := LocateFS(os.DirFS(base), ".")
	if !ok {
		return "", false
	}
	if rel == "." {
		return base, true
	}
	return filepath.Join(base, filepath.FromSlash(rel)), true
}

// LocateFS walks fsys from root depth-first, visiting subdirectories in
// lexical order, and returns the first directory whose direct entries
// include both marker files as non-directories. Marker names match
// exactly and case-sensitively. Symlinked directories are not followed
// and unreadable directories are skipped.
func LocateFS(fsys fs.FS, root string) (string, bool) {
	stack := []string{root}

	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := fs.ReadDir(fsys, dir)
		if err != nil {
			continue
		}
		if hasMarkers(entries) {
			return dir, true
		}

		// Reverse push so the lexically smallest child is popped first.
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].IsDir() {
				stack = append(stack, path.Join(dir, entries[i].Name()))
			}
		}
	}

	return "", false
}

func hasMarkers(entries []fs.DirEntry) bool {
	var main, meta bool
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch e.Name() {
		case MarkerMain:
			main = true
		case MarkerMeta:
			meta = true
		}
	}
	return main && meta
}

// PluginName returns the install directory name for a plugin root:
// its base name with PluginSuffix appended when missing.
func PluginName(dir string) string {
	name := filepath.Base(dir)
	if strings.HasSuffix(name, PluginSuffix) {
		return name
	}
	return name + PluginSuffix
}
