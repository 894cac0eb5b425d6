package git

import (
	"os"
	"path/filepath"
)

// FindRoot returns the working copy root containing path: the closest
// directory, starting at path itself, that holds a ".git" entry. Linked
// worktrees and submodules use a ".git" file, which counts as well.
func FindRoot(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	dir := abs
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		dir = filepath.Dir(abs)
	}
	for {
		if _, err := os.Lstat(filepath.Join(dir, ".git")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// InGitDir reports whether path lies inside a ".git" directory.
func InGitDir(path string) bool {
	for dir := filepath.Clean(path); ; {
		if filepath.Base(dir) == ".git" {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}
