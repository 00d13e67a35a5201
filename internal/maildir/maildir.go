// Package maildir recognises Maildir directories and reads their unseen counts.
package maildir

import (
	"os"
	"path/filepath"

	"github.com/emersion/go-maildir"
)

// Subdirectory names of a Maildir.
const (
	NewDir = "new"
	CurDir = "cur"
	TmpDir = "tmp"
)

var subdirs = []string{NewDir, CurDir, TmpDir}

// IsMaildir reports whether path has new, cur and tmp subdirectories.
func IsMaildir(path string) bool {
	for _, sub := range subdirs {
		info, err := os.Stat(filepath.Join(path, sub))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

// IsSubdir reports whether name is one of new, cur or tmp.
func IsSubdir(name string) bool {
	for _, sub := range subdirs {
		if name == sub {
			return true
		}
	}
	return false
}

// NewPath returns the path of the new subdirectory of a maildir.
func NewPath(path string) string {
	return filepath.Join(path, NewDir)
}

// UnseenCount returns the number of messages waiting in new, or -1 when
// the directory cannot be read. Messages are not moved.
func UnseenCount(path string) int {
	n, err := maildir.Dir(path).UnseenCount()
	if err != nil {
		return -1
	}
	return n
}

// Init creates the new, cur and tmp subdirectories of path.
func Init(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return err
	}
	return maildir.Dir(path).Init()
}
