// Package scanner walks a directory tree looking for maildirs.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	mwerrors "github.com/cristianoliveira/maildirwatch/internal/errors"
	"github.com/cristianoliveira/maildirwatch/internal/maildir"
	"github.com/cristianoliveira/maildirwatch/internal/pattern"
)

// Candidate is a discovered maildir.
type Candidate struct {
	Path         string
	RelativePath string
	// Watch is false when the patterns reject the maildir.
	Watch bool
}

// Result is the outcome of a scan.
type Result struct {
	// Maildirs lists every maildir found, accepted or not, sorted by path.
	Maildirs []Candidate
	// Containers lists the directories that are not maildirs (plus maildirs
	// when nested maildirs are enabled). They need watches so that new
	// subdirectories are noticed.
	Containers []string
	// Skipped maps unreadable directories to the error met.
	Skipped map[string]error
}

// Accepted returns the maildirs the patterns accept.
func (r Result) Accepted() []Candidate {
	out := make([]Candidate, 0, len(r.Maildirs))
	for _, c := range r.Maildirs {
		if c.Watch {
			out = append(out, c)
		}
	}
	return out
}

// Options configure a Scanner.
type Options struct {
	Patterns pattern.Set
	// Nested descends into maildirs to find Maildir++ style folders
	// (".Sent", ".Drafts") stored inside them.
	Nested bool
}

// Scanner discovers maildirs under a root.
type Scanner struct {
	root string
	opts Options
}

// New creates a Scanner for root.
func New(root string, opts Options) *Scanner {
	return &Scanner{root: filepath.Clean(root), opts: opts}
}

// Root returns the scan root.
func (s *Scanner) Root() string {
	return s.root
}

// Scan walks the whole tree. A missing or unreadable root is an ErrScan.
func (s *Scanner) Scan() (Result, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w: %v", s.root, mwerrors.ErrScan, err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("%s: %w: not a directory", s.root, mwerrors.ErrScan)
	}
	if _, err := os.ReadDir(s.root); err != nil {
		return Result{}, fmt.Errorf("%s: %w: %v", s.root, mwerrors.ErrScan, err)
	}
	return s.walk(s.root), nil
}

// ScanFrom walks only the subtree at start, which must be the root or lie
// below it. Relative paths stay relative to the root.
func (s *Scanner) ScanFrom(start string) (Result, error) {
	start = filepath.Clean(start)
	if _, err := filepath.Rel(s.root, start); err != nil {
		return Result{}, fmt.Errorf("%s is outside %s: %w", start, s.root, mwerrors.ErrScan)
	}
	info, err := os.Stat(start)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w: %v", start, mwerrors.ErrScan, err)
	}
	if !info.IsDir() {
		return Result{}, nil
	}
	return s.walk(start), nil
}

// RelativePath returns path relative to the root with slash separators.
func (s *Scanner) RelativePath(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// walk visits directories with an explicit stack. Symlinked directories are
// followed but every real path is visited at most once.
func (s *Scanner) walk(start string) Result {
	res := Result{Skipped: make(map[string]error)}
	visited := make(map[string]bool)
	stack := []string{start}

	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			res.Skipped[dir] = err
			continue
		}
		if visited[real] {
			continue
		}
		visited[real] = true

		isMaildir := maildir.IsMaildir(dir)
		if isMaildir {
			rel := s.RelativePath(dir)
			res.Maildirs = append(res.Maildirs, Candidate{
				Path:         dir,
				RelativePath: rel,
				Watch:        s.opts.Patterns.ShouldWatch(rel),
			})
			if !s.opts.Nested {
				continue
			}
		}
		res.Containers = append(res.Containers, dir)

		entries, err := os.ReadDir(dir)
		if err != nil {
			res.Skipped[dir] = err
			continue
		}
		// Push in reverse so children are visited in name order.
		for i := len(entries) - 1; i >= 0; i-- {
			name := entries[i].Name()
			if isMaildir && maildir.IsSubdir(name) {
				continue
			}
			child := filepath.Join(dir, name)
			if isDir(entries[i], child) {
				stack = append(stack, child)
			}
		}
	}

	sort.Slice(res.Maildirs, func(i, j int) bool { return res.Maildirs[i].Path < res.Maildirs[j].Path })
	sort.Strings(res.Containers)
	return res
}

func isDir(entry os.DirEntry, path string) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
