// Package registry keeps the table of watched maildirs and container directories.
//
// A Registry is owned by the engine loop and is not safe for concurrent use.
package registry

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	mwerrors "github.com/cristianoliveira/maildirwatch/internal/errors"
	"github.com/cristianoliveira/maildirwatch/internal/maildir"
)

// Watcher installs and removes low-level directory watches.
type Watcher interface {
	Add(path string) error
	Remove(path string) error
}

// Entry is a watched maildir. Both the maildir directory and its new
// subdirectory are watched: the first reports new/cur/tmp coming and going,
// the second reports deliveries.
type Entry struct {
	// Path is the absolute maildir path.
	Path string
	// RelativePath is Path relative to the scan root, slash separated.
	RelativePath string
	// Watch is the watched new subdirectory.
	Watch string
}

// Registry maps maildir paths to entries and tracks watched containers.
// Low-level watches are reference counted because a directory can be both a
// maildir and a container.
type Registry struct {
	watcher    Watcher
	entries    map[string]*Entry
	byWatch    map[string]*Entry
	containers map[string]struct{}
	refs       map[string]int
}

// New creates an empty Registry installing watches through w.
func New(w Watcher) *Registry {
	return &Registry{
		watcher:    w,
		entries:    make(map[string]*Entry),
		byWatch:    make(map[string]*Entry),
		containers: make(map[string]struct{}),
		refs:       make(map[string]int),
	}
}

func (r *Registry) acquire(path string) error {
	if r.refs[path] == 0 {
		if err := r.watcher.Add(path); err != nil {
			return fmt.Errorf("%s: %w: %v", path, mwerrors.ErrWatchEstablish, err)
		}
	}
	r.refs[path]++
	return nil
}

func (r *Registry) release(path string) {
	n, ok := r.refs[path]
	if !ok {
		return
	}
	if n > 1 {
		r.refs[path] = n - 1
		return
	}
	delete(r.refs, path)
	_ = r.watcher.Remove(path) // the directory may already be gone
}

// Watch returns the entry for path, installing watches on the maildir and
// its new subdirectory when the maildir is not yet known. created is false when an
// existing entry was reused.
func (r *Registry) Watch(path, relativePath string) (entry *Entry, created bool, err error) {
	path = filepath.Clean(path)
	if e, ok := r.entries[path]; ok {
		return e, false, nil
	}
	if err := r.acquire(path); err != nil {
		return nil, false, err
	}
	newDir := maildir.NewPath(path)
	if err := r.acquire(newDir); err != nil {
		r.release(path)
		return nil, false, err
	}
	e := &Entry{Path: path, RelativePath: relativePath, Watch: newDir}
	r.entries[path] = e
	r.byWatch[newDir] = e
	return e, true, nil
}

// WatchContainer watches a non-maildir directory for new subdirectories.
// It is a no-op for a directory already watched.
func (r *Registry) WatchContainer(path string) error {
	path = filepath.Clean(path)
	if _, ok := r.containers[path]; ok {
		return nil
	}
	if err := r.acquire(path); err != nil {
		return err
	}
	r.containers[path] = struct{}{}
	return nil
}

// UnwatchContainer stops watching a container directory.
func (r *Registry) UnwatchContainer(path string) {
	path = filepath.Clean(path)
	if _, ok := r.containers[path]; !ok {
		return
	}
	delete(r.containers, path)
	r.release(path)
}

// UnwatchContainers stops watching every container at or below path.
func (r *Registry) UnwatchContainers(path string) {
	path = filepath.Clean(path)
	for p := range r.containers {
		if within(p, path) {
			r.UnwatchContainer(p)
		}
	}
}

// IsContainer reports whether path is a watched container.
func (r *Registry) IsContainer(path string) bool {
	_, ok := r.containers[filepath.Clean(path)]
	return ok
}

// Get returns the entry for a maildir path.
func (r *Registry) Get(path string) (*Entry, bool) {
	e, ok := r.entries[filepath.Clean(path)]
	return e, ok
}

// ByWatch returns the entry whose new subdirectory is dir.
func (r *Registry) ByWatch(dir string) (*Entry, bool) {
	e, ok := r.byWatch[filepath.Clean(dir)]
	return e, ok
}

// Remove drops the entry for path and its watch. Removing an unknown path
// is a no-op.
func (r *Registry) Remove(path string) (*Entry, bool) {
	path = filepath.Clean(path)
	e, ok := r.entries[path]
	if !ok {
		return nil, false
	}
	delete(r.entries, path)
	delete(r.byWatch, e.Watch)
	r.release(e.Watch)
	r.release(e.Path)
	return e, true
}

// RemoveTree drops every entry and container at or below path and returns
// the removed entries.
func (r *Registry) RemoveTree(path string) []*Entry {
	path = filepath.Clean(path)
	var removed []*Entry
	for p := range r.entries {
		if within(p, path) {
			if e, ok := r.Remove(p); ok {
				removed = append(removed, e)
			}
		}
	}
	r.UnwatchContainers(path)
	sortEntries(removed)
	return removed
}

// Reset drops everything and returns the removed entries.
func (r *Registry) Reset() []*Entry {
	removed := make([]*Entry, 0, len(r.entries))
	for p := range r.entries {
		if e, ok := r.Remove(p); ok {
			removed = append(removed, e)
		}
	}
	for p := range r.containers {
		r.UnwatchContainer(p)
	}
	sortEntries(removed)
	return removed
}

// Entries returns the entries sorted by path.
func (r *Registry) Entries() []*Entry {
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

// Len returns the number of watched maildirs.
func (r *Registry) Len() int {
	return len(r.entries)
}

func within(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, dir+string(filepath.Separator))
}

func sortEntries(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
}
