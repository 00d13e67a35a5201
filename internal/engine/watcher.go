package engine

import (
	"github.com/fsnotify/fsnotify"
)

// Watcher is the filesystem watch service.
type Watcher interface {
	Add(path string) error
	Remove(path string) error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
	Close() error
}

// fsWatcher adapts *fsnotify.Watcher to Watcher.
type fsWatcher struct {
	w *fsnotify.Watcher
}

// NewFSWatcher creates a Watcher backed by fsnotify.
func NewFSWatcher() (Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &fsWatcher{w: w}, nil
}

func (f *fsWatcher) Add(path string) error         { return f.w.Add(path) }
func (f *fsWatcher) Remove(path string) error      { return f.w.Remove(path) }
func (f *fsWatcher) Events() <-chan fsnotify.Event { return f.w.Events }
func (f *fsWatcher) Errors() <-chan error          { return f.w.Errors }
func (f *fsWatcher) Close() error                  { return f.w.Close() }
