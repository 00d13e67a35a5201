package engine

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gomaildir "github.com/emersion/go-maildir"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"

	"github.com/cristianoliveira/maildirwatch/internal/actions"
	"github.com/cristianoliveira/maildirwatch/internal/journal"
	"github.com/cristianoliveira/maildirwatch/internal/launcher"
	"github.com/cristianoliveira/maildirwatch/internal/maildir"
	"github.com/cristianoliveira/maildirwatch/internal/notify"
)

// fakeWatcher records watched paths and lets tests inject events.
type fakeWatcher struct {
	mu      sync.Mutex
	watched map[string]bool
	events  chan fsnotify.Event
	errors  chan error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		watched: make(map[string]bool),
		events:  make(chan fsnotify.Event),
		errors:  make(chan error),
	}
}

func (f *fakeWatcher) Add(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watched[filepath.Clean(path)] = true
	return nil
}

func (f *fakeWatcher) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.watched, filepath.Clean(path))
	return nil
}

func (f *fakeWatcher) Events() <-chan fsnotify.Event { return f.events }
func (f *fakeWatcher) Errors() <-chan error          { return f.errors }
func (f *fakeWatcher) Close() error                  { return nil }

func (f *fakeWatcher) isWatched(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watched[filepath.Clean(path)]
}

func (f *fakeWatcher) send(name string, op fsnotify.Op) {
	f.events <- fsnotify.Event{Name: name, Op: op}
}

// settle makes sure every event sent before it has been handled: the loop
// only takes the next event after finishing the previous one.
func (f *fakeWatcher) settle() {
	f.send("/nonexistent/settle", fsnotify.Chmod)
	f.send("/nonexistent/settle", fsnotify.Chmod)
}

// capturePresenter forwards shown notifications to a channel.
type capturePresenter struct {
	mu     sync.Mutex
	next   uint32
	shown  chan notify.Notification
	ch     chan notify.Interaction
	closed bool
}

func newCapturePresenter() *capturePresenter {
	return &capturePresenter{
		shown: make(chan notify.Notification, 16),
		ch:    make(chan notify.Interaction),
	}
}

func (p *capturePresenter) Show(ctx context.Context, n notify.Notification) (uint32, error) {
	p.mu.Lock()
	p.next++
	id := p.next
	p.mu.Unlock()
	p.shown <- n
	return id, nil
}

func (p *capturePresenter) Dismiss(ctx context.Context, id uint32) error { return nil }
func (p *capturePresenter) Interactions() <-chan notify.Interaction    { return p.ch }

func (p *capturePresenter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	return nil
}

// captureJournal forwards recorded entries to a channel.
type captureJournal struct {
	entries chan journal.Entry
}

func newCaptureJournal() *captureJournal {
	return &captureJournal{entries: make(chan journal.Entry, 16)}
}

func (j *captureJournal) Record(ctx context.Context, e journal.Entry) error {
	j.entries <- e
	return nil
}

type harness struct {
	engine    *Engine
	presenter *capturePresenter
	journal   *captureJournal
	cancel    context.CancelFunc
	done      chan error
}

func newTestDispatcher(t *testing.T, p notify.Presenter) *notify.Dispatcher {
	t.Helper()
	table, err := actions.NewTable(nil, "")
	require.NoError(t, err)
	return notify.NewDispatcher(p, table, launcher.New(), nil)
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{presenter: newCapturePresenter(), journal: newCaptureJournal()}
	opts.Dispatcher = newTestDispatcher(t, h.presenter)
	opts.Journal = h.journal
	if opts.Quiet == 0 {
		opts.Quiet = 100 * time.Millisecond
	}
	var err error
	h.engine, err = New(opts)
	require.NoError(t, err)
	require.NoError(t, h.engine.Start())
	return h
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() { h.done <- h.engine.Run(ctx) }()
	t.Cleanup(h.stop)
}

func (h *harness) stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
	h.cancel = nil
}

func (h *harness) expectShown(t *testing.T, within time.Duration) notify.Notification {
	t.Helper()
	select {
	case n := <-h.presenter.shown:
		return n
	case <-time.After(within):
		t.Fatal("no notification shown")
		return notify.Notification{}
	}
}

func (h *harness) expectNothing(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case n := <-h.presenter.shown:
		t.Fatalf("unexpected notification %q", n.Summary)
	case <-time.After(within):
	}
}

func (h *harness) expectEntry(t *testing.T, within time.Duration) journal.Entry {
	t.Helper()
	select {
	case e := <-h.journal.entries:
		return e
	case <-time.After(within):
		t.Fatal("no journal entry")
		return journal.Entry{}
	}
}

func makeMaildirs(t *testing.T, root string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		require.NoError(t, maildir.Init(filepath.Join(root, filepath.FromSlash(rel))))
	}
}

func deliver(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		d, err := gomaildir.NewDelivery(dir)
		require.NoError(t, err)
		_, err = io.Copy(d, strings.NewReader(fmt.Sprintf("Subject: %d\r\n\r\nbody\r\n", i)))
		require.NoError(t, err)
		require.NoError(t, d.Close())
	}
}
