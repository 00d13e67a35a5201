// Package engine runs the watch loop: it keeps the maildir registry in step
// with the tree, coalesces deliveries per maildir and hands finished bursts
// to the inhibition gate and the notification dispatcher.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/cristianoliveira/maildirwatch/internal/debounce"
	"github.com/cristianoliveira/maildirwatch/internal/inhibit"
	"github.com/cristianoliveira/maildirwatch/internal/journal"
	"github.com/cristianoliveira/maildirwatch/internal/logging"
	"github.com/cristianoliveira/maildirwatch/internal/maildir"
	"github.com/cristianoliveira/maildirwatch/internal/notify"
	"github.com/cristianoliveira/maildirwatch/internal/pattern"
	"github.com/cristianoliveira/maildirwatch/internal/registry"
	"github.com/cristianoliveira/maildirwatch/internal/scanner"
)

// Options configures an Engine.
type Options struct {
	// Root is the directory tree to watch.
	Root     string
	Patterns pattern.Set
	// Nested descends into maildirs looking for Maildir++ subfolders.
	Nested bool
	// Quiet overrides debounce.DefaultQuiet.
	Quiet time.Duration
	// Gate may be nil, in which case nothing is inhibited.
	Gate       *inhibit.Gate
	Dispatcher *notify.Dispatcher
	// Journal may be nil.
	Journal journal.Recorder
	// Watcher defaults to fsnotify.
	Watcher Watcher
	Logger  logging.Logger
}

// Engine is the single-threaded event loop. Only Run's goroutine touches the
// registry, the pending batches and the dispatcher.
type Engine struct {
	root       string
	nested     bool
	scanner    *scanner.Scanner
	registry   *registry.Registry
	debouncer  *debounce.Debouncer
	gate       *inhibit.Gate
	dispatcher *notify.Dispatcher
	journal    journal.Recorder
	watcher    Watcher
	logger     logging.Logger

	// awaiting holds events whose inhibition check is still running.
	awaiting map[string]notify.Event
	started  bool
	degraded bool
	// parentWatch is the root's parent, watched while the root is missing.
	parentWatch string
}

// New creates an Engine. It does not touch the filesystem until Start.
func New(opts Options) (*Engine, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("engine: dispatcher is required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("engine: resolve root: %w", err)
	}
	w := opts.Watcher
	if w == nil {
		if w, err = NewFSWatcher(); err != nil {
			return nil, fmt.Errorf("engine: create watcher: %w", err)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{
		root:       root,
		nested:     opts.Nested,
		scanner:    scanner.New(root, scanner.Options{Patterns: opts.Patterns, Nested: opts.Nested}),
		registry:   registry.New(w),
		debouncer:  debounce.New(opts.Quiet),
		gate:       opts.Gate,
		dispatcher: opts.Dispatcher,
		journal:    opts.Journal,
		watcher:    w,
		logger:     logger,
		awaiting:   make(map[string]notify.Event),
	}, nil
}

// Root returns the absolute scan root.
func (e *Engine) Root() string {
	return e.root
}

// Registry exposes the registry for inspection. It must not be used while
// Run is active.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Start performs the initial scan and installs watches. A missing or
// unreadable root is fatal (ErrScan).
func (e *Engine) Start() error {
	res, err := e.scanner.Scan()
	if err != nil {
		return err
	}
	e.register(res)
	e.started = true
	e.logger.Info("watching maildirs", "root", e.root, "maildirs", e.registry.Len(), "quiet", e.debouncer.Quiet())
	return nil
}

// Run processes events until ctx is done, then releases the watcher, timers
// and presenter. It calls Start first if needed.
func (e *Engine) Run(ctx context.Context) error {
	defer e.shutdown()
	if !e.started {
		if err := e.Start(); err != nil {
			return err
		}
	}

	interactions := e.dispatcher.Presenter().Interactions()
	events := e.watcher.Events()
	watchErrors := e.watcher.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return errors.New("engine: watcher closed")
			}
			e.handleFS(ctx, ev)
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			e.logger.Warn("watch error", "err", err)
		case exp := <-e.debouncer.Expired():
			e.flush(ctx, exp)
		case v := <-e.gate.Results():
			e.verdict(ctx, v)
		case in, ok := <-interactions:
			if !ok {
				interactions = nil
				continue
			}
			// Launch failures are logged by the dispatcher.
			_, _, _ = e.dispatcher.Handle(in)
		}
	}
}

func (e *Engine) shutdown() {
	if n := e.debouncer.CancelAll(); n > 0 {
		e.logger.Debug("dropped pending batches", "count", n)
	}
	e.debouncer.Stop()
	e.gate.Stop()
	if err := e.watcher.Close(); err != nil {
		e.logger.Debug("close watcher", "err", err)
	}
	e.logger.Debug("closing presenter", "live", e.dispatcher.Live())
	if err := e.dispatcher.Presenter().Close(); err != nil {
		e.logger.Debug("close presenter", "err", err)
	}
}

// register installs watches for a scan result and reports whether anything
// new was watched.
func (e *Engine) register(res scanner.Result) bool {
	changed := false
	for dir, err := range res.Skipped {
		e.logger.Warn("skipping unreadable directory", "path", dir, "err", err)
	}
	for _, c := range res.Containers {
		if e.registry.IsContainer(c) {
			continue
		}
		if err := e.registry.WatchContainer(c); err != nil {
			e.logger.Warn("cannot watch directory", "path", c, "err", err)
			continue
		}
		changed = true
	}
	for _, c := range res.Maildirs {
		if !c.Watch {
			e.logger.Debug("ignoring maildir", "maildir", c.RelativePath)
			continue
		}
		_, created, err := e.registry.Watch(c.Path, c.RelativePath)
		if err != nil {
			e.logger.Warn("skipping maildir", "maildir", c.RelativePath, "err", err)
			continue
		}
		if !e.nested {
			// A directory that just became a maildir is no longer descended.
			e.registry.UnwatchContainer(c.Path)
		}
		// new, cur and tmp may have been watched as containers while the
		// maildir was being built.
		for _, sub := range []string{maildir.NewDir, maildir.CurDir, maildir.TmpDir} {
			e.registry.UnwatchContainers(filepath.Join(c.Path, sub))
		}
		if created {
			changed = true
			e.logger.Debug("watching maildir", "maildir", c.RelativePath)
		}
	}
	return changed
}

func (e *Engine) handleFS(ctx context.Context, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	dir := filepath.Dir(path)

	switch {
	case ev.Has(fsnotify.Create):
		if entry, ok := e.registry.ByWatch(dir); ok {
			b := e.debouncer.Bump(entry.Path)
			e.logger.Debug("new message", "maildir", entry.RelativePath, "file", filepath.Base(path), "pending", b.Count)
			return
		}
		if e.degraded && path == e.root {
			e.recover()
			return
		}
		if e.registry.IsContainer(dir) {
			e.rescan(dir, path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		if entry, ok := e.registry.ByWatch(path); ok {
			// new/ itself went away.
			e.reclassify(ctx, entry.Path)
			return
		}
		if _, ok := e.registry.ByWatch(dir); ok {
			// A message left new/.
			return
		}
		if maildir.IsSubdir(filepath.Base(path)) {
			if _, ok := e.registry.Get(dir); ok {
				e.reclassify(ctx, dir)
				return
			}
		}
		e.teardown(ctx, path)
	}
}

// rescan registers whatever appeared at path, a child of container dir.
func (e *Engine) rescan(dir, path string) {
	start := path
	if maildir.IsSubdir(filepath.Base(path)) && maildir.IsMaildir(dir) {
		// The container gained its last new/cur/tmp and became a maildir.
		start = dir
	}
	e.rescanFrom(start)
}

// rescanFrom registers the subtree at start. Directories created between a
// walk and its watches produce no event, so it walks again until a pass
// adds nothing.
func (e *Engine) rescanFrom(start string) {
	for pass := 0; pass < maxRescanPasses; pass++ {
		res, err := e.scanner.ScanFrom(start)
		if err != nil {
			e.logger.Debug("incremental scan failed", "path", start, "err", err)
			return
		}
		if !e.register(res) {
			return
		}
	}
}

const maxRescanPasses = 3

// teardown removes every registry entry at or under path, drops their
// pending batches and dismisses their notifications.
func (e *Engine) teardown(ctx context.Context, path string) {
	for _, entry := range e.registry.RemoveTree(path) {
		e.drop(ctx, entry)
	}
	switch {
	case !exists(e.root):
		e.degrade(ctx)
	case path == e.root:
		// The root was replaced under the same name.
		e.rescanFrom(e.root)
	}
}

// reclassify handles a maildir that lost new, cur or tmp. Its entry is
// dropped and the directory is registered again as whatever it is now,
// usually a container that turns back into a maildir once the missing
// subdirectory reappears.
func (e *Engine) reclassify(ctx context.Context, path string) {
	if !exists(path) {
		e.teardown(ctx, path)
		return
	}
	// Keep the directory watched while the entry goes away.
	if err := e.registry.WatchContainer(path); err != nil {
		e.logger.Warn("cannot watch directory", "path", path, "err", err)
	}
	if entry, ok := e.registry.Remove(path); ok {
		e.drop(ctx, entry)
	}
	e.rescanFrom(path)
}

func (e *Engine) drop(ctx context.Context, entry *registry.Entry) {
	if b, ok := e.debouncer.Pending(entry.Path); ok {
		e.debouncer.Cancel(entry.Path)
		e.logger.Debug("dropped pending batch", "maildir", entry.RelativePath, "count", b.Count)
	}
	e.dispatcher.Forget(ctx, entry.Path)
	e.logger.Info("maildir removed", "maildir", entry.RelativePath)
}

// degrade empties the registry after the root disappeared and waits for it
// to be created again under its parent.
func (e *Engine) degrade(ctx context.Context) {
	if e.degraded {
		return
	}
	e.degraded = true
	for _, entry := range e.registry.Reset() {
		e.debouncer.Cancel(entry.Path)
		e.dispatcher.Forget(ctx, entry.Path)
	}
	parent := filepath.Dir(e.root)
	if err := e.watcher.Add(parent); err != nil {
		e.logger.Warn("maildir root removed; restart required once it is back", "root", e.root, "err", err)
		return
	}
	e.parentWatch = parent
	e.logger.Warn("maildir root removed; waiting for it to reappear", "root", e.root)
}

func (e *Engine) recover() {
	res, err := e.scanner.Scan()
	if err != nil {
		e.logger.Debug("root not ready", "root", e.root, "err", err)
		return
	}
	e.degraded = false
	if e.parentWatch != "" {
		_ = e.watcher.Remove(e.parentWatch)
		e.parentWatch = ""
	}
	e.register(res)
	e.logger.Info("maildir root is back", "root", e.root, "maildirs", e.registry.Len())
}

// flush turns an expired batch into an event and runs the inhibition check.
func (e *Engine) flush(ctx context.Context, exp debounce.Expiry) {
	b, ok := e.debouncer.Flush(exp)
	if !ok {
		return
	}
	entry, ok := e.registry.Get(b.Key)
	if !ok {
		return
	}
	ev := notify.Event{
		ID:           uuid.NewString(),
		MaildirPath:  entry.Path,
		RelativePath: entry.RelativePath,
		MessageCount: b.Count,
		Unseen:       maildir.UnseenCount(entry.Path),
		First:        b.First,
		Last:         b.Last,
	}
	v, decided := e.gate.Check(ctx, ev.ID)
	if decided {
		e.conclude(ctx, ev, v)
		return
	}
	e.awaiting[ev.ID] = ev
}

func (e *Engine) verdict(ctx context.Context, v inhibit.Verdict) {
	ev, ok := e.awaiting[v.EventID]
	if !ok {
		return
	}
	delete(e.awaiting, v.EventID)
	e.conclude(ctx, ev, v)
}

// conclude shows or suppresses ev and writes its single log record.
func (e *Engine) conclude(ctx context.Context, ev notify.Event, v inhibit.Verdict) {
	if _, ok := e.registry.Get(ev.MaildirPath); !ok {
		e.logger.Debug("maildir removed before notification", "maildir", ev.RelativePath)
		return
	}
	fields := []any{"maildir", ev.MaildirPath, "count", ev.MessageCount, "event", ev.ID}
	if v.Err != nil {
		fields = append(fields, "inhibit_err", v.Err)
	}

	outcome := journal.OutcomeShown
	switch {
	case v.Inhibited:
		outcome = journal.OutcomeInhibited
	default:
		if _, err := e.dispatcher.Dispatch(ctx, ev); err != nil {
			outcome = journal.OutcomeFailed
			fields = append(fields, "err", err)
		}
	}
	fields = append(fields, "outcome", string(outcome))

	switch {
	case outcome == journal.OutcomeFailed:
		e.logger.Error("new mail", fields...)
	case v.Err != nil:
		e.logger.Warn("new mail", fields...)
	default:
		e.logger.Info("new mail", fields...)
	}

	if e.journal == nil {
		return
	}
	err := e.journal.Record(ctx, journal.Entry{
		ID:           ev.ID,
		Maildir:      ev.MaildirPath,
		RelativePath: ev.RelativePath,
		MessageCount: ev.MessageCount,
		Unseen:       ev.Unseen,
		Outcome:      outcome,
		CreatedAt:    ev.Last,
	})
	if err != nil {
		e.logger.Warn("journal write failed", "err", err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
