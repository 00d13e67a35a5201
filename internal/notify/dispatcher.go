package notify

import (
	"context"
	"fmt"

	"github.com/cristianoliveira/maildirwatch/internal/actions"
	mwerrors "github.com/cristianoliveira/maildirwatch/internal/errors"
	"github.com/cristianoliveira/maildirwatch/internal/launcher"
	"github.com/cristianoliveira/maildirwatch/internal/logging"
)

// Handle ties a shown notification to the event and actions it was shown with.
type Handle struct {
	ID      uint32
	Event   Event
	Actions []actions.Definition
}

// Dispatcher shows events and resolves interactions to action launches.
// It is not safe for concurrent use; the engine loop owns it.
type Dispatcher struct {
	presenter Presenter
	table     *actions.Table
	launcher  launcher.Launcher
	logger    logging.Logger

	live      map[uint32]*Handle
	byMaildir map[string]uint32
}

// NewDispatcher creates a Dispatcher. A nil logger discards.
func NewDispatcher(p Presenter, table *actions.Table, l launcher.Launcher, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Dispatcher{
		presenter: p,
		table:     table,
		launcher:  l,
		logger:    logger,
		live:      make(map[uint32]*Handle),
		byMaildir: make(map[string]uint32),
	}
}

// Presenter returns the presentation backend.
func (d *Dispatcher) Presenter() Presenter {
	return d.presenter
}

// Dispatch shows e. A still-live notification for the same maildir is
// replaced.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) (uint32, error) {
	n := Build(e, d.table)
	prev, hasPrev := d.byMaildir[e.MaildirPath]
	if hasPrev {
		n.ReplacesID = prev
	}
	id, err := d.presenter.Show(ctx, n)
	if err != nil {
		return 0, fmt.Errorf("show notification for %s: %w", e.MaildirPath, err)
	}
	if hasPrev {
		delete(d.live, prev)
	}
	d.live[id] = &Handle{ID: id, Event: e, Actions: d.table.Buttons()}
	d.byMaildir[e.MaildirPath] = id
	d.logger.Debug("notification shown", "id", id, "event", e.ID, "maildir", e.MaildirPath)
	return id, nil
}

// Handle resolves an interaction. It returns the launched action, if any.
// Unknown IDs and unknown action keys are ignored. Launch failures are
// logged and returned wrapped in ErrActionLaunch; they are never retried.
func (d *Dispatcher) Handle(in Interaction) (actions.Definition, bool, error) {
	h, ok := d.lookup(in.ID)
	if !ok {
		return actions.Definition{}, false, nil
	}
	if in.Closed {
		d.drop(h)
		d.logger.Debug("notification closed", "id", in.ID, "maildir", h.Event.MaildirPath)
		return actions.Definition{}, false, nil
	}

	def, found := d.resolve(h, in.Action)
	if !found {
		d.logger.Debug("ignoring unknown action", "id", in.ID, "action", in.Action)
		return actions.Definition{}, false, nil
	}
	d.drop(h)

	d.logger.Info("action invoked", "action", in.Action, "command", def.String(), "event", h.Event.ID)
	pid, err := d.launcher.Detach(def.Argv())
	if err != nil {
		err = fmt.Errorf("action %q: %v: %w", def.Name, err, mwerrors.ErrActionLaunch)
		d.logger.Error("action launch failed", "action", def.Name, "err", err)
		return def, true, err
	}
	d.logger.Debug("action started", "action", def.Name, "pid", pid)
	return def, true, nil
}

func (d *Dispatcher) resolve(h *Handle, key string) (actions.Definition, bool) {
	if key == BodyAction {
		return d.table.Default()
	}
	for _, a := range h.Actions {
		if a.Name == key {
			return a, true
		}
	}
	return actions.Definition{}, false
}

// Forget drops the notification for a removed maildir and dismisses it on a
// best-effort basis.
func (d *Dispatcher) Forget(ctx context.Context, maildir string) {
	id, ok := d.byMaildir[maildir]
	if !ok {
		return
	}
	if h, ok := d.lookup(id); ok {
		d.drop(h)
	}
	if err := d.presenter.Dismiss(ctx, id); err != nil {
		d.logger.Debug("dismiss failed", "id", id, "err", err)
	}
}

func (d *Dispatcher) drop(h *Handle) {
	if h == nil {
		return
	}
	delete(d.live, h.ID)
	if d.byMaildir[h.Event.MaildirPath] == h.ID {
		delete(d.byMaildir, h.Event.MaildirPath)
	}
}

func (d *Dispatcher) lookup(id uint32) (*Handle, bool) {
	h, ok := d.live[id]
	return h, ok
}

// Live returns the number of live notifications.
func (d *Dispatcher) Live() int {
	return len(d.live)
}
