package notify

import (
	"context"
	"strings"
	"sync"

	"github.com/cristianoliveira/maildirwatch/internal/logging"
)

// LogPresenter writes notifications to a logger. It never reports interactions.
type LogPresenter struct {
	logger logging.Logger

	mu     sync.Mutex
	nextID uint32
	ch     chan Interaction
	closed bool
}

// NewLogPresenter creates a LogPresenter.
func NewLogPresenter(logger logging.Logger) *LogPresenter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &LogPresenter{logger: logger, ch: make(chan Interaction)}
}

// Show implements Presenter.
func (p *LogPresenter) Show(ctx context.Context, n Notification) (uint32, error) {
	p.mu.Lock()
	id := n.ReplacesID
	if id == 0 {
		p.nextID++
		id = p.nextID
	}
	p.mu.Unlock()

	labels := make([]string, 0, len(n.Actions))
	for _, b := range n.Actions {
		labels = append(labels, b.Label)
	}
	p.logger.Info(n.Summary, "id", id, "body", strings.ReplaceAll(n.Body, "\n", "; "), "actions", strings.Join(labels, ","))
	return id, nil
}

// Dismiss implements Presenter.
func (p *LogPresenter) Dismiss(ctx context.Context, id uint32) error {
	p.logger.Debug("notification dismissed", "id", id)
	return nil
}

// Interactions implements Presenter.
func (p *LogPresenter) Interactions() <-chan Interaction {
	return p.ch
}

// Close implements Presenter.
func (p *LogPresenter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	return nil
}
