package tmux

import (
	"context"
	"strings"
	"sync"

	"github.com/cristianoliveira/maildirwatch/internal/notify"
)

// Presenter shows notifications with display-message and mirrors the latest
// summary into StatusOption. tmux has no clickable notifications, so it
// never reports interactions.
type Presenter struct {
	client      Client
	displayTime int

	mu     sync.Mutex
	nextID uint32
	shown  map[uint32]string
	ch     chan notify.Interaction
	closed bool
}

// NewPresenter creates a Presenter. It fails with ErrTmuxNotRunning when no
// tmux server is reachable.
func NewPresenter(client Client) (*Presenter, error) {
	running, err := client.HasSession()
	if err != nil {
		return nil, err
	}
	if !running {
		return nil, ErrTmuxNotRunning
	}
	return &Presenter{
		client:      client,
		displayTime: DefaultDisplayTime,
		shown:       make(map[uint32]string),
		ch:          make(chan notify.Interaction),
	}, nil
}

// Show implements notify.Presenter.
func (p *Presenter) Show(ctx context.Context, n notify.Notification) (uint32, error) {
	msg := n.Summary
	if first, _, _ := strings.Cut(n.Body, "\n"); first != "" {
		msg += " (" + first + ")"
	}
	if err := p.client.DisplayMessage(msg, p.displayTime); err != nil {
		return 0, err
	}

	p.mu.Lock()
	id := n.ReplacesID
	if id == 0 {
		p.nextID++
		id = p.nextID
	}
	p.shown[id] = n.Summary
	p.mu.Unlock()

	// The status option only feeds status-right; a failure there is not a failed show.
	_ = p.client.SetStatusOption(StatusOption, n.Summary)
	return id, nil
}

// Dismiss implements notify.Presenter. The status option is cleared when no
// shown notification remains.
func (p *Presenter) Dismiss(ctx context.Context, id uint32) error {
	p.mu.Lock()
	delete(p.shown, id)
	empty := len(p.shown) == 0
	p.mu.Unlock()
	if empty {
		return p.client.SetStatusOption(StatusOption, "")
	}
	return nil
}

// Interactions implements notify.Presenter.
func (p *Presenter) Interactions() <-chan notify.Interaction {
	return p.ch
}

// Close implements notify.Presenter.
func (p *Presenter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	return nil
}
