// Package notify builds notifications for debounced mail events, shows them
// through a Presenter and routes user interaction back to actions.
package notify

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/cristianoliveira/maildirwatch/internal/actions"
)

// BodyAction is the interaction key reported when the notification body is
// activated rather than one of its buttons.
const BodyAction = actions.DefaultName

// Icon is the freedesktop icon name used for every notification.
const Icon = "mail-unread"

// Button is an action button on a notification.
type Button struct {
	Key   string
	Label string
}

// Notification is the presenter-neutral payload.
type Notification struct {
	Summary string
	Body    string
	Icon    string
	// Actions are the buttons, in order.
	Actions []Button
	// Default reports whether activating the body does something.
	Default bool
	// ReplacesID, when not zero, asks the presenter to update that notification in place.
	ReplacesID uint32
}

// Interaction is user activity on a shown notification.
type Interaction struct {
	ID     uint32
	Action string
	Closed bool
}

// Presenter is the notification presentation service.
type Presenter interface {
	// Show displays n and returns the presenter's notification ID.
	Show(ctx context.Context, n Notification) (uint32, error)
	// Dismiss closes a shown notification.
	Dismiss(ctx context.Context, id uint32) error
	// Interactions delivers action invocations and closures. The channel
	// is closed when the presenter is closed.
	Interactions() <-chan Interaction
	// Close releases the presenter.
	Close() error
}

// Event is one debounced burst of new mail in a maildir.
type Event struct {
	ID           string
	MaildirPath  string
	RelativePath string
	MessageCount int
	// Unseen is the number of messages in new/, or -1 when unknown.
	Unseen int
	First  time.Time
	Last   time.Time
}

// Name is the short maildir name shown to the user.
func (e Event) Name() string {
	if e.RelativePath != "" && e.RelativePath != "." {
		return path.Base(e.RelativePath)
	}
	return filepath.Base(e.MaildirPath)
}

// Build renders e into a Notification with the table's buttons.
func Build(e Event, table *actions.Table) Notification {
	noun := "messages"
	if e.MessageCount == 1 {
		noun = "message"
	}
	n := Notification{
		Summary: fmt.Sprintf("%d new %s in %s", e.MessageCount, noun, e.Name()),
		Body:    e.RelativePath,
		Icon:    Icon,
	}
	if e.RelativePath == "" || e.RelativePath == "." {
		n.Body = e.MaildirPath
	}
	if e.Unseen >= 0 {
		n.Body += fmt.Sprintf("\n%d unseen", e.Unseen)
	}
	for _, d := range table.Buttons() {
		n.Actions = append(n.Actions, Button{Key: d.Name, Label: d.Name})
	}
	_, n.Default = table.Default()
	return n
}
