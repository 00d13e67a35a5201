// Package dbus shows notifications through the freedesktop notification
// service on the session bus.
package dbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/cristianoliveira/maildirwatch/internal/logging"
	"github.com/cristianoliveira/maildirwatch/internal/notify"
)

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	iface      = "org.freedesktop.Notifications"

	methodNotify          = iface + ".Notify"
	methodClose           = iface + ".CloseNotification"
	methodCapabilities    = iface + ".GetCapabilities"
	signalActionInvoked   = iface + ".ActionInvoked"
	signalNotificationEnd = iface + ".NotificationClosed"

	// AppName is sent as app_name with every notification.
	AppName = "maildirwatch"
)

// caller is the subset of dbus.BusObject used to call the service.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Presenter implements notify.Presenter over D-Bus.
type Presenter struct {
	conn    *dbus.Conn
	obj     caller
	logger  logging.Logger
	actions bool
	// Timeout is the expire_timeout in milliseconds; -1 lets the server decide.
	Timeout int32

	signals chan *dbus.Signal
	out     chan notify.Interaction
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// Connect opens the session bus and subscribes to the notification signals.
func Connect(ctx context.Context, logger logging.Logger) (*Presenter, error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(objectPath),
		dbus.WithMatchInterface(iface),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe to notification signals: %w", err)
	}
	p := newPresenter(conn.Object(busName, objectPath), logger)
	p.conn = conn
	conn.Signal(p.signals)

	caps, err := p.Capabilities(ctx)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.actions = hasCapability(caps, "actions")
	p.logger.Debug("notification server capabilities", "capabilities", caps)
	if !p.actions {
		p.logger.Info("notification server does not support actions; buttons disabled")
	}

	p.start()
	return p, nil
}

func newPresenter(obj caller, logger logging.Logger) *Presenter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Presenter{
		obj:     obj,
		logger:  logger,
		Timeout: -1,
		signals: make(chan *dbus.Signal, 16),
		out:     make(chan notify.Interaction, 16),
		done:    make(chan struct{}),
	}
}

// start pumps bus signals into the interaction channel until Close.
func (p *Presenter) start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(p.out)
		for {
			select {
			case <-p.done:
				return
			case sig, ok := <-p.signals:
				if !ok {
					return
				}
				in, ok := translate(sig)
				if !ok {
					continue
				}
				select {
				case p.out <- in:
				case <-p.done:
					return
				}
			}
		}
	}()
}

// Capabilities returns the server capabilities.
func (p *Presenter) Capabilities(ctx context.Context) ([]string, error) {
	var caps []string
	if err := p.obj.CallWithContext(ctx, methodCapabilities, 0).Store(&caps); err != nil {
		return nil, fmt.Errorf("get capabilities: %w", err)
	}
	return caps, nil
}

// Show implements notify.Presenter.
func (p *Presenter) Show(ctx context.Context, n notify.Notification) (uint32, error) {
	var id uint32
	call := p.obj.CallWithContext(ctx, methodNotify, 0,
		AppName,
		n.ReplacesID,
		n.Icon,
		n.Summary,
		n.Body,
		actionList(n, p.actions),
		map[string]dbus.Variant{"category": dbus.MakeVariant("email.arrived")},
		p.Timeout,
	)
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}
	return id, nil
}

// Dismiss implements notify.Presenter.
func (p *Presenter) Dismiss(ctx context.Context, id uint32) error {
	if call := p.obj.CallWithContext(ctx, methodClose, 0, id); call.Err != nil {
		return fmt.Errorf("close notification %d: %w", id, call.Err)
	}
	return nil
}

// Interactions implements notify.Presenter.
func (p *Presenter) Interactions() <-chan notify.Interaction {
	return p.out
}

// Close implements notify.Presenter.
func (p *Presenter) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		if p.conn != nil {
			p.conn.RemoveSignal(p.signals)
			err = p.conn.Close()
		}
		p.wg.Wait()
	})
	return err
}

// actionList flattens buttons into the key, label pairs of the Notify call.
// The body action goes first under the reserved "default" key.
func actionList(n notify.Notification, supported bool) []string {
	if !supported {
		return []string{}
	}
	list := make([]string, 0, 2*len(n.Actions)+2)
	if n.Default {
		list = append(list, notify.BodyAction, "Open")
	}
	for _, b := range n.Actions {
		list = append(list, b.Key, b.Label)
	}
	return list
}

// translate converts a bus signal into an Interaction.
func translate(sig *dbus.Signal) (notify.Interaction, bool) {
	if sig == nil || len(sig.Body) < 2 {
		return notify.Interaction{}, false
	}
	id, ok := sig.Body[0].(uint32)
	if !ok {
		return notify.Interaction{}, false
	}
	switch sig.Name {
	case signalActionInvoked:
		key, ok := sig.Body[1].(string)
		if !ok {
			return notify.Interaction{}, false
		}
		return notify.Interaction{ID: id, Action: key}, true
	case signalNotificationEnd:
		return notify.Interaction{ID: id, Closed: true}, true
	}
	return notify.Interaction{}, false
}

func hasCapability(caps []string, want string) bool {
	for _, c := range caps {
		if c == want {
			return true
		}
	}
	return false
}
