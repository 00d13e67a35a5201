// Package inhibit runs the optional inhibition check before a notification is shown.
package inhibit

import (
	"context"
	"fmt"
	"time"

	mwerrors "github.com/cristianoliveira/maildirwatch/internal/errors"
	"github.com/cristianoliveira/maildirwatch/internal/launcher"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 10 * time.Second

// Verdict is the outcome of one check.
type Verdict struct {
	// EventID identifies the notification event the check was run for.
	EventID string
	// Inhibited is true only when the check command exited with status 0.
	Inhibited bool
	// Code is the exit status, or -1 when none was observed.
	Code int
	// Err is set when the check could not be run to completion. The verdict
	// is then "not inhibited".
	Err error
}

// Gate decides whether notifications are shown.
type Gate struct {
	argv     []string
	timeout  time.Duration
	launcher launcher.Launcher
	results  chan Verdict
	done     chan struct{}
}

// New creates a Gate running argv through l. An empty argv disables the
// check. A non-positive timeout uses DefaultTimeout.
func New(argv []string, timeout time.Duration, l launcher.Launcher) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{
		argv:     append([]string(nil), argv...),
		timeout:  timeout,
		launcher: l,
		results:  make(chan Verdict, 8),
		done:     make(chan struct{}),
	}
}

// Enabled reports whether a check command is configured.
func (g *Gate) Enabled() bool {
	return g != nil && len(g.argv) > 0
}

// Command returns the configured argv.
func (g *Gate) Command() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.argv...)
}

// Results delivers verdicts of checks that Check could not decide at once.
func (g *Gate) Results() <-chan Verdict {
	if g == nil {
		return nil
	}
	return g.results
}

// Check starts the check for eventID. When the verdict is known without
// waiting (no command configured, or the command failed to start) it is
// returned with decided true. Otherwise the verdict arrives later on Results.
func (g *Gate) Check(ctx context.Context, eventID string) (v Verdict, decided bool) {
	if !g.Enabled() {
		return Verdict{EventID: eventID, Code: -1}, true
	}
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	proc, err := g.launcher.Start(cctx, g.argv)
	if err != nil {
		cancel()
		return Verdict{
			EventID: eventID,
			Code:    -1,
			Err:     fmt.Errorf("%w: %v", mwerrors.ErrInhibitionCheck, err),
		}, true
	}
	go func() {
		defer cancel()
		var v Verdict
		select {
		case res := <-proc.Done():
			v = decide(eventID, res)
		case <-g.done:
			return
		}
		select {
		case g.results <- v:
		case <-g.done:
		}
	}()
	return Verdict{}, false
}

// Stop releases goroutines waiting to deliver verdicts.
func (g *Gate) Stop() {
	if g == nil {
		return
	}
	select {
	case <-g.done:
	default:
		close(g.done)
	}
}

func decide(eventID string, res launcher.Result) Verdict {
	v := Verdict{EventID: eventID, Code: res.Code}
	if res.Err != nil {
		v.Err = fmt.Errorf("%w: %v", mwerrors.ErrInhibitionCheck, res.Err)
		return v
	}
	v.Inhibited = res.Code == 0
	return v
}
