/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cristianoliveira/maildirwatch/internal/config"
	"github.com/cristianoliveira/maildirwatch/internal/debounce"
	"github.com/cristianoliveira/maildirwatch/internal/engine"
	"github.com/cristianoliveira/maildirwatch/internal/inhibit"
	"github.com/cristianoliveira/maildirwatch/internal/journal"
	"github.com/cristianoliveira/maildirwatch/internal/launcher"
	"github.com/cristianoliveira/maildirwatch/internal/logging"
	"github.com/cristianoliveira/maildirwatch/internal/notify"
	dbusnotify "github.com/cristianoliveira/maildirwatch/internal/notify/dbus"
	tmuxnotify "github.com/cristianoliveira/maildirwatch/internal/notify/tmux"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the maildir tree and show notifications (default)",
		Long: `Watch the maildir tree and show notifications.

Runs until interrupted. This is also what maildirwatch does without a command.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

// presenterFactory builds the notification backend. Can be changed for testing.
var presenterFactory = newPresenter

// newPresenter connects the named backend. A desktop or tmux backend that is
// unavailable falls back to the log backend so mail is still reported.
func newPresenter(ctx context.Context, name string, logger logging.Logger) notify.Presenter {
	switch name {
	case "dbus":
		p, err := dbusnotify.Connect(ctx, logger)
		if err == nil {
			return p
		}
		logger.Warn("desktop notifications unavailable, logging instead", "err", err)
	case "tmux":
		client := tmuxnotify.NewDefaultClient(
			tmuxnotify.WithSocketPath(config.Get("tmux_socket", "")),
			tmuxnotify.WithLogger(logger),
		)
		p, err := tmuxnotify.NewPresenter(client)
		if err == nil {
			return p
		}
		logger.Warn("tmux notifications unavailable, logging instead", "err", err)
	}
	return notify.NewLogPresenter(logger)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := logging.GetGlobal()

	root, err := config.Root()
	if err != nil {
		return err
	}

	l := launcher.New()
	presenter := presenterFactory(ctx, config.Get("notifier", "dbus"), logger)
	dispatcher := notify.NewDispatcher(presenter, config.Actions(), l, logger.With("component", "notify"))

	var recorder journal.Recorder
	if config.GetBool("journal_enabled", false) {
		path := filepath.Join(config.Get("state_dir", ""), journal.FileName)
		j, err := journal.Open(path, config.GetInt("journal_max_rows", journal.DefaultMaxRows))
		if err != nil {
			logger.Warn("journal disabled", "path", path, "err", err)
		} else {
			defer j.Close()
			recorder = j
		}
	}

	var gate *inhibit.Gate
	if argv := config.InhibitCommand(); len(argv) > 0 {
		gate = inhibit.New(argv, config.InhibitTimeout(), l)
		logger.Debug("inhibition check enabled", "command", strings.Join(gate.Command(), " "), "timeout", config.InhibitTimeout())
	}

	eng, err := engine.New(engine.Options{
		Root:       root,
		Patterns:   config.Patterns(),
		Nested:     config.GetBool("nested_maildirs", false),
		Quiet:      config.GetDuration("debounce", debounce.DefaultQuiet),
		Gate:       gate,
		Dispatcher: dispatcher,
		Journal:    recorder,
		Logger:     logger.With("component", "engine"),
	})
	if err != nil {
		_ = presenter.Close()
		return err
	}
	if err := eng.Start(); err != nil {
		_ = presenter.Close()
		return fmt.Errorf("cannot watch %s: %w", root, err)
	}
	err = eng.Run(ctx)
	// Pending inhibition checks are killed with ctx; reap them before exiting.
	stop()
	l.Wait()
	return err
}
