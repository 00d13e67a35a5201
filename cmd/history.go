/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cristianoliveira/maildirwatch/internal/config"
	"github.com/cristianoliveira/maildirwatch/internal/format"
	"github.com/cristianoliveira/maildirwatch/internal/journal"
)

type historyOptions struct {
	limit   int
	maildir string
}

// historyNow is the reference time for relative timestamps. Can be changed for testing.
var historyNow = time.Now

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	opts := &historyOptions{}
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent notifications from the journal",
		Long: `Show recent notifications from the journal.

The journal is written while watching when journal_enabled is set.

EXAMPLES:
    maildirwatch history --limit 50
    maildirwatch history --maildir ~/Maildir/INBOX`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}
	historyCmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "maximum number of rows")
	historyCmd.Flags().StringVar(&opts.maildir, "maildir", "", "only show this maildir")
	return historyCmd
}

func runHistory(cmd *cobra.Command, opts *historyOptions) error {
	out := cmd.OutOrStdout()
	path := filepath.Join(config.Get("state_dir", ""), journal.FileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "No notifications recorded. Set journal_enabled = true to keep a history.")
		return nil
	}

	j, err := journal.Open(path, config.GetInt("journal_max_rows", journal.DefaultMaxRows))
	if err != nil {
		return err
	}
	defer j.Close()

	maildir := opts.maildir
	if maildir != "" {
		if maildir, err = filepath.Abs(expandHome(maildir)); err != nil {
			return err
		}
	}
	entries, err := j.List(commandContext(cmd), opts.limit, maildir)
	if err != nil {
		return err
	}
	format.Journal(out, entries, historyNow())
	return nil
}

func expandHome(path string) string {
	if path == "~" || len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
