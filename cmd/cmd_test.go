package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gomaildir "github.com/emersion/go-maildir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mwerrors "github.com/cristianoliveira/maildirwatch/internal/errors"
	"github.com/cristianoliveira/maildirwatch/internal/journal"
	"github.com/cristianoliveira/maildirwatch/internal/logging"
	"github.com/cristianoliveira/maildirwatch/internal/maildir"
	"github.com/cristianoliveira/maildirwatch/internal/version"
)

// syncBuffer is a bytes.Buffer safe for a concurrent writer and reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testEnv struct {
	root     string
	stateDir string
	config   string
}

func newTestEnv(t *testing.T, extra string) testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, ".local", "state"))
	t.Setenv("MAILDIRWATCH_CONFIG_PATH", "")

	env := testEnv{
		root:     filepath.Join(home, "Maildir"),
		stateDir: filepath.Join(home, "state"),
		config:   filepath.Join(home, "config.toml"),
	}
	body := fmt.Sprintf("maildir = %q\nstate_dir = %q\n%s", env.root, env.stateDir, extra)
	require.NoError(t, os.WriteFile(env.config, []byte(body), 0o644))
	t.Cleanup(func() { logging.SetGlobal(logging.Discard()) })
	return env
}

func (e testEnv) maildirs(t *testing.T, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		require.NoError(t, maildir.Init(filepath.Join(e.root, filepath.FromSlash(rel))))
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	orig := version.Version
	defer func() { version.Version = orig }()
	version.Version = "1.2.3"

	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "maildirwatch version 1.2.3\n", out)
}

func TestHelpListsCommands(t *testing.T) {
	out, _, err := execute(t, "help")
	require.NoError(t, err)
	for _, section := range []string{"USAGE:", "COMMANDS:", "OPTIONS:"} {
		assert.Contains(t, out, section)
	}
	for _, name := range commandOrder {
		assert.Contains(t, out, name)
	}
}

func TestScanCommand(t *testing.T) {
	env := newTestEnv(t, "ignore = [\"*Spam*\"]\n")
	env.maildirs(t, "INBOX", "Spam", "Lists/go")

	out, _, err := execute(t, "scan", "--config", env.config)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "WATCH")
	assert.Contains(t, lines[0], "INBOX")
	assert.Contains(t, lines[1], "WATCH")
	assert.Contains(t, lines[1], "Lists/go")
	assert.Contains(t, lines[2], "IGNORE")
	assert.Contains(t, lines[2], "Spam")
	assert.Contains(t, lines[3], "2 of 3 maildirs watched")
}

func TestScanMissingRootIsFatal(t *testing.T) {
	env := newTestEnv(t, "")
	_, _, err := execute(t, "scan", "--config", env.config)
	require.Error(t, err)
	assert.True(t, mwerrors.IsFatal(err))
}

func TestInvalidConfigIsFatal(t *testing.T) {
	env := newTestEnv(t, "default_action = \"Nope\"\n")
	env.maildirs(t, "INBOX")
	_, _, err := execute(t, "scan", "--config", env.config)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mwerrors.ErrConfigInvalid))
}

func TestHistoryWithoutJournal(t *testing.T) {
	env := newTestEnv(t, "")
	out, _, err := execute(t, "history", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, "journal_enabled")
}

func TestHistoryCommand(t *testing.T) {
	env := newTestEnv(t, "")
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	orig := historyNow
	historyNow = func() time.Time { return now }
	defer func() { historyNow = orig }()

	j, err := journal.Open(filepath.Join(env.stateDir, journal.FileName), 10)
	require.NoError(t, err)
	inbox := filepath.Join(env.root, "INBOX")
	require.NoError(t, j.Record(context.Background(), journal.Entry{
		ID: "aaaaaaaa-1", Maildir: inbox, RelativePath: "INBOX", MessageCount: 4, Unseen: 4,
		Outcome: journal.OutcomeShown, CreatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, j.Record(context.Background(), journal.Entry{
		ID: "bbbbbbbb-2", Maildir: filepath.Join(env.root, "Work"), RelativePath: "Work", MessageCount: 1, Unseen: -1,
		Outcome: journal.OutcomeInhibited, CreatedAt: now.Add(-time.Minute),
	}))
	require.NoError(t, j.Close())

	out, _, err := execute(t, "history", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, "INBOX")
	assert.Contains(t, out, "Work")
	assert.Contains(t, out, "1 hour ago")

	out, _, err = execute(t, "history", "--config", env.config, "--maildir", inbox)
	require.NoError(t, err)
	assert.Contains(t, out, "INBOX")
	assert.NotContains(t, out, "Work")
}

func deliverOne(t *testing.T, dir string) {
	t.Helper()
	d, err := gomaildir.NewDelivery(dir)
	require.NoError(t, err)
	_, err = io.Copy(d, strings.NewReader("Subject: hi\r\n\r\nhello\r\n"))
	require.NoError(t, err)
	require.NoError(t, d.Close())
}

func TestWatchLogsAndJournalsNewMail(t *testing.T) {
	env := newTestEnv(t, "debounce = \"100ms\"\njournal_enabled = true\n")
	env.maildirs(t, "INBOX")

	root := NewRootCmd()
	var errOut syncBuffer
	root.SetOut(io.Discard)
	root.SetErr(&errOut)
	root.SetArgs([]string{"watch", "--config", env.config, "--notifier", "log"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(errOut.String(), "new mail") && time.Now().Before(deadline) {
		deliverOne(t, filepath.Join(env.root, "INBOX"))
		time.Sleep(300 * time.Millisecond)
	}
	cancel()
	require.NoError(t, <-done)

	assert.Contains(t, errOut.String(), "new mail")
	assert.Contains(t, errOut.String(), "in INBOX")

	j, err := journal.Open(filepath.Join(env.stateDir, journal.FileName), 10)
	require.NoError(t, err)
	defer j.Close()
	entries, err := j.List(context.Background(), 10, "")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, journal.OutcomeShown, entries[0].Outcome)
}

func TestWatchMissingRootIsFatal(t *testing.T) {
	env := newTestEnv(t, "")
	_, _, err := execute(t, "watch", "--config", env.config, "--notifier", "log")
	require.Error(t, err)
	assert.True(t, errors.Is(err, mwerrors.ErrScan))
}

func TestReportErrorMarksStartupFailures(t *testing.T) {
	var buf bytes.Buffer
	reportError(&buf, fmt.Errorf("/mail: %w", mwerrors.ErrScan))
	assert.Contains(t, buf.String(), "maildirwatch: /mail: scan failed")
	assert.Contains(t, buf.String(), "not started")

	buf.Reset()
	reportError(&buf, errors.New("watcher closed"))
	assert.Contains(t, buf.String(), "watcher closed")
	assert.NotContains(t, buf.String(), "not started")
}
