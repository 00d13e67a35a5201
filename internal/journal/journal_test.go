package journal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T, maxRows int) *Journal {
	t.Helper()

	j, err := Open(filepath.Join(t.TempDir(), "state", FileName), maxRows)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, j.Close())
	})
	return j
}

func entry(id, maildir string, count int, outcome Outcome) Entry {
	return Entry{
		ID:           id,
		Maildir:      maildir,
		RelativePath: filepath.Base(maildir),
		MessageCount: count,
		Unseen:       -1,
		Outcome:      outcome,
	}
}

func TestRecordAndList(t *testing.T) {
	j := newTestJournal(t, 10)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	e := entry("a", "/m/INBOX", 5, OutcomeShown)
	e.CreatedAt = at
	e.Unseen = 12
	require.NoError(t, j.Record(ctx, e))
	require.NoError(t, j.Record(ctx, entry("b", "/m/Work", 1, OutcomeInhibited)))

	list, err := j.List(ctx, 0, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "b", list[0].ID)
	require.Equal(t, OutcomeInhibited, list[0].Outcome)
	require.Equal(t, "a", list[1].ID)
	require.Equal(t, 5, list[1].MessageCount)
	require.Equal(t, 12, list[1].Unseen)
	require.True(t, at.Equal(list[1].CreatedAt))

	list, err = j.List(ctx, 0, "/m/Work")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "b", list[0].ID)

	list, err = j.List(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestRecordTrimsToMaxRows(t *testing.T) {
	j := newTestJournal(t, 3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(ctx, entry(fmt.Sprintf("id-%d", i), "/m/INBOX", i+1, OutcomeShown)))
	}
	n, err := j.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	list, err := j.List(ctx, 10, "")
	require.NoError(t, err)
	require.Equal(t, "id-4", list[0].ID)
	require.Equal(t, "id-2", list[2].ID)
}

func TestRecordRejectsInvalidEntries(t *testing.T) {
	j := newTestJournal(t, 10)
	ctx := context.Background()
	cases := []Entry{
		entry("", "/m/INBOX", 1, OutcomeShown),
		entry("x", "", 1, OutcomeShown),
		entry("x", "/m/INBOX", 0, OutcomeShown),
		entry("x", "/m/INBOX", 1, Outcome("lost")),
	}
	for _, e := range cases {
		err := j.Record(ctx, e)
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrInvalidEntry))
	}
	n, err := j.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("  ", 10)
	require.Error(t, err)
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	j, err := Open(path, 10)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), entry("a", "/m/INBOX", 2, OutcomeFailed)))
	require.NoError(t, j.Close())

	j, err = Open(path, 10)
	require.NoError(t, err)
	defer j.Close()
	n, err := j.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestNilJournalClose(t *testing.T) {
	var j *Journal
	require.NoError(t, j.Close())
}
