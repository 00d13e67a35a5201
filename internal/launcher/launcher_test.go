package launcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitResult(t *testing.T, p *Process) Result {
	t.Helper()
	select {
	case res := <-p.Done():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("process did not finish")
		return Result{}
	}
}

func TestStartReportsExitCode(t *testing.T) {
	l := New()
	p, err := l.Start(context.Background(), []string{"/bin/sh", "-c", "exit 0"})
	require.NoError(t, err)
	res := waitResult(t, p)
	assert.Equal(t, 0, res.Code)
	assert.NoError(t, res.Err)

	p, err = l.Start(context.Background(), []string{"/bin/sh", "-c", "exit 3"})
	require.NoError(t, err)
	res = waitResult(t, p)
	assert.Equal(t, 3, res.Code)
	assert.NoError(t, res.Err)
	l.Wait()
}

func TestStartPassesEnvAndOutput(t *testing.T) {
	var out bytes.Buffer
	l := New("MAILDIRWATCH_TEST=hello")
	l.Output = &out
	p, err := l.Start(context.Background(), []string{"/bin/sh", "-c", "echo $MAILDIRWATCH_TEST"})
	require.NoError(t, err)
	waitResult(t, p)
	assert.Equal(t, "hello\n", out.String())
}

func TestStartMissingProgram(t *testing.T) {
	_, err := New().Start(context.Background(), []string{"/nonexistent/program"})
	assert.Error(t, err)

	_, err = New().Start(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrEmptyCommand))
}

func TestStartKilledOnContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	p, err := New().Start(ctx, []string{"/bin/sh", "-c", "sleep 10"})
	require.NoError(t, err)
	res := waitResult(t, p)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.NotEqual(t, 0, res.Code)
}

func TestDetachRunsWithoutWaiting(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "ran")
	start := time.Now()
	pid, err := New().Detach([]string{"/bin/sh", "-c", "sleep 0.2; touch " + marker})
	require.NoError(t, err)
	assert.Greater(t, pid, 0)
	assert.Less(t, time.Since(start), 150*time.Millisecond)

	require.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDetachMissingProgram(t *testing.T) {
	_, err := New().Detach([]string{"/nonexistent/program", "arg"})
	assert.Error(t, err)
	_, err = New().Detach([]string{})
	assert.True(t, errors.Is(err, ErrEmptyCommand))
}
