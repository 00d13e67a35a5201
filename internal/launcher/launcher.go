// Package launcher starts external programs for inhibition checks and actions.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Result is the outcome of a process started with Start.
type Result struct {
	// Code is the exit status, or -1 when the process did not exit normally.
	Code int
	// Err is set when waiting failed or the process was killed.
	Err      error
	Duration time.Duration
}

// Process is a running child whose exit status is observed.
type Process struct {
	done chan Result
}

// Done yields the result once, when the process exits.
func (p *Process) Done() <-chan Result {
	return p.done
}

// Launcher is the process-launch service.
type Launcher interface {
	// Start runs argv and reports its exit status on Process.Done. The
	// process is killed when ctx is done.
	Start(ctx context.Context, argv []string) (*Process, error)
	// Detach runs argv in its own session without waiting for it and
	// returns its PID.
	Detach(argv []string) (int, error)
}

// ErrEmptyCommand is returned for an empty argv.
var ErrEmptyCommand = errors.New("empty command")

// Exec implements Launcher with os/exec.
type Exec struct {
	// Env is appended to the current environment of every child.
	Env []string
	// Output receives stdout and stderr of checked processes. Nil discards.
	Output io.Writer

	pending sync.WaitGroup
}

// New creates an Exec launcher.
func New(env ...string) *Exec {
	return &Exec{Env: env}
}

func (l *Exec) command(argv []string) (*exec.Cmd, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrEmptyCommand
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), l.Env...)
	return cmd, nil
}

func (l *Exec) commandContext(ctx context.Context, argv []string) (*exec.Cmd, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrEmptyCommand
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), l.Env...)
	return cmd, nil
}

// Start implements Launcher.
func (l *Exec) Start(ctx context.Context, argv []string) (*Process, error) {
	cmd, err := l.commandContext(ctx, argv)
	if err != nil {
		return nil, err
	}
	if l.Output != nil {
		cmd.Stdout = l.Output
		cmd.Stderr = l.Output
	}
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}
	p := &Process{done: make(chan Result, 1)}

	l.pending.Add(1)
	go func() {
		defer l.pending.Done()
		err := cmd.Wait()
		res := Result{Code: cmd.ProcessState.ExitCode(), Duration: time.Since(start)}
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			res.Err = err
		}
		if ctx.Err() != nil {
			res.Err = ctx.Err()
		}
		p.done <- res
	}()
	return p, nil
}

// Detach implements Launcher. Output is discarded and the child is reaped
// in the background.
func (l *Exec) Detach(argv []string) (int, error) {
	cmd, err := l.command(argv)
	if err != nil {
		return 0, err
	}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	setDetached(cmd)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", argv[0], err)
	}
	pid := cmd.Process.Pid
	go func() {
		_ = cmd.Wait()
	}()
	return pid, nil
}

// Wait blocks until every process started with Start has exited.
func (l *Exec) Wait() {
	l.pending.Wait()
}
