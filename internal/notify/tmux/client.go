// Package tmux shows mail notifications inside a running tmux server.
package tmux

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cristianoliveira/maildirwatch/internal/logging"
)

// Client abstracts the tmux operations the presenter needs.
type Client interface {
	// HasSession checks if tmux server is running.
	HasSession() (bool, error)

	// DisplayMessage shows msg on every attached client for durationMs.
	DisplayMessage(msg string, durationMs int) error

	// SetStatusOption sets a global tmux option.
	SetStatusOption(name, value string) error

	// Run executes a tmux command with the given arguments.
	Run(args ...string) (string, string, error)
}

// DefaultClient implements Client using exec.Command to run tmux.
type DefaultClient struct {
	socketPath string
	timeout    time.Duration
	logger     logging.Logger
}

// NewDefaultClient creates a new DefaultClient with the given options.
func NewDefaultClient(opts ...ClientOption) *DefaultClient {
	client := &DefaultClient{
		timeout: DefaultTimeout,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// runCommand executes a tmux command with the given arguments.
// It returns stdout, stderr, and any error that occurred.
func (c *DefaultClient) runCommand(args ...string) (string, string, error) {
	start := time.Now()
	command := ""
	if len(args) > 0 {
		command = args[0]
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	cmdArgs := []string{}
	if c.socketPath != "" {
		cmdArgs = append(cmdArgs, "-L", c.socketPath)
	}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.CommandContext(ctx, "tmux", cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start).Seconds()
	if err != nil {
		c.logger.Debug("tmux command failed", "command", command, "err", err, "duration_seconds", duration)
	} else {
		c.logger.Debug("tmux command completed", "command", command, "duration_seconds", duration)
	}
	return stdout.String(), stderr.String(), err
}

// Run executes a tmux command with the given arguments.
func (c *DefaultClient) Run(args ...string) (string, string, error) {
	stdout, stderr, err := c.runCommand(args...)
	if err != nil {
		return stdout, stderr, fmt.Errorf("tmux command %v failed: %w", args, err)
	}
	return stdout, stderr, nil
}

// HasSession checks if tmux server is running.
func (c *DefaultClient) HasSession() (bool, error) {
	_, stderr, err := c.runCommand("has-session")
	if err != nil {
		if strings.Contains(stderr, "no server running") || strings.Contains(stderr, "error connecting") {
			return false, nil
		}
		return false, fmt.Errorf("%w: %s", ErrTmuxCommandFailed, strings.TrimSpace(stderr))
	}
	return true, nil
}

// DisplayMessage shows msg on the current client.
func (c *DefaultClient) DisplayMessage(msg string, durationMs int) error {
	args := []string{"display-message"}
	if durationMs > 0 {
		args = append(args, "-d", strconv.Itoa(durationMs))
	}
	// display-message expands formats; escape them so mail folder names are literal.
	args = append(args, strings.ReplaceAll(msg, "#", "##"))
	if _, stderr, err := c.runCommand(args...); err != nil {
		return fmt.Errorf("%w: display-message: %s", ErrTmuxCommandFailed, strings.TrimSpace(stderr))
	}
	return nil
}

// SetStatusOption sets a global tmux option.
func (c *DefaultClient) SetStatusOption(name, value string) error {
	if _, stderr, err := c.runCommand("set-option", "-g", name, value); err != nil {
		return fmt.Errorf("%w: set-option %s: %s", ErrTmuxCommandFailed, name, strings.TrimSpace(stderr))
	}
	return nil
}
