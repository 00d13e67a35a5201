package tmux

import (
	"time"

	"github.com/cristianoliveira/maildirwatch/internal/logging"
)

const (
	// DefaultTimeout is the default timeout for tmux commands.
	DefaultTimeout = 5 * time.Second

	// DefaultDisplayTime is how long display-message keeps a notification
	// on screen, in milliseconds.
	DefaultDisplayTime = 5000

	// StatusOption is the global user option holding the latest summary, for
	// use in status-right as #{@maildirwatch}.
	StatusOption = "@maildirwatch"
)

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*DefaultClient)

// WithSocketPath sets the tmux socket name for the client.
func WithSocketPath(socketPath string) ClientOption {
	return func(c *DefaultClient) {
		c.socketPath = socketPath
	}
}

// WithTimeout sets the timeout for tmux command execution.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *DefaultClient) {
		c.timeout = timeout
	}
}

// WithLogger sets the logger for command tracing.
func WithLogger(logger logging.Logger) ClientOption {
	return func(c *DefaultClient) {
		c.logger = logger
	}
}
