package logging

import (
	"io"
	"os"
	"path/filepath"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level to record.
	Level string
	// Console receives human-readable records. Defaults to os.Stderr.
	Console io.Writer
	// FileEnabled turns on the JSON file sink.
	FileEnabled bool
	// StateDir is the base for the default log directory.
	StateDir string
	// Dir overrides the log directory.
	Dir string
	// MaxFiles is the maximum number of log files to retain.
	MaxFiles int
	// Command is the name of the command being executed.
	Command string
	// PID is the process ID.
	PID int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		MaxFiles: 10,
		Command:  filepath.Base(os.Args[0]),
		PID:      os.Getpid(),
	}
}

// LogDir returns the directory where log files should be stored.
// It uses the following priority:
// 1. {stateDir}/logs (if stateDir is accessible and writable)
// 2. {os.TempDir()}/maildirwatch/logs (fallback)
func LogDir(stateDir string) (string, error) {
	if stateDir != "" {
		logDir := filepath.Join(stateDir, "logs")
		if err := os.MkdirAll(logDir, 0o700); err == nil {
			if testFileWrite(logDir) {
				return logDir, nil
			}
		}
	}
	tempBase := filepath.Join(os.TempDir(), "maildirwatch", "logs")
	if err := os.MkdirAll(tempBase, 0o700); err != nil {
		return "", err
	}
	return tempBase, nil
}

// testFileWrite attempts to create a temporary file in dir to verify write permissions.
func testFileWrite(dir string) bool {
	tmp := filepath.Join(dir, ".write_test")
	f, err := os.Create(tmp)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(tmp)
	return true
}
