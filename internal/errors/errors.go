// Package errors provides the error kinds shared by the maildirwatch engine.
//
// Callers wrap these with fmt.Errorf("...: %w", kind) and test them with the
// standard errors.Is.
package errors

import "errors"

// Startup errors. Both stop the process before the event loop runs.
var (
	// ErrConfigInvalid indicates a malformed pattern, action or option.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrScan indicates the scan root is missing or unreadable.
	ErrScan = errors.New("scan failed")
)

// Recoverable errors. The engine logs these and keeps running.
var (
	// ErrWatchEstablish indicates a watch could not be installed on a directory.
	ErrWatchEstablish = errors.New("cannot establish watch")

	// ErrInhibitionCheck indicates the inhibition command could not be run to completion.
	ErrInhibitionCheck = errors.New("inhibition check failed")

	// ErrActionLaunch indicates an action program could not be started.
	ErrActionLaunch = errors.New("action launch failed")
)

// IsFatal reports whether err must stop the process at startup.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfigInvalid) || errors.Is(err, ErrScan)
}
