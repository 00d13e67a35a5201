// Package pattern decides which maildirs are watched from ignore and whitelist globs.
package pattern

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	mwerrors "github.com/cristianoliveira/maildirwatch/internal/errors"
)

// Set holds the ignore and whitelist pattern lists, in configuration order.
type Set struct {
	Ignore    []string
	Whitelist []string
}

// ShouldWatch reports whether relativePath is accepted by the set.
func (s Set) ShouldWatch(relativePath string) bool {
	return ShouldWatch(relativePath, s.Ignore, s.Whitelist)
}

// Validate checks both lists.
func (s Set) Validate() error {
	if err := Validate(s.Ignore); err != nil {
		return fmt.Errorf("ignore: %w", err)
	}
	if err := Validate(s.Whitelist); err != nil {
		return fmt.Errorf("whitelist: %w", err)
	}
	return nil
}

// Validate rejects empty or malformed patterns.
func Validate(patterns []string) error {
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("empty pattern: %w", mwerrors.ErrConfigInvalid)
		}
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("malformed pattern %q: %w", p, mwerrors.ErrConfigInvalid)
		}
	}
	return nil
}

// Matches reports whether relativePath matches any of patterns.
//
// Patterns use slash separators. "*" and "?" stay within one path element
// and "**" crosses elements. A pattern without a slash is also tried against
// the last element, so "*Spam*" matches "Mail/Spam".
func Matches(relativePath string, patterns []string) bool {
	relativePath = strings.TrimPrefix(path.Clean(relativePath), "/")
	base := path.Base(relativePath)
	for _, p := range patterns {
		if match(p, relativePath) {
			return true
		}
		if !strings.Contains(p, "/") && base != relativePath && match(p, base) {
			return true
		}
	}
	return false
}

// ShouldWatch returns true unless relativePath matches an ignore pattern
// without also matching a whitelist pattern.
func ShouldWatch(relativePath string, ignore, whitelist []string) bool {
	if len(ignore) == 0 {
		return true
	}
	if !Matches(relativePath, ignore) {
		return true
	}
	return Matches(relativePath, whitelist)
}

func match(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}
