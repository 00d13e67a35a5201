// Package actions holds the named programs that notifications can launch.
package actions

import (
	"fmt"
	"strings"

	mwerrors "github.com/cristianoliveira/maildirwatch/internal/errors"
)

// DefaultName is the alias invoked when the notification body is clicked.
const DefaultName = "default"

// Definition is a named program with arguments.
type Definition struct {
	Name    string
	Program string
	Args    []string
}

// Argv returns the program followed by its arguments.
func (d Definition) Argv() []string {
	return append([]string{d.Program}, d.Args...)
}

// String renders the command line for logs.
func (d Definition) String() string {
	return strings.Join(d.Argv(), " ")
}

// Spec is an unresolved action from configuration. Either Argv or Alias is
// set: Alias names another action and is only allowed for DefaultName.
type Spec struct {
	Name  string
	Argv  []string
	Alias string
}

// Table is the validated, ordered set of actions.
type Table struct {
	ordered []Definition
	byName  map[string]Definition
	def     *Definition
}

// NewTable validates specs and resolves the default alias. defaultAlias,
// when not empty, names the default target and is equivalent to a spec
// {Name: "default", Alias: defaultAlias}. Unknown or cyclic targets, empty
// commands and duplicate names are ErrConfigInvalid.
func NewTable(specs []Spec, defaultAlias string) (*Table, error) {
	t := &Table{byName: make(map[string]Definition)}
	aliases := make(map[string]string)

	if defaultAlias != "" {
		aliases[DefaultName] = defaultAlias
	}
	for _, s := range specs {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("action without a name: %w", mwerrors.ErrConfigInvalid)
		}
		if _, dup := t.byName[name]; dup {
			return nil, fmt.Errorf("action %q defined twice: %w", name, mwerrors.ErrConfigInvalid)
		}
		if _, dup := aliases[name]; dup {
			return nil, fmt.Errorf("action %q defined twice: %w", name, mwerrors.ErrConfigInvalid)
		}
		if s.Alias != "" {
			if name != DefaultName {
				return nil, fmt.Errorf("action %q: only %q may name another action: %w", name, DefaultName, mwerrors.ErrConfigInvalid)
			}
			aliases[name] = strings.TrimSpace(s.Alias)
			continue
		}
		if len(s.Argv) == 0 || strings.TrimSpace(s.Argv[0]) == "" {
			return nil, fmt.Errorf("action %q has no program: %w", name, mwerrors.ErrConfigInvalid)
		}
		if name == DefaultName {
			// The default entry always names another action.
			aliases[name] = strings.Join(s.Argv, " ")
			continue
		}
		d := Definition{Name: name, Program: s.Argv[0], Args: append([]string(nil), s.Argv[1:]...)}
		t.ordered = append(t.ordered, d)
		t.byName[name] = d
	}

	if target, ok := aliases[DefaultName]; ok {
		d, err := t.resolve(target, aliases)
		if err != nil {
			return nil, err
		}
		t.def = &d
	}
	return t, nil
}

func (t *Table) resolve(target string, aliases map[string]string) (Definition, error) {
	seen := map[string]bool{DefaultName: true}
	for {
		if seen[target] {
			return Definition{}, fmt.Errorf("default action %q refers to itself: %w", target, mwerrors.ErrConfigInvalid)
		}
		if d, ok := t.byName[target]; ok {
			return d, nil
		}
		next, ok := aliases[target]
		if !ok {
			return Definition{}, fmt.Errorf("default action %q is not defined: %w", target, mwerrors.ErrConfigInvalid)
		}
		seen[target] = true
		target = next
	}
}

// Buttons returns the actions shown as notification buttons, in
// configuration order. The default alias is not among them.
func (t *Table) Buttons() []Definition {
	if t == nil {
		return nil
	}
	return append([]Definition(nil), t.ordered...)
}

// Lookup resolves a name. DefaultName resolves to the default target.
func (t *Table) Lookup(name string) (Definition, bool) {
	if t == nil {
		return Definition{}, false
	}
	if name == DefaultName {
		return t.Default()
	}
	d, ok := t.byName[name]
	return d, ok
}

// Default returns the resolved default action.
func (t *Table) Default() (Definition, bool) {
	if t == nil || t.def == nil {
		return Definition{}, false
	}
	return *t.def, true
}

// Len returns the number of button actions.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ordered)
}
