// Package env models the child process environment and the policy that
// derives it from the parent's environment.
package env

import (
	"context"
	"os"
	"sort"
	"strings"

	apperr "procrun/pkg/errors"
	"procrun/pkg/utils/logger"

	"go.uber.org/zap"
)

// Environment is a concrete name to value mapping. Materialized form is a
// sorted NAME=VALUE slice suitable for exec.
type Environment struct {
	vars map[string]string
}

// New creates an empty environment.
func New() *Environment {
	return &Environment{vars: make(map[string]string)}
}

// FromSystem loads the process environment. Entries without a '=' are
// skipped.
func FromSystem() *Environment {
	e := New()
	for _, entry := range os.Environ() {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			logger.Warn(context.Background(), "skipping unconventional environ entry",
				zap.String("entry", entry))
			continue
		}
		e.vars[name] = value
	}
	return e
}

func checkName(name string) error {
	if name == "" {
		return apperr.Value("name", "empty")
	}
	if strings.ContainsAny(name, "=\x00") {
		return apperr.Value("name", "contains '=' or NUL")
	}
	return nil
}

// Set assigns a variable. Names containing '=' or NUL are rejected.
func (e *Environment) Set(name, value string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if strings.ContainsRune(value, 0) {
		return apperr.Value("value", "contains NUL")
	}
	e.vars[name] = value
	return nil
}

// Get returns the value for name and whether it is present.
func (e *Environment) Get(name string) (string, bool) {
	value, ok := e.vars[name]
	return value, ok
}

// Unset removes name. Absence is not an error.
func (e *Environment) Unset(name string) {
	delete(e.vars, name)
}

// Len returns the number of variables.
func (e *Environment) Len() int {
	return len(e.vars)
}

// Names returns all variable names in sorted order.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.vars))
	for name := range e.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Strings materializes the environment as a sorted NAME=VALUE slice, the
// form exec expects.
func (e *Environment) Strings() []string {
	entries := make([]string, 0, len(e.vars))
	for _, name := range e.Names() {
		entries = append(entries, name+"="+e.vars[name])
	}
	return entries
}
