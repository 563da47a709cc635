// Package program assembles the pieces of a process launch: the
// declarative specification with its document form, the live program
// handle with completion probing and result collection, and the blocking
// wait helper.
package program

import (
	"encoding/json"

	"procrun/internal/proc/env"
	"procrun/internal/proc/fdio"
	apperr "procrun/pkg/errors"
)

// TypeName identifies a process program document.
const TypeName = "ProcessProgram"

// Spec describes one process to launch: the executable, its arguments
// (argv[0] is derived from the executable path), the environment policy,
// and one descriptor policy per standard descriptor.
type Spec struct {
	Executable string
	Args       []string
	Env        env.Spec
	Stdin      fdio.HandlerSpec
	Stdout     fdio.HandlerSpec
	Stderr     fdio.HandlerSpec
}

// DefaultSpec runs /bin/true with everything inherited.
func DefaultSpec() Spec {
	return Spec{
		Executable: "/bin/true",
		Env:        env.DefaultSpec(),
		Stdin:      fdio.DefaultSpec(),
		Stdout:     fdio.DefaultSpec(),
		Stderr:     fdio.DefaultSpec(),
	}
}

type specDoc struct {
	Type       string           `json:"type"`
	Executable string           `json:"executable"`
	Args       []string         `json:"args"`
	Env        env.Spec         `json:"env"`
	Stdin      fdio.HandlerSpec `json:"stdin"`
	Stdout     fdio.HandlerSpec `json:"stdout"`
	Stderr     fdio.HandlerSpec `json:"stderr"`
}

// MarshalJSON renders the spec document.
func (s Spec) MarshalJSON() ([]byte, error) {
	args := s.Args
	if args == nil {
		args = []string{}
	}
	return json.Marshal(specDoc{
		Type:       TypeName,
		Executable: s.Executable,
		Args:       args,
		Env:        s.Env,
		Stdin:      s.Stdin,
		Stdout:     s.Stdout,
		Stderr:     s.Stderr,
	})
}

// UnmarshalJSON loads the spec document. The env section and the three
// descriptor sections are optional and default to keep-all and leave.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var doc struct {
		Type       string            `json:"type"`
		Executable *string           `json:"executable"`
		Args       *[]string         `json:"args"`
		Env        *env.Spec         `json:"env"`
		Stdin      *fdio.HandlerSpec `json:"stdin"`
		Stdout     *fdio.HandlerSpec `json:"stdout"`
		Stderr     *fdio.HandlerSpec `json:"stderr"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		if apperr.GetCode(err) != apperr.InternalError {
			return err
		}
		return apperr.Wrapf(err, apperr.FormatError, "program document: %v", err)
	}
	if doc.Type != TypeName {
		return apperr.Newf(apperr.TypeError, "unknown program type %q", doc.Type)
	}
	if doc.Executable == nil {
		return apperr.MissingName("executable")
	}
	if doc.Args == nil {
		return apperr.MissingName("args")
	}
	*s = DefaultSpec()
	s.Executable = *doc.Executable
	s.Args = *doc.Args
	if doc.Env != nil {
		s.Env = *doc.Env
	}
	if doc.Stdin != nil {
		s.Stdin = *doc.Stdin
	}
	if doc.Stdout != nil {
		s.Stdout = *doc.Stdout
	}
	if doc.Stderr != nil {
		s.Stderr = *doc.Stderr
	}
	return nil
}

// FromDocument parses a serialized spec document.
func FromDocument(data []byte) (Spec, error) {
	var s Spec
	if err := json.Unmarshal(data, &s); err != nil {
		if apperr.GetCode(err) != apperr.InternalError {
			return Spec{}, err
		}
		return Spec{}, apperr.Wrapf(err, apperr.FormatError, "program document: %v", err)
	}
	return s, nil
}

// Document serializes the spec with indentation, for files people read.
func (s Spec) Document() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError)
	}
	return append(data, '\n'), nil
}
