// Package fdio implements per-descriptor policies for a child's standard
// file descriptors: what backs each descriptor, how it is staged before
// exec, and how captured bytes are read back afterwards.
package fdio

import (
	"encoding/json"

	apperr "procrun/pkg/errors"

	"golang.org/x/sys/unix"
)

// Kind names a descriptor policy.
type Kind string

const (
	Leave   Kind = "leave"
	Close   Kind = "close"
	Null    Kind = "null"
	Capture Kind = "capture"
	Dup     Kind = "dup"
	File    Kind = "file"
)

// Mode names an open-mode set for a file handler.
type Mode string

const (
	ModeRead      Mode = "r"  // read only
	ModeWrite     Mode = "w"  // write, create, truncate
	ModeAppend    Mode = "a"  // write, create, append
	ModeReadWrite Mode = "rw" // read and write, create
)

// OpenFlags translates the mode into open(2) flags.
func (m Mode) OpenFlags() (int, error) {
	switch m {
	case ModeRead:
		return unix.O_RDONLY, nil
	case ModeWrite:
		return unix.O_WRONLY | unix.O_CREAT | unix.O_TRUNC, nil
	case ModeAppend:
		return unix.O_WRONLY | unix.O_CREAT | unix.O_APPEND, nil
	case ModeReadWrite:
		return unix.O_RDWR | unix.O_CREAT, nil
	}
	return 0, apperr.Value("mode", "expected r, w, a or rw")
}

// HandlerSpec is a tagged descriptor policy. The kind determines which of
// the remaining fields are meaningful; serializers ignore the rest.
type HandlerSpec struct {
	Kind     Kind
	FromFd   int    // dup source descriptor
	Filename string // file path
	Mode     Mode   // file open mode
}

// DefaultSpec leaves the descriptor alone.
func DefaultSpec() HandlerSpec {
	return HandlerSpec{Kind: Leave, FromFd: 1, Filename: "/dev/null", Mode: ModeRead}
}

// Validate checks the fields meaningful for the kind.
func (s HandlerSpec) Validate() error {
	switch s.Kind {
	case Leave, Close, Null, Capture:
	case Dup:
		if s.FromFd < 0 {
			return apperr.Newf(apperr.RangeError, "dup source descriptor %d out of range", s.FromFd)
		}
	case File:
		if s.Filename == "" {
			return apperr.Value("filename", "empty")
		}
		if _, err := s.Mode.OpenFlags(); err != nil {
			return err
		}
	default:
		return apperr.Newf(apperr.TypeError, "unknown fd handler kind %q", string(s.Kind))
	}
	return nil
}

type dupDoc struct {
	Type   Kind `json:"type"`
	FromFd int  `json:"from_fd"`
}

type fileDoc struct {
	Type     Kind   `json:"type"`
	Filename string `json:"filename"`
	Mode     Mode   `json:"mode"`
}

type kindDoc struct {
	Type Kind `json:"type"`
}

// MarshalJSON renders the document form: an object whose extra fields
// depend on the kind.
func (s HandlerSpec) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case Dup:
		return json.Marshal(dupDoc{Type: s.Kind, FromFd: s.FromFd})
	case File:
		return json.Marshal(fileDoc{Type: s.Kind, Filename: s.Filename, Mode: s.Mode})
	default:
		return json.Marshal(kindDoc{Type: s.Kind})
	}
}

// UnmarshalJSON accepts either a bare kind string (no-argument kinds only)
// or the object form.
func (s *HandlerSpec) UnmarshalJSON(data []byte) error {
	*s = DefaultSpec()

	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		switch Kind(name) {
		case Leave, Close, Null, Capture:
			s.Kind = Kind(name)
			return nil
		case Dup, File:
			return apperr.Newf(apperr.TypeError, "fd handler %q requires the object form", name)
		default:
			return apperr.Newf(apperr.TypeError, "unknown fd handler type %q", name)
		}
	}

	var doc struct {
		Type     string  `json:"type"`
		FromFd   *int    `json:"from_fd"`
		Filename *string `json:"filename"`
		Mode     *string `json:"mode"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return apperr.Wrapf(err, apperr.FormatError, "fd handler spec: %v", err)
	}
	switch Kind(doc.Type) {
	case Leave, Close, Null, Capture:
		s.Kind = Kind(doc.Type)
	case Dup:
		s.Kind = Dup
		if doc.FromFd != nil {
			s.FromFd = *doc.FromFd
		}
	case File:
		s.Kind = File
		if doc.Filename == nil {
			return apperr.MissingName("filename")
		}
		s.Filename = *doc.Filename
		s.Mode = ModeReadWrite
		if doc.Mode != nil {
			s.Mode = Mode(*doc.Mode)
		}
	default:
		return apperr.Newf(apperr.TypeError, "unknown fd handler type %q", doc.Type)
	}
	return s.Validate()
}
