package fdio

import (
	apperr "procrun/pkg/errors"

	"golang.org/x/sys/unix"
)

// Handler binds one descriptor policy to a concrete target descriptor.
// Start applies the policy in the calling process; with final false the
// previous descriptor is saved so Restore can undo the change, which is
// what in-process tooling uses. The pre-exec path in the staging helper
// always runs with final true.
type Handler struct {
	spec    HandlerSpec
	fd      int
	savedFd int
	capture *CaptureFile
}

// NewHandler builds a handler for the target descriptor fd. A capture
// handler owns a fresh anonymous buffer file under captureDir.
func NewHandler(spec HandlerSpec, fd int, captureDir string) (*Handler, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if fd < 0 {
		return nil, apperr.Newf(apperr.RangeError, "target descriptor %d out of range", fd)
	}
	h := &Handler{spec: spec, fd: fd, savedFd: -1}
	if spec.Kind == Capture {
		capture, err := NewCaptureFile(captureDir)
		if err != nil {
			return nil, err
		}
		h.capture = capture
	}
	return h, nil
}

// Fd returns the target descriptor.
func (h *Handler) Fd() int {
	return h.fd
}

// Kind returns the policy kind.
func (h *Handler) Kind() Kind {
	return h.spec.Kind
}

// Spec returns the policy this handler was built from.
func (h *Handler) Spec() HandlerSpec {
	return h.spec
}

// CaptureFile returns the owned capture buffer, or nil for other kinds.
func (h *Handler) CaptureFile() *CaptureFile {
	return h.capture
}

// Start applies the policy to the target descriptor. Leave never touches
// the descriptor and never saves it.
func (h *Handler) Start(final bool) error {
	if h.spec.Kind == Leave {
		return nil
	}
	if !final {
		saved, err := unix.Dup(h.fd)
		if err != nil {
			return apperr.System("dup", err)
		}
		h.savedFd = saved
	}
	switch h.spec.Kind {
	case Close:
		if err := unix.Close(h.fd); err != nil {
			return apperr.System("close", err)
		}
	case Null:
		nullFd, err := unix.Open("/dev/null", unix.O_RDONLY, 0)
		if err != nil {
			return apperr.System("open", err)
		}
		if err := unix.Dup2(nullFd, h.fd); err != nil {
			_ = unix.Close(nullFd)
			return apperr.System("dup2", err)
		}
		_ = unix.Close(nullFd)
	case Capture:
		return h.capture.DupFd(h.fd)
	case Dup:
		// Self-dup is a no-op; dup3-based platforms reject it.
		if h.spec.FromFd != h.fd {
			if err := unix.Dup2(h.spec.FromFd, h.fd); err != nil {
				return apperr.System("dup2", err)
			}
		}
	case File:
		flags, err := h.spec.Mode.OpenFlags()
		if err != nil {
			return err
		}
		fileFd, err := unix.Open(h.spec.Filename, flags, 0666)
		if err != nil {
			return apperr.System("open", err)
		}
		if err := unix.Dup2(fileFd, h.fd); err != nil {
			_ = unix.Close(fileFd)
			return apperr.System("dup2", err)
		}
		_ = unix.Close(fileFd)
	}
	return nil
}

// Restore reverses a non-final Start, putting the saved descriptor back.
func (h *Handler) Restore() error {
	if h.savedFd < 0 {
		return apperr.Value("handler", "no saved descriptor to restore")
	}
	if err := unix.Dup2(h.savedFd, h.fd); err != nil {
		return apperr.System("dup2", err)
	}
	_ = unix.Close(h.savedFd)
	h.savedFd = -1
	return nil
}

// Captured reads the bytes collected by a capture handler. Reading after
// Close is an error.
func (h *Handler) Captured() (string, error) {
	if h.spec.Kind != Capture {
		return "", apperr.Newf(apperr.TypeError, "descriptor %d is not captured", h.fd)
	}
	return h.capture.ReadAll()
}

// Close releases owned resources. Only capture handlers own any.
func (h *Handler) Close() error {
	if h.capture != nil {
		return h.capture.Close()
	}
	return nil
}
