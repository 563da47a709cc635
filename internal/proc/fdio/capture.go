package fdio

import (
	"io"
	"os"

	apperr "procrun/pkg/errors"

	"golang.org/x/sys/unix"
)

// DefaultCaptureDir is where capture buffers are created when no directory
// is configured.
var DefaultCaptureDir = "/tmp"

// CaptureFile buffers one stream in an anonymous file: created under dir
// and unlinked immediately, it exists only through the open descriptor.
// The path is never exposed.
type CaptureFile struct {
	file *os.File
}

// NewCaptureFile creates an anonymous buffer file under dir.
func NewCaptureFile(dir string) (*CaptureFile, error) {
	if dir == "" {
		dir = DefaultCaptureDir
	}
	file, err := os.CreateTemp(dir, "capture-*")
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.SystemFailure, "create capture file: %v", err)
	}
	if err := os.Remove(file.Name()); err != nil {
		_ = file.Close()
		return nil, apperr.Wrapf(err, apperr.SystemFailure, "unlink capture file: %v", err)
	}
	return &CaptureFile{file: file}, nil
}

// IsClosed reports whether the descriptor has been released.
func (c *CaptureFile) IsClosed() bool {
	return c.file == nil
}

// Fd returns the buffer's descriptor. The file must not be closed.
func (c *CaptureFile) Fd() int {
	return int(c.file.Fd())
}

// DupFd duplicates the buffer's descriptor onto fd.
func (c *CaptureFile) DupFd(fd int) error {
	if c.IsClosed() {
		return apperr.New(apperr.CaptureClosed)
	}
	if err := unix.Dup2(int(c.file.Fd()), fd); err != nil {
		return apperr.System("dup2", err)
	}
	return nil
}

// ReadAll rewinds the buffer and reads everything written so far, bounded
// by the file's reported size.
func (c *CaptureFile) ReadAll() (string, error) {
	if c.IsClosed() {
		return "", apperr.New(apperr.CaptureClosed)
	}
	info, err := c.file.Stat()
	if err != nil {
		return "", apperr.System("fstat", err)
	}
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return "", apperr.System("lseek", err)
	}
	data, err := io.ReadAll(io.LimitReader(c.file, info.Size()))
	if err != nil {
		return "", apperr.System("read", err)
	}
	return string(data), nil
}

// Close releases the descriptor; the buffer contents are gone after this.
func (c *CaptureFile) Close() error {
	if c.IsClosed() {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	if err != nil {
		return apperr.System("close", err)
	}
	return nil
}
