//go:build !linux

package program

import (
	apperr "procrun/pkg/errors"
)

// Options configure how programs are launched.
type Options struct {
	HelperPath string
	CaptureDir string
}

// ProcessProgram is only supported on linux.
type ProcessProgram struct{}

func (s Spec) Start() (*ProcessProgram, error) {
	return nil, errUnsupported()
}

func (s Spec) StartWith(opts Options) (*ProcessProgram, error) {
	return nil, errUnsupported()
}

func (p *ProcessProgram) Pid() int { return 0 }

func (p *ProcessProgram) IsDone() (bool, error) {
	return false, errUnsupported()
}

func (p *ProcessProgram) GetResult() (*Result, error) {
	return nil, errUnsupported()
}

func (p *ProcessProgram) Close() error { return nil }

func errUnsupported() error {
	return apperr.Newf(apperr.SystemFailure, "program launch is only supported on linux")
}
