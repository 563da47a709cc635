//go:build !linux

package reap

import (
	apperr "procrun/pkg/errors"

	"golang.org/x/sys/unix"
)

// Probe is only supported on linux.
func Probe(pid int) (bool, error) {
	return false, apperr.Newf(apperr.SystemFailure, "process reaping is only supported on linux")
}

// Collect is only supported on linux.
func Collect(pid int) (unix.WaitStatus, unix.Rusage, error) {
	var status unix.WaitStatus
	var usage unix.Rusage
	return status, usage, apperr.Newf(apperr.SystemFailure, "process reaping is only supported on linux")
}
