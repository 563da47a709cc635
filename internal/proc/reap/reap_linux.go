//go:build linux

// Package reap wraps the two-step completion protocol for child
// processes: a waitid probe with WNOWAIT that leaves the zombie in place,
// and a wait4 collection that reaps it together with its resource usage.
package reap

import (
	"unsafe"

	apperr "procrun/pkg/errors"

	"golang.org/x/sys/unix"
)

// siginfo is the waitid result layout. x/sys/unix keeps the union opaque;
// for WEXITED the union leads with pid, uid, status.
type siginfo struct {
	Signo  int32
	Errno  int32
	Code   int32
	_      int32
	Pid    int32
	Uid    int32
	Status int32
	_      [100]byte
}

// Probe reports whether pid has exited, without consuming the zombie.
// EINTR is retried.
func Probe(pid int) (bool, error) {
	var info siginfo
	for {
		_, _, errno := unix.Syscall6(unix.SYS_WAITID,
			unix.P_PID,
			uintptr(pid),
			uintptr(unsafe.Pointer(&info)),
			unix.WEXITED|unix.WNOHANG|unix.WNOWAIT,
			0, 0)
		if errno == 0 {
			break
		}
		if errno == unix.EINTR {
			continue
		}
		return false, apperr.System("waitid", errno)
	}
	return info.Pid > 0, nil
}

// Collect reaps an exited pid and returns its raw wait status and
// resource usage. The caller must have observed completion via Probe;
// the wait itself never blocks.
func Collect(pid int) (unix.WaitStatus, unix.Rusage, error) {
	var status unix.WaitStatus
	var usage unix.Rusage
	for {
		_, err := unix.Wait4(pid, &status, unix.WNOHANG, &usage)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return status, usage, apperr.System("wait4", err)
		}
		return status, usage, nil
	}
}
