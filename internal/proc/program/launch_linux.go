//go:build linux

package program

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"

	"procrun/internal/proc/fdio"
	"procrun/internal/proc/reap"
	"procrun/internal/proc/stage"
	apperr "procrun/pkg/errors"
	"procrun/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const helperName = "run-init"

// Options configure how programs are launched.
type Options struct {
	// HelperPath locates the run-init staging helper. Empty looks next to
	// the current executable, then on PATH.
	HelperPath string
	// CaptureDir is where capture buffers are created. Empty uses the
	// fdio default.
	CaptureDir string
}

// ProcessProgram is the live handle for one launched process. The parent
// retains the capture buffers so their contents survive the child.
type ProcessProgram struct {
	pid    int
	waited bool

	stdin  *fdio.Handler
	stdout *fdio.Handler
	stderr *fdio.Handler

	status unix.WaitStatus
	usage  unix.Rusage
}

// Start launches the spec with default options.
func (s Spec) Start() (*ProcessProgram, error) {
	return s.StartWith(Options{})
}

// StartWith launches the spec: build the three descriptor handlers, fork
// the staging helper with the capture buffers in its descriptor table,
// and hand it the staging request. The helper execs the target in place,
// so the returned pid is the target's.
func (s Spec) StartWith(opts Options) (*ProcessProgram, error) {
	helper, err := resolveHelper(opts.HelperPath)
	if err != nil {
		return nil, err
	}

	handlers := make([]*fdio.Handler, 3)
	closeHandlers := func() {
		for _, h := range handlers {
			if h != nil {
				_ = h.Close()
			}
		}
	}
	for i, hs := range []fdio.HandlerSpec{s.Stdin, s.Stdout, s.Stderr} {
		h, err := fdio.NewHandler(hs, i, opts.CaptureDir)
		if err != nil {
			closeHandlers()
			return nil, err
		}
		handlers[i] = h
	}

	childEnv, err := s.Env.Build()
	if err != nil {
		closeHandlers()
		return nil, err
	}

	argv := make([]string, 0, len(s.Args)+1)
	argv = append(argv, s.Executable)
	argv = append(argv, s.Args...)

	reqR, reqW, err := os.Pipe()
	if err != nil {
		closeHandlers()
		return nil, apperr.System("pipe", err)
	}

	req := stage.Request{Exec: stage.Exec{
		Path: s.Executable,
		Argv: argv,
		Env:  childEnv.Strings(),
	}}
	files := []uintptr{0, 1, 2, reqR.Fd()}
	for i, h := range handlers {
		ins := stage.Instruction{Target: i, Kind: string(h.Kind())}
		switch h.Kind() {
		case fdio.Capture:
			ins.AuxFd = len(files)
			files = append(files, uintptr(h.CaptureFile().Fd()))
		case fdio.Dup:
			ins.FromFd = h.Spec().FromFd
		case fdio.File:
			flags, err := h.Spec().Mode.OpenFlags()
			if err != nil {
				_ = reqR.Close()
				_ = reqW.Close()
				closeHandlers()
				return nil, err
			}
			ins.Filename = h.Spec().Filename
			ins.OpenFlags = flags
		}
		req.Handlers = append(req.Handlers, ins)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		_ = reqR.Close()
		_ = reqW.Close()
		closeHandlers()
		return nil, apperr.Wrap(err, apperr.InternalError)
	}

	pid, err := syscall.ForkExec(helper, []string{filepath.Base(helper)}, &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: files,
	})
	_ = reqR.Close()
	if err != nil {
		_ = reqW.Close()
		closeHandlers()
		return nil, apperr.System("fork", err)
	}

	// The helper blocks reading the request; deliver it and close our end
	// so it sees EOF. A write failure surfaces as the helper's non-zero
	// exit, so it is only logged here.
	if _, err := reqW.Write(payload); err != nil {
		logger.Warn(context.Background(), "staging request delivery failed",
			zap.Int("pid", pid), zap.Error(err))
	}
	_ = reqW.Close()

	return &ProcessProgram{
		pid:    pid,
		stdin:  handlers[0],
		stdout: handlers[1],
		stderr: handlers[2],
	}, nil
}

func resolveHelper(path string) (string, error) {
	if path != "" {
		if filepath.Base(path) != path {
			return path, nil
		}
		resolved, err := exec.LookPath(path)
		if err != nil {
			return "", apperr.Wrapf(err, apperr.SystemFailure, "staging helper %q not found", path)
		}
		return resolved, nil
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), helperName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	resolved, err := exec.LookPath(helperName)
	if err != nil {
		return "", apperr.Wrapf(err, apperr.SystemFailure, "staging helper %q not found", helperName)
	}
	return resolved, nil
}

// Pid returns the child process id.
func (p *ProcessProgram) Pid() int {
	return p.pid
}

// IsDone reports completion without consuming the zombie, so GetResult
// can still collect resource usage.
func (p *ProcessProgram) IsDone() (bool, error) {
	if p.waited {
		return true, nil
	}
	return reap.Probe(p.pid)
}

// GetResult reaps the child on first call and builds the result mapping.
// Subsequent calls reuse the stored status and usage.
func (p *ProcessProgram) GetResult() (*Result, error) {
	if !p.waited {
		done, err := p.IsDone()
		if err != nil {
			return nil, err
		}
		if !done {
			return nil, apperr.New(apperr.NotDone)
		}
		status, usage, err := reap.Collect(p.pid)
		if err != nil {
			return nil, err
		}
		p.status = status
		p.usage = usage
		p.waited = true
	}

	result := NewResult()
	result.Set(KeyStatus, strconv.Itoa(int(p.status)))
	result.Set(KeyPid, strconv.Itoa(p.pid))
	if p.stdout.Kind() == fdio.Capture {
		text, err := p.stdout.Captured()
		if err != nil {
			return nil, err
		}
		result.Set(KeyStdout, text)
	}
	if p.stderr.Kind() == fdio.Capture {
		text, err := p.stderr.Captured()
		if err != nil {
			return nil, err
		}
		result.Set(KeyStderr, text)
	}
	result.Set(KeyUserCPUTime, formatTimeval(p.usage.Utime))
	result.Set(KeySystemCPUTime, formatTimeval(p.usage.Stime))
	result.Set(KeyMaxRSS, strconv.FormatInt(p.usage.Maxrss*1024, 10))
	return result, nil
}

// Close releases the descriptor handlers, including any capture buffers.
// Captured output is unreadable after this.
func (p *ProcessProgram) Close() error {
	var firstErr error
	for _, h := range []*fdio.Handler{p.stdin, p.stdout, p.stderr} {
		if h == nil {
			continue
		}
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func formatTimeval(tv unix.Timeval) string {
	return fmt.Sprintf("%d.%06d", tv.Sec, tv.Usec)
}
