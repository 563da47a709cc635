//go:build linux

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"procrun/internal/proc/stage"

	"golang.org/x/sys/unix"
)

// run-init is the staging half of a program launch. The launcher forks it
// with the staging request on an inherited descriptor; it applies the fd
// handler instructions in order, closes its auxiliary descriptors, and
// execs the target in place. Any failure exits 127, which the launcher
// observes as a non-zero wait status.

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(127)
	}
}

func run() error {
	req, err := decodeRequest()
	if err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}
	for _, ins := range req.Handlers {
		if err := applyInstruction(ins); err != nil {
			return err
		}
	}
	closeAux(req)
	return unix.Exec(req.Exec.Path, req.Exec.Argv, req.Exec.Env)
}

func decodeRequest() (stage.Request, error) {
	file := os.NewFile(uintptr(stage.RequestFd), "stage-request")
	if file == nil {
		return stage.Request{}, fmt.Errorf("staging request descriptor missing")
	}
	defer file.Close()
	dec := json.NewDecoder(file)
	var req stage.Request
	if err := dec.Decode(&req); err != nil {
		return stage.Request{}, fmt.Errorf("decode staging request: %w", err)
	}
	// Swallow any trailing bytes so the writer never sees EPIPE.
	_, _ = io.Copy(io.Discard, dec.Buffered())
	return req, nil
}

func validateRequest(req stage.Request) error {
	if req.Exec.Path == "" {
		return fmt.Errorf("executable path is required")
	}
	if len(req.Exec.Argv) == 0 {
		return fmt.Errorf("argv is required")
	}
	for _, ins := range req.Handlers {
		if ins.Target < 0 {
			return fmt.Errorf("invalid staging target %d", ins.Target)
		}
	}
	return nil
}

func applyInstruction(ins stage.Instruction) error {
	switch ins.Kind {
	case "leave":
		return nil
	case "close":
		if err := unix.Close(ins.Target); err != nil {
			return fmt.Errorf("close fd %d: %w", ins.Target, err)
		}
	case "null":
		nullFd, err := unix.Open("/dev/null", unix.O_RDONLY, 0)
		if err != nil {
			return fmt.Errorf("open /dev/null: %w", err)
		}
		if err := unix.Dup2(nullFd, ins.Target); err != nil {
			_ = unix.Close(nullFd)
			return fmt.Errorf("dup null onto fd %d: %w", ins.Target, err)
		}
		_ = unix.Close(nullFd)
	case "capture":
		if err := unix.Dup2(ins.AuxFd, ins.Target); err != nil {
			return fmt.Errorf("dup capture onto fd %d: %w", ins.Target, err)
		}
	case "dup":
		if ins.FromFd == ins.Target {
			return nil
		}
		if err := unix.Dup2(ins.FromFd, ins.Target); err != nil {
			return fmt.Errorf("dup fd %d onto fd %d: %w", ins.FromFd, ins.Target, err)
		}
	case "file":
		fileFd, err := unix.Open(ins.Filename, ins.OpenFlags, 0666)
		if err != nil {
			return fmt.Errorf("open %s: %w", ins.Filename, err)
		}
		if err := unix.Dup2(fileFd, ins.Target); err != nil {
			_ = unix.Close(fileFd)
			return fmt.Errorf("dup %s onto fd %d: %w", ins.Filename, ins.Target, err)
		}
		_ = unix.Close(fileFd)
	default:
		return fmt.Errorf("unknown staging kind %q", ins.Kind)
	}
	return nil
}

// closeAux drops the auxiliary descriptors once their contents have been
// duplicated onto the targets, so only the staged standard descriptors
// cross the exec.
func closeAux(req stage.Request) {
	for _, ins := range req.Handlers {
		if ins.Kind == "capture" && ins.AuxFd > stage.RequestFd {
			_ = unix.Close(ins.AuxFd)
		}
	}
}
