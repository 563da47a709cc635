package service

import (
	"testing"
	"time"

	"procrun/internal/proc/program"
	apperr "procrun/pkg/errors"
)

type fakeProgram struct {
	result *program.Result
}

func (f *fakeProgram) Pid() int              { return 42 }
func (f *fakeProgram) IsDone() (bool, error) { return true, nil }
func (f *fakeProgram) Close() error          { return nil }

func (f *fakeProgram) GetResult() (*program.Result, error) {
	return f.result, nil
}

func waitForState(t *testing.T, registry *Registry, id string, want State) Entry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entry, err := registry.Get(id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if entry.State == want {
			return entry
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("program %s never reached state %s", id, want)
	return Entry{}
}

func TestSubmitAndGet(t *testing.T) {
	result := program.NewResult()
	result.Set(program.KeyStatus, "0")

	registry := NewRegistry(func(spec program.Spec) (program.Program, error) {
		return &fakeProgram{result: result}, nil
	})

	id, err := registry.Submit(program.DefaultSpec())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	entry := waitForState(t, registry, id, StateDone)
	if entry.Result == nil {
		t.Fatalf("missing result")
	}
	if status, _ := entry.Result.Get(program.KeyStatus); status != "0" {
		t.Fatalf("status = %q", status)
	}
}

func TestSubmitStartFailure(t *testing.T) {
	registry := NewRegistry(func(spec program.Spec) (program.Program, error) {
		return nil, apperr.Newf(apperr.SystemFailure, "no helper")
	})

	if _, err := registry.Submit(program.DefaultSpec()); err == nil {
		t.Fatalf("submit should fail")
	}
}

func TestGetUnknownProgram(t *testing.T) {
	registry := NewRegistry(func(spec program.Spec) (program.Program, error) {
		return &fakeProgram{result: program.NewResult()}, nil
	})

	if _, err := registry.Get("missing"); !apperr.Is(err, apperr.ProgramNotFound) {
		t.Fatalf("get = %v, want ProgramNotFound", err)
	}
}
