// Package service runs submitted program specs on behalf of remote
// callers and retains their results for polling.
package service

import (
	"context"
	"sync"

	"procrun/internal/proc/program"
	apperr "procrun/pkg/errors"
	"procrun/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the lifecycle state of a submitted program.
type State string

const (
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Starter abstracts program launch so tests can substitute one.
type Starter func(spec program.Spec) (program.Program, error)

// Entry is the registry's record of one submission.
type Entry struct {
	ID     string
	State  State
	Result *program.Result
	Err    string
}

// Registry launches submitted specs and retains one Entry per program.
type Registry struct {
	mu      sync.Mutex
	starter Starter
	entries map[string]*Entry
}

// NewRegistry creates a registry launching via starter.
func NewRegistry(starter Starter) *Registry {
	return &Registry{
		starter: starter,
		entries: make(map[string]*Entry),
	}
}

// Submit starts the spec and returns the issued program id. The result
// is collected in the background and retained for Get.
func (r *Registry) Submit(spec program.Spec) (string, error) {
	prog, err := r.starter(spec)
	if err != nil {
		return "", apperr.GetError(err).WithMessagef("start program: %v", err)
	}

	id := uuid.NewString()
	entry := &Entry{ID: id, State: StateRunning}
	r.mu.Lock()
	r.entries[id] = entry
	r.mu.Unlock()

	ctx := context.WithValue(context.Background(), "program_id", id)
	logger.Info(ctx, "program started", zap.Int("pid", prog.Pid()))
	go r.finish(ctx, entry, prog)
	return id, nil
}

func (r *Registry) finish(ctx context.Context, entry *Entry, prog program.Program) {
	err := program.Wait(prog)
	var result *program.Result
	if err == nil {
		result, err = prog.GetResult()
	}
	_ = prog.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		entry.State = StateFailed
		entry.Err = err.Error()
		logger.Error(ctx, "program failed", zap.Error(err))
		return
	}
	entry.State = StateDone
	entry.Result = result
	logger.Info(ctx, "program finished")
}

// Get returns a snapshot of the entry for id.
func (r *Registry) Get(id string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return Entry{}, apperr.Newf(apperr.ProgramNotFound, "program %s not found", id)
	}
	return *entry, nil
}
