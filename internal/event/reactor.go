package event

import (
	"sort"
	"syscall"
	"time"

	"procrun/internal/proc/reap"
	apperr "procrun/pkg/errors"
)

// idleSleep caps the block when no timer bounds it; a signal still
// interrupts it.
const idleSleep = 86400 * time.Second

type timer struct {
	deadline time.Time
	callback Callback
}

type signalEntry struct {
	callback Callback
	raised   bool
}

// Reactor multiplexes timers, signals, and child completion on the
// calling thread. Callbacks run sequentially from Run; within one step,
// signal callbacks fire before timer callbacks, signals in ascending
// signal-number order, timers in deadline order with insertion-order
// tie-break.
type Reactor struct {
	timers     []timer
	waits      map[int]Callback
	signals    []signalEntry // indexed by signal number
	dispatcher *Dispatcher
}

// NewReactor creates a reactor and installs its signal dispatcher, which
// claims SIGCHLD for child-completion tracking.
func NewReactor() (*Reactor, error) {
	r := &Reactor{
		waits:      make(map[int]Callback),
		signals:    make([]signalEntry, sigMax),
		dispatcher: NewDispatcher(),
	}
	entry := &r.signals[syscall.SIGCHLD]
	if err := r.dispatcher.Set(int(syscall.SIGCHLD), func() { entry.raised = true }); err != nil {
		return nil, err
	}
	r.dispatcher.Install()
	return r, nil
}

// Close uninstalls the dispatcher, restoring prior signal dispositions.
func (r *Reactor) Close() {
	r.dispatcher.Uninstall()
}

// AddTimer schedules cb at deadline. Equal deadlines fire in insertion
// order; the same deadline may be registered any number of times.
func (r *Reactor) AddTimer(deadline time.Time, cb Callback) {
	i := sort.Search(len(r.timers), func(i int) bool {
		return r.timers[i].deadline.After(deadline)
	})
	r.timers = append(r.timers, timer{})
	copy(r.timers[i+1:], r.timers[i:])
	r.timers[i] = timer{deadline: deadline, callback: cb}
}

// SetSignal registers cb for signum. SIGCHLD is reserved for child
// completion; duplicate registration fails.
func (r *Reactor) SetSignal(signum int, cb Callback) error {
	if signum == int(syscall.SIGCHLD) {
		return apperr.Value("signum", "SIGCHLD is reserved for child completion")
	}
	if signum <= 0 || signum >= sigMax {
		return apperr.Newf(apperr.RangeError, "signal number %d out of range", signum)
	}
	entry := &r.signals[signum]
	if entry.callback != nil {
		return apperr.Newf(apperr.AlreadySet, "callback for signal %d already set", signum)
	}
	if err := r.dispatcher.Set(signum, func() { entry.raised = true }); err != nil {
		return err
	}
	entry.callback = cb
	entry.raised = false
	return nil
}

// SetWait registers cb for completion of pid. Duplicate registration
// fails.
func (r *Reactor) SetWait(pid int, cb Callback) error {
	if _, ok := r.waits[pid]; ok {
		return apperr.Newf(apperr.AlreadySet, "callback for pid %d already set", pid)
	}
	r.waits[pid] = cb
	return nil
}

// IsEmpty reports no timers, no waits, and no user signal callbacks.
func (r *Reactor) IsEmpty() bool {
	if len(r.timers) > 0 || len(r.waits) > 0 {
		return false
	}
	for signum := range r.signals {
		if r.signals[signum].callback != nil {
			return false
		}
	}
	return true
}

// Run performs one scheduling step and returns the number of callbacks
// fired. With sleepEnabled it blocks, interruptibly, until at least one
// callback fires.
func (r *Reactor) Run(sleepEnabled bool) (int, error) {
	n, err := r.handleCurrent()
	for err == nil && sleepEnabled && n == 0 {
		r.sleep()
		n, err = r.handleCurrent()
	}
	return n, err
}

func (r *Reactor) sleep() {
	d := idleSleep
	if len(r.timers) > 0 {
		d = time.Until(r.timers[0].deadline)
		if d <= 0 {
			return
		}
	}
	r.dispatcher.WaitFor(d)
}

func (r *Reactor) handleCurrent() (int, error) {
	r.dispatcher.Drain()

	n, err := r.handleSignals()
	if err != nil {
		return n, err
	}

	// Detach the due timers before firing so callbacks can add timers.
	now := time.Now()
	due := 0
	for due < len(r.timers) && r.timers[due].deadline.Before(now) {
		due++
	}
	ready := make([]timer, due)
	copy(ready, r.timers[:due])
	r.timers = r.timers[due:]
	for _, t := range ready {
		t.callback()
	}
	return n + due, nil
}

func (r *Reactor) handleSignals() (int, error) {
	n := 0
	for signum := 1; signum < sigMax; signum++ {
		entry := &r.signals[signum]
		if !entry.raised {
			continue
		}
		entry.raised = false
		if signum == int(syscall.SIGCHLD) {
			m, err := r.handleSigchld()
			n += m
			if err != nil {
				return n, err
			}
			continue
		}
		if entry.callback != nil {
			entry.callback()
			n++
		}
	}
	return n, nil
}

// handleSigchld probes every awaited pid with a non-consuming wait so the
// completion callback can still collect status and usage.
func (r *Reactor) handleSigchld() (int, error) {
	pids := make([]int, 0, len(r.waits))
	for pid := range r.waits {
		pids = append(pids, pid)
	}
	sort.Ints(pids)

	n := 0
	for _, pid := range pids {
		cb, ok := r.waits[pid]
		if !ok {
			continue
		}
		done, err := reap.Probe(pid)
		if err != nil {
			return n, err
		}
		if !done {
			continue
		}
		delete(r.waits, pid)
		cb()
		n++
	}
	return n, nil
}
