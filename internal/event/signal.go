// Package event provides a single-threaded reactor over timers, signals,
// and child-completion notifications, plus the process-wide signal
// dispatcher it is built on.
package event

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	apperr "procrun/pkg/errors"
)

// Callback is invoked from reactor context, never from a signal handler.
type Callback func()

// Dispatcher maps operating-system signals to callbacks. At most one
// dispatcher may be installed process-wide; Install and Uninstall are
// always paired, and Uninstall restores the dispositions observed before
// Install.
type Dispatcher struct {
	ch        chan os.Signal
	entries   []Callback // indexed by signal number
	installed bool
}

var (
	installMu           sync.Mutex
	installedDispatcher *Dispatcher
)

// NewDispatcher creates an uninstalled dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		ch:      make(chan os.Signal, 128),
		entries: make([]Callback, sigMax),
	}
}

// Set registers a callback for signum. If the dispatcher is installed,
// the OS-level handler is hooked up immediately. Registering a second
// callback for the same signal fails.
func (d *Dispatcher) Set(signum int, cb Callback) error {
	if signum <= 0 || signum >= sigMax {
		return apperr.Newf(apperr.RangeError, "signal number %d out of range", signum)
	}
	if cb == nil {
		return apperr.Value("callback", "nil")
	}
	if d.entries[signum] != nil {
		return apperr.Newf(apperr.AlreadySet, "callback for signal %d already set", signum)
	}
	d.entries[signum] = cb
	if d.installed {
		signal.Notify(d.ch, syscall.Signal(signum))
	}
	return nil
}

// Has reports whether signum has a registered callback.
func (d *Dispatcher) Has(signum int) bool {
	return signum > 0 && signum < sigMax && d.entries[signum] != nil
}

// Install hooks the OS-level handlers for every registered signal.
// Installing while another dispatcher is installed is a programmer error.
func (d *Dispatcher) Install() {
	installMu.Lock()
	defer installMu.Unlock()
	if installedDispatcher != nil {
		panic("event: a signal dispatcher is already installed")
	}
	installedDispatcher = d
	d.installed = true
	for signum := 1; signum < sigMax; signum++ {
		if d.entries[signum] != nil {
			signal.Notify(d.ch, syscall.Signal(signum))
		}
	}
}

// Uninstall restores every registered signal's prior disposition and
// releases the process-wide slot.
func (d *Dispatcher) Uninstall() {
	installMu.Lock()
	defer installMu.Unlock()
	if installedDispatcher != d {
		panic("event: dispatcher is not installed")
	}
	for signum := 1; signum < sigMax; signum++ {
		if d.entries[signum] != nil {
			signal.Reset(syscall.Signal(signum))
		}
	}
	// Drop anything still queued.
	for {
		select {
		case <-d.ch:
			continue
		default:
		}
		break
	}
	d.installed = false
	installedDispatcher = nil
}

// Drain dispatches queued signal notifications without blocking and
// returns how many were delivered.
func (d *Dispatcher) Drain() int {
	n := 0
	for {
		select {
		case sig := <-d.ch:
			d.deliver(sig)
			n++
		default:
			return n
		}
	}
}

// WaitFor blocks until one signal arrives, delivering it, or until the
// timeout elapses.
func (d *Dispatcher) WaitFor(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case sig := <-d.ch:
		d.deliver(sig)
	case <-timer.C:
	}
}

func (d *Dispatcher) deliver(sig os.Signal) {
	signum, ok := sig.(syscall.Signal)
	if !ok || int(signum) <= 0 || int(signum) >= sigMax {
		return
	}
	if cb := d.entries[signum]; cb != nil {
		cb()
	}
}
