// Package clock provides the time source the actor runtime uses for delayed
// messages and timeouts.
//
// A [Clock] hands out a [Disposable] for every scheduled action. Disposing it
// strictly before the scheduled moment cancels the action; disposing it
// afterwards has no effect. Actions fire at most once.
//
// Two implementations are provided:
//
//   - [Real] schedules on the Go runtime timers.
//   - [Manual] only moves when told to, which makes timeouts deterministic in tests.
package clock

import (
	"sync/atomic"
	"time"
)

// Disposable is a cancellation token for scheduled work.
type Disposable interface {
	// Dispose cancels the scheduled work if it did not run yet. Idempotent.
	Dispose()
	// IsDisposed reports whether the work was cancelled or already ran.
	IsDisposed() bool
}

// Clock schedules single-shot actions.
type Clock interface {
	Now() time.Time
	// Schedule runs f once at (or shortly after) the given point in time.
	Schedule(at time.Time, f func()) Disposable
}

const (
	actionPending uint32 = iota
	actionFired
	actionDisposed
)

// action is the Disposable shared by all clock implementations.
type action struct {
	state atomic.Uint32
	f     func()
	stop  atomic.Pointer[func()]
}

func newAction(f func()) *action {
	return &action{f: f}
}

// run executes the action unless it was disposed. Reports whether f ran.
func (a *action) run() bool {
	if !a.state.CompareAndSwap(actionPending, actionFired) {
		return false
	}
	a.f()
	return true
}

func (a *action) Dispose() {
	if !a.state.CompareAndSwap(actionPending, actionDisposed) {
		return
	}
	if stop := a.stop.Load(); stop != nil {
		(*stop)()
	}
}

func (a *action) IsDisposed() bool { return a.state.Load() != actionPending }

func (a *action) pending() bool { return a.state.Load() == actionPending }

type disposed struct{}

func (disposed) Dispose()         {}
func (disposed) IsDisposed() bool { return true }

// Disposed returns a Disposable that is already disposed. Useful as a
// placeholder when nothing was scheduled.
func Disposed() Disposable { return disposed{} }

// Func wraps a cancel function into a Disposable. The function runs at most once.
func Func(cancel func()) Disposable {
	a := newAction(func() {})
	a.stop.Store(&cancel)
	return a
}

var _ Disposable = (*action)(nil)
