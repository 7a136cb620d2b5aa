package actor

import (
	"fmt"
	"sync/atomic"
)

// controlBlock is the shared identity of an actor. It outlives the actor state
// for as long as any Handle exists.
type controlBlock struct {
	id     uint64
	name   string
	sys    *System
	strong atomic.Int64
	weak   atomic.Int64
	cell   atomic.Pointer[cell]
	bhvr   atomic.Pointer[Behavior]
	done   chan struct{}
}

// free drops the actor state once the last strong reference is gone.
func (cb *controlBlock) free() {
	cb.cell.Store(nil)
	cb.bhvr.Store(nil)
}

func (cb *controlBlock) alive() bool {
	c := cb.cell.Load()
	return c != nil && !c.terminated()
}

// enqueue delivers e or bounces it if the actor is gone.
func (cb *controlBlock) enqueue(e *Envelope) bool {
	c := cb.cell.Load()
	if c == nil {
		bounce(cb.sys, e, ErrRequestReceiverDown)
		return false
	}
	return c.enqueue(e)
}

// Handle addresses an actor. Handles are plain values: they neither keep the
// actor alive nor prevent its state from being freed. The zero Handle is
// invalid.
type Handle struct {
	cb *controlBlock
}

// Valid reports whether h addresses an actor at all.
func (h Handle) Valid() bool { return h.cb != nil }

// ID returns the system-unique actor id, 0 for the zero Handle.
func (h Handle) ID() uint64 {
	if h.cb == nil {
		return 0
	}
	return h.cb.id
}

// Name returns the spawn name.
func (h Handle) Name() string {
	if h.cb == nil {
		return ""
	}
	return h.cb.name
}

// Alive reports whether the actor is still running.
func (h Handle) Alive() bool { return h.cb != nil && h.cb.alive() }

// Done is closed once the actor terminated.
func (h Handle) Done() <-chan struct{} {
	if h.cb == nil {
		return closedChan
	}
	return h.cb.done
}

// Strong acquires a reference that keeps the actor state allocated until
// released.
func (h Handle) Strong() *StrongRef {
	if h.cb == nil {
		return nil
	}
	h.cb.strong.Add(1)
	return &StrongRef{cb: h.cb}
}

// Weak acquires a reference that can be upgraded while the actor is alive.
func (h Handle) Weak() *WeakRef {
	if h.cb == nil {
		return nil
	}
	h.cb.weak.Add(1)
	return &WeakRef{cb: h.cb}
}

func (h Handle) String() string {
	if h.cb == nil {
		return "actor(nil)"
	}
	if h.cb.name != "" {
		return fmt.Sprintf("actor(%d:%s)", h.cb.id, h.cb.name)
	}
	return fmt.Sprintf("actor(%d)", h.cb.id)
}

func (h Handle) enqueue(e *Envelope) bool {
	if h.cb == nil {
		return false
	}
	return h.cb.enqueue(e)
}

func (h Handle) behavior() *Behavior {
	if h.cb == nil {
		return nil
	}
	return h.cb.bhvr.Load()
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// StrongRef is a counted owning reference.
type StrongRef struct {
	cb       *controlBlock
	released atomic.Bool
}

// Handle returns the non-counting address of the actor.
func (r *StrongRef) Handle() Handle {
	if r == nil {
		return Handle{}
	}
	return Handle{cb: r.cb}
}

// Release drops the reference. Releasing twice is a no-op.
func (r *StrongRef) Release() {
	if r == nil || !r.released.CompareAndSwap(false, true) {
		return
	}
	if r.cb.strong.Add(-1) == 0 {
		r.cb.free()
	}
}

// WeakRef is a counted non-owning reference.
type WeakRef struct {
	cb       *controlBlock
	released atomic.Bool
}

// Handle returns the non-counting address of the actor.
func (w *WeakRef) Handle() Handle {
	if w == nil {
		return Handle{}
	}
	return Handle{cb: w.cb}
}

// Upgrade returns a strong reference if the actor is still alive.
func (w *WeakRef) Upgrade() (*StrongRef, bool) {
	if w == nil {
		return nil, false
	}
	for {
		n := w.cb.strong.Load()
		if n == 0 {
			return nil, false
		}
		if w.cb.strong.CompareAndSwap(n, n+1) {
			break
		}
	}
	s := &StrongRef{cb: w.cb}
	if !w.cb.alive() {
		s.Release()
		return nil, false
	}
	return s, true
}

// Release drops the reference. Releasing twice is a no-op.
func (w *WeakRef) Release() {
	if w == nil || !w.released.CompareAndSwap(false, true) {
		return
	}
	w.cb.weak.Add(-1)
}

// RefCounts returns the current strong and weak reference counts of h.
func RefCounts(h Handle) (strong, weak int64) {
	if h.cb == nil {
		return 0, 0
	}
	return h.cb.strong.Load(), h.cb.weak.Load()
}
