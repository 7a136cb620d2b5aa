package actor

import (
	"fmt"
	"slices"
	"sync"

	"github.com/codewandler/actr-go/core/sf"
)

// Registry maps names to running actors. Entries disappear when their actor
// terminates.
type Registry struct {
	sys    *System
	mu     sync.RWMutex
	names  map[string]Handle
	spawns *sf.Group[Handle]
}

func newRegistry(sys *System) *Registry {
	return &Registry{
		sys:    sys,
		names:  map[string]Handle{},
		spawns: sf.New[Handle](),
	}
}

// Put binds name to h, replacing any previous binding.
func (r *Registry) Put(name string, h Handle) error {
	if name == "" || !h.Alive() {
		return fmt.Errorf("%w: cannot register %q as %s", ErrInvalidRequest, name, h)
	}
	r.mu.Lock()
	r.names[name] = h
	r.mu.Unlock()
	// the actor may have terminated before the binding became visible
	if !h.Alive() {
		r.dropActor(h.cb)
		return fmt.Errorf("%w: %s", ErrActorTerminated, h)
	}
	return nil
}

// Get returns the actor bound to name.
func (r *Registry) Get(name string) (Handle, bool) {
	r.mu.RLock()
	h, ok := r.names[name]
	r.mu.RUnlock()
	if !ok || !h.Alive() {
		return Handle{}, false
	}
	return h, true
}

// Erase removes the binding of name.
func (r *Registry) Erase(name string) {
	r.mu.Lock()
	delete(r.names, name)
	r.mu.Unlock()
}

// Names returns all bound names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// GetOrSpawn returns the actor bound to name, calling spawn and binding its
// result if there is none. Concurrent callers for the same name share one
// spawn.
func (r *Registry) GetOrSpawn(name string, spawn func() Handle) (Handle, error) {
	if h, ok := r.Get(name); ok {
		return h, nil
	}
	h, _, err := r.spawns.Do(name, func() (Handle, error) {
		if h, ok := r.Get(name); ok {
			return h, nil
		}
		h := spawn()
		if err := r.Put(name, h); err != nil {
			return Handle{}, err
		}
		return h, nil
	})
	return h, err
}

func (r *Registry) dropActor(cb *controlBlock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, h := range r.names {
		if h.cb == cb {
			delete(r.names, name)
		}
	}
}
