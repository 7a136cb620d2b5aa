package sf

import "golang.org/x/sync/singleflight"

// Group deduplicates concurrent function calls with the same key.
type Group[T any] struct {
	group singleflight.Group
}

// Do executes fn for key, deduplicating concurrent calls. shared reports
// whether the result was handed to more than one caller.
func (g *Group[T]) Do(key string, fn func() (T, error)) (v T, shared bool, err error) {
	out, err, shared := g.group.Do(key, func() (any, error) {
		return fn()
	})
	if err != nil {
		return v, shared, err
	}
	return out.(T), shared, nil
}

// Forget drops an in-flight key so the next Do call executes fn again.
func (g *Group[T]) Forget(key string) { g.group.Forget(key) }

// New creates a new Group for type T.
func New[T any]() *Group[T] {
	return &Group[T]{}
}
