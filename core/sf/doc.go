// Package sf provides a generic single-flight mechanism for deduplicating
// concurrent function calls with the same key.
//
// If multiple goroutines call [Group.Do] with the same key concurrently,
// only the first call executes the function; the others block until it
// completes and receive the same result.
//
// The actor registry uses it so that concurrent spawn-or-get calls for the
// same actor name spawn exactly one actor:
//
//	g := sf.New[actor.Handle]()
//	hdl, err := g.Do("printer", func() (actor.Handle, error) {
//	    return sys.Spawn(printer), nil
//	})
package sf
