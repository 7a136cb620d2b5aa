package actor

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/codewandler/actr-go/core/clock"
)

type (
	square struct{ N int }
	note   struct{ Text string }
	ping   struct{}
	stop   struct{}
)

func newTestSystem(t *testing.T, opts ...func(*Options)) *System {
	t.Helper()
	opt := Options{
		Context: t.Context(),
		Logger:  slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(&opt)
	}
	sys := NewSystem(opt)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sys.Shutdown(ctx)
	})
	return sys
}

func withClock(c clock.Clock) func(*Options) {
	return func(o *Options) { o.Clock = c }
}

func spawnSquarer(sys *System, opts ...SpawnOption) Handle {
	return sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(Reply(func(m square) (int, error) { return m.N * m.N, nil }))
	}, opts...)
}

func spawnAdder(sys *System) Handle {
	return sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(Reply(func(n int) (int, error) { return n + 1, nil }))
	})
}

func spawnDoubler(sys *System) Handle {
	return sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(Reply(func(n int) (int, error) { return 2 * n, nil }))
	})
}

// spawnSilent spawns an actor that never answers pings but keeps the
// promises alive.
func spawnSilent(sys *System) Handle {
	return sys.Spawn(func(self *Self) Behavior {
		var held []*Promise
		return NewBehavior(On(func(ping) Result {
			held = append(held, self.MakePromise())
			return Void()
		}))
	})
}

func collect[T any](t *testing.T, ch <-chan T, n int) []T {
	t.Helper()
	out := make([]T, 0, n)
	for range n {
		select {
		case v := <-ch:
			out = append(out, v)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d of %d values", len(out), n)
		}
	}
	return out
}

func waitDone(t *testing.T, h Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("%s did not terminate", h)
	}
}
