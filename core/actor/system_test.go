package actor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/actr-go/core/clock"
)

func TestSystem_SpawnAndLookup(t *testing.T) {
	sys := newTestSystem(t)
	h := spawnSquarer(sys, WithName("squarer"))
	require.True(t, h.Valid())
	require.Equal(t, "squarer", h.Name())
	require.Contains(t, h.String(), "squarer")

	got, ok := sys.Lookup(h.ID())
	require.True(t, ok)
	require.Equal(t, h, got)
	require.Equal(t, 1, sys.Len())

	Kill(h, nil)
	waitDone(t, h)
	require.False(t, h.Alive())
	_, ok = sys.Lookup(h.ID())
	require.False(t, ok)
	require.Equal(t, 0, sys.Len())
}

func TestSystem_Detached(t *testing.T) {
	sys := newTestSystem(t)
	h := spawnSquarer(sys, Detached())
	self := sys.Scoped()
	defer self.Close()
	v, err := RequestSync[int](self, h, time.Second, square{N: 7}).Wait()
	require.NoError(t, err)
	require.Equal(t, 49, v)
}

func TestSystem_ThroughputYields(t *testing.T) {
	sys := newTestSystem(t, func(o *Options) {
		o.Throughput = 1
		o.MaxConcurrency = 1
	})
	var mu sync.Mutex
	var order []int
	h := sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(On(func(v int) Result {
			mu.Lock()
			order = append(order, v)
			mu.Unlock()
			return Void()
		}))
	})
	for i := range 100 {
		require.NoError(t, Send(h, i))
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 100
	}, 5*time.Second, time.Millisecond)
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestSystem_QuitBouncesRequests(t *testing.T) {
	sys := newTestSystem(t)
	h := sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(
			On(func(stop) Result {
				self.Quit(errors.New("done"))
				return Void()
			}),
			Reply(func(ping) (int, error) { return 1, nil }),
		)
	})
	self := sys.Scoped()
	defer self.Close()
	require.NoError(t, self.Send(h, stop{}))
	_, err := RequestSync[int](self, h, time.Second, ping{}).Wait()
	require.ErrorIs(t, err, ErrRequestReceiverDown)
	waitDone(t, h)
}

func TestSystem_UnhandledMessages(t *testing.T) {
	sys := newTestSystem(t)
	h := spawnSquarer(sys)
	require.NoError(t, Send(h, "ignored"))

	self := sys.Scoped()
	defer self.Close()
	_, err := RequestSync[int](self, h, time.Second, "nope").Wait()
	require.ErrorIs(t, err, ErrUnexpectedMessage)
	require.True(t, h.Alive())
}

func TestSystem_PanicRecovered(t *testing.T) {
	var panics atomic.Int32
	sys := newTestSystem(t, func(o *Options) {
		o.OnPanic = func(any, []byte, any) { panics.Add(1) }
	})
	h := sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(Reply(func(v int) (int, error) {
			if v < 0 {
				panic("negative")
			}
			return v, nil
		}))
	})
	self := sys.Scoped()
	defer self.Close()

	_, err := RequestSync[int](self, h, time.Second, -1).Wait()
	require.ErrorIs(t, err, ErrHandlerPanic)
	v, err := RequestSync[int](self, h, time.Second, 2).Wait()
	require.NoError(t, err)
	require.Equal(t, 2, v)
	require.Equal(t, int32(1), panics.Load())
}

func TestSystem_SkipAndBecome(t *testing.T) {
	sys := newTestSystem(t)
	events := make(chan string, 3)
	h := sys.Spawn(func(self *Self) Behavior {
		working := NewBehavior(On(func(n note) Result {
			events <- n.Text
			return Void()
		}))
		return NewBehavior(
			On(func(ping) Result {
				events <- "open"
				self.Become(working)
				return Void()
			}),
			On(func(note) Result { return Skip() }),
		)
	})
	require.NoError(t, Send(h, note{Text: "a"}))
	require.NoError(t, Send(h, note{Text: "b"}))
	require.NoError(t, Send(h, ping{}))
	require.Equal(t, []string{"open", "a", "b"}, collect(t, events, 3))
}

func TestSystem_BehaviorTimeout(t *testing.T) {
	clk := clock.NewManual(time.Time{})
	sys := newTestSystem(t, withClock(clk))
	var fired atomic.Int32
	h := sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(On(func(ping) Result { return Void() })).
			WithTimeout(time.Second, func() { fired.Add(1) })
	})
	require.Eventually(t, func() bool { return clk.Pending() == 1 }, time.Second, time.Millisecond)

	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, 0, clk.Pending())

	// handling a message re-arms the timeout
	require.NoError(t, Send(h, ping{}))
	require.Eventually(t, func() bool { return clk.Pending() == 1 }, time.Second, time.Millisecond)
	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, time.Millisecond)
}

func TestSystem_Shutdown(t *testing.T) {
	sys := NewSystem(Options{Context: t.Context()})
	var handles []Handle
	for range 10 {
		handles = append(handles, spawnSilent(sys))
	}
	done := make(chan struct{})
	blocking := sys.SpawnBlocking(func(b *Blocking) {
		defer close(done)
		err := b.Receive(NewBehavior(On(func(ping) Result { return Void() })))
		assert.ErrorIs(t, err, ErrActorTerminated)
	})
	handles = append(handles, blocking)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	require.NoError(t, sys.Shutdown(ctx))
	<-done
	for _, h := range handles {
		require.False(t, h.Alive(), fmt.Sprint(h))
	}
	require.Equal(t, 0, sys.Len())

	late := spawnSquarer(sys)
	require.False(t, late.Alive())
	require.ErrorIs(t, Send(Handle{}, ping{}), ErrInvalidRequest)
}

func TestSystem_ReasonVisibleOnceTerminated(t *testing.T) {
	sys := newTestSystem(t)
	reason := errors.New("killed")
	h := sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(On(func(ping) Result { return Void() }))
	})
	ref := h.Strong()
	defer ref.Release()
	c := h.cb.cell.Load()
	require.NotNil(t, c)

	seen := make(chan error, 1)
	go func() {
		for !c.terminated() {
			runtime.Gosched()
		}
		seen <- c.Reason()
	}()

	Kill(h, reason)
	waitDone(t, h)
	require.ErrorIs(t, collect(t, seen, 1)[0], reason)
	require.ErrorIs(t, c.Reason(), reason)
}
