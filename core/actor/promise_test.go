package actor

import (
	"errors"
	"runtime"
	"testing"
	"time"
	"weak"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromise_DeliverLater(t *testing.T) {
	sys := newTestSystem(t)
	worker := spawnSquarer(sys)
	front := sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(On(func(m square) Result {
			p := self.MakePromise()
			Request[int](self, worker, time.Second, m).Then(
				func(v int) { _ = p.DeliverValue(v + 1) },
				func(err error) { _ = p.DeliverError(err) },
			)
			return Value(-1) // ignored, the promise answers
		}))
	})

	self := sys.Scoped()
	defer self.Close()
	v, err := RequestSync[int](self, front, time.Second, square{N: 3}).Wait()
	require.NoError(t, err)
	require.Equal(t, 10, v)
}

func TestPromise_SecondDeliverRejected(t *testing.T) {
	sys := newTestSystem(t)
	errs := make(chan error, 2)
	a := sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(On(func(ping) Result {
			p := self.MakePromise()
			errs <- p.DeliverValue(1)
			errs <- p.DeliverValue(2)
			errs <- p.Delegate(self.Handle(), ping{})
			errs <- p.Delegate(Handle{}, ping{})
			assert.False(t, p.Pending())
			assert.False(t, self.MakePromise().Pending())
			return Void()
		}))
	})

	self := sys.Scoped()
	defer self.Close()
	v, err := RequestSync[int](self, a, time.Second, ping{}).Wait()
	require.NoError(t, err)
	require.Equal(t, 1, v)

	got := collect(t, errs, 4)
	require.NoError(t, got[0])
	require.ErrorIs(t, got[1], ErrLogic)
	require.ErrorIs(t, got[2], ErrLogic)
	require.ErrorIs(t, got[3], ErrLogic)
	require.NotErrorIs(t, got[3], ErrInvalidDelegate)

	// no second message ever reaches the requester
	assert.Never(t, func() bool { return self.mb.Len() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestPromise_Delegate(t *testing.T) {
	sys := newTestSystem(t)
	worker := spawnSquarer(sys)
	front := sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(On(func(m square) Result {
			p := self.MakePromise()
			assert.NoError(t, p.Delegate(worker, square{N: m.N + 1}, Urgent()))
			return Void()
		}))
	})

	self := sys.Scoped()
	defer self.Close()
	v, err := RequestSync[int](self, front, time.Second, square{N: 2}).Wait()
	require.NoError(t, err)
	require.Equal(t, 9, v)
}

func TestPromise_DelegateInvalid(t *testing.T) {
	sys := newTestSystem(t)
	front := sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(On(func(ping) Result {
			assert.ErrorIs(t, self.MakePromise().Delegate(Handle{}, ping{}), ErrInvalidDelegate)
			return Void()
		}))
	})

	self := sys.Scoped()
	defer self.Close()
	_, err := RequestSync[Unit](self, front, time.Second, ping{}).Wait()
	require.ErrorIs(t, err, ErrInvalidDelegate)
}

func TestPromise_BrokenOnOwnerExit(t *testing.T) {
	sys := newTestSystem(t)
	a := sys.Spawn(func(self *Self) Behavior {
		var held []*Promise
		return NewBehavior(
			On(func(ping) Result {
				held = append(held, self.MakePromise())
				return Void()
			}),
			On(func(stop) Result {
				self.Quit(nil)
				return Void()
			}),
		)
	})

	self := sys.Scoped()
	defer self.Close()
	r := RequestSync[Unit](self, a, time.Second, ping{})
	require.NoError(t, self.Send(a, stop{}))
	_, err := r.Wait()
	require.ErrorIs(t, err, ErrBrokenPromise)
	waitDone(t, a)
}

func TestPromise_BrokenWhenDropped(t *testing.T) {
	sys := newTestSystem(t)
	a := sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(On(func(ping) Result {
			self.MakePromise()
			return Void()
		}))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(5 * time.Millisecond):
				runtime.GC()
			}
		}
	}()

	self := sys.Scoped()
	defer self.Close()
	_, err := RequestSync[Unit](self, a, 5*time.Second, ping{}).Wait()
	require.ErrorIs(t, err, ErrBrokenPromise)
}

func TestPromise_AsyncObligation(t *testing.T) {
	sys := newTestSystem(t)
	errs := make(chan error, 1)
	a := sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(On(func(ping) Result {
			errs <- self.MakePromise().Deliver(Void())
			return Void()
		}))
	})
	require.NoError(t, Send(a, ping{}))
	require.NoError(t, collect(t, errs, 1)[0])
}

func TestPromise_DeliverSkipRejected(t *testing.T) {
	p := &Promise{st: &promiseState{}}
	require.ErrorIs(t, p.Deliver(Skip()), ErrLogic)
	require.True(t, p.Pending())
	require.NoError(t, p.DeliverError(errors.New("x")))
	require.False(t, p.Pending())
}

func TestPromise_DeliverThroughStages(t *testing.T) {
	sys := newTestSystem(t)
	doubler := spawnDoubler(sys)
	front := sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(On(func(ping) Result {
			p := self.MakePromise()
			_, _ = self.DelayedSend(self.Handle(), time.Millisecond, note{Text: "later"})
			self.Become(NewBehavior(On(func(note) Result {
				assert.NoError(t, p.DeliverValue(5))
				return Void()
			})))
			return Void()
		}))
	})

	self := sys.Scoped()
	defer self.Close()
	v, err := RequestSync[int](self, front, time.Second, ping{}, Via(doubler)).Wait()
	require.NoError(t, err)
	require.Equal(t, 10, v)
}

func TestPromise_DelegateVia(t *testing.T) {
	sys := newTestSystem(t)
	worker := spawnSquarer(sys)
	adder := spawnAdder(sys)
	doubler := spawnDoubler(sys)
	front := sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(On(func(m square) Result {
			assert.NoError(t, self.MakePromise().Delegate(worker, m, Via(adder)))
			return Void()
		}))
	})

	self := sys.Scoped()
	defer self.Close()
	// square, then add one, then the doubler the requester asked for
	v, err := RequestSync[int](self, front, time.Second, square{N: 3}, Via(doubler)).Wait()
	require.NoError(t, err)
	require.Equal(t, 20, v)
}

func TestPromise_DoesNotRetainOwner(t *testing.T) {
	sys := newTestSystem(t)
	promises := make(chan *Promise, 1)
	h := sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(On(func(ping) Result {
			promises <- self.MakePromise()
			return Void()
		}))
	})
	owner := weak.Make(h.cb.cell.Load())

	require.NoError(t, Send(h, ping{}))
	p := collect(t, promises, 1)[0]
	Kill(h, nil)
	waitDone(t, h)

	require.Eventually(t, func() bool {
		runtime.GC()
		return owner.Value() == nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(t, p.Pending())
	runtime.KeepAlive(p)
}
