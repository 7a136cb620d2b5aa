package actor

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/actr-go/core/clock"
)

func spawnEcho(sys *System, v string) Handle {
	return sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(Reply(func(ping) (string, error) { return v, nil }))
	})
}

func spawnFailing(sys *System, err error) Handle {
	return sys.Spawn(func(self *Self) Behavior {
		return NewBehavior(Reply(func(ping) (string, error) { return "", err }))
	})
}

func TestSelectAll_Values(t *testing.T) {
	for _, await := range []bool{false, true} {
		sys := newTestSystem(t)
		targets := []Handle{spawnEcho(sys, "a"), spawnEcho(sys, "b"), spawnEcho(sys, "c")}
		got := make(chan []string, 1)
		sys.Spawn(func(self *Self) Behavior {
			sel := FanOut[string](self, targets, time.Second, ping{}).SelectAll()
			onValue := func(vs []string) { got <- vs }
			onError := func(err error) { t.Errorf("unexpected error: %v", err) }
			if await {
				sel.Await(onValue, onError)
			} else {
				sel.Then(onValue, onError)
			}
			return NewBehavior(On(func(ping) Result { return Void() }))
		})
		require.Equal(t, []string{"a", "b", "c"}, collect(t, got, 1)[0])
	}
}

func TestSelectAll_FailFast(t *testing.T) {
	clk := clock.NewManual(time.Time{})
	sys := newTestSystem(t, withClock(clk))
	boom := errors.New("boom")
	targets := []Handle{spawnEcho(sys, "v"), spawnFailing(sys, boom), spawnEcho(sys, "v")}

	var calls atomic.Int32
	errs := make(chan error, 1)
	timeouts := make(chan clock.Disposable, 1)
	sys.Spawn(func(self *Self) Behavior {
		f := FanOut[string](self, targets, 10*time.Second, ping{})
		timeouts <- f.Timeout()
		f.SelectAll().Then(
			func([]string) { calls.Add(1) },
			func(err error) {
				calls.Add(1)
				errs <- err
			},
		)
		return NewBehavior(On(func(ping) Result { return Void() }))
	})

	tmo := collect(t, timeouts, 1)[0]
	require.ErrorIs(t, collect(t, errs, 1)[0], boom)
	require.True(t, tmo.IsDisposed())
	require.Equal(t, 0, clk.Pending())
	assert.Never(t, func() bool { return calls.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestSelectAny_FirstSuccess(t *testing.T) {
	clk := clock.NewManual(time.Time{})
	sys := newTestSystem(t, withClock(clk))
	targets := []Handle{spawnSilent(sys), spawnEcho(sys, "t2"), spawnEcho(sys, "t3")}

	got := make(chan string, 1)
	timeouts := make(chan clock.Disposable, 1)
	sys.Spawn(func(self *Self) Behavior {
		f := FanOut[string](self, targets, 10*time.Second, ping{})
		timeouts <- f.Timeout()
		f.SelectAny().Then(
			func(v string) { got <- v },
			func(err error) { t.Errorf("unexpected error: %v", err) },
		)
		return NewBehavior(On(func(ping) Result { return Void() }))
	})

	tmo := collect(t, timeouts, 1)[0]
	require.Contains(t, []string{"t2", "t3"}, collect(t, got, 1)[0])
	require.True(t, tmo.IsDisposed())
	require.Equal(t, 0, clk.Pending())
}

func TestSelectAny_AllFailed(t *testing.T) {
	sys := newTestSystem(t)
	boom := errors.New("boom")
	targets := []Handle{spawnFailing(sys, boom), spawnFailing(sys, boom)}
	errs := make(chan error, 1)
	sys.Spawn(func(self *Self) Behavior {
		FanOut[string](self, targets, time.Second, ping{}).SelectAny().Await(
			func(string) { t.Error("unexpected value") },
			func(err error) { errs <- err },
		)
		return NewBehavior(On(func(ping) Result { return Void() }))
	})
	err := collect(t, errs, 1)[0]
	require.ErrorIs(t, err, ErrAllRequestsFailed)
	require.ErrorIs(t, err, boom)
}

func TestFanOut_InvalidSetup(t *testing.T) {
	sys := newTestSystem(t)
	errs := make(chan error, 2)
	sys.Spawn(func(self *Self) Behavior {
		onError := func(err error) { errs <- err }
		FanOut[string](self, nil, time.Second, ping{}).SelectAll().Then(nil, onError)
		FanOut[string](self, []Handle{self.Handle(), {}}, time.Second, ping{}).SelectAny().Then(nil, onError)
		return NewBehavior(On(func(ping) Result { return Void() }))
	})
	for _, err := range collect(t, errs, 2) {
		require.ErrorIs(t, err, ErrInvalidRequest)
		require.NotErrorIs(t, err, ErrAllRequestsFailed)
	}
}

func TestFanOutSync_SelectAll(t *testing.T) {
	sys := newTestSystem(t)
	targets := []Handle{spawnEcho(sys, "v"), spawnEcho(sys, "v"), spawnEcho(sys, "v")}
	self := sys.Scoped()
	defer self.Close()

	var got []string
	FanOutSync[string](self, targets, time.Second, ping{}).SelectAll().Receive(
		func(vs []string) { got = vs },
		func(err error) { t.Fatalf("unexpected error: %v", err) },
	)
	require.Equal(t, []string{"v", "v", "v"}, got)
}

func TestFanOutSync_SelectAnyTimeout(t *testing.T) {
	clk := clock.NewManual(time.Time{})
	sys := newTestSystem(t, withClock(clk))
	targets := []Handle{spawnSilent(sys), spawnSilent(sys)}
	self := sys.Scoped()
	defer self.Close()

	f := FanOutSync[string](self, targets, time.Second, ping{})
	require.Equal(t, 1, clk.Advance(time.Second))

	var got error
	f.SelectAny().Receive(func(string) { t.Fatal("unexpected value") }, func(err error) { got = err })
	require.ErrorIs(t, got, ErrAllRequestsFailed)
	require.ErrorIs(t, got, ErrRequestTimeout)
}

func TestFanOutSync_Invalid(t *testing.T) {
	sys := newTestSystem(t)
	self := sys.Scoped()
	defer self.Close()

	var got error
	FanOutSync[string](self, []Handle{{}}, time.Second, ping{}).SelectAll().Receive(nil, func(err error) { got = err })
	require.ErrorIs(t, got, ErrInvalidRequest)
}
