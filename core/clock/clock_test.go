package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_FiresInOrder(t *testing.T) {
	c := NewManual(time.Time{})
	var seq []int
	c.Schedule(c.Now().Add(2*time.Second), func() { seq = append(seq, 2) })
	c.Schedule(c.Now().Add(time.Second), func() { seq = append(seq, 1) })
	c.Schedule(c.Now().Add(time.Second), func() { seq = append(seq, 11) })

	require.Equal(t, 3, c.Pending())
	require.Equal(t, 0, c.Advance(500*time.Millisecond))
	require.Equal(t, 2, c.Advance(500*time.Millisecond))
	require.Equal(t, []int{1, 11}, seq)
	require.Equal(t, 1, c.Advance(time.Second))
	require.Equal(t, []int{1, 11, 2}, seq)
	require.Equal(t, 0, c.Pending())
}

func TestManual_DisposeBeforeFire(t *testing.T) {
	c := NewManual(time.Time{})
	fired := false
	d := c.Schedule(c.Now().Add(time.Second), func() { fired = true })
	require.False(t, d.IsDisposed())

	d.Dispose()
	d.Dispose()
	require.True(t, d.IsDisposed())
	require.Equal(t, 0, c.Pending())

	c.Advance(time.Minute)
	require.False(t, fired)
}

func TestManual_DisposeAfterFireIsNoop(t *testing.T) {
	c := NewManual(time.Time{})
	var n int
	d := c.Schedule(c.Now(), func() { n++ })
	require.Equal(t, 1, c.Trigger())
	require.True(t, d.IsDisposed())
	d.Dispose()
	c.Advance(time.Hour)
	require.Equal(t, 1, n)
}

func TestManual_ActionsMaySchedule(t *testing.T) {
	c := NewManual(time.Time{})
	var n int
	c.Schedule(c.Now().Add(time.Second), func() {
		n++
		c.Schedule(c.Now(), func() { n++ })
	})
	require.Equal(t, 2, c.Advance(time.Second))
	require.Equal(t, 2, n)

	_, ok := c.Next()
	require.False(t, ok)
}

func TestReal_Schedule(t *testing.T) {
	c := NewReal()
	var fired atomic.Int32
	c.Schedule(c.Now().Add(5*time.Millisecond), func() { fired.Add(1) })
	cancelled := c.Schedule(c.Now().Add(time.Hour), func() { fired.Add(100) })
	cancelled.Dispose()

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	assert.True(t, cancelled.IsDisposed())
}

func TestFunc(t *testing.T) {
	var n int
	d := Func(func() { n++ })
	d.Dispose()
	d.Dispose()
	require.Equal(t, 1, n)
	require.True(t, d.IsDisposed())
	require.True(t, Disposed().IsDisposed())
}
