package clock

import "time"

// Real is a Clock backed by the Go runtime timers.
type Real struct{}

// NewReal returns the wall clock.
func NewReal() *Real { return &Real{} }

func (*Real) Now() time.Time { return time.Now() }

func (*Real) Schedule(at time.Time, f func()) Disposable {
	a := newAction(f)
	t := time.AfterFunc(time.Until(at), func() { a.run() })
	stop := func() { t.Stop() }
	a.stop.Store(&stop)
	return a
}

var _ Clock = (*Real)(nil)
