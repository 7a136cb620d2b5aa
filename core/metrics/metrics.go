// Package metrics provides abstract metrics interfaces that allow pluggable
// instrumentation backends (Prometheus, StatsD, ...) without coupling the
// runtime packages to a specific implementation.
package metrics

import "time"

// Timer measures the duration of an operation. Call ObserveDuration when the
// operation completes to record the elapsed time.
type Timer interface {
	ObserveDuration()
}

// Observer receives a single observation, e.g. a histogram.
type Observer interface {
	Observe(value float64)
}

// TimerFunc creates a new Timer. This allows deferred timing patterns like:
//
//	defer m.MessageDuration(msgType).ObserveDuration()
type TimerFunc func() Timer

type observerTimer struct {
	o     Observer
	start time.Time
}

func (t *observerTimer) ObserveDuration() { t.o.Observe(time.Since(t.start).Seconds()) }

// NewTimer starts a Timer that reports elapsed seconds to o.
func NewTimer(o Observer) Timer {
	return &observerTimer{o: o, start: time.Now()}
}
