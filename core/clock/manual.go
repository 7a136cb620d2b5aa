package clock

import (
	"container/heap"
	"sync"
	"time"
)

// Manual is a deterministic Clock. Time only moves via [Manual.Advance] or
// [Manual.Set]; due actions run on the goroutine that moved the clock.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	queue schedule
}

// NewManual creates a manual clock starting at start. A zero start uses a
// fixed, arbitrary epoch.
func NewManual(start time.Time) *Manual {
	if start.IsZero() {
		start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Schedule(at time.Time, f func()) Disposable {
	a := newAction(f)
	m.mu.Lock()
	m.seq++
	heap.Push(&m.queue, &entry{at: at, seq: m.seq, a: a})
	m.mu.Unlock()
	return a
}

// Advance moves the clock forward by d and runs every action that became due,
// in schedule order. It returns the number of actions that ran.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	t := m.now.Add(d)
	m.mu.Unlock()
	return m.Set(t)
}

// Set moves the clock to t (never backwards) and runs due actions.
func (m *Manual) Set(t time.Time) int {
	m.mu.Lock()
	if t.After(m.now) {
		m.now = t
	}
	m.mu.Unlock()
	return m.fireDue()
}

// Trigger runs due actions without moving the clock, e.g. actions that were
// scheduled in the past.
func (m *Manual) Trigger() int { return m.fireDue() }

// Pending returns the number of scheduled actions that neither ran nor were disposed.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.queue {
		if e.a.pending() {
			n++
		}
	}
	return n
}

// Next returns the point in time of the earliest pending action.
func (m *Manual) Next() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.queue.Len() > 0 {
		if e := m.queue[0]; e.a.pending() {
			return e.at, true
		}
		heap.Pop(&m.queue)
	}
	return time.Time{}, false
}

func (m *Manual) fireDue() int {
	n := 0
	for {
		m.mu.Lock()
		if m.queue.Len() == 0 || m.queue[0].at.After(m.now) {
			m.mu.Unlock()
			return n
		}
		e := heap.Pop(&m.queue).(*entry)
		m.mu.Unlock()
		// run outside the lock: actions may schedule new actions
		if e.a.run() {
			n++
		}
	}
}

type entry struct {
	at  time.Time
	seq uint64
	a   *action
}

type schedule []*entry

func (s schedule) Len() int { return len(s) }
func (s schedule) Less(i, j int) bool {
	if s[i].at.Equal(s[j].at) {
		return s[i].seq < s[j].seq
	}
	return s[i].at.Before(s[j].at)
}
func (s schedule) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s *schedule) Push(x any)   { *s = append(*s, x.(*entry)) }
func (s *schedule) Pop() any {
	old := *s
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*s = old[:n-1]
	return e
}

var _ Clock = (*Manual)(nil)
