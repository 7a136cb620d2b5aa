// Package perkey provides an executor that serializes work per key while
// running work for different keys concurrently.
//
// The actor runtime uses it for detached actors: every actor id is a key, so
// all resumptions of one actor run strictly one after another on a lane of
// their own, independent of the shared scheduler pool. Lanes are created on
// demand and disappear as soon as their queue runs empty.
package perkey

import (
	"context"
	"sync"
)

// Option configures a Scheduler.
type Option func(*config)

type config struct {
	maxQueue int
}

// WithMaxQueue limits the number of queued tasks per key. Submissions beyond
// the limit fail with ErrQueueFull. Zero or negative means unlimited.
func WithMaxQueue(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxQueue = n
		}
	}
}

// Scheduler runs tasks such that for any given key K tasks are executed
// sequentially, in submission order.
type Scheduler[K comparable] struct {
	mu       sync.Mutex
	lanes    map[K]*lane
	closed   bool
	wg       sync.WaitGroup // running lanes
	maxQueue int
}

type lane struct {
	tasks   []*task
	running bool
}

type task struct {
	fn   func() error
	done chan error // nil for fire-and-forget tasks
}

// New creates a new Scheduler.
func New[K comparable](opts ...Option) *Scheduler[K] {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Scheduler[K]{
		lanes:    make(map[K]*lane),
		maxQueue: cfg.maxQueue,
	}
}

// Go queues fn for key without waiting for it.
func (s *Scheduler[K]) Go(key K, fn func()) error {
	return s.enqueue(key, &task{fn: func() error { fn(); return nil }})
}

// Do schedules fn for key and blocks until it finished.
func (s *Scheduler[K]) Do(key K, fn func() error) error {
	return s.DoContext(context.Background(), key, fn)
}

// DoContext is like Do but stops waiting when ctx is done. A task that was
// already queued still runs.
func (s *Scheduler[K]) DoContext(ctx context.Context, key K, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &task{fn: fn, done: make(chan error, 1)}
	if err := s.enqueue(key, t); err != nil {
		return err
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of keys with queued or running work.
func (s *Scheduler[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lanes)
}

// Close stops accepting tasks and waits until every queued task ran.
func (s *Scheduler[K]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler[K]) enqueue(key K, t *task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}
	l, ok := s.lanes[key]
	if !ok {
		l = &lane{}
		s.lanes[key] = l
	}
	if s.maxQueue > 0 && len(l.tasks) >= s.maxQueue {
		return ErrQueueFull
	}
	l.tasks = append(l.tasks, t)
	if !l.running {
		l.running = true
		s.wg.Add(1)
		go s.drain(key, l)
	}
	return nil
}

// drain processes tasks sequentially for a single key until the lane is empty.
func (s *Scheduler[K]) drain(key K, l *lane) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(l.tasks) == 0 {
			l.running = false
			delete(s.lanes, key)
			s.mu.Unlock()
			return
		}
		t := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		s.mu.Unlock()

		err := t.fn()
		if t.done != nil {
			t.done <- err
		}
	}
}

// ----- Errors -----

var (
	// ErrSchedulerClosed is returned when work is submitted to a closed scheduler.
	ErrSchedulerClosed = &SchedulerError{"scheduler is closed"}
	// ErrQueueFull is returned when a key's queue reached WithMaxQueue.
	ErrQueueFull = &SchedulerError{"queue is full"}
)

// SchedulerError is a simple error implementation.
type SchedulerError struct {
	msg string
}

func (e *SchedulerError) Error() string { return e.msg }
