package actor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

type scheduleFunc func()

// Scheduler runs actor resumptions.
type Scheduler interface {
	Schedule(f scheduleFunc)
	// Wait blocks until all in-flight tasks complete or context is cancelled.
	Wait()
}

type scheduler struct {
	ctx      context.Context
	log      *slog.Logger
	inflight atomic.Int32
	sem      chan struct{}
	max      int

	wg sync.WaitGroup

	pool    string
	metrics ActorMetrics
}

func (s *scheduler) Schedule(f scheduleFunc) {
	select {
	case <-s.ctx.Done():
		s.log.Warn("scheduler stopped, dropping task")
		return
	default:
	}

	s.wg.Add(1)

	// Unlimited if max <= 0
	if s.max <= 0 {
		go func() {
			defer s.wg.Done()
			s.track(1)
			defer s.track(-1)
			s.runTask(f)
		}()
		return
	}

	go func() {
		defer s.wg.Done()

		select {
		case <-s.ctx.Done():
			return
		case s.sem <- struct{}{}:
		}

		s.track(1)
		defer func() {
			<-s.sem
			s.track(-1)
		}()

		s.runTask(f)
	}()
}

func (s *scheduler) track(delta int32) {
	count := s.inflight.Add(delta)
	s.metrics.SchedulerInflight(s.pool, int(count))
}

func (s *scheduler) runTask(f scheduleFunc) {
	defer s.metrics.SchedulerTaskDuration().ObserveDuration()

	defer func() {
		if r := recover(); r != nil {
			s.metrics.SchedulerTaskCompleted(false)
			s.log.Error("scheduled task panicked", slog.Any("recovered", r))
		}
	}()

	f()
	s.metrics.SchedulerTaskCompleted(true)
}

// Wait blocks until all in-flight tasks complete.
func (s *scheduler) Wait() {
	s.wg.Wait()
}

// NewScheduler creates a scheduler that limits the number of concurrently
// running tasks to max. If max <= 0, concurrency is unlimited. Tasks scheduled
// after ctx is done are dropped.
func NewScheduler(max int, ctx context.Context) Scheduler {
	return NewSchedulerWithMetrics(max, ctx, "", NopActorMetrics(), nil)
}

// NewSchedulerWithMetrics creates a scheduler reporting to metrics under the
// given pool label.
func NewSchedulerWithMetrics(max int, ctx context.Context, pool string, metrics ActorMetrics, log *slog.Logger) Scheduler {
	var sem chan struct{}
	if max > 0 {
		sem = make(chan struct{}, max)
	}
	if metrics == nil {
		metrics = NopActorMetrics()
	}
	if log == nil {
		log = slog.Default()
	}
	return &scheduler{
		ctx:     ctx,
		sem:     sem,
		max:     max,
		log:     log,
		pool:    pool,
		metrics: metrics,
	}
}
