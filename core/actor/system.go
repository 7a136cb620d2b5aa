package actor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/actr-go/core/clock"
	"github.com/codewandler/actr-go/core/perkey"
)

type OnPanic func(recovered any, stack []byte, msg any)

type Options struct {
	// Name identifies the system in logs and metrics. Defaults to a random id.
	Name    string
	Context context.Context
	Logger  *slog.Logger
	Clock   clock.Clock
	Metrics ActorMetrics
	OnPanic OnPanic
	// MaxConcurrency caps the number of actors running at the same time.
	// Defaults to 32; negative means unlimited.
	MaxConcurrency int
	// Throughput is the number of messages an actor handles before yielding.
	Throughput int
	// Scheduler overrides the default bounded scheduler.
	Scheduler Scheduler
}

// System owns actors and the infrastructure they share.
type System struct {
	name       string
	ctx        context.Context
	cancel     context.CancelFunc
	poolCancel context.CancelFunc
	log        *slog.Logger
	clock      clock.Clock
	metrics    ActorMetrics
	onPanic    OnPanic
	throughput int

	sched Scheduler
	lanes *perkey.Scheduler[uint64]

	nextID  atomic.Uint64
	closed  atomic.Bool
	mu      sync.RWMutex
	actors  map[uint64]*controlBlock
	running sync.WaitGroup

	registry *Registry
}

func NewSystem(opt Options) *System {
	if opt.Name == "" {
		opt.Name = fmt.Sprintf("system-%s", gonanoid.Must(6))
	}
	if opt.Context == nil {
		opt.Context = context.Background()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Clock == nil {
		opt.Clock = clock.NewReal()
	}
	if opt.Metrics == nil {
		opt.Metrics = NopActorMetrics()
	}
	if opt.MaxConcurrency == 0 {
		opt.MaxConcurrency = 32
	}
	if opt.Throughput <= 0 {
		opt.Throughput = 64
	}
	log := opt.Logger.With(slog.String("system", opt.Name))
	if opt.OnPanic == nil {
		opt.OnPanic = func(recovered any, stack []byte, msg any) {
			log.Error("actor panicked", slog.Any("recovered", recovered), slog.String("stack", string(stack)), slog.Any("msg", msg))
		}
	}

	ctx, cancel := context.WithCancel(opt.Context)
	// the pool outlives the actors so their final resumes still run during shutdown
	poolCtx, poolCancel := context.WithCancel(context.WithoutCancel(opt.Context))

	s := &System{
		name:       opt.Name,
		ctx:        ctx,
		cancel:     cancel,
		poolCancel: poolCancel,
		log:        log,
		clock:      opt.Clock,
		metrics:    opt.Metrics,
		onPanic:    opt.OnPanic,
		throughput: opt.Throughput,
		sched:      opt.Scheduler,
		lanes:      perkey.New[uint64](),
		actors:     map[uint64]*controlBlock{},
	}
	if s.sched == nil {
		s.sched = NewSchedulerWithMetrics(opt.MaxConcurrency, poolCtx, opt.Name, opt.Metrics, log)
	}
	s.registry = newRegistry(s)
	return s
}

// Name returns the system name.
func (s *System) Name() string { return s.name }

// Clock returns the clock driving timeouts and delayed delivery.
func (s *System) Clock() clock.Clock { return s.clock }

// Registry returns the named actor registry.
func (s *System) Registry() *Registry { return s.registry }

// Log returns the system logger.
func (s *System) Log() *slog.Logger { return s.log }

// Lookup returns the running actor with the given id.
func (s *System) Lookup(id uint64) (Handle, bool) {
	s.mu.RLock()
	cb, ok := s.actors[id]
	s.mu.RUnlock()
	if !ok || !cb.alive() {
		return Handle{}, false
	}
	return Handle{cb: cb}, true
}

// Len returns the number of running actors.
func (s *System) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actors)
}

func (s *System) register(c *cell, tracked bool) error {
	if s.closed.Load() {
		return fmt.Errorf("%w: system %s is shut down", ErrActorTerminated, s.name)
	}
	s.mu.Lock()
	s.actors[c.cb.id] = c.cb
	s.mu.Unlock()
	if tracked {
		c.tracked = true
		s.running.Add(1)
	}
	s.metrics.ActorSpawned(c.kind)
	c.log.Debug("actor spawned", slog.String("kind", c.kind))
	return nil
}

func (s *System) unregister(c *cell) {
	s.mu.Lock()
	_, ok := s.actors[c.cb.id]
	delete(s.actors, c.cb.id)
	s.mu.Unlock()
	s.registry.dropActor(c.cb)
	if !ok {
		return
	}
	s.metrics.MailboxRemoved(c.label())
	s.metrics.ActorTerminated(c.kind)
	if c.tracked {
		s.running.Done()
	}
}

// deliver enqueues content now or at the time o asks for.
func (s *System) deliver(from, dst Handle, id MessageID, content Result, o mailOptions) clock.Disposable {
	e := &Envelope{Sender: from, ID: id, Stages: o.stages, Content: content}
	if o.delayed() {
		return s.scheduleMessage(e, o.weakSender, dst, o.weakReceiver, o.deadline(s.clock.Now()))
	}
	dst.enqueue(e)
	return clock.Disposed()
}

func (s *System) send(from, dst Handle, id MessageID, payload any, o mailOptions) (clock.Disposable, error) {
	if !dst.Valid() {
		return clock.Disposed(), fmt.Errorf("%w: invalid receiver", ErrInvalidRequest)
	}
	if err := o.checkStages(); err != nil {
		return clock.Disposed(), err
	}
	content, err := contentOf(payload)
	if err != nil {
		return clock.Disposed(), err
	}
	return s.deliver(from, dst, id, content, o), nil
}

func (s *System) recovered(r any, msg Result) {
	s.metrics.MessagePanic(contentTypeOf(msg))
	s.onPanic(r, debug.Stack(), msg.value)
}

// Wait blocks until every spawned actor terminated.
func (s *System) Wait() { s.running.Wait() }

// Shutdown stops all actors and waits for them to terminate or for ctx to be
// done. Scoped actors are not waited for.
func (s *System) Shutdown(ctx context.Context) error {
	if s.closed.CompareAndSwap(false, true) {
		s.mu.RLock()
		handles := make([]Handle, 0, len(s.actors))
		for _, cb := range s.actors {
			handles = append(handles, Handle{cb: cb})
		}
		s.mu.RUnlock()
		s.log.Debug("shutting down", slog.Int("actors", len(handles)))
		for _, h := range handles {
			Kill(h, nil)
		}
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.poolCancel()
	s.sched.Wait()
	s.lanes.Close()
	return nil
}

// ---- spawn options ----

type spawnOptions struct {
	name     string
	detached bool
}

type SpawnOption func(*spawnOptions)

// WithName names the actor for logs, metrics and the registry.
func WithName(name string) SpawnOption {
	return func(o *spawnOptions) { o.name = name }
}

// Detached runs the actor on its own lane instead of the shared scheduler.
func Detached() SpawnOption {
	return func(o *spawnOptions) { o.detached = true }
}

func buildSpawnOptions(opts []SpawnOption) spawnOptions {
	var o spawnOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ---- anonymous messaging ----

// Send delivers payload to dst without a sender.
func Send(dst Handle, payload any, opts ...MailOption) error {
	if !dst.Valid() {
		return fmt.Errorf("%w: invalid receiver", ErrInvalidRequest)
	}
	o := buildMailOptions(opts)
	_, err := dst.cb.sys.send(Handle{}, dst, AsyncID(o.priority), payload, o)
	return err
}

// DelayedSend delivers payload to dst after d without a sender.
func DelayedSend(dst Handle, d time.Duration, payload any, opts ...MailOption) (clock.Disposable, error) {
	if !dst.Valid() {
		return clock.Disposed(), fmt.Errorf("%w: invalid receiver", ErrInvalidRequest)
	}
	o := buildMailOptions(append(opts, After(d)))
	return dst.cb.sys.send(Handle{}, dst, AsyncID(o.priority), payload, o)
}

// Kill asks dst to terminate with reason. Pending messages are bounced.
func Kill(dst Handle, reason error) {
	dst.enqueue(&Envelope{ID: AsyncID(PriorityHigh), Content: Value(exitMsg{reason: reason})})
}
