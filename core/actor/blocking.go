package actor

import (
	"fmt"
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/actr-go/core/clock"
	"github.com/codewandler/actr-go/core/ds"
)

// Blocking is an actor driven by a goroutine that pulls messages explicitly.
// Its methods must only be called from that goroutine.
type Blocking struct {
	*cell

	timeoutGen uint64
	exitReason error
	expecting  *ds.Set[MessageID]
}

func (s *System) newBlocking(name, kind string) *Blocking {
	c := s.newCell(name)
	c.kind = kind
	return &Blocking{cell: c, expecting: ds.NewSet[MessageID]()}
}

// SpawnBlocking runs body on its own goroutine as an actor. The actor
// terminates when body returns.
func (s *System) SpawnBlocking(body func(b *Blocking), opts ...SpawnOption) Handle {
	o := buildSpawnOptions(opts)
	b := s.newBlocking(o.name, "blocking")
	if err := s.register(b.cell, true); err != nil {
		b.terminate(err)
		return b.Handle()
	}
	go func() {
		defer func() {
			reason := b.exitReason
			if r := recover(); r != nil {
				s.recovered(r, Void())
				reason = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			}
			b.terminate(reason)
		}()
		body(b)
	}()
	return b.Handle()
}

// Scoped turns the calling goroutine into an actor until Close.
func (s *System) Scoped(opts ...SpawnOption) *Blocking {
	o := buildSpawnOptions(opts)
	if o.name == "" {
		o.name = fmt.Sprintf("scoped-%s", gonanoid.Must(6))
	}
	b := s.newBlocking(o.name, "scoped")
	if err := s.register(b.cell, false); err != nil {
		b.terminate(err)
	}
	return b
}

// Close terminates a scoped actor.
func (b *Blocking) Close() { b.terminate(b.exitReason) }

// Quit makes all further receives fail; body should return.
func (b *Blocking) Quit(reason error) {
	b.exitReason = reason
	b.cancel()
}

func (b *Blocking) stopErr() error {
	if b.exitReason != nil {
		return fmt.Errorf("%w: %w", ErrActorTerminated, b.exitReason)
	}
	return ErrActorTerminated
}

// next blocks for the next mailbox element.
func (b *Blocking) next() (*Envelope, error) {
	for {
		if b.terminated() || b.ctx.Err() != nil {
			return nil, b.stopErr()
		}
		if !b.mb.Wait(b.ctx) {
			return nil, b.stopErr()
		}
		e := b.mb.Next()
		if e == nil {
			continue
		}
		b.reportDepth()
		if x, ok := e.exitSignal(); ok {
			b.Quit(x.reason)
			return nil, b.stopErr()
		}
		return e, nil
	}
}

// ---- receive options ----

type ReceiveOption func(Behavior) Behavior

// WithTimeout runs fn and ends the receive if nothing matched within d.
func WithTimeout(d time.Duration, fn func()) ReceiveOption {
	return func(b Behavior) Behavior { return b.WithTimeout(d, fn) }
}

// WithFallback handles every message the behavior does not match.
func WithFallback(fn func(Result) Result) ReceiveOption {
	return func(b Behavior) Behavior { return b.WithFallback(fn) }
}

func (b *Blocking) armTimeout(bhvr Behavior) (uint64, clock.Disposable) {
	b.timeoutGen++
	d, ok := bhvr.Timeout()
	if !ok {
		return 0, clock.Disposed()
	}
	at := b.sys.clock.Now().Add(d)
	e := &Envelope{ID: AsyncID(PriorityNormal), Content: Value(receiveTimeout{gen: b.timeoutGen})}
	return b.timeoutGen, b.sys.scheduleMessage(e, false, b.Handle(), true, at)
}

// Receive handles exactly one message with bhvr. Messages bhvr does not match
// stay in the mailbox for later receives.
func (b *Blocking) Receive(bhvr Behavior, opts ...ReceiveOption) error {
	for _, opt := range opts {
		bhvr = opt(bhvr)
	}
	gen, tmo := b.armTimeout(bhvr)
	defer func() {
		tmo.Dispose()
		b.mb.Unstash()
	}()

	for {
		e, err := b.next()
		if err != nil {
			return err
		}
		if x, ok := e.timeoutSignal(); ok {
			if gen != 0 && x.gen == gen {
				b.safely(e.Content, bhvr.fireTimeout)
				return nil
			}
			continue
		}
		if e.ID.IsResponse() {
			if b.expecting.Contains(e.ID.key()) {
				b.mb.Stash(e)
			} else {
				b.log.Debug("dropped unexpected response", slog.String("id", e.ID.String()))
			}
			continue
		}

		msgType := contentTypeOf(e.Content)
		timer := b.sys.metrics.MessageDuration(msgType)
		b.beginMessage(e)
		res, handled := b.invoke(bhvr, e)
		if !handled || res.IsSkip() {
			b.current = nil
			b.mb.Stash(e)
			continue
		}
		b.finishMessage(res)
		timer.ObserveDuration()
		b.sys.metrics.MessageProcessed(msgType, !res.IsError())
		return nil
	}
}

// ReceiveFor runs Receive n times.
func (b *Blocking) ReceiveFor(n int, bhvr Behavior, opts ...ReceiveOption) error {
	for range n {
		if err := b.Receive(bhvr, opts...); err != nil {
			return err
		}
	}
	return nil
}

// ReceiveWhile runs Receive as long as cond holds.
func (b *Blocking) ReceiveWhile(cond func() bool, bhvr Behavior, opts ...ReceiveOption) error {
	for cond() {
		if err := b.Receive(bhvr, opts...); err != nil {
			return err
		}
	}
	return nil
}

// receiveResponses consumes responses accepted by match until handle reports
// completion. Everything else is stashed and restored afterwards.
func (b *Blocking) receiveResponses(match func(MessageID) bool, handle func(*Envelope) bool) error {
	defer b.mb.Unstash()
	for {
		e, err := b.next()
		if err != nil {
			return err
		}
		if e.ID.IsResponse() && match(e.ID.key()) {
			b.expecting.Remove(e.ID.key())
			if handle(e) {
				return nil
			}
			continue
		}
		b.mb.Stash(e)
	}
}

func (b *Blocking) forget(keys []MessageID) {
	for _, k := range keys {
		b.expecting.Remove(k)
	}
}

// SyncResponse is the pending result of a request issued by a blocking actor.
type SyncResponse[R any] struct {
	b        *Blocking
	id       MessageID
	timeout  clock.Disposable
	received bool
}

// RequestSync sends payload to dst. The response is collected with Receive
// or Wait.
func RequestSync[R any](b *Blocking, dst Handle, timeout time.Duration, payload any, opts ...MailOption) *SyncResponse[R] {
	o := buildMailOptions(opts)
	id := b.ids.next(o.priority)
	b.expecting.Add(id.Response().key())
	return &SyncResponse[R]{
		b:       b,
		id:      id,
		timeout: b.request(dst, id, timeout, payload, o, assignable[R]),
	}
}

// ID returns the request id.
func (r *SyncResponse[R]) ID() MessageID { return r.id }

// Timeout returns the pending request timeout.
func (r *SyncResponse[R]) Timeout() clock.Disposable { return r.timeout }

// Wait blocks until the response arrived.
func (r *SyncResponse[R]) Wait() (R, error) {
	var zero R
	if r.received {
		return zero, fmt.Errorf("%w: response already received", ErrLogic)
	}
	r.received = true

	key := r.id.Response().key()
	var res Result
	err := r.b.receiveResponses(
		func(k MessageID) bool { return k == key },
		func(e *Envelope) bool {
			res = e.Content
			return true
		},
	)
	r.timeout.Dispose()
	if err != nil {
		r.b.forget([]MessageID{key})
		return zero, err
	}
	return As[R](res)
}

// Receive blocks until the response arrived and dispatches it. Without
// onError, errors are logged.
func (r *SyncResponse[R]) Receive(onValue func(R), onError func(error)) {
	v, err := r.Wait()
	if err != nil {
		r.b.dispatchError(onError, err)
		return
	}
	if onValue != nil {
		onValue(v)
	}
}

func (b *Blocking) dispatchError(onError func(error), err error) {
	if onError != nil {
		onError(err)
		return
	}
	b.log.Warn("unhandled request error", slog.Any("error", err))
}

// RequestTypedSync is RequestSync with the payload and response types fixed by dst.
func RequestTypedSync[In, Out any](b *Blocking, dst TypedHandle[In, Out], timeout time.Duration, in In, opts ...MailOption) *SyncResponse[Out] {
	return RequestSync[Out](b, dst.Handle, timeout, in, opts...)
}
