package actor

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

const (
	promisePending uint32 = iota
	promiseDone
)

// promiseState links to its owner through the owner's Handle only, so a
// pending promise never keeps the owner's state allocated.
type promiseState struct {
	self   Handle
	source Handle
	stages []Handle
	id     MessageID
	state  atomic.Uint32
}

func (st *promiseState) complete() bool {
	if !st.state.CompareAndSwap(promisePending, promiseDone) {
		return false
	}
	if st.self.Valid() {
		if c := st.self.cb.cell.Load(); c != nil {
			c.untrack(st)
		}
	}
	return true
}

// abandon breaks the promise if it is still pending.
func (st *promiseState) abandon() {
	if !st.complete() {
		return
	}
	if st.self.Valid() {
		sys := st.self.cb.sys
		sys.metrics.PromiseBroken()
		sys.log.Debug("promise broken", slog.Uint64("actor_id", st.self.ID()), slog.String("id", st.id.String()))
	}
	respond(st.self, st.source, st.stages, st.id, Fail(ErrBrokenPromise))
}

// Promise is the deferred response to a message. It is satisfied exactly once
// by Deliver or Delegate. A promise that becomes unreachable while pending, or
// whose owner terminates first, answers with ErrBrokenPromise.
type Promise struct {
	st *promiseState
}

// Pending reports whether the promise still awaits a response.
func (p *Promise) Pending() bool { return p.st.state.Load() == promisePending }

// ID returns the id of the message this promise answers.
func (p *Promise) ID() MessageID { return p.st.id }

// Source returns the original requester.
func (p *Promise) Source() Handle { return p.st.source }

// Deliver sends res to the next stage, or back to the source if there is none.
func (p *Promise) Deliver(res Result) error {
	if res.IsSkip() {
		return fmt.Errorf("%w: cannot deliver skip", ErrLogic)
	}
	if !p.st.complete() {
		return fmt.Errorf("%w: promise already satisfied", ErrLogic)
	}
	respond(p.st.self, p.st.source, p.st.stages, p.st.id, res)
	return nil
}

// DeliverValue is Deliver(Value(v)).
func (p *Promise) DeliverValue(v any) error { return p.Deliver(Value(v)) }

// DeliverError is Deliver(Fail(err)).
func (p *Promise) DeliverError(err error) error { return p.Deliver(Fail(err)) }

// Delegate forwards the obligation to dst together with payload. The response
// of dst travels directly to the source, bypassing this actor.
// Via options add stages that run before the ones already pending.
func (p *Promise) Delegate(dst Handle, payload any, opts ...MailOption) error {
	st := p.st
	if !p.Pending() {
		return fmt.Errorf("%w: promise already satisfied", ErrLogic)
	}
	o := buildMailOptions(opts)
	if !dst.Valid() || o.checkStages() != nil {
		if !st.complete() {
			return fmt.Errorf("%w: promise already satisfied", ErrLogic)
		}
		respond(st.self, st.source, st.stages, st.id, Fail(ErrInvalidDelegate))
		return ErrInvalidDelegate
	}
	content, err := contentOf(payload)
	if err != nil {
		return err
	}
	if !st.complete() {
		return fmt.Errorf("%w: promise already satisfied", ErrLogic)
	}
	id := st.id
	if o.priority == PriorityHigh {
		id = id.WithHighPriority()
	}
	stages := st.stages
	if len(o.stages) > 0 {
		stages = append(st.stages[:len(st.stages):len(st.stages)], o.stages...)
	}
	dst.enqueue(&Envelope{Sender: st.source, ID: id, Stages: stages, Content: content})
	return nil
}
