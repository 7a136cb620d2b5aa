package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codewandler/actr-go/core/clock"
)

// cell is the state shared by event-based and blocking actors: identity,
// mailbox, id generator and pending promises.
type cell struct {
	cb      *controlBlock
	sys     *System
	log     *slog.Logger
	mb      *mailbox
	ids     idGen
	ctx     context.Context
	cancel  context.CancelFunc
	self    *StrongRef
	wake    func() // reschedules an event-based actor, nil for blocking ones
	kind    string
	tracked bool

	// set once by terminate; carries the exit reason
	exit atomic.Pointer[exitMsg]

	// owned by the actor while it processes a message
	current  *Envelope
	promised bool

	promMu   sync.Mutex
	promises map[*promiseState]struct{}
}

func (s *System) newCell(name string) *cell {
	id := s.nextID.Add(1)
	cb := &controlBlock{id: id, name: name, sys: s, done: make(chan struct{})}
	ctx, cancel := context.WithCancel(s.ctx)
	c := &cell{
		cb:       cb,
		sys:      s,
		mb:       newMailbox(),
		ctx:      ctx,
		cancel:   cancel,
		promises: map[*promiseState]struct{}{},
	}
	c.log = s.log.With(slog.Uint64("actor_id", id))
	if name != "" {
		c.log = c.log.With(slog.String("actor", name))
	}
	cb.cell.Store(c)
	c.self = Handle{cb: cb}.Strong()
	return c
}

func (c *cell) label() string {
	if c.cb.name != "" {
		return c.cb.name
	}
	return strconv.FormatUint(c.cb.id, 10)
}

func (c *cell) enqueue(e *Envelope) bool {
	switch c.mb.Push(e) {
	case pushClosed:
		bounce(c.sys, e, ErrRequestReceiverDown)
		return false
	case pushUnblocked:
		if c.wake != nil {
			c.wake()
		}
	}
	return true
}

// reportDepth publishes the mailbox depth. Only the consumer calls it, so
// the series cannot outlive the actor.
func (c *cell) reportDepth() {
	c.sys.metrics.MailboxDepth(c.label(), c.mb.Len())
}

// Handle returns the actor's own address.
func (c *cell) Handle() Handle { return Handle{cb: c.cb} }

// ID returns the actor id.
func (c *cell) ID() uint64 { return c.cb.id }

// Name returns the spawn name.
func (c *cell) Name() string { return c.cb.name }

// Log returns the actor scoped logger.
func (c *cell) Log() *slog.Logger { return c.log }

// Context is canceled when the actor terminates.
func (c *cell) Context() context.Context { return c.ctx }

// System returns the owning actor system.
func (c *cell) System() *System { return c.sys }

// Weak returns a weak reference to the actor itself, for capture in callbacks
// that must not keep it alive.
func (c *cell) Weak() *WeakRef { return c.Handle().Weak() }

// CurrentSender returns the sender of the message being processed.
func (c *cell) CurrentSender() Handle {
	if c.current == nil {
		return Handle{}
	}
	return c.current.Sender
}

// CurrentMessageID returns the id of the message being processed.
func (c *cell) CurrentMessageID() MessageID {
	if c.current == nil {
		return 0
	}
	return c.current.ID
}

// Send delivers payload to dst as an asynchronous message.
func (c *cell) Send(dst Handle, payload any, opts ...MailOption) error {
	o := buildMailOptions(opts)
	_, err := c.sys.send(c.Handle(), dst, AsyncID(o.priority), payload, o)
	return err
}

// DelayedSend delivers payload to dst after d. Disposing the returned value
// cancels the delivery.
func (c *cell) DelayedSend(dst Handle, d time.Duration, payload any, opts ...MailOption) (clock.Disposable, error) {
	o := buildMailOptions(append(opts, After(d)))
	return c.sys.send(c.Handle(), dst, AsyncID(o.priority), payload, o)
}

// MakePromise takes over the response obligation of the current message. The
// handler's return value is then ignored. A second call for the same message,
// or a call outside of message processing, returns a satisfied promise.
func (c *cell) MakePromise() *Promise {
	if c.current == nil || c.promised {
		st := &promiseState{}
		st.state.Store(promiseDone)
		return &Promise{st: st}
	}
	c.promised = true
	e := c.current
	st := &promiseState{
		self:   c.Handle(),
		source: e.Sender,
		stages: e.Stages,
		id:     e.ID,
	}
	c.promMu.Lock()
	c.promises[st] = struct{}{}
	c.promMu.Unlock()

	p := &Promise{st: st}
	runtime.AddCleanup(p, func(st *promiseState) { st.abandon() }, st)
	return p
}

func (c *cell) untrack(st *promiseState) {
	c.promMu.Lock()
	delete(c.promises, st)
	c.promMu.Unlock()
}

func (c *cell) breakPromises() {
	c.promMu.Lock()
	pending := make([]*promiseState, 0, len(c.promises))
	for st := range c.promises {
		pending = append(pending, st)
	}
	c.promMu.Unlock()
	for _, st := range pending {
		st.abandon()
	}
}

// beginMessage makes e the current message.
func (c *cell) beginMessage(e *Envelope) {
	c.current = e
	c.promised = false
}

// finishMessage answers the current message with res unless a promise took
// over.
func (c *cell) finishMessage(res Result) {
	e := c.current
	c.current = nil
	if c.promised || e == nil {
		return
	}
	respond(c.Handle(), e.Sender, e.Stages, e.ID, res)
}

// invoke runs bhvr on e. A panicking handler answers with ErrHandlerPanic.
func (c *cell) invoke(bhvr Behavior, e *Envelope) (res Result, handled bool) {
	defer func() {
		if r := recover(); r != nil {
			c.sys.recovered(r, e.Content)
			res, handled = Fail(fmt.Errorf("%w: %v", ErrHandlerPanic, r)), true
		}
	}()
	return bhvr.Handle(e.Content)
}

// safely runs fn, reporting a panic instead of propagating it.
func (c *cell) safely(msg Result, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.sys.recovered(r, msg)
		}
	}()
	fn()
}

// request sends payload as request id to dst and arms the request timeout.
// Failures are queued to the requester as the response. check, if set,
// rejects responses the receiver declares incompatibly.
func (c *cell) request(dst Handle, id MessageID, timeout time.Duration, payload any, o mailOptions, check func(reflect.Type) bool) clock.Disposable {
	fail := func(err error) clock.Disposable {
		c.enqueue(&Envelope{ID: id.Response(), Content: Fail(err)})
		return clock.Disposed()
	}
	if !dst.Valid() {
		return fail(fmt.Errorf("%w: invalid receiver", ErrInvalidRequest))
	}
	if err := o.checkStages(); err != nil {
		return fail(err)
	}
	content, err := contentOf(payload)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}
	if len(o.stages) > 0 {
		// the last stage answers, not dst
		check = nil
	}
	if err := checkResponse(dst, content, check); err != nil {
		return fail(err)
	}
	c.sys.deliver(c.Handle(), dst, id, content, o)
	if timeout <= 0 {
		return clock.Disposed()
	}
	return c.armRequestTimeout(o.deadline(c.sys.clock.Now()).Add(timeout), id)
}

func checkResponse(dst Handle, content Result, check func(reflect.Type) bool) error {
	if check == nil || !content.IsValue() {
		return nil
	}
	b := dst.behavior()
	if b == nil {
		return nil
	}
	want, ok := b.ResponseType(content.value)
	if !ok || check(want) {
		return nil
	}
	return fmt.Errorf("%w: %s answers %T with %s", ErrUnexpectedResponse, dst, content.value, want)
}

func (c *cell) terminated() bool { return c.exit.Load() != nil }

// Reason returns why the actor terminated, nil for a normal exit.
func (c *cell) Reason() error {
	if x := c.exit.Load(); x != nil {
		return x.reason
	}
	return nil
}

func (c *cell) terminate(reason error) {
	if !c.exit.CompareAndSwap(nil, &exitMsg{reason: reason}) {
		return
	}
	for _, e := range c.mb.Close() {
		bounce(c.sys, e, ErrRequestReceiverDown)
	}
	c.breakPromises()
	c.cancel()
	c.sys.unregister(c)

	if reason == nil || errors.Is(reason, ErrActorTerminated) {
		c.log.Debug("actor terminated")
	} else {
		c.log.Warn("actor terminated", slog.Any("reason", reason))
	}
	close(c.cb.done)
	c.self.Release()
}

// bounce answers an undeliverable request with err.
func bounce(sys *System, e *Envelope, err error) {
	if sys != nil {
		sys.metrics.MessageBounced(errorLabel(err))
	}
	if !e.ID.IsRequest() {
		return
	}
	respond(Handle{}, e.Sender, nil, e.ID, Fail(err))
}

// respond routes res for a message with the given routing data. Pending
// stages take precedence over the source; asynchronous messages only produce
// a message if there is something to say.
func respond(from, source Handle, stages []Handle, id MessageID, res Result) {
	if res.IsSkip() {
		return
	}
	if n := len(stages); n > 0 {
		next := stages[n-1]
		next.enqueue(&Envelope{
			Sender:  source,
			ID:      id,
			Stages:  stages[: n-1 : n-1],
			Content: res,
		})
		return
	}
	if !source.Valid() {
		return
	}
	if id.IsAsync() {
		if res.IsVoid() {
			return
		}
		source.enqueue(&Envelope{Sender: from, ID: AsyncID(id.Priority()), Content: res})
		return
	}
	source.enqueue(&Envelope{Sender: from, ID: id.Response(), Content: res})
}
