package actor

import (
	"fmt"
	"log/slog"

	"github.com/codewandler/actr-go/core/clock"
)

type pendingResponse struct {
	timeout clock.Disposable // disposed when the response arrives
	batch   clock.Disposable // shared fan-out timeout, disposed on termination only
	fn      func(Result)
}

func (p *pendingResponse) dispose() {
	p.timeout.Dispose()
	if p.batch != nil {
		p.batch.Dispose()
	}
}

// awaitGroup is one Await registration. Fan-out awaits register several ids
// at once and are served in arrival order.
type awaitGroup struct {
	pending map[MessageID]*pendingResponse
}

// Self is an event-based actor. Its methods must only be called from the
// actor's own handlers and continuations.
type Self struct {
	*cell

	initFn     func(*Self) Behavior
	started    bool
	detached   bool
	bhvr       Behavior
	bhvrGen    uint64
	bhvrTmo    clock.Disposable
	awaited    []*awaitGroup
	multiplex  map[MessageID]*pendingResponse
	quitting   bool
	quitReason error
	errHandler func(error)
}

// Spawn starts an event-based actor. setup runs inside the actor before the
// first message and returns its initial behavior.
func (s *System) Spawn(setup func(self *Self) Behavior, opts ...SpawnOption) Handle {
	o := buildSpawnOptions(opts)
	c := s.newCell(o.name)
	c.kind = "event"
	a := &Self{
		cell:      c,
		initFn:    setup,
		detached:  o.detached,
		bhvrTmo:   clock.Disposed(),
		multiplex: map[MessageID]*pendingResponse{},
	}
	c.wake = a.schedule
	if err := s.register(c, true); err != nil {
		a.terminate(err)
		return c.Handle()
	}
	a.schedule()
	return c.Handle()
}

func (a *Self) schedule() {
	if a.detached {
		if err := a.sys.lanes.Go(a.cb.id, a.resume); err != nil {
			a.log.Warn("failed to schedule detached actor", slog.Any("error", err))
		}
		return
	}
	a.sys.sched.Schedule(a.resume)
}

func (a *Self) resume() {
	if a.terminated() {
		return
	}
	if !a.started {
		a.started = true
		a.safely(Void(), func() { a.Become(a.initFn(a)) })
		if a.finished() {
			return
		}
	}
	for range a.sys.throughput {
		e := a.next()
		if e == nil {
			if a.mb.TryBlock(len(a.awaited) > 0) {
				return
			}
			continue
		}
		a.process(e)
		if a.finished() {
			return
		}
	}
	// yield to other actors
	a.schedule()
}

// finished terminates the actor if it quit or has nothing left to do.
func (a *Self) finished() bool {
	switch {
	case a.quitting:
		a.terminate(a.quitReason)
	case a.bhvr.Empty() && len(a.awaited) == 0 && len(a.multiplex) == 0:
		a.terminate(nil)
	default:
		return false
	}
	return true
}

func (a *Self) next() *Envelope {
	var e *Envelope
	if len(a.awaited) == 0 {
		e = a.mb.Next()
	} else {
		g := a.awaited[0]
		e = a.mb.Take(func(e *Envelope) bool {
			if _, ok := e.exitSignal(); ok {
				return true
			}
			_, ok := g.pending[e.ID.key()]
			return ok && e.ID.IsResponse()
		})
	}
	if e != nil {
		a.reportDepth()
	}
	return e
}

func (a *Self) process(e *Envelope) {
	msgType := contentTypeOf(e.Content)
	defer a.sys.metrics.MessageDuration(msgType).ObserveDuration()

	if x, ok := e.exitSignal(); ok {
		a.Quit(x.reason)
		return
	}
	if e.ID.IsResponse() {
		a.handleResponse(e)
		return
	}
	if x, ok := e.timeoutSignal(); ok {
		if x.gen == a.bhvrGen {
			a.safely(e.Content, a.bhvr.fireTimeout)
		}
		return
	}

	a.beginMessage(e)
	res, handled := a.invoke(a.bhvr, e)
	switch {
	case !handled:
		a.current = nil
		a.unhandled(e)
		a.sys.metrics.MessageProcessed(msgType, false)
		return
	case res.IsSkip():
		a.current = nil
		a.mb.Stash(e)
		return
	}
	a.finishMessage(res)
	a.sys.metrics.MessageProcessed(msgType, !res.IsError())
	a.armTimeout()
}

func (a *Self) unhandled(e *Envelope) {
	switch {
	case e.ID.IsRequest():
		err := fmt.Errorf("%w: %s", ErrUnexpectedMessage, contentTypeOf(e.Content))
		respond(a.Handle(), e.Sender, e.Stages, e.ID, Fail(err))
	case e.Content.IsError():
		a.handleError(e.Content.err)
	default:
		a.log.Warn("unexpected message",
			slog.String("type", contentTypeOf(e.Content)),
			slog.String("sender", e.Sender.String()),
		)
	}
}

func (a *Self) handleResponse(e *Envelope) {
	k := e.ID.key()
	if len(a.awaited) > 0 {
		g := a.awaited[0]
		if p, ok := g.pending[k]; ok {
			delete(g.pending, k)
			if len(g.pending) == 0 {
				a.awaited = a.awaited[1:]
			}
			a.dispatch(p, e)
			return
		}
	}
	if p, ok := a.multiplex[k]; ok {
		delete(a.multiplex, k)
		a.dispatch(p, e)
		return
	}
	a.log.Debug("dropped unexpected response", slog.String("id", e.ID.String()))
}

func (a *Self) dispatch(p *pendingResponse, e *Envelope) {
	p.timeout.Dispose()
	a.safely(e.Content, func() { p.fn(e.Content) })
}

func (a *Self) handleError(err error) {
	if a.errHandler != nil {
		a.errHandler(err)
		return
	}
	a.log.Warn("unhandled error", slog.Any("error", err))
	a.Quit(err)
}

// addPending registers response continuations keyed by response id.
func (a *Self) addPending(await bool, entries map[MessageID]*pendingResponse) {
	if await {
		a.awaited = append([]*awaitGroup{{pending: entries}}, a.awaited...)
		return
	}
	for k, p := range entries {
		a.multiplex[k] = p
	}
}

// cancelPending forgets the given response ids. Late responses are dropped.
func (a *Self) cancelPending(keys []MessageID) {
	for _, k := range keys {
		delete(a.multiplex, k)
		for _, g := range a.awaited {
			delete(g.pending, k)
		}
	}
	kept := a.awaited[:0]
	for _, g := range a.awaited {
		if len(g.pending) > 0 {
			kept = append(kept, g)
		}
	}
	a.awaited = kept
}

func (a *Self) armTimeout() {
	a.bhvrTmo.Dispose()
	a.bhvrTmo = clock.Disposed()
	a.bhvrGen++
	d, ok := a.bhvr.Timeout()
	if !ok {
		return
	}
	at := a.sys.clock.Now().Add(d)
	e := &Envelope{ID: AsyncID(PriorityNormal), Content: Value(receiveTimeout{gen: a.bhvrGen})}
	a.bhvrTmo = a.sys.scheduleMessage(e, false, a.Handle(), true, at)
}

// Become replaces the behavior, restores stashed messages and restarts the
// idle timeout.
func (a *Self) Become(b Behavior) {
	a.bhvr = b
	a.cb.bhvr.Store(&b)
	a.mb.Unstash()
	a.armTimeout()
}

// Quit terminates the actor after the current message. A nil reason is a
// normal exit.
func (a *Self) Quit(reason error) {
	a.quitting = true
	a.quitReason = reason
}

// SetErrorHandler installs the handler for errors nobody else handled. The
// default terminates the actor with the error.
func (a *Self) SetErrorHandler(fn func(error)) { a.errHandler = fn }

func (a *Self) terminate(reason error) {
	a.bhvrTmo.Dispose()
	for _, p := range a.multiplex {
		p.dispose()
	}
	for _, g := range a.awaited {
		for _, p := range g.pending {
			p.dispose()
		}
	}
	a.multiplex = map[MessageID]*pendingResponse{}
	a.awaited = nil
	a.bhvr = Behavior{}
	a.cb.bhvr.Store(nil)
	a.cell.terminate(reason)
}
