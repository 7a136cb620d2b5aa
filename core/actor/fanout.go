package actor

import (
	"fmt"
	"reflect"
	"time"

	"github.com/codewandler/actr-go/core/clock"
	"github.com/codewandler/actr-go/core/ds"
)

// fanOut sends payload to every target under its own request id. All requests
// share a single timeout. It returns the response keys in target order.
func (c *cell) fanOut(targets []Handle, timeout time.Duration, payload any, o mailOptions, check func(reflect.Type) bool) ([]MessageID, clock.Disposable, error) {
	if len(targets) == 0 {
		return nil, clock.Disposed(), fmt.Errorf("%w: no targets", ErrInvalidRequest)
	}
	for i, dst := range targets {
		if !dst.Valid() {
			return nil, clock.Disposed(), fmt.Errorf("%w: invalid target at index %d", ErrInvalidRequest, i)
		}
	}
	if err := o.checkStages(); err != nil {
		return nil, clock.Disposed(), err
	}
	content, err := contentOf(payload)
	if err != nil {
		return nil, clock.Disposed(), fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if len(o.stages) > 0 {
		check = nil
	}

	ids := make([]MessageID, len(targets))
	keys := make([]MessageID, len(targets))
	for i, dst := range targets {
		id := c.ids.next(o.priority)
		ids[i], keys[i] = id, id.Response().key()
		if err := checkResponse(dst, content, check); err != nil {
			c.enqueue(&Envelope{ID: id.Response(), Content: Fail(err)})
			continue
		}
		c.sys.deliver(c.Handle(), dst, id, content, o)
	}
	if timeout <= 0 {
		return keys, clock.Disposed(), nil
	}
	return keys, c.armRequestTimeout(o.deadline(c.sys.clock.Now()).Add(timeout), ids...), nil
}

// allCollector gathers one value per target and fails on the first error.
type allCollector[R any] struct {
	index   map[MessageID]int
	pending *ds.Set[MessageID]
	values  []R
	done    bool
}

func newAllCollector[R any](keys []MessageID) *allCollector[R] {
	c := &allCollector[R]{
		index:   make(map[MessageID]int, len(keys)),
		pending: ds.NewSet(keys...),
		values:  make([]R, len(keys)),
	}
	for i, k := range keys {
		c.index[k] = i
	}
	return c
}

// add records a response and reports whether the aggregate is complete.
func (c *allCollector[R]) add(key MessageID, res Result) (bool, []R, error) {
	if c.done || !c.pending.Remove(key) {
		return false, nil, nil
	}
	v, err := As[R](res)
	if err != nil {
		c.done = true
		return true, nil, err
	}
	c.values[c.index[key]] = v
	if c.pending.IsEmpty() {
		c.done = true
		return true, c.values, nil
	}
	return false, nil, nil
}

// anyCollector picks the first successful response.
type anyCollector[R any] struct {
	pending *ds.Set[MessageID]
	done    bool
	lastErr error
}

func newAnyCollector[R any](keys []MessageID) *anyCollector[R] {
	return &anyCollector[R]{pending: ds.NewSet(keys...)}
}

func (c *anyCollector[R]) add(key MessageID, res Result) (bool, R, error) {
	var zero R
	if c.done || !c.pending.Remove(key) {
		return false, zero, nil
	}
	v, err := As[R](res)
	if err == nil {
		c.done = true
		return true, v, nil
	}
	c.lastErr = err
	if c.pending.IsEmpty() {
		c.done = true
		return true, zero, fmt.Errorf("%w: %w", ErrAllRequestsFailed, c.lastErr)
	}
	return false, zero, nil
}

// ---- event-based ----

// FanOutRequest is a batch of identical requests issued by an event-based actor.
type FanOutRequest[R any] struct {
	self    *Self
	keys    []MessageID
	timeout clock.Disposable
	err     error
}

// FanOut sends payload to all targets. Choose how responses combine with
// SelectAll or SelectAny.
func FanOut[R any](self *Self, targets []Handle, timeout time.Duration, payload any, opts ...MailOption) *FanOutRequest[R] {
	keys, tmo, err := self.fanOut(targets, timeout, payload, buildMailOptions(opts), assignable[R])
	return &FanOutRequest[R]{self: self, keys: keys, timeout: tmo, err: err}
}

// Timeout returns the shared batch timeout.
func (f *FanOutRequest[R]) Timeout() clock.Disposable { return f.timeout }

// register installs fn for every key, or reports the setup error through
// the mailbox.
func (f *FanOutRequest[R]) register(await bool, fn func(key MessageID, res Result), onError func(error)) {
	a := f.self
	if f.err != nil {
		id := a.ids.next(PriorityNormal)
		a.enqueue(&Envelope{ID: id.Response(), Content: Fail(f.err)})
		a.addPending(await, map[MessageID]*pendingResponse{
			id.Response().key(): {timeout: clock.Disposed(), fn: continuation[R](a, nil, onError)},
		})
		return
	}
	entries := make(map[MessageID]*pendingResponse, len(f.keys))
	for _, k := range f.keys {
		entries[k] = &pendingResponse{
			timeout: clock.Disposed(),
			batch:   f.timeout,
			fn:      func(res Result) { fn(k, res) },
		}
	}
	a.addPending(await, entries)
}

func (f *FanOutRequest[R]) finish(remaining *ds.Set[MessageID]) {
	f.timeout.Dispose()
	f.self.cancelPending(remaining.Values())
}

func (f *FanOutRequest[R]) fail(onError func(error), err error) {
	if onError != nil {
		onError(err)
		return
	}
	f.self.handleError(err)
}

// SelectAll combines all responses in target order.
func (f *FanOutRequest[R]) SelectAll() *SelectAll[R] { return &SelectAll[R]{f: f} }

// SelectAny picks the first successful response.
func (f *FanOutRequest[R]) SelectAny() *SelectAny[R] { return &SelectAny[R]{f: f} }

type SelectAll[R any] struct{ f *FanOutRequest[R] }

func (s *SelectAll[R]) Then(onValue func([]R), onError func(error)) {
	s.f.register(false, s.collect(onValue, onError), onError)
}

func (s *SelectAll[R]) Await(onValue func([]R), onError func(error)) {
	s.f.register(true, s.collect(onValue, onError), onError)
}

func (s *SelectAll[R]) collect(onValue func([]R), onError func(error)) func(MessageID, Result) {
	c := newAllCollector[R](s.f.keys)
	return func(key MessageID, res Result) {
		done, values, err := c.add(key, res)
		if !done {
			return
		}
		s.f.finish(c.pending)
		if err != nil {
			s.f.fail(onError, err)
			return
		}
		if onValue != nil {
			onValue(values)
		}
	}
}

type SelectAny[R any] struct{ f *FanOutRequest[R] }

func (s *SelectAny[R]) Then(onValue func(R), onError func(error)) {
	s.f.register(false, s.collect(onValue, onError), onError)
}

func (s *SelectAny[R]) Await(onValue func(R), onError func(error)) {
	s.f.register(true, s.collect(onValue, onError), onError)
}

func (s *SelectAny[R]) collect(onValue func(R), onError func(error)) func(MessageID, Result) {
	c := newAnyCollector[R](s.f.keys)
	return func(key MessageID, res Result) {
		done, v, err := c.add(key, res)
		if !done {
			return
		}
		s.f.finish(c.pending)
		if err != nil {
			s.f.fail(onError, err)
			return
		}
		if onValue != nil {
			onValue(v)
		}
	}
}

// ---- blocking ----

// FanOutSyncRequest is a batch of identical requests issued by a blocking actor.
type FanOutSyncRequest[R any] struct {
	b       *Blocking
	keys    []MessageID
	timeout clock.Disposable
	err     error
}

// FanOutSync sends payload to all targets from a blocking actor.
func FanOutSync[R any](b *Blocking, targets []Handle, timeout time.Duration, payload any, opts ...MailOption) *FanOutSyncRequest[R] {
	keys, tmo, err := b.fanOut(targets, timeout, payload, buildMailOptions(opts), assignable[R])
	for _, k := range keys {
		b.expecting.Add(k)
	}
	return &FanOutSyncRequest[R]{b: b, keys: keys, timeout: tmo, err: err}
}

// Timeout returns the shared batch timeout.
func (f *FanOutSyncRequest[R]) Timeout() clock.Disposable { return f.timeout }

func (f *FanOutSyncRequest[R]) SelectAll() *SelectAllSync[R] { return &SelectAllSync[R]{f: f} }

func (f *FanOutSyncRequest[R]) SelectAny() *SelectAnySync[R] { return &SelectAnySync[R]{f: f} }

// receive runs add for each matching response until it reports completion.
func (f *FanOutSyncRequest[R]) receive(pending *ds.Set[MessageID], add func(MessageID, Result) bool) error {
	if f.err != nil {
		return f.err
	}
	err := f.b.receiveResponses(pending.Contains, func(e *Envelope) bool {
		return add(e.ID.key(), e.Content)
	})
	f.timeout.Dispose()
	f.b.forget(pending.Values())
	return err
}

type SelectAllSync[R any] struct{ f *FanOutSyncRequest[R] }

// Receive blocks until all responses arrived or one failed.
func (s *SelectAllSync[R]) Receive(onValue func([]R), onError func(error)) {
	c := newAllCollector[R](s.f.keys)
	var (
		values []R
		failed error
	)
	err := s.f.receive(c.pending, func(k MessageID, res Result) bool {
		done, vs, err := c.add(k, res)
		values, failed = vs, err
		return done
	})
	if err == nil {
		err = failed
	}
	if err != nil {
		s.f.b.dispatchError(onError, err)
		return
	}
	if onValue != nil {
		onValue(values)
	}
}

type SelectAnySync[R any] struct{ f *FanOutSyncRequest[R] }

// Receive blocks until one response succeeded or all failed.
func (s *SelectAnySync[R]) Receive(onValue func(R), onError func(error)) {
	c := newAnyCollector[R](s.f.keys)
	var (
		value  R
		failed error
	)
	err := s.f.receive(c.pending, func(k MessageID, res Result) bool {
		done, v, err := c.add(k, res)
		value, failed = v, err
		return done
	})
	if err == nil {
		err = failed
	}
	if err != nil {
		s.f.b.dispatchError(onError, err)
		return
	}
	if onValue != nil {
		onValue(value)
	}
}
