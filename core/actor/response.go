package actor

import (
	"time"

	"github.com/codewandler/actr-go/core/clock"
)

// Infinite disables a request timeout.
const Infinite time.Duration = 0

// Response is the pending result of a request issued by an event-based actor.
type Response[R any] struct {
	self    *Self
	id      MessageID
	timeout clock.Disposable
}

// Request sends payload to dst and returns a handle for its response. A
// positive timeout answers with ErrRequestTimeout once it expires. Invalid
// receivers, payloads and response types are reported through the handle.
func Request[R any](self *Self, dst Handle, timeout time.Duration, payload any, opts ...MailOption) *Response[R] {
	o := buildMailOptions(opts)
	id := self.ids.next(o.priority)
	return &Response[R]{
		self:    self,
		id:      id,
		timeout: self.request(dst, id, timeout, payload, o, assignable[R]),
	}
}

// ID returns the request id.
func (r *Response[R]) ID() MessageID { return r.id }

// Timeout returns the pending request timeout.
func (r *Response[R]) Timeout() clock.Disposable { return r.timeout }

// Then handles the response whenever it arrives. The actor keeps processing
// other messages in the meantime. A nil onError hands errors to the actor's
// error handler.
func (r *Response[R]) Then(onValue func(R), onError func(error)) {
	r.self.addPending(false, r.entry(onValue, onError))
}

// Await suspends regular message processing until the response arrived.
// Nested awaits are served most recent first.
func (r *Response[R]) Await(onValue func(R), onError func(error)) {
	r.self.addPending(true, r.entry(onValue, onError))
}

func (r *Response[R]) entry(onValue func(R), onError func(error)) map[MessageID]*pendingResponse {
	return map[MessageID]*pendingResponse{
		r.id.Response().key(): {
			timeout: r.timeout,
			fn:      continuation(r.self, onValue, onError),
		},
	}
}

func continuation[R any](a *Self, onValue func(R), onError func(error)) func(Result) {
	return func(res Result) {
		v, err := As[R](res)
		if err != nil {
			if onError != nil {
				onError(err)
			} else {
				a.handleError(err)
			}
			return
		}
		if onValue != nil {
			onValue(v)
		}
	}
}

// TypedHandle addresses an actor known to answer In with Out.
type TypedHandle[In, Out any] struct {
	Handle
}

// Typed declares the interface of h.
func Typed[In, Out any](h Handle) TypedHandle[In, Out] {
	return TypedHandle[In, Out]{Handle: h}
}

// RequestTyped is Request with the payload and response types fixed by dst.
func RequestTyped[In, Out any](self *Self, dst TypedHandle[In, Out], timeout time.Duration, in In, opts ...MailOption) *Response[Out] {
	return Request[Out](self, dst.Handle, timeout, in, opts...)
}
