package actor

import (
	"reflect"
	"time"
)

// Case is one entry of a Behavior: a typed pattern plus the handler run for
// matching messages.
type Case struct {
	in    reflect.Type // nil for OnError
	out   reflect.Type // declared response type, nil if unknown
	match func(msg Result) (Result, bool)
}

func typedCase[T any](out reflect.Type, pred func(T) bool, fn func(T) Result) Case {
	isUnit := reflect.TypeFor[T]() == unitType
	return Case{
		in:  reflect.TypeFor[T](),
		out: out,
		match: func(msg Result) (Result, bool) {
			var v T
			switch {
			case msg.IsValue():
				x, ok := msg.value.(T)
				if !ok {
					return Result{}, false
				}
				v = x
			case msg.IsVoid() && isUnit:
			default:
				return Result{}, false
			}
			if pred != nil && !pred(v) {
				return Result{}, false
			}
			return fn(v), true
		},
	}
}

// On handles messages of type T.
func On[T any](fn func(T) Result) Case {
	return typedCase(nil, nil, fn)
}

// Reply handles requests of type T and answers with an R. Requests sent to the
// actor with a mismatching expected response type fail at registration.
func Reply[T, R any](fn func(T) (R, error)) Case {
	return typedCase(reflect.TypeFor[R](), nil, func(v T) Result {
		r, err := fn(v)
		if err != nil {
			return Fail(err)
		}
		return Value(r)
	})
}

// Do handles messages of type T and answers with nothing or the error.
func Do[T any](fn func(T) error) Case {
	return typedCase(unitType, nil, func(v T) Result {
		return Fail(fn(v))
	})
}

// When handles messages of type T for which pred holds.
func When[T any](pred func(T) bool, fn func(T) Result) Case {
	return typedCase(nil, pred, fn)
}

// OnError handles error messages.
func OnError(fn func(error) Result) Case {
	return Case{
		match: func(msg Result) (Result, bool) {
			if !msg.IsError() {
				return Result{}, false
			}
			return fn(msg.err), true
		},
	}
}

type behaviorShape uint8

const (
	shapePlain behaviorShape = iota
	shapeFallback
	shapeTimeout
	shapeFallbackTimeout
)

// Behavior is an immutable, ordered set of cases with an optional fallback
// and an optional idle timeout. The first matching case wins.
type Behavior struct {
	cases     []Case
	fallback  func(Result) Result
	timeout   time.Duration
	onTimeout func()
}

// NewBehavior builds a behavior from cases in declaration order.
func NewBehavior(cases ...Case) Behavior {
	return Behavior{cases: append([]Case(nil), cases...)}
}

// WithFallback returns a copy of b that passes unmatched messages to fn.
func (b Behavior) WithFallback(fn func(Result) Result) Behavior {
	b.fallback = fn
	return b
}

// WithTimeout returns a copy of b that runs fn once if no message is handled
// for d after the behavior became active or last handled a message.
func (b Behavior) WithTimeout(d time.Duration, fn func()) Behavior {
	if d <= 0 || fn == nil {
		b.timeout, b.onTimeout = 0, nil
		return b
	}
	b.timeout, b.onTimeout = d, fn
	return b
}

func (b Behavior) shape() behaviorShape {
	switch {
	case b.fallback != nil && b.onTimeout != nil:
		return shapeFallbackTimeout
	case b.fallback != nil:
		return shapeFallback
	case b.onTimeout != nil:
		return shapeTimeout
	default:
		return shapePlain
	}
}

// Empty reports whether b handles nothing. An actor whose behavior is empty
// terminates once no responses are pending.
func (b Behavior) Empty() bool {
	return len(b.cases) == 0 && b.shape() == shapePlain
}

// Timeout returns the idle timeout, if any.
func (b Behavior) Timeout() (time.Duration, bool) {
	switch b.shape() {
	case shapeTimeout, shapeFallbackTimeout:
		return b.timeout, true
	}
	return 0, false
}

func (b Behavior) fireTimeout() {
	if b.onTimeout != nil {
		b.onTimeout()
	}
}

// Handle runs the first case matching msg. It reports false if nothing matched
// and no fallback is set.
func (b Behavior) Handle(msg Result) (Result, bool) {
	for _, c := range b.cases {
		if res, ok := c.match(msg); ok {
			return res, true
		}
	}
	switch b.shape() {
	case shapeFallback, shapeFallbackTimeout:
		return b.fallback(msg), true
	}
	return Result{}, false
}

// ResponseType returns the declared response type of the case that would
// handle payload.
func (b Behavior) ResponseType(payload any) (reflect.Type, bool) {
	if payload == nil {
		return nil, false
	}
	pt := reflect.TypeOf(payload)
	for _, c := range b.cases {
		if c.in == nil {
			continue
		}
		if pt == c.in || (c.in.Kind() == reflect.Interface && pt.Implements(c.in)) {
			return c.out, c.out != nil
		}
	}
	return nil, false
}
