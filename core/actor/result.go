package actor

import (
	"errors"
	"fmt"
	"reflect"
)

type resultKind uint8

const (
	kindVoid resultKind = iota
	kindValue
	kindError
	kindSkip
)

// Result is the outcome of a handler or the content of a message: a value, an
// error or nothing (void). Handlers may additionally return [Skip].
type Result struct {
	kind  resultKind
	value any
	err   error
}

// Unit is the response type of handlers that reply with nothing.
type Unit struct{}

var unitType = reflect.TypeFor[Unit]()

// Value wraps v. A nil v is void; an error v is an error result.
func Value(v any) Result {
	switch x := v.(type) {
	case nil:
		return Void()
	case Result:
		return x
	case Unit:
		return Void()
	case error:
		return Fail(x)
	}
	return Result{kind: kindValue, value: v}
}

// Fail wraps err. A nil err is void.
func Fail(err error) Result {
	if err == nil {
		return Void()
	}
	return Result{kind: kindError, err: err}
}

// Void is the empty result.
func Void() Result { return Result{} }

// Skip tells the runtime to leave the message in the mailbox and retry it
// after the next behavior change.
func Skip() Result { return Result{kind: kindSkip} }

// From builds a Result from the usual (value, error) pair.
func From(v any, err error) Result {
	if err != nil {
		return Fail(err)
	}
	return Value(v)
}

func (r Result) IsValue() bool { return r.kind == kindValue }
func (r Result) IsError() bool { return r.kind == kindError }
func (r Result) IsVoid() bool  { return r.kind == kindVoid }
func (r Result) IsSkip() bool  { return r.kind == kindSkip }

// Value returns the wrapped value, nil unless IsValue.
func (r Result) Value() any { return r.value }

// Err returns the wrapped error, nil unless IsError.
func (r Result) Err() error { return r.err }

func (r Result) String() string {
	switch r.kind {
	case kindValue:
		return fmt.Sprintf("value(%v)", r.value)
	case kindError:
		return fmt.Sprintf("error(%v)", r.err)
	case kindSkip:
		return "skip"
	default:
		return "void"
	}
}

// As converts a response to R. Errors pass through; a void result converts to
// Unit or to a nil interface; any other mismatch is ErrUnexpectedResponse.
func As[R any](r Result) (out R, err error) {
	switch r.kind {
	case kindError:
		return out, r.err
	case kindVoid:
		if v, ok := any(Unit{}).(R); ok && acceptsVoid[R]() {
			return v, nil
		}
		if reflect.TypeFor[R]().Kind() == reflect.Interface {
			return out, nil
		}
		return out, fmt.Errorf("%w: got void, want %s", ErrUnexpectedResponse, reflect.TypeFor[R]())
	case kindValue:
		if v, ok := r.value.(R); ok {
			return v, nil
		}
		return out, fmt.Errorf("%w: got %T, want %s", ErrUnexpectedResponse, r.value, reflect.TypeFor[R]())
	}
	return out, errors.New("actor: cannot convert skip result")
}

func acceptsVoid[R any]() bool { return reflect.TypeFor[R]() == unitType }

// assignable reports whether a response declared as type want can possibly be
// converted to R.
func assignable[R any](want reflect.Type) bool {
	rt := reflect.TypeFor[R]()
	if want == unitType {
		return rt == unitType || rt.Kind() == reflect.Interface
	}
	if want.AssignableTo(rt) {
		return true
	}
	// an interface declaration may still carry an R at runtime
	return want.Kind() == reflect.Interface && (rt.Kind() == reflect.Interface || rt.Implements(want))
}
