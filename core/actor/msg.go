package actor

import (
	"fmt"

	"github.com/codewandler/actr-go/core/reflector"
)

type msgTyper interface{ MsgType() string }

func msgTypeOf(x any) string {
	if mt, ok := x.(msgTyper); ok {
		return mt.MsgType()
	}
	return reflector.TypeInfoOf(x).Name
}

// contentTypeOf names the content of a message for metrics and logs.
func contentTypeOf(r Result) string {
	switch {
	case r.IsValue():
		return msgTypeOf(r.value)
	case r.IsError():
		return "error"
	default:
		return "void"
	}
}

// contentOf turns a payload into message content. Payloads must carry a stable
// type identity; errors and nil are always accepted.
func contentOf(payload any) (Result, error) {
	switch x := payload.(type) {
	case nil:
		return Void(), nil
	case Result:
		if x.IsSkip() {
			return Result{}, fmt.Errorf("%w: cannot send skip", ErrLogic)
		}
		if x.IsValue() && !reflector.HasTypeID(x.value) {
			return Result{}, fmt.Errorf("%w: %T", ErrNoTypeID, x.value)
		}
		return x, nil
	case error:
		return Fail(x), nil
	}
	if !reflector.HasTypeID(payload) {
		return Result{}, fmt.Errorf("%w: %T", ErrNoTypeID, payload)
	}
	return Value(payload), nil
}
