package actor

import "errors"

var (
	// ErrInvalidRequest: the receiver of a send or request was invalid.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRequestTimeout: no response arrived within the request timeout.
	ErrRequestTimeout = errors.New("request timeout")
	// ErrRequestReceiverDown: the receiver terminated before handling the request.
	ErrRequestReceiverDown = errors.New("request receiver down")
	// ErrUnexpectedResponse: a response did not match the expected type.
	ErrUnexpectedResponse = errors.New("unexpected response")
	// ErrInvalidDelegate: the delegation target was invalid.
	ErrInvalidDelegate = errors.New("invalid delegate")
	// ErrLogic: misuse of the API, e.g. satisfying a promise twice.
	ErrLogic = errors.New("logic error")
	// ErrBrokenPromise: a promise was abandoned without a response.
	ErrBrokenPromise = errors.New("broken promise")
	// ErrUnexpectedMessage: the receiver had no handler for a request.
	ErrUnexpectedMessage = errors.New("unexpected message")
	// ErrAllRequestsFailed: every request of a select-any fan-out failed.
	ErrAllRequestsFailed = errors.New("all requests failed")
	// ErrNoTypeID: the payload has no stable type identity.
	ErrNoTypeID = errors.New("payload has no type id")
	// ErrActorTerminated: the actor is no longer running.
	ErrActorTerminated = errors.New("actor terminated")
	// ErrHandlerPanic: a handler panicked while processing the message.
	ErrHandlerPanic = errors.New("handler panicked")
)
