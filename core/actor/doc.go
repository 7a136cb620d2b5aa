// Package actor implements the message passing core of an actor runtime.
//
// Actors live in a [System] and are addressed through [Handle] values. Each
// actor owns a mailbox with an urgent and a normal tier and processes one
// message at a time with its current [Behavior].
//
// Requests carry a [MessageID] that the response echoes with its response
// flag set. Event-based actors ([Self]) collect responses with
// [Response.Then], which keeps the actor responsive, or [Response.Await],
// which suspends everything but the awaited response. Blocking actors
// ([Blocking]) use [RequestSync] and receive explicitly. [FanOut] and
// [FanOutSync] send one request to many actors and combine the answers with
// SelectAll or SelectAny.
//
// A handler that cannot answer right away takes over the response with
// MakePromise and satisfies the returned [Promise] later, possibly by
// delegating to another actor. Promises that are dropped while pending answer
// with [ErrBrokenPromise].
//
// Timeouts and delayed messages are driven by a [clock.Clock], so tests can
// use [clock.Manual] for deterministic timing.
package actor
