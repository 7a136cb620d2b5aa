package actor

import (
	"errors"

	"github.com/codewandler/actr-go/core/metrics"
)

// ActorMetrics defines the metrics interface of the actor runtime.
// All methods are thread-safe.
type ActorMetrics interface {
	// Message handling
	MessageDuration(msgType string) metrics.Timer
	MessageProcessed(msgType string, success bool)
	MessagePanic(msgType string)
	MessageBounced(reason string)

	// Mailbox
	MailboxDepth(actor string, depth int)
	MailboxRemoved(actor string)

	// Requests and promises
	RequestTimedOut()
	PromiseBroken()

	// Lifecycle
	ActorSpawned(kind string)
	ActorTerminated(kind string)

	// Scheduler
	SchedulerInflight(pool string, count int)
	SchedulerTaskDuration() metrics.Timer
	SchedulerTaskCompleted(success bool)
}

// nopActorMetrics is a no-op implementation of ActorMetrics.
type nopActorMetrics struct{}

func (nopActorMetrics) MessageDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopActorMetrics) MessageProcessed(string, bool)        {}
func (nopActorMetrics) MessagePanic(string)                  {}
func (nopActorMetrics) MessageBounced(string)                {}

func (nopActorMetrics) MailboxDepth(string, int) {}
func (nopActorMetrics) MailboxRemoved(string)    {}

func (nopActorMetrics) RequestTimedOut() {}
func (nopActorMetrics) PromiseBroken()   {}

func (nopActorMetrics) ActorSpawned(string)    {}
func (nopActorMetrics) ActorTerminated(string) {}

func (nopActorMetrics) SchedulerInflight(string, int)        {}
func (nopActorMetrics) SchedulerTaskDuration() metrics.Timer { return metrics.NopTimer() }
func (nopActorMetrics) SchedulerTaskCompleted(bool)          {}

// NopActorMetrics returns a no-op ActorMetrics implementation.
func NopActorMetrics() ActorMetrics { return nopActorMetrics{} }

func errorLabel(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrRequestReceiverDown):
		return "receiver_down"
	case errors.Is(err, ErrRequestTimeout):
		return "timeout"
	case errors.Is(err, ErrBrokenPromise):
		return "broken_promise"
	default:
		return "other"
	}
}
