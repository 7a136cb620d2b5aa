package actor

import (
	"fmt"
	"time"
)

// Envelope is a mailbox element: who sent what, under which message id.
type Envelope struct {
	Sender  Handle    // zero for anonymous sends
	ID      MessageID // correlation id
	Stages  []Handle  // forwarding stack, the last entry is the next hop
	Content Result
}

// exitMsg asks an actor to terminate.
type exitMsg struct{ reason error }

// receiveTimeout is the self-addressed message behind behavior timeouts.
type receiveTimeout struct{ gen uint64 }

func (e *Envelope) exitSignal() (exitMsg, bool) {
	if !e.Content.IsValue() {
		return exitMsg{}, false
	}
	x, ok := e.Content.value.(exitMsg)
	return x, ok
}

func (e *Envelope) timeoutSignal() (receiveTimeout, bool) {
	if !e.Content.IsValue() {
		return receiveTimeout{}, false
	}
	x, ok := e.Content.value.(receiveTimeout)
	return x, ok
}

// ---- mail options ----

type mailOptions struct {
	priority     Priority
	delay        time.Duration
	at           time.Time
	weakSender   bool
	weakReceiver bool
	// stages is a stack: the last element handles the result next.
	stages []Handle
}

func (o mailOptions) delayed() bool { return o.delay > 0 || !o.at.IsZero() }

// MailOption configures a send or request.
type MailOption func(*mailOptions)

// Urgent delivers the message in the high priority tier.
func Urgent() MailOption {
	return func(o *mailOptions) { o.priority = PriorityHigh }
}

// After defers delivery by d.
func After(d time.Duration) MailOption {
	return func(o *mailOptions) { o.delay = d }
}

// At defers delivery to t.
func At(t time.Time) MailOption {
	return func(o *mailOptions) { o.at = t }
}

// WeakReceiver makes a deferred delivery check the receiver's liveness at
// fire time instead of keeping it alive.
func WeakReceiver() MailOption {
	return func(o *mailOptions) { o.weakReceiver = true }
}

// WeakSender drops a deferred delivery silently if the sender terminated
// before fire time.
func WeakSender() MailOption {
	return func(o *mailOptions) { o.weakSender = true }
}

// Via routes the result of the message through stages before it reaches the
// sender. The receiver's result is handed to stages[0] as its message, that
// result to stages[1], and so on; the last stage answers the sender.
func Via(stages ...Handle) MailOption {
	return func(o *mailOptions) {
		o.stages = make([]Handle, 0, len(stages))
		for i := len(stages) - 1; i >= 0; i-- {
			o.stages = append(o.stages, stages[i])
		}
	}
}

func (o mailOptions) checkStages() error {
	for i, h := range o.stages {
		if !h.Valid() {
			return fmt.Errorf("%w: invalid stage at index %d", ErrInvalidRequest, len(o.stages)-1-i)
		}
	}
	return nil
}

func buildMailOptions(opts []MailOption) mailOptions {
	var o mailOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o mailOptions) deadline(now time.Time) time.Time {
	if !o.at.IsZero() {
		return o.at
	}
	return now.Add(o.delay)
}
