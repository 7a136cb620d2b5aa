package actor

import (
	"sync"
	"time"

	"github.com/codewandler/actr-go/core/clock"
)

// delayed couples a clock action with the references it holds.
type delayed struct {
	inner   clock.Disposable
	release func()
}

func (d *delayed) Dispose() {
	d.inner.Dispose()
	d.release()
}

func (d *delayed) IsDisposed() bool { return d.inner.IsDisposed() }

// scheduleMessage delivers e to receiver at t.
//
// Strong references keep their actor state until the message fired or was
// disposed. At fire time a weak receiver that is gone answers a request with
// ErrRequestReceiverDown, and a weak sender that is gone suppresses the
// message entirely.
func (s *System) scheduleMessage(e *Envelope, weakSender bool, receiver Handle, weakReceiver bool, at time.Time) clock.Disposable {
	sender := e.Sender
	var (
		senderStrong, receiverStrong *StrongRef
		senderWeak, receiverWeak     *WeakRef
	)
	if sender.Valid() {
		if weakSender {
			senderWeak = sender.Weak()
		} else {
			senderStrong = sender.Strong()
		}
	}
	if weakReceiver {
		receiverWeak = receiver.Weak()
	} else {
		receiverStrong = receiver.Strong()
	}

	release := sync.OnceFunc(func() {
		senderStrong.Release()
		senderWeak.Release()
		receiverStrong.Release()
		receiverWeak.Release()
	})

	fire := func() {
		defer release()
		if senderWeak != nil {
			ref, ok := senderWeak.Upgrade()
			if !ok {
				return
			}
			defer ref.Release()
		}
		if receiverWeak != nil {
			ref, ok := receiverWeak.Upgrade()
			if !ok {
				if e.ID.IsRequest() {
					bounce(s, e, ErrRequestReceiverDown)
				}
				return
			}
			defer ref.Release()
		}
		receiver.enqueue(e)
	}

	return &delayed{inner: s.clock.Schedule(at, fire), release: release}
}

// armRequestTimeout answers every id with ErrRequestTimeout once at passes.
// The requester is referenced weakly.
func (c *cell) armRequestTimeout(at time.Time, ids ...MessageID) clock.Disposable {
	weak := c.Weak()
	release := sync.OnceFunc(weak.Release)
	fire := func() {
		defer release()
		ref, ok := weak.Upgrade()
		if !ok {
			return
		}
		defer ref.Release()
		c.sys.metrics.RequestTimedOut()
		for _, id := range ids {
			c.enqueue(&Envelope{ID: id.Response(), Content: Fail(ErrRequestTimeout)})
		}
	}
	return &delayed{inner: c.sys.clock.Schedule(at, fire), release: release}
}
