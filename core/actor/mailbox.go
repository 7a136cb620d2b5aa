package actor

import (
	"context"
	"sync"
	"sync/atomic"
)

type pushResult int

const (
	pushOK        pushResult = iota
	pushUnblocked            // the consumer was blocked and must be rescheduled
	pushClosed               // the mailbox no longer accepts elements
)

// fifo is a slice backed queue owned by the consumer.
type fifo struct {
	items []*Envelope
	head  int
}

func (q *fifo) len() int { return len(q.items) - q.head }

func (q *fifo) push(e *Envelope) { q.items = append(q.items, e) }

func (q *fifo) pop() *Envelope {
	if q.len() == 0 {
		return nil
	}
	e := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return e
}

// prepend puts es in front of the queue, keeping their order.
func (q *fifo) prepend(es []*Envelope) {
	if len(es) == 0 {
		return
	}
	rest := q.items[q.head:]
	items := make([]*Envelope, 0, len(es)+len(rest))
	items = append(items, es...)
	items = append(items, rest...)
	q.items = items
	q.head = 0
}

// take removes and returns the first element matching pred.
func (q *fifo) take(pred func(*Envelope) bool) *Envelope {
	for i := q.head; i < len(q.items); i++ {
		e := q.items[i]
		if !pred(e) {
			continue
		}
		copy(q.items[i:], q.items[i+1:])
		q.items[len(q.items)-1] = nil
		q.items = q.items[:len(q.items)-1]
		return e
	}
	return nil
}

func (q *fifo) drain() []*Envelope {
	out := q.items[q.head:]
	q.items, q.head = nil, 0
	return out
}

// mailbox is a multi-producer single-consumer queue with two priority tiers
// and a stash. Producers only touch the inbox; all other state belongs to the
// consumer.
type mailbox struct {
	mu      sync.Mutex
	inbox   []*Envelope
	closed  bool
	blocked bool
	signal  chan struct{}
	pending atomic.Int64

	urgent  fifo
	normal  fifo
	stashed []*Envelope
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

// Push appends e. Safe for concurrent use.
func (m *mailbox) Push(e *Envelope) pushResult {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return pushClosed
	}
	m.inbox = append(m.inbox, e)
	wasBlocked := m.blocked
	m.blocked = false
	m.mu.Unlock()

	m.pending.Add(1)
	select {
	case m.signal <- struct{}{}:
	default:
	}
	if wasBlocked {
		return pushUnblocked
	}
	return pushOK
}

// fetch moves the inbox into the tiered queues.
func (m *mailbox) fetch() bool {
	m.mu.Lock()
	in := m.inbox
	m.inbox = nil
	m.mu.Unlock()
	for _, e := range in {
		if e.ID.IsUrgent() {
			m.urgent.push(e)
		} else {
			m.normal.push(e)
		}
	}
	return len(in) > 0
}

// Next pops the next element, urgent before normal, or returns nil.
func (m *mailbox) Next() *Envelope {
	if e := m.urgent.pop(); e != nil {
		m.pending.Add(-1)
		return e
	}
	m.fetch()
	e := m.urgent.pop()
	if e == nil {
		e = m.normal.pop()
	}
	if e != nil {
		m.pending.Add(-1)
	}
	return e
}

// Take removes the first element matching pred regardless of its position.
// It only gives up once the inbox is drained, so a match pushed while the
// queues were being scanned is never left behind.
func (m *mailbox) Take(pred func(*Envelope) bool) *Envelope {
	for {
		if e := m.urgent.take(pred); e != nil {
			m.pending.Add(-1)
			return e
		}
		if e := m.normal.take(pred); e != nil {
			m.pending.Add(-1)
			return e
		}
		if !m.fetch() {
			return nil
		}
	}
}

// Stash sets e aside until the next Unstash.
func (m *mailbox) Stash(e *Envelope) {
	m.stashed = append(m.stashed, e)
}

// Unstash returns all stashed elements to the front of their tier in their
// original relative order.
func (m *mailbox) Unstash() {
	if len(m.stashed) == 0 {
		return
	}
	var urgent, normal []*Envelope
	for _, e := range m.stashed {
		if e.ID.IsUrgent() {
			urgent = append(urgent, e)
		} else {
			normal = append(normal, e)
		}
	}
	m.pending.Add(int64(len(m.stashed)))
	m.stashed = nil
	m.urgent.prepend(urgent)
	m.normal.prepend(normal)
}

// StashLen returns the number of stashed elements.
func (m *mailbox) StashLen() int { return len(m.stashed) }

// Len returns the number of elements waiting to be processed, excluding the stash.
func (m *mailbox) Len() int { return int(m.pending.Load()) }

// TryBlock marks the consumer as blocked if nothing is left to process. The
// next Push then reports pushUnblocked. With onlyNew set, elements already
// fetched are ignored: the consumer waits for something it has not seen yet.
func (m *mailbox) TryBlock(onlyNew bool) bool {
	if !onlyNew && m.urgent.len()+m.normal.len() > 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inbox) > 0 || m.closed {
		return false
	}
	m.blocked = true
	return true
}

// Wait blocks until an element is available. It returns false once the mailbox
// is closed and empty or ctx is done.
func (m *mailbox) Wait(ctx context.Context) bool {
	for {
		if m.urgent.len()+m.normal.len() > 0 {
			return true
		}
		m.mu.Lock()
		n, closed := len(m.inbox), m.closed
		m.mu.Unlock()
		if n > 0 {
			return true
		}
		if closed {
			return false
		}
		select {
		case <-m.signal:
		case <-ctx.Done():
			return false
		}
	}
}

// Close rejects further pushes and returns everything left, stash included.
func (m *mailbox) Close() []*Envelope {
	m.mu.Lock()
	m.closed = true
	in := m.inbox
	m.inbox = nil
	m.mu.Unlock()

	var rest []*Envelope
	rest = append(rest, m.urgent.drain()...)
	rest = append(rest, m.normal.drain()...)
	rest = append(rest, in...)
	rest = append(rest, m.stashed...)
	m.stashed = nil
	m.pending.Store(0)
	select {
	case m.signal <- struct{}{}:
	default:
	}
	return rest
}

// Closed reports whether Close was called.
func (m *mailbox) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
