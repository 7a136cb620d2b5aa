package actor

import (
	"fmt"
	"sync/atomic"
)

// MessageID correlates requests with their responses.
//
// Layout (most significant bit first):
//
//	bit 63      response flag
//	bit 62      urgent flag
//	bits 0..61  sequence number, 0 for asynchronous messages
//
// A request and its response share the sequence number; the response id is
// computed by flipping the response flag.
type MessageID uint64

const (
	responseFlag MessageID = 1 << 63
	urgentFlag   MessageID = 1 << 62
	seqMask      MessageID = urgentFlag - 1

	maxSeq = uint64(seqMask)
)

// Priority selects the mailbox tier of a message.
type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "normal"
}

// AsyncID returns the id of an asynchronous message with the given priority.
func AsyncID(p Priority) MessageID {
	if p == PriorityHigh {
		return urgentFlag
	}
	return 0
}

// Seq returns the sequence number. Zero for asynchronous messages.
func (id MessageID) Seq() uint64 { return uint64(id & seqMask) }

// IsAsync reports whether no response is expected.
func (id MessageID) IsAsync() bool { return id.Seq() == 0 && id&responseFlag == 0 }

// IsRequest reports whether id belongs to a request awaiting a response.
func (id MessageID) IsRequest() bool { return id.Seq() != 0 && id&responseFlag == 0 }

// IsResponse reports whether id belongs to a response.
func (id MessageID) IsResponse() bool { return id&responseFlag != 0 }

// IsUrgent reports whether the urgent flag is set.
func (id MessageID) IsUrgent() bool { return id&urgentFlag != 0 }

// Priority returns the mailbox tier of the message.
func (id MessageID) Priority() Priority {
	if id.IsUrgent() {
		return PriorityHigh
	}
	return PriorityNormal
}

// Response returns the id of the response paired with this request.
func (id MessageID) Response() MessageID { return id | responseFlag }

// Request returns the id of the request paired with this response.
func (id MessageID) Request() MessageID { return id &^ responseFlag }

// WithHighPriority sets the urgent flag, leaving sequence and response flag untouched.
func (id MessageID) WithHighPriority() MessageID { return id | urgentFlag }

// WithNormalPriority clears the urgent flag.
func (id MessageID) WithNormalPriority() MessageID { return id &^ urgentFlag }

// WithPriority returns id in the given tier.
func (id MessageID) WithPriority(p Priority) MessageID {
	if p == PriorityHigh {
		return id.WithHighPriority()
	}
	return id.WithNormalPriority()
}

// key is the priority independent identity used by the pending-response tables,
// so escalating a delegated request does not break correlation.
func (id MessageID) key() MessageID { return id.WithNormalPriority() }

func (id MessageID) String() string {
	kind := "request"
	switch {
	case id.IsResponse():
		kind = "response"
	case id.IsAsync():
		kind = "async"
	}
	return fmt.Sprintf("%s#%d(%s)", kind, id.Seq(), id.Priority())
}

// idGen mints request ids for a single actor.
type idGen struct {
	last atomic.Uint64
}

// next returns a request id with a sequence number strictly greater than all
// previously issued ones. Running out of sequence numbers is fatal.
func (g *idGen) next(p Priority) MessageID {
	seq := g.last.Add(1)
	if seq > maxSeq {
		panic(fmt.Sprintf("actor: message id sequence exhausted (%d)", seq))
	}
	return MessageID(seq).WithPriority(p)
}
