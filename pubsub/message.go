package pubsub

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// seqCounter is the process-wide sequence generator. The sequence number is
// the final ordering tiebreaker for messages that received an identical
// timestamp, e.g. because they were enqueued as one batch.
var seqCounter atomic.Uint64

// Message is the envelope carried through queues and delivered to
// subscribers. It is treated as immutable once enqueued: the queue assigns
// Timestamp inside its enqueue critical section and nothing mutates the
// message afterwards, so a single *Message can be shared by the queue and any
// number of concurrent deliveries without extra locking.
//
// Example:
//
//	msg := pubsub.NewMessage(5, SensorReading{Value: 42})
//	queue.Enqueue(msg)
type Message struct {
	// ID is a unique identifier for the message, used by the router's
	// optional deduplication window.
	ID string

	// Topic is the topic the message was published to. Set by the router.
	Topic string

	// Priority is caller-supplied; higher values dequeue first.
	Priority int

	// Timestamp is the enqueue time in microseconds since the Unix epoch.
	// Zero until the message enters a queue.
	Timestamp int64

	// Seq is a process-wide monotonically increasing sequence number
	// assigned at construction.
	Seq uint64

	// Payload is the application value. Subscribers see it through the
	// payload type their callback was registered for.
	Payload any
}

// NewMessage creates a message with the given priority and payload. The
// sequence number is assigned here; the timestamp is assigned later, when the
// message enters a queue.
func NewMessage(priority int, payload any) *Message {
	return &Message{
		ID:       uuid.NewString(),
		Priority: priority,
		Seq:      seqCounter.Add(1),
		Payload:  payload,
	}
}

// Before reports whether m ranks ahead of other for dequeue: strictly by
// priority descending, then timestamp ascending (FIFO within equal priority),
// then sequence number ascending.
func (m *Message) Before(other *Message) bool {
	if m.Priority != other.Priority {
		return m.Priority > other.Priority
	}
	if m.Timestamp != other.Timestamp {
		return m.Timestamp < other.Timestamp
	}
	return m.Seq < other.Seq
}
