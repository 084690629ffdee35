package pgmq

import "time"

// Message is a single queue message returned by Read, ReadBatch, ReadWithPoll,
// Pop or SetVT. The store exclusively owns persisted message state; a Message
// is a transient copy and mutating it has no effect on the queue.
type Message struct {
	// ID is the message identifier, unique within the queue and assigned
	// monotonically by the store.
	ID int64

	// Body is the payload decoded by the client's codec.
	Body any

	// Payload is the raw encoded payload exactly as stored.
	Payload []byte

	// EnqueuedAt is when the message was sent.
	EnqueuedAt time.Time

	// ReadCount is the number of times the message has been read, including
	// the read that returned this copy.
	ReadCount int64

	// VT is the visibility timeout expiry. Until VT the message is hidden
	// from other readers; if it is neither archived nor deleted by then it
	// becomes visible again and will be redelivered.
	VT time.Time
}

// IDs collects the ids of msgs, in order. Convenient for handing a read batch
// to Delete or ArchiveBatch.
func IDs(msgs ...*Message) []int64 {
	ids := make([]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}
