package outprocmod

import (
	"container/list"

	"github.com/sentinelgate/outproc-gateway/pkg/gwmsg"
)

// outgoingQueue is the FIFO of gateway messages awaiting transmission to
// the module host. It has no internal lock: the design intentionally
// funnels all shared mutation through Handle.mu rather than giving the
// queue its own. Every method here must be called with Handle.mu held.
type outgoingQueue struct {
	items *list.List
	limit int // 0 = unbounded
}

func newOutgoingQueue(limit int) *outgoingQueue {
	return &outgoingQueue{items: list.New(), limit: limit}
}

// push appends a message to the tail. Returns false if the queue is at its
// configured limit (back-pressure; off by default, since the queue is
// unbounded unless QueueLimit says otherwise).
func (q *outgoingQueue) push(msg *gwmsg.Message) bool {
	if q.limit > 0 && q.items.Len() >= q.limit {
		return false
	}
	q.items.PushBack(msg)
	return true
}

// pop removes and returns the oldest message, or nil if the queue is
// empty.
func (q *outgoingQueue) pop() *gwmsg.Message {
	front := q.items.Front()
	if front == nil {
		return nil
	}
	q.items.Remove(front)
	return front.Value.(*gwmsg.Message)
}

func (q *outgoingQueue) len() int {
	return q.items.Len()
}
