// Package gwmsg defines the opaque gateway message the proxy pumps between
// the broker and the remote module host. The proxy never inspects a
// message's payload; it only clones, frames, and forwards it.
package gwmsg

import "errors"

// ErrEmpty is returned by Decode when given a zero-length payload. An empty
// wire frame is never a valid gateway message.
var ErrEmpty = errors.New("gwmsg: empty payload")

// Message wraps an opaque byte payload moving through the proxy.
type Message struct {
	Payload []byte
}

// New wraps raw bytes as a Message without copying.
func New(payload []byte) *Message {
	return &Message{Payload: payload}
}

// Clone returns a deep copy, used at facade.Receive time so the queued
// copy outlives whatever buffer the caller passed in.
func (m *Message) Clone() *Message {
	cp := make([]byte, len(m.Payload))
	copy(cp, m.Payload)
	return &Message{Payload: cp}
}

// Encode returns the wire representation of the message. For an opaque
// payload the wire representation is the payload itself; the method exists
// so callers go through a stable codec boundary rather than reaching into
// Payload directly.
func (m *Message) Encode() ([]byte, error) {
	return m.Payload, nil
}

// Decode reconstructs a Message from wire bytes.
func Decode(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return &Message{Payload: cp}, nil
}
