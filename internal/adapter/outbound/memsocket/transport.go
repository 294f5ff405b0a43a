// Package memsocket provides an in-process Transport implementation
// backed by buffered channels instead of a real socket. It lets the
// gateway's lifecycle (handshake, run, re-attach, destroy) be exercised
// end-to-end — including internal/hostsim playing the remote side — with
// no network stack or second process involved.
package memsocket

import (
	"sync"
	"time"

	"github.com/sentinelgate/outproc-gateway/internal/port/outbound"
)

// Pair is two Transports wired to each other: whatever is sent on one
// side arrives on the other's Recv/TryRecv. It models one PAIR-socket
// connection the way a real transport's Connect(uri) would, without a
// URI registry — tests construct a Pair directly
// and hand one end to the proxy, the other to the simulated module host.
type Pair struct {
	a *Transport
	b *Transport
}

// NewPair builds a connected pair of endpoints with the given channel
// depth (0 means synchronous, unbuffered delivery).
func NewPair(depth int) *Pair {
	ab := make(chan []byte, depth)
	ba := make(chan []byte, depth)
	return &Pair{
		a: &Transport{send: ab, recv: ba, closeCh: make(chan struct{})},
		b: &Transport{send: ba, recv: ab, closeCh: make(chan struct{})},
	}
}

// A returns the proxy-facing endpoint.
func (p *Pair) A() outbound.Transport { return p.a }

// B returns the remote-module-host-facing endpoint.
func (p *Pair) B() outbound.Transport { return p.b }

// Transport is one endpoint of an in-process Pair.
type Transport struct {
	send chan []byte
	recv chan []byte

	// closeCh wakes any Send/Recv blocked on this endpoint when Close is
	// called, the way closing a real socket fails a blocked recv on it.
	closeCh chan struct{}

	mu      sync.Mutex
	timeout time.Duration // 0 = block forever, matching the port contract
	closed  bool
}

// Connect is a no-op: memsocket endpoints are wired together at
// construction via NewPair, not by URI lookup. uri is accepted (and
// ignored) so Transport satisfies port/outbound.Transport without a
// registry tests would otherwise need to manage.
func (t *Transport) Connect(uri string) error { return nil }

// SetRecvTimeout bounds the next and subsequent blocking Recv calls.
func (t *Transport) SetRecvTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = d
}

// Send blocks until the frame is accepted onto the channel, or fails with
// ErrClosed if the endpoint is closed while waiting.
func (t *Transport) Send(data []byte) error {
	if t.isClosed() {
		return outbound.ErrClosed
	}
	select {
	case t.send <- data:
		return nil
	case <-t.closeCh:
		return outbound.ErrClosed
	}
}

// TrySend attempts a non-blocking send.
func (t *Transport) TrySend(data []byte) error {
	if t.isClosed() {
		return outbound.ErrClosed
	}
	select {
	case t.send <- data:
		return nil
	default:
		return outbound.ErrWouldBlock
	}
}

// Recv blocks up to the configured receive timeout for the next frame.
func (t *Transport) Recv() ([]byte, error) {
	if t.isClosed() {
		return nil, outbound.ErrClosed
	}
	t.mu.Lock()
	timeout := t.timeout
	t.mu.Unlock()

	if timeout <= 0 {
		select {
		case data := <-t.recv:
			return data, nil
		case <-t.closeCh:
			return nil, outbound.ErrClosed
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case data := <-t.recv:
		return data, nil
	case <-t.closeCh:
		return nil, outbound.ErrClosed
	case <-timer.C:
		return nil, outbound.ErrTimeout
	}
}

// TryRecv attempts a non-blocking receive.
func (t *Transport) TryRecv() ([]byte, error) {
	if t.isClosed() {
		return nil, outbound.ErrClosed
	}
	select {
	case data := <-t.recv:
		return data, nil
	default:
		return nil, outbound.ErrWouldBlock
	}
}

// Close marks this endpoint closed and wakes any blocked Send/Recv on it.
// It does not close the data channels themselves, since the peer endpoint
// still owns the receive side of one of them; each side tracks its own
// closed flag.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.closeCh)
	}
	return nil
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
