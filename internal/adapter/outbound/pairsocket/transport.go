// Package pairsocket implements internal/port/outbound.Transport over a
// ZeroMQ PAIR socket, the Go-ecosystem stand-in for the original nanomsg
// NN_PAIR endpoints this proxy was designed against: a PAIR socket gives
// exactly the one-peer, bidirectional, connection-oriented semantics the
// control and message channels need.
package pairsocket

import (
	"sync"
	"time"

	czmq "github.com/zeromq/goczmq"

	"github.com/sentinelgate/outproc-gateway/internal/port/outbound"
)

// Transport wraps one czmq.Sock configured as ZMQ_PAIR. One value models
// one endpoint, matching port/outbound.Transport's contract: the gateway
// allocates one Transport for the control channel and one for the
// message channel.
type Transport struct {
	mu       sync.Mutex
	sock     *czmq.Sock
	rcvtimeo int // ms, CZMQ convention: -1 blocks forever, 0 is non-blocking
}

// New returns an unconnected Transport. Call Connect before Send/Recv.
func New() outbound.Transport {
	return &Transport{rcvtimeo: -1}
}

// Connect dials uri, which must already carry the bind/connect direction
// marker CZMQ expects (a leading '@' binds, a leading '>' connects); the
// proxy's configuration layer owns that convention, not this adapter.
func (t *Transport) Connect(uri string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	sock, err := czmq.NewPair(uri)
	if err != nil {
		return err
	}
	t.sock = sock
	return nil
}

// SetRecvTimeout bounds the next and subsequent blocking Recv calls. A
// zero duration clears the timeout (block forever), matching the
// port/outbound.Transport contract; CZMQ spells that as rcvtimeo = -1.
func (t *Transport) SetRecvTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ms := -1
	if d > 0 {
		ms = int(d / time.Millisecond)
		if ms == 0 {
			ms = 1
		}
	}
	t.rcvtimeo = ms
	if t.sock != nil {
		t.sock.SetOption(czmq.SockSetRcvtimeo(ms))
	}
}

// Send blocks until the frame is queued for delivery.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	sock := t.sock
	t.mu.Unlock()
	if sock == nil {
		return outbound.ErrClosed
	}
	return mapSendErr(sock.SendMessage([][]byte{data}))
}

// TrySend attempts a non-blocking send by dropping the send timeout to
// zero for the duration of one call; a full high-water-mark buffer
// surfaces as outbound.ErrWouldBlock.
func (t *Transport) TrySend(data []byte) error {
	t.mu.Lock()
	sock := t.sock
	t.mu.Unlock()
	if sock == nil {
		return outbound.ErrClosed
	}
	sock.SetOption(czmq.SockSetSndtimeo(0))
	err := mapSendErr(sock.SendMessage([][]byte{data}))
	sock.SetOption(czmq.SockSetSndtimeo(-1))
	return err
}

// Recv blocks (up to the configured receive timeout) for the next frame.
func (t *Transport) Recv() ([]byte, error) {
	t.mu.Lock()
	sock := t.sock
	t.mu.Unlock()
	if sock == nil {
		return nil, outbound.ErrClosed
	}
	return firstFrame(sock.RecvMessage())
}

// TryRecv attempts a non-blocking receive by dropping the receive timeout
// to zero for the duration of one call, then restoring the configured
// timeout; nothing queued surfaces as outbound.ErrWouldBlock.
func (t *Transport) TryRecv() ([]byte, error) {
	t.mu.Lock()
	sock := t.sock
	rcvtimeo := t.rcvtimeo
	t.mu.Unlock()
	if sock == nil {
		return nil, outbound.ErrClosed
	}
	sock.SetOption(czmq.SockSetRcvtimeo(0))
	data, err := firstFrame(sock.RecvMessage())
	sock.SetOption(czmq.SockSetRcvtimeo(rcvtimeo))
	return data, err
}

func firstFrame(frames [][]byte, err error) ([]byte, error) {
	if err != nil {
		return nil, mapRecvErr(err)
	}
	if len(frames) == 0 {
		return nil, outbound.ErrWouldBlock
	}
	return frames[0], nil
}

// Close destroys the underlying socket. Idempotent at this layer, though
// the proxy itself never calls it twice.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sock == nil {
		return nil
	}
	t.sock.Destroy()
	t.sock = nil
	return nil
}

// mapSendErr and mapRecvErr translate libzmq's EAGAIN/EINTR error text
// (goczmq has no typed sentinel for them) to the port's transient error
// sentinels.
func mapSendErr(err error) error {
	switch {
	case err == nil:
		return nil
	case containsAny(err, "resource temporarily unavailable", "would block"):
		return outbound.ErrWouldBlock
	case containsAny(err, "interrupted system call"):
		return outbound.ErrInterrupted
	default:
		return err
	}
}

func mapRecvErr(err error) error {
	switch {
	case err == nil:
		return nil
	case containsAny(err, "resource temporarily unavailable", "would block"):
		return outbound.ErrWouldBlock
	case containsAny(err, "timed out", "timeout"):
		return outbound.ErrTimeout
	case containsAny(err, "interrupted system call"):
		return outbound.ErrInterrupted
	default:
		return err
	}
}

func containsAny(err error, substrs ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range substrs {
		if indexOfFold(msg, s) >= 0 {
			return true
		}
	}
	return false
}

// indexOfFold is a tiny case-insensitive substring search, avoiding a
// strings.Contains(strings.ToLower(...)) allocation dance for the short
// error strings this adapter classifies.
func indexOfFold(s, substr string) int {
	n, m := len(s), len(substr)
	for i := 0; i+m <= n; i++ {
		if equalFold(s[i:i+m], substr) {
			return i
		}
	}
	return -1
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
