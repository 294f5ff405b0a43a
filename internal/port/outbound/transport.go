// Package outbound defines the outbound port interfaces the proxy core
// drives: the messaging transport (paired sockets to the remote module
// host) and the broker (publish of inbound gateway messages).
package outbound

import (
	"errors"
	"time"
)

// Transport errors map 1:1 to the transient error codes the wire protocol
// distinguishes.
var (
	// ErrWouldBlock is returned by TrySend/TryRecv when the operation
	// cannot complete immediately.
	ErrWouldBlock = errors.New("transport: would block")
	// ErrTimeout is returned by Recv when no data arrives within the
	// configured receive timeout.
	ErrTimeout = errors.New("transport: receive timed out")
	// ErrInterrupted is returned when a blocking call is interrupted by a
	// signal and should be retried transparently by the caller.
	ErrInterrupted = errors.New("transport: interrupted")
	// ErrClosed is returned by any operation on a closed Transport.
	ErrClosed = errors.New("transport: closed")
)

// Transport is a paired, framed message channel identified by a URI. The
// proxy treats it as an opaque send/receive/close API; one Transport value
// models one endpoint of the pair (either the control socket or the
// message socket).
type Transport interface {
	// Connect dials the peer at uri. Implementations may bind or connect
	// depending on URI scheme/prefix conventions of the underlying
	// library.
	Connect(uri string) error

	// SetRecvTimeout bounds the next and all subsequent blocking Recv
	// calls. A zero duration means "no timeout" (block forever).
	SetRecvTimeout(d time.Duration)

	// Send blocks until the frame is handed to the transport or a hard
	// error occurs.
	Send(data []byte) error

	// TrySend attempts a non-blocking send, returning ErrWouldBlock if the
	// peer isn't ready to receive.
	TrySend(data []byte) error

	// Recv blocks (up to the configured receive timeout) for the next
	// frame.
	Recv() ([]byte, error)

	// TryRecv attempts a non-blocking receive, returning ErrWouldBlock if
	// nothing is queued.
	TryRecv() ([]byte, error)

	// Close releases the socket. Close is idempotent at this interface's
	// contract boundary: callers may call it more than once safely, but
	// the proxy never relies on that and closes each socket exactly once.
	Close() error
}

// TransportFactory constructs a fresh, unconnected Transport. The proxy
// calls it once per socket (message, control) during connection setup.
type TransportFactory func() Transport
