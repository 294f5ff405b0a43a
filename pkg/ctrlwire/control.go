// Package ctrlwire implements the binary wire format for control messages
// exchanged between the outprocess module proxy and a remote module host.
//
// The format is little-endian and versioned: every frame starts with a
// one-byte version followed by a one-byte frame type. Create frames carry a
// URI block and an args block, each length-prefixed with a uint32 that
// includes the trailing NUL the remote host expects to find.
package ctrlwire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// VersionCurrent is the only control-frame version this package emits or
// accepts.
const VersionCurrent uint8 = 1

// GatewayMessageVersionCurrent is stamped into every CreateFrame.
const GatewayMessageVersionCurrent uint8 = 1

// FrameType identifies the shape of a control frame's body.
type FrameType uint8

// Frame types carried in a control frame's header.
const (
	FrameCreate FrameType = iota + 1
	FrameStart
	FrameDestroy
	FrameReply
)

func (t FrameType) String() string {
	switch t {
	case FrameCreate:
		return "MODULE_CREATE"
	case FrameStart:
		return "MODULE_START"
	case FrameDestroy:
		return "MODULE_DESTROY"
	case FrameReply:
		return "MODULE_REPLY"
	default:
		return "UNKNOWN"
	}
}

// Errors returned by Encode/Decode.
var (
	ErrEmptyURI         = errors.New("ctrlwire: uri must not be empty")
	ErrEmptyArgs        = errors.New("ctrlwire: args must not be empty")
	ErrShortFrame       = errors.New("ctrlwire: frame shorter than header")
	ErrUnknownFrameType = errors.New("ctrlwire: unknown frame type")
	ErrBadVersion       = errors.New("ctrlwire: unsupported control version")
	ErrTruncatedBody    = errors.New("ctrlwire: frame body truncated")
)

// Header is the common prefix of every control frame.
type Header struct {
	Version uint8
	Type    FrameType
}

// Frame is implemented by the four concrete control frame types. It exists
// so Decode can return a single value whose concrete type the caller
// switches on.
type Frame interface {
	frameHeader() Header
}

// CreateFrame is the handshake request sent by the proxy to the module
// host: "here is where to reach me for data, and here are your args."
type CreateFrame struct {
	Header
	GatewayMessageVersion uint8
	URIType               uint8
	URI                   string
	Args                  string
}

func (f CreateFrame) frameHeader() Header { return f.Header }

// StartFrame tells the module host to begin processing.
type StartFrame struct{ Header }

func (f StartFrame) frameHeader() Header { return f.Header }

// DestroyFrame tells the module host to shut down.
type DestroyFrame struct{ Header }

func (f DestroyFrame) frameHeader() Header { return f.Header }

// ReplyFrame is sent by the module host in response to Create, and
// unsolicited to report termination/failure (non-zero Status).
type ReplyFrame struct {
	Header
	Status int32
}

func (f ReplyFrame) frameHeader() Header { return f.Header }

// EncodeCreate serializes a create frame. uriType identifies the transport
// endpoint kind (opaque to this package, forwarded from the caller's
// Transport choice). An empty uri or args is rejected: no frame is sent
// for a handshake that could never be answered.
func EncodeCreate(uri, args string, uriType uint8) ([]byte, error) {
	if uri == "" {
		return nil, ErrEmptyURI
	}
	if args == "" {
		return nil, ErrEmptyArgs
	}

	uriLen := uint32(len(uri) + 1) // +1 for trailing NUL
	argsLen := uint32(len(args) + 1)

	size := 2 + 1 + 4 + 1 + int(uriLen) + 4 + int(argsLen)
	buf := make([]byte, size)
	i := 0
	buf[i] = VersionCurrent
	i++
	buf[i] = byte(FrameCreate)
	i++
	buf[i] = GatewayMessageVersionCurrent
	i++
	binary.LittleEndian.PutUint32(buf[i:], uriLen)
	i += 4
	buf[i] = uriType
	i++
	copy(buf[i:], uri)
	i += len(uri)
	buf[i] = 0 // trailing NUL
	i++
	binary.LittleEndian.PutUint32(buf[i:], argsLen)
	i += 4
	copy(buf[i:], args)
	i += len(args)
	buf[i] = 0 // trailing NUL

	return buf, nil
}

// EncodeStart serializes a header-only start frame.
func EncodeStart() []byte {
	return []byte{VersionCurrent, byte(FrameStart)}
}

// EncodeDestroy serializes a header-only destroy frame.
func EncodeDestroy() []byte {
	return []byte{VersionCurrent, byte(FrameDestroy)}
}

// EncodeReply serializes a reply frame carrying the given status. Used by
// test doubles and cmd/modulehostsim; the real remote module host is the
// usual producer of reply frames.
func EncodeReply(status int32) []byte {
	buf := make([]byte, 2+4)
	buf[0] = VersionCurrent
	buf[1] = byte(FrameReply)
	binary.LittleEndian.PutUint32(buf[2:], uint32(status))
	return buf
}

// Decode parses a control frame from its wire bytes and returns the
// concrete Frame type matching its header's Type byte.
func Decode(data []byte) (Frame, error) {
	if len(data) < 2 {
		return nil, ErrShortFrame
	}
	h := Header{Version: data[0], Type: FrameType(data[1])}
	if h.Version != VersionCurrent {
		return nil, fmt.Errorf("%w: got %d", ErrBadVersion, h.Version)
	}

	switch h.Type {
	case FrameStart:
		return StartFrame{Header: h}, nil
	case FrameDestroy:
		return DestroyFrame{Header: h}, nil
	case FrameReply:
		if len(data) < 2+4 {
			return nil, ErrTruncatedBody
		}
		status := int32(binary.LittleEndian.Uint32(data[2:6]))
		return ReplyFrame{Header: h, Status: status}, nil
	case FrameCreate:
		return decodeCreate(h, data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFrameType, h.Type)
	}
}

func decodeCreate(h Header, data []byte) (Frame, error) {
	i := 2
	if len(data) < i+1+4 {
		return nil, ErrTruncatedBody
	}
	gwVersion := data[i]
	i++
	uriLen := int(binary.LittleEndian.Uint32(data[i:]))
	i += 4
	if len(data) < i+1+uriLen+4 {
		return nil, ErrTruncatedBody
	}
	uriType := data[i]
	i++
	uri := trimNUL(data[i : i+uriLen])
	i += uriLen
	argsLen := int(binary.LittleEndian.Uint32(data[i:]))
	i += 4
	if len(data) < i+argsLen {
		return nil, ErrTruncatedBody
	}
	args := trimNUL(data[i : i+argsLen])

	return CreateFrame{
		Header:                h,
		GatewayMessageVersion: gwVersion,
		URIType:               uriType,
		URI:                   uri,
		Args:                  args,
	}, nil
}

// trimNUL drops the trailing NUL byte the wire format always includes in
// length-prefixed strings.
func trimNUL(b []byte) string {
	if n := len(b); n > 0 && b[n-1] == 0 {
		b = b[:n-1]
	}
	return string(b)
}
