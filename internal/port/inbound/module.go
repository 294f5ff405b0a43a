// Package inbound defines the inbound port the gateway drives: the module
// façade every out-of-process module instance presents as its ABI.
package inbound

import "github.com/sentinelgate/outproc-gateway/pkg/gwmsg"

// Module is the inbound port the gateway calls. It is the broker-facing
// contract for a running out-of-process module instance: side-effecting
// operations against one handle, never throwing.
type Module interface {
	// Start spawns the worker tasks and sends the start frame.
	Start() error

	// Receive enqueues a gateway message for delivery to the module host.
	Receive(msg *gwmsg.Message)

	// Destroy tears down sockets, stops every worker, and frees the
	// handle. Safe to call exactly once.
	Destroy()
}
