package outbound

import "github.com/sentinelgate/outproc-gateway/pkg/gwmsg"

// Broker is the outbound port for publishing gateway messages received
// from the remote module host. It is a non-owning reference: the caller
// guarantees it outlives every Handle constructed against it.
type Broker interface {
	// Publish delivers msg as having originated from the module instance
	// identified by moduleID.
	Publish(moduleID string, msg *gwmsg.Message) error
}
