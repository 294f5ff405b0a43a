// Package localbroker is a minimal in-process pub/sub Broker, standing in
// for the external message broker, which is out of this module's scope.
// It fans out every published gateway message to every subscriber
// registered for that module ID — enough for tests and the demo CLI to
// observe what the proxy publishes without a real message bus.
package localbroker

import (
	"sync"

	"github.com/sentinelgate/outproc-gateway/internal/port/outbound"
	"github.com/sentinelgate/outproc-gateway/pkg/gwmsg"
)

// Broker implements port/outbound.Broker by fanning out to per-module-ID
// subscriber channels.
type Broker struct {
	mu   sync.RWMutex
	subs map[string][]chan *gwmsg.Message
}

// New returns an empty Broker.
func New() *Broker {
	return &Broker{subs: make(map[string][]chan *gwmsg.Message)}
}

// Subscribe registers a channel to receive every message Published under
// moduleID. The returned unsubscribe function removes and closes it.
// Messages published while the channel is full are dropped for this
// subscriber.
func (b *Broker) Subscribe(moduleID string, buffer int) (ch <-chan *gwmsg.Message, unsubscribe func()) {
	c := make(chan *gwmsg.Message, buffer)
	b.mu.Lock()
	b.subs[moduleID] = append(b.subs[moduleID], c)
	b.mu.Unlock()

	return c, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[moduleID]
		for i, existing := range subs {
			if existing == c {
				b.subs[moduleID] = append(subs[:i], subs[i+1:]...)
				close(c)
				break
			}
		}
	}
}

// Publish implements port/outbound.Broker. Slow or full subscriber
// channels are skipped rather than blocking the publishing module's
// inbound task — this broker makes no delivery guarantee beyond
// best-effort fan-out.
func (b *Broker) Publish(moduleID string, msg *gwmsg.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.subs[moduleID] {
		select {
		case c <- msg:
		default:
		}
	}
	return nil
}

var _ outbound.Broker = (*Broker)(nil)
