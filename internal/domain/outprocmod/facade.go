package outprocmod

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sentinelgate/outproc-gateway/internal/port/inbound"
	"github.com/sentinelgate/outproc-gateway/internal/port/outbound"
	"github.com/sentinelgate/outproc-gateway/internal/telemetry"
	"github.com/sentinelgate/outproc-gateway/pkg/gwmsg"
)

// Module is the façade (C6) the gateway drives through
// internal/port/inbound.Module. It wraps one Handle and is returned by
// Create; nothing outside this package constructs one directly.
type Module struct {
	h *Handle
}

var _ inbound.Module = (*Module)(nil)

// ID returns the module's stable identifier, the key it publishes under
// on the broker.
func (m *Module) ID() string { return m.h.ID }

// Create validates cfg, allocates a Handle, wires the supplied
// transportFactory and broker, runs connection setup, and spawns the
// async-create task. In Sync mode it blocks for the handshake result and
// returns (nil, err) on failure, having rolled back every
// partially-acquired resource first — the handle is never exposed to the
// caller half-constructed. In Async mode it returns a live Module
// immediately; the handshake continues on the async-create task in the
// background.
//
// ctx bounds how long a Sync caller waits for the handshake: the
// handshake itself retries indefinitely against an unresponsive remote
// (there is no internal retry bound), so a remote that never answers at
// all eventually surfaces as a hard error bounded by the caller's ctx
// deadline, not by a bound inside the handshake loop. Cancelling ctx in
// Async mode has no effect once Create has returned.
func Create(ctx context.Context, cfg *Config, broker outbound.Broker, transportFactory outbound.TransportFactory, logger *slog.Logger, metrics outbound.Metrics) (*Module, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrConfigInvalid)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if broker == nil {
		return nil, fmt.Errorf("%w: nil broker", ErrConfigInvalid)
	}
	if transportFactory == nil {
		return nil, fmt.Errorf("%w: nil transport factory", ErrConfigInvalid)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = outbound.NoopMetrics{}
	}

	id, err := newModuleID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAllocFailed, err)
	}

	h := &Handle{
		ID:                id,
		controlURI:        cfg.ControlURI,
		messageURI:        cfg.MessageURI,
		moduleArgs:        cfg.ModuleArgs,
		lifecycleMode:     cfg.LifecycleMode,
		remoteMessageWait: cfg.RemoteMessageWait,
		destroyRetries:    cfg.DestroyRetries,
		broker:            broker,
		transportFactory:  transportFactory,
		metrics:           metrics,
		outgoing:          newOutgoingQueue(cfg.QueueLimit),
		lifecycle:         stateInitial,
		logger:            logger,
	}

	if err := connectionSetup(h, cfg); err != nil {
		return nil, err
	}

	h.setState(stateHandshaking)
	result := make(chan error, 1)
	spawnWorker(&h.workers.asyncCreate, func(ctx context.Context) {
		h.runAsyncCreate(ctx, result)
	})

	if h.lifecycleMode == Sync {
		var err error
		select {
		case err = <-result:
		case <-ctx.Done():
			err = fmt.Errorf("%w: %v", ErrHandshakeTimeout, ctx.Err())
		}
		stopWorker(&h.workers.asyncCreate)
		if err != nil {
			connectionTeardown(h)
			h.setState(stateClosed)
			return nil, err
		}
	}

	return &Module{h: h}, nil
}

// Start spawns the inbound, outbound, and control-monitor tasks and sends
// the start frame. If the start frame cannot be sent, the inbound and
// control-monitor tasks already spawned in this call are stopped and
// joined before returning the error, rather than leaving the handle
// half-started. The outbound task is spawned only
// after the start frame's send completes, so no data frame can race it to
// the remote.
func (m *Module) Start() error {
	h := m.h
	if h.getState() != stateReady {
		return fmt.Errorf("%w: start called outside READY state", ErrConfigInvalid)
	}

	spawnWorker(&h.workers.inbound, h.inboundLoop)
	spawnWorker(&h.workers.controlMon, h.controlMonitorLoop)

	if err := sendStartFrame(h); err != nil {
		stopWorker(&h.workers.inbound)
		stopWorker(&h.workers.controlMon)
		return err
	}

	spawnWorker(&h.workers.outbound, h.outboundLoop)
	h.setState(stateRunning)
	return nil
}

// Receive clones msg and enqueues it for delivery. The clone protects the
// caller's copy from concurrent mutation by the outbound task.
func (m *Module) Receive(msg *gwmsg.Message) {
	if msg == nil {
		return
	}
	clone := msg.Clone()
	h := m.h
	h.mu.Lock()
	h.outgoing.push(clone)
	h.mu.Unlock()
}

// Destroy sends a best-effort destroy frame (up to h.destroyRetries
// non-blocking retries on would-block), tears down both sockets, and
// joins every worker in {inbound, outbound, controlMon, asyncCreate}
// order. Safe to call once; a second call is a no-op because every
// socket and worker handle has already been cleared.
func (m *Module) Destroy() {
	_, span := telemetry.Tracer().Start(context.Background(), "outprocmod.destroy")
	defer span.End()

	h := m.h
	h.setState(stateDraining)
	sendDestroyBestEffort(h)

	connectionTeardown(h)

	stopWorker(&h.workers.inbound)
	stopWorker(&h.workers.outbound)
	stopWorker(&h.workers.controlMon)
	stopWorker(&h.workers.asyncCreate)

	h.setState(stateClosed)
}
