package outprocmod

import (
	"context"
	"errors"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/sentinelgate/outproc-gateway/internal/port/outbound"
	"github.com/sentinelgate/outproc-gateway/pkg/ctrlwire"
	"github.com/sentinelgate/outproc-gateway/pkg/gwmsg"
)

// Sleep intervals between task iterations: message tasks yield 1ms, the
// control monitor yields 250ms.
const (
	messageTaskInterval = time.Millisecond
	controlMonInterval  = 250 * time.Millisecond
)

// spawnWorker starts loop on its own goroutine, wired to w's
// context.CancelFunc + done-channel pair — the channel-based stand-in for
// a per-task stop flag plus join.
func spawnWorker(w *worker, loop func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true
	go func() {
		defer close(w.done)
		loop(ctx)
	}()
}

// stopWorker signals cancellation and joins: set stop flag, then join
// task. A no-op on a worker that was never spawned.
func stopWorker(w *worker) {
	if !w.running {
		return
	}
	w.cancel()
	<-w.done
	w.running = false
}

// inboundLoop is the inbound-message task. Blocking receive on the
// message socket; on success, decode and publish to the broker. On
// timeout/interrupted it continues; on any other error it exits the task
// (task-local fatal, not a process-wide panic).
func (h *Handle) inboundLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		h.mu.Lock()
		sock := h.messageSocket
		h.mu.Unlock()
		if sock == nil {
			return
		}

		data, err := sock.Recv()
		switch {
		case err == nil:
			msg, decErr := gwmsg.Decode(data)
			if decErr != nil {
				h.logger.Error("inbound: decode failed", "error", decErr)
				continue
			}
			h.metrics.FrameReceived("message")
			h.logger.Debug("inbound: frame received", "fingerprint", xxhash.Sum64(data), "bytes", len(data))
			if pubErr := h.broker.Publish(h.ID, msg); pubErr != nil {
				h.logger.Error("inbound: publish failed", "error", pubErr)
			}
		case errors.Is(err, outbound.ErrTimeout), errors.Is(err, outbound.ErrInterrupted), errors.Is(err, outbound.ErrWouldBlock):
			// transient, retry
		case errors.Is(err, outbound.ErrClosed):
			// socket closed under us: teardown is in progress
			return
		default:
			h.logger.Error("inbound: fatal transport error, exiting task", "error", err)
			return
		}

		sleepCtx(ctx, messageTaskInterval)
	}
}

// outboundLoop is the outbound-message task. Pops the oldest queued
// message under h.mu, then sends it outside the lock. Exactly-once
// disposal of a dequeued message holds trivially in Go: msg is a local
// variable that falls out of scope after one iteration, whether or not
// the send succeeded.
func (h *Handle) outboundLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		h.mu.Lock()
		msg := h.outgoing.pop()
		sock := h.messageSocket
		depth := h.outgoing.len()
		h.mu.Unlock()
		h.metrics.SetQueueDepth(depth)

		if msg != nil && sock != nil {
			data, err := msg.Encode()
			if err != nil {
				h.logger.Error("outbound: encode failed", "error", err)
			} else if err := sock.TrySend(data); err != nil && !errors.Is(err, outbound.ErrWouldBlock) {
				h.logger.Error("outbound: send failed", "error", err)
			} else if err == nil {
				h.metrics.FrameSent("message")
				h.logger.Debug("outbound: frame sent", "fingerprint", xxhash.Sum64(data), "bytes", len(data))
			}
		}

		sleepCtx(ctx, messageTaskInterval)
	}
}

// controlMonitorLoop is the control-monitor task. It owns re-attach
// exclusively, preserving a "one logical actor per socket" invariant:
// initial handshake happens on the async-create task, but every
// re-attach after that runs here.
func (h *Handle) controlMonitorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		h.mu.Lock()
		needsReattach := h.needsReattach
		h.needsReattach = false
		h.mu.Unlock()

		if needsReattach {
			if err := reattach(h, ctx.Done()); err != nil {
				h.logger.Warn("control monitor: re-attach failed, will retry on next failed reply", "error", err)
			}
		}

		h.mu.Lock()
		ctrlSock := h.controlSocket
		h.mu.Unlock()
		if ctrlSock == nil {
			return
		}

		data, err := ctrlSock.TryRecv()
		switch {
		case err == nil:
			frame, decErr := ctrlwire.Decode(data)
			if decErr != nil {
				h.logger.Error("control monitor: decode failed", "error", decErr)
			} else if reply, ok := frame.(ctrlwire.ReplyFrame); ok && reply.Status != 0 {
				h.mu.Lock()
				h.needsReattach = true
				h.mu.Unlock()
			}
		case errors.Is(err, outbound.ErrWouldBlock):
			// nothing pending
		case errors.Is(err, outbound.ErrClosed):
			return
		default:
			h.logger.Error("control monitor: fatal transport error, exiting task", "error", err)
			return
		}

		sleepCtx(ctx, controlMonInterval)
	}
}

// runAsyncCreate runs exactly one handshake attempt and reports its
// outcome on result. On success the handle transitions
// HANDSHAKING → READY.
func (h *Handle) runAsyncCreate(ctx context.Context, result chan<- error) {
	err := handshakeOnce(h, ctx.Done())
	if err == nil {
		h.setState(stateReady)
	}
	result <- err
}

// sleepCtx sleeps for d or returns early if ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
