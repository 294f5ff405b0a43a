package outprocmod

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/sentinelgate/outproc-gateway/internal/port/outbound"
	"github.com/sentinelgate/outproc-gateway/internal/telemetry"
	"github.com/sentinelgate/outproc-gateway/pkg/ctrlwire"
)

// handshakeOnce runs exactly one create/reply exchange on the control
// socket. It retries internally on transient transport conditions
// (would-block on send, timeout/interrupted/would-block on receive)
// until it gets a hard success or a hard error; the caller (async-create
// task, or the control monitor during re-attach) does not loop around
// it.
//
// remoteMessageWait doubles as both the receive timeout and the
// inter-attempt sleep; a zero value is honored as-is rather than silently
// defaulted, which degrades to a tight retry loop with no receive
// timeout — the documented behavior, not a bug.
func handshakeOnce(h *Handle, cancel <-chan struct{}) (err error) {
	_, span := telemetry.Tracer().Start(context.Background(), "outprocmod.handshake")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	h.mu.Lock()
	ctrlSock := h.controlSocket
	wait := h.remoteMessageWait
	messageURI := h.messageURI
	moduleArgs := h.moduleArgs
	h.mu.Unlock()

	if ctrlSock == nil {
		return fmt.Errorf("%w: control socket not connected", ErrTransportSetup)
	}
	ctrlSock.SetRecvTimeout(wait)

	started := time.Now()
	for {
		select {
		case <-cancel:
			return ErrHandshakeTimeout
		default:
		}

		frame, err := ctrlwire.EncodeCreate(messageURI, moduleArgs, uint8(PairSocket))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCodecFailed, err)
		}

		sendErr := ctrlSock.TrySend(frame)
		if errors.Is(sendErr, outbound.ErrWouldBlock) {
			sleepOrCancel(wait, cancel)
			continue
		}
		if sendErr != nil {
			return fmt.Errorf("%w: %v", ErrTransportIO, sendErr)
		}
		h.metrics.FrameSent("control")
		h.logger.Debug("handshake: create frame sent", "fingerprint", xxhash.Sum64(frame))

		data, recvErr := ctrlSock.Recv()
		if errors.Is(recvErr, outbound.ErrTimeout) || errors.Is(recvErr, outbound.ErrInterrupted) || errors.Is(recvErr, outbound.ErrWouldBlock) {
			continue
		}
		if recvErr != nil {
			return fmt.Errorf("%w: %v", ErrTransportIO, recvErr)
		}
		h.metrics.FrameReceived("control")
		h.logger.Debug("handshake: reply frame received", "fingerprint", xxhash.Sum64(data))

		frameOut, decErr := ctrlwire.Decode(data)
		if decErr != nil {
			return fmt.Errorf("%w: %v", ErrCodecFailed, decErr)
		}

		reply, ok := frameOut.(ctrlwire.ReplyFrame)
		if !ok || reply.Status != 0 {
			return ErrHandshakeRejected
		}
		h.metrics.ObserveHandshakeDuration(time.Since(started).Seconds())
		return nil
	}
}

// sleepOrCancel sleeps for d, or returns early if cancel fires.
func sleepOrCancel(d time.Duration, cancel <-chan struct{}) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-cancel:
	}
}

// sendStartFrame sends a start frame on the control socket, blocking. Used
// both when entering RUNNING from READY and when resuming RUNNING from
// ATTACHING after a successful re-attach.
func sendStartFrame(h *Handle) error {
	h.mu.Lock()
	ctrlSock := h.controlSocket
	h.mu.Unlock()
	if ctrlSock == nil {
		return fmt.Errorf("%w: control socket not connected", ErrTransportSetup)
	}
	if err := ctrlSock.Send(ctrlwire.EncodeStart()); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportIO, err)
	}
	return nil
}

// reattach reruns the handshake and, on success, resends the start
// frame — the ATTACHING → RUNNING transition. It is only ever called
// from the control-monitor task, preserving the "one logical actor per
// socket" invariant during re-attach.
func reattach(h *Handle, cancel <-chan struct{}) error {
	h.setState(stateAttaching)
	h.metrics.Reattached()
	if err := handshakeOnce(h, cancel); err != nil {
		return err
	}
	if err := sendStartFrame(h); err != nil {
		return err
	}
	h.setState(stateRunning)
	return nil
}

func (h *Handle) setState(s state) {
	h.mu.Lock()
	h.lifecycle = s
	h.mu.Unlock()
}

func (h *Handle) getState() state {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lifecycle
}

// sendDestroyBestEffort sends a destroy frame on the control socket with
// up to h.destroyRetries non-blocking retries on would-block. Failure is
// silently tolerated: destroy-frame delivery is best-effort, not a hard
// requirement.
func sendDestroyBestEffort(h *Handle) {
	h.mu.Lock()
	ctrlSock := h.controlSocket
	retries := h.destroyRetries
	h.mu.Unlock()
	if ctrlSock == nil {
		return
	}

	frame := ctrlwire.EncodeDestroy()
	for attempt := 0; attempt <= retries; attempt++ {
		err := ctrlSock.TrySend(frame)
		if err == nil {
			return
		}
		if !errors.Is(err, outbound.ErrWouldBlock) {
			return
		}
	}
}
