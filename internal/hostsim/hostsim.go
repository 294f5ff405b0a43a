// Package hostsim implements the *other side* of the proxy's protocol: a
// simulated remote module host, specified only through its observable
// handshake/message/destroy obligations (the real module host is out of
// scope). cmd/modulehostsim wraps this as a standalone binary over a real
// transport; internal/integration drives it directly over memsocket so
// the full lifecycle — handshake, run, re-attach, destroy — is
// exercisable in-process.
package hostsim

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sentinelgate/outproc-gateway/internal/port/outbound"
	"github.com/sentinelgate/outproc-gateway/pkg/ctrlwire"
)

// Options tunes the simulated host's behavior for a test scenario.
type Options struct {
	// RejectHandshake makes every create frame receive a non-zero status
	// reply, so the proxy's handshake never succeeds. A remote that never
	// responds at all is instead modeled by simply not running a Host;
	// this models "responds, but rejects".
	RejectHandshake bool

	// TerminateAfter sends an unsolicited Reply{status=1} this many
	// messages after the first successful handshake, simulating the
	// remote module host crashing mid-run. Zero disables this behavior.
	TerminateAfter int

	// Echo, if true, echoes every received gateway-message frame back on
	// the message socket unchanged, so a caller can observe what the
	// proxy put on the wire.
	Echo bool

	Logger *slog.Logger
}

// Host runs the simulated remote module host's loop against a control and
// a message Transport until ctx is cancelled.
type Host struct {
	ctrl outbound.Transport
	msg  outbound.Transport
	opts Options

	countMu sync.Mutex
	count   int
}

// New builds a Host. ctrl and msg are already-connected endpoints (one end
// of a pair whose other end the proxy drives).
func New(ctrl, msg outbound.Transport, opts Options) *Host {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Host{ctrl: ctrl, msg: msg, opts: opts}
}

// Run drives the control-channel handshake loop and the message-channel
// echo loop concurrently. Each loop ends when ctx is cancelled, its socket
// is closed, or it hits a fatal transport error (the control loop also
// ends on a destroy frame). Run returns once both loops have ended, with
// the first error either reported.
func (h *Host) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() { errCh <- h.controlLoop(ctx) }()
	if h.opts.Echo {
		go func() { errCh <- h.echoLoop(ctx) }()
	} else {
		go func() { <-ctx.Done(); errCh <- nil }()
	}

	var first error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// controlLoop answers create frames with a reply, and — once
// opts.TerminateAfter messages have been echoed past the first successful
// handshake — sends one unsolicited non-zero-status reply to trigger the
// proxy's re-attach path.
func (h *Host) controlLoop(ctx context.Context) error {
	h.ctrl.SetRecvTimeout(200 * time.Millisecond)
	handshakes := 0
	terminated := false

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if h.opts.TerminateAfter > 0 && !terminated && handshakes == 1 && h.echoCount() >= h.opts.TerminateAfter {
			terminated = true
			if err := h.ctrl.Send(ctrlwire.EncodeReply(1)); err != nil {
				h.opts.Logger.Warn("hostsim: failed to send unsolicited terminate reply", "error", err)
			}
		}

		data, err := h.ctrl.Recv()
		if errors.Is(err, outbound.ErrTimeout) || errors.Is(err, outbound.ErrInterrupted) || errors.Is(err, outbound.ErrWouldBlock) {
			continue
		}
		if errors.Is(err, outbound.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		frame, decErr := ctrlwire.Decode(data)
		if decErr != nil {
			h.opts.Logger.Warn("hostsim: decode failed", "error", decErr)
			continue
		}

		switch frame.(type) {
		case ctrlwire.CreateFrame:
			status := int32(0)
			if h.opts.RejectHandshake {
				status = 1
			}
			if err := h.ctrl.Send(ctrlwire.EncodeReply(status)); err != nil {
				return err
			}
			if status == 0 {
				handshakes++
				terminated = false
			}
		case ctrlwire.StartFrame:
			// no reply expected
		case ctrlwire.DestroyFrame:
			return nil
		}
	}
}

// echoLoop blocks receiving gateway-message frames and sends each one back
// unchanged, counting how many it has echoed for controlLoop's
// TerminateAfter check.
func (h *Host) echoLoop(ctx context.Context) error {
	h.msg.SetRecvTimeout(200 * time.Millisecond)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		data, err := h.msg.Recv()
		if errors.Is(err, outbound.ErrTimeout) || errors.Is(err, outbound.ErrInterrupted) || errors.Is(err, outbound.ErrWouldBlock) {
			continue
		}
		if errors.Is(err, outbound.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		h.incEchoCount()
		if err := h.msg.Send(data); err != nil {
			return err
		}
	}
}

func (h *Host) echoCount() int {
	h.countMu.Lock()
	defer h.countMu.Unlock()
	return h.count
}

func (h *Host) incEchoCount() {
	h.countMu.Lock()
	h.count++
	h.countMu.Unlock()
}
