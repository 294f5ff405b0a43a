package outprocmod

import (
	"errors"
	"fmt"

	"github.com/sentinelgate/outproc-gateway/internal/port/outbound"
)

// connectionSetup creates both transport endpoints and connects them to
// cfg.MessageURI / cfg.ControlURI respectively. On any step failure,
// endpoints already created are closed before returning, so a failed
// setup never leaks a live socket.
func connectionSetup(h *Handle, cfg *Config) error {
	msgSock := h.transportFactory()
	if err := msgSock.Connect(cfg.MessageURI); err != nil {
		return fmt.Errorf("%w: message socket connect %q: %v", ErrTransportSetup, cfg.MessageURI, err)
	}

	ctrlSock := h.transportFactory()
	if err := ctrlSock.Connect(cfg.ControlURI); err != nil {
		_ = retryOnInterrupt(msgSock.Close)
		return fmt.Errorf("%w: control socket connect %q: %v", ErrTransportSetup, cfg.ControlURI, err)
	}

	h.mu.Lock()
	h.messageSocket = msgSock
	h.controlSocket = ctrlSock
	h.mu.Unlock()
	return nil
}

// connectionTeardown closes every non-nil socket on h, under h.mu. Close
// errors are tolerated (best-effort) but interrupts are retried
// transparently, matching the nn_really_close idiom of treating
// EINTR-on-close as something to retry rather than surface.
func connectionTeardown(h *Handle) {
	h.mu.Lock()
	msgSock := h.messageSocket
	ctrlSock := h.controlSocket
	h.messageSocket = nil
	h.controlSocket = nil
	h.mu.Unlock()

	if msgSock != nil {
		_ = retryOnInterrupt(msgSock.Close)
	}
	if ctrlSock != nil {
		_ = retryOnInterrupt(ctrlSock.Close)
	}
}

// retryOnInterrupt calls op until it returns a non-ErrInterrupted result:
// a close interrupted by a signal must be retried transparently, and this
// helper applies that rule to any operation that can report interruption,
// not just Close.
func retryOnInterrupt(op func() error) error {
	for {
		err := op()
		if errors.Is(err, outbound.ErrInterrupted) {
			continue
		}
		return err
	}
}
