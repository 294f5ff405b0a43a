// Command modulehostsim is a standalone stand-in for a remote module
// host, specified only through its observable protocol obligations. It
// answers the proxy's handshake, optionally echoes gateway messages, and
// can simulate a mid-run crash — enough to drive outproc-gatewayd through
// its full lifecycle for manual or CI smoke testing without a real
// module.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentinelgate/outproc-gateway/internal/adapter/outbound/pairsocket"
	"github.com/sentinelgate/outproc-gateway/internal/hostsim"
)

func main() {
	var (
		controlURI     = flag.String("control-uri", "@ipc:///tmp/outproc-control.sock", "control channel bind URI")
		messageURI     = flag.String("message-uri", "@ipc:///tmp/outproc-message.sock", "message channel bind URI")
		reject         = flag.Bool("reject-handshake", false, "reply to every create frame with a failure status")
		terminateAfter = flag.Int("terminate-after", 0, "send an unsolicited failure reply after echoing this many messages (0 disables)")
		echo           = flag.Bool("echo", true, "echo received gateway messages back unchanged")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctrl := pairsocket.New()
	if err := ctrl.Connect(*controlURI); err != nil {
		logger.Error("modulehostsim: control socket bind failed", "error", err)
		os.Exit(1)
	}
	defer ctrl.Close()

	msg := pairsocket.New()
	if err := msg.Connect(*messageURI); err != nil {
		logger.Error("modulehostsim: message socket bind failed", "error", err)
		os.Exit(1)
	}
	defer msg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	host := hostsim.New(ctrl, msg, hostsim.Options{
		RejectHandshake: *reject,
		TerminateAfter:  *terminateAfter,
		Echo:            *echo,
		Logger:          logger,
	})

	logger.Info("modulehostsim: listening", "control_uri", *controlURI, "message_uri", *messageURI)
	if err := host.Run(ctx); err != nil {
		logger.Error("modulehostsim: exited with error", "error", err)
		os.Exit(1)
	}
	time.Sleep(10 * time.Millisecond) // let in-flight sends flush before socket close
}
