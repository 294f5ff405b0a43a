// Package integration exercises the proxy's full lifecycle — handshake,
// run, re-attach, destroy — against internal/hostsim playing the remote
// module host over internal/adapter/outbound/memsocket, end to end
// without a real socket or a second process.
package integration

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/sentinelgate/outproc-gateway/internal/adapter/outbound/localbroker"
	"github.com/sentinelgate/outproc-gateway/internal/adapter/outbound/memsocket"
	"github.com/sentinelgate/outproc-gateway/internal/domain/outprocmod"
	"github.com/sentinelgate/outproc-gateway/internal/hostsim"
	"github.com/sentinelgate/outproc-gateway/internal/port/outbound"
	"github.com/sentinelgate/outproc-gateway/pkg/gwmsg"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// harness wires one proxy Module to one simulated module host over two
// connected memsocket pairs, handing out the proxy-facing ends via a
// TransportFactory the way a real deployment hands out pairsocket
// endpoints — connectionSetup always asks for the message socket first,
// then the control socket, so the factory must serve them in that order.
type harness struct {
	ctrlPair *memsocket.Pair
	msgPair  *memsocket.Pair
	factory  outbound.TransportFactory
	broker   *localbroker.Broker
}

func newHarness() *harness {
	h := &harness{
		msgPair:  memsocket.NewPair(8),
		ctrlPair: memsocket.NewPair(8),
		broker:   localbroker.New(),
	}
	calls := 0
	h.factory = func() outbound.Transport {
		calls++
		if calls == 1 {
			return h.msgPair.A()
		}
		return h.ctrlPair.A()
	}
	return h
}

func (h *harness) runHost(ctx context.Context, opts hostsim.Options) {
	host := hostsim.New(h.ctrlPair.B(), h.msgPair.B(), opts)
	go func() { _ = host.Run(ctx) }()
}

func testConfig(mode outprocmod.LifecycleMode) *outprocmod.Config {
	return &outprocmod.Config{
		ControlURI:        "inproc://control",
		MessageURI:        "inproc://message",
		ModuleArgs:        "agent-1",
		LifecycleMode:     mode,
		RemoteMessageWait: 20 * time.Millisecond,
		DestroyRetries:    5,
	}
}

func recvOrFail(t *testing.T, sub <-chan *gwmsg.Message, want string, timeout time.Duration) {
	t.Helper()
	select {
	case msg := <-sub:
		if string(msg.Payload) != want {
			t.Fatalf("got %q, want %q", msg.Payload, want)
		}
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for %q", want)
	}
}

// Scenario 1: happy path, SYNC — create succeeds, start runs, a receive
// round-trips to the wire and back through the host's echo, destroy
// tears everything down cleanly.
func TestLifecycleSyncHappyPath(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.runHost(ctx, hostsim.Options{Echo: true})

	mod, err := outprocmod.Create(context.Background(), testConfig(outprocmod.Sync), h.broker, h.factory, testLogger(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mod.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sub, unsubscribe := h.broker.Subscribe(mod.ID(), 4)
	defer unsubscribe()

	mod.Receive(gwmsg.New([]byte("hello")))
	recvOrFail(t, sub, "hello", 2*time.Second)

	mod.Destroy()
	cancel()
}

// Scenario 2: ASYNC with a delayed reply — Create returns immediately,
// and a message enqueued before the handshake completes is still
// delivered once Start can finally succeed.
func TestLifecycleAsyncDelayedReply(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mod, err := outprocmod.Create(context.Background(), testConfig(outprocmod.Async), h.broker, h.factory, testLogger(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	sub, unsubscribe := h.broker.Subscribe(mod.ID(), 4)
	defer unsubscribe()
	mod.Receive(gwmsg.New([]byte("queued-before-handshake")))

	// Model "remote replies 200ms later" by delaying the host's startup.
	go func() {
		time.Sleep(200 * time.Millisecond)
		h.runHost(ctx, hostsim.Options{Echo: true})
	}()

	startErrCh := make(chan error, 1)
	go func() {
		deadline := time.Now().Add(3 * time.Second)
		for {
			err := mod.Start()
			if err == nil || time.Now().After(deadline) {
				startErrCh <- err
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	select {
	case err := <-startErrCh:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(4 * time.Second):
		t.Fatal("timed out waiting for Start to succeed after delayed handshake")
	}

	recvOrFail(t, sub, "queued-before-handshake", 3*time.Second)

	mod.Destroy()
	cancel()
}

// Scenario 3: remote terminates mid-run — the host sends one unsolicited
// REPLY{status=1} after a message has round-tripped; the control monitor
// re-attaches and a subsequent message still gets delivered.
func TestLifecycleReattachAfterRemoteTermination(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.runHost(ctx, hostsim.Options{Echo: true, TerminateAfter: 1})

	mod, err := outprocmod.Create(context.Background(), testConfig(outprocmod.Sync), h.broker, h.factory, testLogger(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mod.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sub, unsubscribe := h.broker.Subscribe(mod.ID(), 8)
	defer unsubscribe()

	mod.Receive(gwmsg.New([]byte("one")))
	recvOrFail(t, sub, "one", 2*time.Second)

	// The host now sends its one unsolicited failure reply; give the
	// control monitor time to observe it and re-attach.
	time.Sleep(500 * time.Millisecond)

	mod.Receive(gwmsg.New([]byte("after-reattach")))
	recvOrFail(t, sub, "after-reattach", 3*time.Second)

	mod.Destroy()
	cancel()
}

// Scenario 5: destroy with an unreachable remote — no host goroutine runs
// at all, so nothing answers the handshake or reads the control channel;
// the best-effort destroy frame at most lands unread in the pair's buffer,
// and destroy still completes and joins every worker.
func TestLifecycleDestroyUnreachableRemote(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness()
	cfg := testConfig(outprocmod.Async)
	mod, err := outprocmod.Create(context.Background(), cfg, h.broker, h.factory, testLogger(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	done := make(chan struct{})
	go func() {
		mod.Destroy()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Destroy did not complete against an unreachable remote")
	}
}

// Scenario 6: ordering — three messages enqueued in sequence arrive at
// the host, and are echoed back, in enqueue order.
func TestLifecycleOrdering(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.runHost(ctx, hostsim.Options{Echo: true})

	mod, err := outprocmod.Create(context.Background(), testConfig(outprocmod.Sync), h.broker, h.factory, testLogger(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mod.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sub, unsubscribe := h.broker.Subscribe(mod.ID(), 8)
	defer unsubscribe()

	mod.Receive(gwmsg.New([]byte("M1")))
	mod.Receive(gwmsg.New([]byte("M2")))
	mod.Receive(gwmsg.New([]byte("M3")))

	want := []string{"M1", "M2", "M3"}
	var got []string
	for len(got) < len(want) {
		select {
		case msg := <-sub:
			got = append(got, string(msg.Payload))
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out after receiving %v", got)
		}
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: got %v, want %v", got, want)
		}
	}

	mod.Destroy()
	cancel()
}
