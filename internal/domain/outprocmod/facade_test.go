package outprocmod

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sentinelgate/outproc-gateway/internal/port/outbound"
	"github.com/sentinelgate/outproc-gateway/pkg/ctrlwire"
	"github.com/sentinelgate/outproc-gateway/pkg/gwmsg"
	"go.uber.org/goleak"
)

// newTestFactory returns a TransportFactory that hands out fresh
// fakeTransports and records them in creation order. connectionSetup
// always creates the message socket first and the control socket second
// (facade_test relies on that order, mirroring connection.go).
func newTestFactory() (outbound.TransportFactory, *[]*fakeTransport) {
	var mu sync.Mutex
	var created []*fakeTransport
	factory := func() outbound.Transport {
		mu.Lock()
		defer mu.Unlock()
		f := newFakeTransport()
		created = append(created, f)
		return f
	}
	return factory, &created
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func testConfig(mode LifecycleMode) *Config {
	return &Config{
		ControlURI:        "inproc://c",
		MessageURI:        "inproc://m",
		ModuleArgs:        "X",
		LifecycleMode:     mode,
		RemoteMessageWait: 20 * time.Millisecond,
		DestroyRetries:    3,
	}
}

// createResult lets tests start Create on a goroutine (Sync mode blocks)
// so they can seed a reply on the control socket once it exists, then
// join on the outcome.
type createResult struct {
	mod *Module
	err error
}

func TestCreateSyncHappyPath(t *testing.T) {
	defer goleak.VerifyNone(t)

	factory, created := newTestFactory()
	broker := &fakeBroker{}
	cfg := testConfig(Sync)

	resultCh := make(chan createResult, 1)
	go func() {
		mod, err := Create(context.Background(), cfg, broker, factory, testLogger(), nil)
		resultCh <- createResult{mod, err}
	}()

	waitForCondition(t, time.Second, func() bool { return len(*created) >= 2 })
	ctrlSock := (*created)[1]
	ctrlSock.push(ctrlwire.EncodeReply(0))

	var res createResult
	select {
	case res = <-resultCh:
	case <-time.After(2 * time.Second):
		t.Fatal("Create did not return")
	}
	if res.err != nil {
		t.Fatalf("Create() error = %v", res.err)
	}
	mod := res.mod

	if err := mod.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitForCondition(t, time.Second, func() bool {
		return len(ctrlSock.sent()) >= 2 // create + start
	})

	msgSock := (*created)[0]
	mod.Receive(gwmsg.New([]byte("hello")))

	waitForCondition(t, time.Second, func() bool {
		return len(msgSock.sent()) >= 1
	})

	sent := msgSock.sent()
	got, err := gwmsg.Decode(sent[0])
	if err != nil {
		t.Fatalf("decode sent message: %v", err)
	}
	if string(got.Payload) != "hello" {
		t.Fatalf("payload = %q, want %q", got.Payload, "hello")
	}

	mod.Destroy()

	ctrlSent := ctrlSock.sent()
	last, err := ctrlwire.Decode(ctrlSent[len(ctrlSent)-1])
	if err != nil {
		t.Fatalf("decode final control frame: %v", err)
	}
	if _, ok := last.(ctrlwire.DestroyFrame); !ok {
		t.Fatalf("final control frame = %T, want DestroyFrame", last)
	}
	if !msgSock.isClosed() || !ctrlSock.isClosed() {
		t.Fatal("expected both sockets closed after Destroy")
	}
}

func TestCreateSyncHandshakeNeverRepliesReturnsError(t *testing.T) {
	defer goleak.VerifyNone(t)

	factory, _ := newTestFactory()
	broker := &fakeBroker{}
	cfg := testConfig(Sync)
	cfg.RemoteMessageWait = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	resultCh := make(chan createResult, 1)
	go func() {
		mod, err := Create(ctx, cfg, broker, factory, testLogger(), nil)
		resultCh <- createResult{mod, err}
	}()

	select {
	case res := <-resultCh:
		if res.err == nil {
			t.Fatal("expected Create to time out with an error when remote never replies")
		}
		if res.mod != nil {
			t.Fatal("expected nil module on failed create")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Create did not honor the caller's context deadline")
	}
}

func TestCreateAsyncReturnsImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)

	factory, created := newTestFactory()
	broker := &fakeBroker{}
	cfg := testConfig(Async)

	start := time.Now()
	mod, err := Create(context.Background(), cfg, broker, factory, testLogger(), nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Async Create took %v, expected to return immediately", elapsed)
	}

	waitForCondition(t, time.Second, func() bool { return len(*created) >= 2 })
	ctrlSock := (*created)[1]
	ctrlSock.push(ctrlwire.EncodeReply(0))

	waitForCondition(t, time.Second, func() bool {
		return mod.h.getState() == stateReady
	})

	mod.Destroy()
}

func TestStartUnwindsSpawnedWorkersOnSendFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	factory, created := newTestFactory()
	broker := &fakeBroker{}
	cfg := testConfig(Sync)

	resultCh := make(chan createResult, 1)
	go func() {
		mod, err := Create(context.Background(), cfg, broker, factory, testLogger(), nil)
		resultCh <- createResult{mod, err}
	}()

	waitForCondition(t, time.Second, func() bool { return len(*created) >= 2 })
	ctrlSock := (*created)[1]
	ctrlSock.push(ctrlwire.EncodeReply(0))

	res := <-resultCh
	if res.err != nil {
		t.Fatalf("Create() error = %v", res.err)
	}
	mod := res.mod

	// Sync Create joins the async-create worker before returning, so no
	// goroutine touches the control socket here: safe to inject the fault
	// without racing a sender.
	ctrlSock.sendErr = errors.New("wire down")

	if err := mod.Start(); err == nil {
		t.Fatal("expected Start to fail when the start frame cannot be sent")
	}

	// The workers spawned before the failed send must be stopped and
	// joined on the way out, and the outbound worker must never have been
	// spawned at all.
	if mod.h.workers.inbound.running {
		t.Error("inbound worker still running after failed Start")
	}
	if mod.h.workers.controlMon.running {
		t.Error("control monitor still running after failed Start")
	}
	if mod.h.workers.outbound.running {
		t.Error("outbound worker spawned despite start frame send failing")
	}
	if got := mod.h.getState(); got == stateRunning {
		t.Errorf("state = %v after failed Start, want not RUNNING", got)
	}

	mod.Destroy()
}

func TestReattachAfterRemoteTerminates(t *testing.T) {
	defer goleak.VerifyNone(t)

	factory, created := newTestFactory()
	broker := &fakeBroker{}
	cfg := testConfig(Sync)

	resultCh := make(chan createResult, 1)
	go func() {
		mod, err := Create(context.Background(), cfg, broker, factory, testLogger(), nil)
		resultCh <- createResult{mod, err}
	}()

	waitForCondition(t, time.Second, func() bool { return len(*created) >= 2 })
	ctrlSock := (*created)[1]
	ctrlSock.push(ctrlwire.EncodeReply(0))

	res := <-resultCh
	if res.err != nil {
		t.Fatalf("Create() error = %v", res.err)
	}
	mod := res.mod
	if err := mod.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitForCondition(t, time.Second, func() bool { return len(ctrlSock.sent()) >= 2 })

	// simulate remote termination
	ctrlSock.push(ctrlwire.EncodeReply(1))

	waitForCondition(t, 2*time.Second, func() bool {
		return mod.h.getState() == stateAttaching || len(ctrlSock.sent()) >= 3
	})

	// let re-attach's handshake succeed
	ctrlSock.push(ctrlwire.EncodeReply(0))

	waitForCondition(t, 2*time.Second, func() bool {
		return mod.h.getState() == stateRunning && len(ctrlSock.sent()) >= 4
	})

	mod.Destroy()
}
