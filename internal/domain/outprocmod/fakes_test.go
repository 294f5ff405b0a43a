package outprocmod

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sentinelgate/outproc-gateway/internal/port/outbound"
	"github.com/sentinelgate/outproc-gateway/pkg/gwmsg"
)

// testLogger discards output so test runs stay quiet; the tests assert on
// fake-transport/broker state, not on log lines.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport is an in-memory Transport double. Each instance has its
// own inbox (fed by test code via push) and outbox (captured sends); it
// never talks to a real peer, so tests exercise the lifecycle state
// machine deterministically instead of racing a real socket.
type fakeTransport struct {
	mu           sync.Mutex
	inbox        [][]byte
	outbox       [][]byte
	closed       bool
	connErr      error
	sendErr      error
	recvErr      error
	connectedURI string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) Connect(uri string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectedURI = uri
	return f.connErr
}

func (f *fakeTransport) SetRecvTimeout(time.Duration) {}

func (f *fakeTransport) Send(data []byte) error {
	return f.TrySend(data)
}

func (f *fakeTransport) TrySend(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.outbox = append(f.outbox, cp)
	return nil
}

func (f *fakeTransport) Recv() ([]byte, error) {
	return f.TryRecv()
}

func (f *fakeTransport) TryRecv() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recvErr != nil {
		return nil, f.recvErr
	}
	if len(f.inbox) == 0 {
		return nil, outbound.ErrWouldBlock
	}
	data := f.inbox[0]
	f.inbox = f.inbox[1:]
	return data, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) push(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbox = append(f.inbox, data)
}

func (f *fakeTransport) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.outbox))
	copy(out, f.outbox)
	return out
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeBroker is a minimal Broker double recording every Publish call.
type fakeBroker struct {
	mu        sync.Mutex
	published []*gwmsg.Message
	err       error
}

func (b *fakeBroker) Publish(moduleID string, msg *gwmsg.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, msg)
	return nil
}

func (b *fakeBroker) all() []*gwmsg.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*gwmsg.Message, len(b.published))
	copy(out, b.published)
	return out
}
