package outprocmod

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sentinelgate/outproc-gateway/internal/port/outbound"
)

// worker bundles the per-task bookkeeping for one of the four cooperating
// goroutines a Handle runs, adapted to Go's idiom: a context.CancelFunc
// plus a done channel stands in for flag-polling, as long as every task
// is still joined before the handle is freed.
type worker struct {
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// Handle is one proxy instance for one remote module. Fields whose comment
// says "guarded by mu" are guarded by mu; workers is updated only by the
// façade calls that spawn and stop tasks; the rest are set once at
// construction and never mutated afterward.
type Handle struct {
	ID string // stable identifier, used as the Broker's moduleID

	mu            sync.Mutex
	messageSocket outbound.Transport // guarded by mu; nil means closed/never opened
	controlSocket outbound.Transport // guarded by mu
	outgoing      *outgoingQueue     // guarded by mu
	lifecycle     state              // guarded by mu
	needsReattach bool               // guarded by mu; set by controlMonitorLoop

	controlURI string
	messageURI string
	moduleArgs string

	lifecycleMode     LifecycleMode
	remoteMessageWait time.Duration // used as both recv-timeout and retry sleep
	destroyRetries    int

	broker outbound.Broker // non-owning; precondition: outlives Handle

	transportFactory outbound.TransportFactory

	metrics outbound.Metrics // non-owning; NoopMetrics if the caller supplies none

	workers struct {
		inbound     worker
		outbound    worker
		controlMon  worker
		asyncCreate worker
	}

	logger *slog.Logger
}
