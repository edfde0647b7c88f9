package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MuadBenMusa/sparkcore-backend/pkg/slogx"
)

// Publisher accepts events for delivery. Publish never blocks the caller and
// never fails it; delivery problems are logged.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Transport hands one event to the message transport.
type Transport interface {
	Send(ctx context.Context, ev Event) error
}

// ErrPublisherClosed is logged when events arrive after Close.
var ErrPublisherClosed = errors.New("audit: publisher closed")

const (
	DefaultQueueSize = 1024
	DefaultWorkers   = 2

	sendAttempts = 3
	sendTimeout  = 5 * time.Second
)

// AsyncPublisher buffers events in a bounded queue drained by a fixed set of
// workers. A full queue drops the event.
type AsyncPublisher struct {
	transport Transport
	logger    *slog.Logger
	backoff   time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	wg     sync.WaitGroup
}

var _ Publisher = (*AsyncPublisher)(nil)

// NewAsyncPublisher starts workers goroutines. Call Close to drain the queue
// and stop them.
func NewAsyncPublisher(t Transport, logger *slog.Logger, queueSize, workers int) *AsyncPublisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &AsyncPublisher{
		transport: t,
		logger:    logger,
		backoff:   100 * time.Millisecond,
		queue:     make(chan Event, queueSize),
	}

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

func (p *AsyncPublisher) Publish(ctx context.Context, ev Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	log := slogx.FromContext(ctx)
	if p.closed {
		log.Error("audit event dropped", "event_id", ev.ID, "action", ev.Action, slogx.Err(ErrPublisherClosed))
		return
	}

	select {
	case p.queue <- ev:
	default:
		log.Error("audit queue full, event dropped", "event_id", ev.ID, "action", ev.Action)
	}
}

// Close stops accepting events and waits until the queued ones were sent.
func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("audit publisher stopped")
}

func (p *AsyncPublisher) worker() {
	defer p.wg.Done()
	for ev := range p.queue {
		p.send(ev)
	}
}

func (p *AsyncPublisher) send(ev Event) {
	var err error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err = p.transport.Send(ctx, ev)
		cancel()
		if err == nil {
			return
		}
		if attempt < sendAttempts {
			time.Sleep(p.backoff * time.Duration(attempt))
		}
	}
	p.logger.Error("audit event lost",
		"event_id", ev.ID,
		"action", ev.Action,
		"attempts", sendAttempts,
		slogx.Err(err),
	)
}
