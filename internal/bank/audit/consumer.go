package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MuadBenMusa/sparkcore-backend/pkg/slogx"
)

// Sink persists one event. It must tolerate seeing the same event twice.
type Sink interface {
	Append(ctx context.Context, ev Event) error
}

type ConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string

	// Batch is the maximum number of entries read per call.
	Batch int64

	// Block is how long a read waits for new entries. Negative means do not
	// wait at all.
	Block time.Duration

	// ClaimIdle is how long an entry may stay unacknowledged before another
	// read takes it over and retries it.
	ClaimIdle time.Duration
}

func (c *ConsumerConfig) setDefaults() {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.Group == "" {
		c.Group = DefaultGroup
	}
	if c.Consumer == "" {
		c.Consumer = "consumer-1"
	}
	if c.Batch <= 0 {
		c.Batch = 50
	}
	if c.Block == 0 {
		c.Block = 5 * time.Second
	}
	if c.ClaimIdle <= 0 {
		c.ClaimIdle = time.Minute
	}
}

// Consumer moves stream entries into a Sink. An entry is acknowledged only
// after the sink accepted it, so a crash between the two redelivers it.
type Consumer struct {
	client redis.UniversalClient
	sink   Sink
	cfg    ConsumerConfig
	logger *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewConsumer(client redis.UniversalClient, sink Sink, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		client: client,
		sink:   sink,
		cfg:    cfg,
		logger: logger.With("component", "audit_consumer", "stream", cfg.Stream, "group", cfg.Group),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// EnsureGroup creates the stream and consumer group if they do not exist.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("audit: create group: %w", err)
	}
	return nil
}

// Start runs the consume loop in the background until Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	go c.run()
	c.logger.Info("audit consumer started", "consumer", c.cfg.Consumer)
	return nil
}

// Stop ends the consume loop and waits for the current batch to finish.
func (c *Consumer) Stop() {
	close(c.stopCh)
	<-c.doneCh
	c.logger.Info("audit consumer stopped")
}

func (c *Consumer) run() {
	defer close(c.doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.stopCh
		cancel()
	}()

	for ctx.Err() == nil {
		if _, err := c.ProcessOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("audit consume failed", slogx.Err(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
}

// ProcessOnce retries stale pending entries, then reads new ones. It returns
// the number of entries appended.
func (c *Consumer) ProcessOnce(ctx context.Context) (int, error) {
	reclaimed, err := c.reclaim(ctx)
	if err != nil {
		return 0, err
	}
	n := c.handle(ctx, reclaimed)

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.Batch,
		Block:    c.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return n, nil
	}
	if err != nil {
		return n, fmt.Errorf("audit: xreadgroup: %w", err)
	}

	for _, s := range streams {
		n += c.handle(ctx, s.Messages)
	}
	return n, nil
}

func (c *Consumer) reclaim(ctx context.Context) ([]redis.XMessage, error) {
	msgs, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  c.cfg.ClaimIdle,
		Start:    "0-0",
		Count:    c.cfg.Batch,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: xautoclaim: %w", err)
	}
	return msgs, nil
}

func (c *Consumer) handle(ctx context.Context, msgs []redis.XMessage) int {
	var appended int
	for _, msg := range msgs {
		ev, err := decodeEvent(msg)
		if err != nil {
			// Unreadable entries would be redelivered forever.
			c.logger.Error("discarding malformed audit entry", "entry_id", msg.ID, slogx.Err(err))
			c.ack(ctx, msg.ID)
			continue
		}

		if err := c.sink.Append(ctx, ev); err != nil {
			c.logger.Warn("audit append failed, will retry",
				"entry_id", msg.ID,
				"event_id", ev.ID,
				slogx.Err(err),
			)
			continue
		}

		c.ack(ctx, msg.ID)
		appended++
	}
	return appended
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		c.logger.Error("audit ack failed", "entry_id", id, slogx.Err(err))
	}
}
