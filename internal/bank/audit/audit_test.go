package audit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MuadBenMusa/sparkcore-backend/pkg/httpx"
	"github.com/MuadBenMusa/sparkcore-backend/pkg/slogx"
)

func TestNewEvent(t *testing.T) {
	ctx := httpx.WithClientIP(context.Background(), "203.0.113.9")

	ev := NewEvent(ctx, ActionLoginFailed, StatusFailure, "")
	require.NotEmpty(t, ev.ID)
	require.Equal(t, SystemActor, ev.ActorUsername)
	require.Equal(t, "203.0.113.9", ev.ClientAddress)
	require.Nil(t, ev.Amount)
	require.Equal(t, "action=LOGIN_FAILED", ev.Details())

	other := NewEvent(ctx, ActionLoginFailed, StatusFailure, "alice")
	require.NotEqual(t, ev.ID, other.ID)
	require.Equal(t, "alice", other.ActorUsername)
}

func TestEventDetails(t *testing.T) {
	ev := NewEvent(context.Background(), ActionTransfer, StatusSuccess, "alice").
		WithAmount("DE89370400440532013000", "DE53100500000000001234", decimal.RequireFromString("250"))

	require.Equal(t,
		"action=TRANSFER amount=250.00 from=DE89370400440532013000 to=DE53100500000000001234",
		ev.Details(),
	)

	open := NewEvent(context.Background(), ActionCreateAccount, StatusSuccess, "admin").
		WithAmount("", "DE53100500000000001234", decimal.RequireFromString("1000.5"))
	require.Equal(t, "action=CREATE_ACCOUNT amount=1000.50 to=DE53100500000000001234", open.Details())
}

type recordingTransport struct {
	mu     sync.Mutex
	events []Event
	fail   atomic.Int32
	block  chan struct{}
}

func (r *recordingTransport) Send(_ context.Context, ev Event) error {
	if r.block != nil {
		<-r.block
	}
	if r.fail.Load() > 0 {
		r.fail.Add(-1)
		return errors.New("transport down")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingTransport) sent() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestAsyncPublisher_DeliversAndDrainsOnClose(t *testing.T) {
	tr := &recordingTransport{}
	p := NewAsyncPublisher(tr, slogx.Discard(), 16, 2)

	for range 10 {
		p.Publish(context.Background(), NewEvent(context.Background(), ActionTransfer, StatusSuccess, "alice"))
	}
	p.Close()

	require.Len(t, tr.sent(), 10)

	// Publishing after close is dropped, not a panic.
	p.Publish(context.Background(), NewEvent(context.Background(), ActionTransfer, StatusSuccess, "alice"))
	require.Len(t, tr.sent(), 10)
	p.Close()
}

func TestAsyncPublisher_RetriesTransportErrors(t *testing.T) {
	tr := &recordingTransport{}
	tr.fail.Store(2)

	p := NewAsyncPublisher(tr, slogx.Discard(), 4, 1)
	p.backoff = time.Millisecond

	p.Publish(context.Background(), NewEvent(context.Background(), ActionLogout, StatusSuccess, "bob"))
	p.Close()

	require.Len(t, tr.sent(), 1)
}

func TestAsyncPublisher_DropsWhenFull(t *testing.T) {
	tr := &recordingTransport{block: make(chan struct{})}
	p := NewAsyncPublisher(tr, slogx.Discard(), 1, 1)

	start := time.Now()
	for range 5 {
		p.Publish(context.Background(), NewEvent(context.Background(), ActionTransfer, StatusSuccess, "alice"))
	}
	require.Less(t, time.Since(start), time.Second, "publish must not block")

	close(tr.block)
	p.Close()

	// One in flight in the worker plus at most one queued.
	require.LessOrEqual(t, len(tr.sent()), 2)
	require.GreaterOrEqual(t, len(tr.sent()), 1)
}

type memorySink struct {
	mu   sync.Mutex
	seen map[string]Event
	fail atomic.Int32
}

func newMemorySink() *memorySink {
	return &memorySink{seen: make(map[string]Event)}
}

func (s *memorySink) Append(_ context.Context, ev Event) error {
	if s.fail.Load() > 0 {
		s.fail.Add(-1)
		return errors.New("db down")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[ev.ID] = ev
	return nil
}

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func newStreamPair(t *testing.T, sink Sink) (*RedisStream, *Consumer, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	m := miniredis.RunT(t)
	m.SetTime(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stream := NewRedisStream(client, "test:audit")
	c := NewConsumer(client, sink, ConsumerConfig{
		Stream:    "test:audit",
		Group:     "writers",
		Consumer:  "c1",
		Block:     -1,
		ClaimIdle: time.Minute,
	}, slogx.Discard())
	require.NoError(t, c.EnsureGroup(context.Background()))

	return stream, c, m, client
}

func TestConsumer_AppendsAndAcks(t *testing.T) {
	ctx := context.Background()
	sink := newMemorySink()
	stream, c, _, client := newStreamPair(t, sink)

	ev := NewEvent(ctx, ActionTransfer, StatusSuccess, "alice").
		WithAmount("DE89370400440532013000", "DE53100500000000001234", decimal.RequireFromString("250.00"))
	require.NoError(t, stream.Send(ctx, ev))

	n, err := c.ProcessOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got := sink.seen[ev.ID]
	require.Equal(t, ActionTransfer, got.Action)
	require.Equal(t, "alice", got.ActorUsername)
	require.True(t, got.Amount.Equal(decimal.RequireFromString("250")))

	pending, err := client.XPending(ctx, "test:audit", "writers").Result()
	require.NoError(t, err)
	require.Zero(t, pending.Count)

	// Nothing new to read.
	n, err = c.ProcessOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestConsumer_EnsureGroupIsIdempotent(t *testing.T) {
	_, c, _, _ := newStreamPair(t, newMemorySink())
	require.NoError(t, c.EnsureGroup(context.Background()))
}

func TestConsumer_RedeliversFailedAppends(t *testing.T) {
	ctx := context.Background()
	sink := newMemorySink()
	sink.fail.Store(1)
	stream, c, m, _ := newStreamPair(t, sink)

	ev := NewEvent(ctx, ActionLoginSuccess, StatusSuccess, "alice")
	require.NoError(t, stream.Send(ctx, ev))

	n, err := c.ProcessOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, sink.len())

	// Not yet idle long enough to be reclaimed.
	n, err = c.ProcessOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	m.SetTime(time.Date(2025, 1, 1, 12, 5, 0, 0, time.UTC))

	n, err = c.ProcessOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, sink.len())
}

func TestConsumer_DiscardsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	sink := newMemorySink()
	_, c, _, client := newStreamPair(t, sink)

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: "test:audit",
		Values: map[string]any{"event": "{not json"},
	}).Err())

	n, err := c.ProcessOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	pending, err := client.XPending(ctx, "test:audit", "writers").Result()
	require.NoError(t, err)
	require.Zero(t, pending.Count)
}

func TestConsumer_StartStop(t *testing.T) {
	ctx := context.Background()
	sink := newMemorySink()

	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewConsumer(client, sink, ConsumerConfig{
		Stream: "test:audit",
		Block:  20 * time.Millisecond,
	}, slogx.Discard())
	require.NoError(t, c.Start(ctx))

	p := NewAsyncPublisher(NewRedisStream(client, "test:audit"), slogx.Discard(), 8, 1)
	p.Publish(ctx, NewEvent(ctx, ActionLogout, StatusSuccess, "carol"))
	p.Close()

	require.Eventually(t, func() bool { return sink.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	c.Stop()
}
