package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultStream = "audit:events"
	DefaultGroup  = "audit-writers"

	// eventField is the stream entry field holding the JSON event.
	eventField = "event"

	// streamMaxLen bounds the stream. Trimming is approximate.
	streamMaxLen = 100_000
)

// RedisStream is a Transport appending events to a Redis stream.
type RedisStream struct {
	client redis.UniversalClient
	stream string
}

var _ Transport = (*RedisStream)(nil)

func NewRedisStream(client redis.UniversalClient, stream string) *RedisStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStream{client: client, stream: stream}
}

func (s *RedisStream) Send(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("audit: encode event: %w", err)
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{eventField: payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("audit: xadd %s: %w", s.stream, err)
	}
	return nil
}

func decodeEvent(msg redis.XMessage) (Event, error) {
	raw, ok := msg.Values[eventField].(string)
	if !ok {
		return Event{}, fmt.Errorf("audit: entry %s has no %q field", msg.ID, eventField)
	}
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return Event{}, fmt.Errorf("audit: decode entry %s: %w", msg.ID, err)
	}
	if ev.ID == "" {
		return Event{}, fmt.Errorf("audit: entry %s has no event id", msg.ID)
	}
	return ev, nil
}
