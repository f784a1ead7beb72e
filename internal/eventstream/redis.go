// Package eventstream adapts Redis Streams into the run.requested /
// run.completed / run.failed event log described by the spec,
// generalizing the pack's go-redis list/queue usage to the Streams API.
package eventstream

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const StreamKey = "ml:run-events"

// Event is one field-map entry read from or written to the stream.
type Event map[string]string

type Stream struct {
	client *redis.Client
	group  string
}

func New(client *redis.Client, consumerGroup string) *Stream {
	return &Stream{client: client, group: consumerGroup}
}

// EnsureGroup creates the consumer group if it doesn't already exist.
func (s *Stream) EnsureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, StreamKey, s.group, "$").Err()
	if err != nil && !isBusyGroupErr(err) {
		return fmt.Errorf("eventstream: ensure group: %w", err)
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && (err.Error() == "BUSYGROUP Consumer Group name already exists")
}

// Publish appends event to the stream.
func (s *Stream) Publish(ctx context.Context, event Event) (string, error) {
	values := make(map[string]interface{}, len(event))
	for k, v := range event {
		values[k] = v
	}
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("eventstream: publish: %w", err)
	}
	return id, nil
}

// Message pairs a stream entry id with its decoded event.
type Message struct {
	ID    string
	Event Event
}

// ReadNext blocks (up to the context deadline) for new messages on the
// consumer group, at most count at a time.
func (s *Stream) ReadNext(ctx context.Context, consumer string, count int64) ([]Message, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: consumer,
		Streams:  []string{StreamKey, ">"},
		Count:    count,
		Block:    0,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("eventstream: read: %w", err)
	}

	var out []Message
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			event := make(Event, len(msg.Values))
			for k, v := range msg.Values {
				if s, ok := v.(string); ok {
					event[k] = s
				} else {
					event[k] = fmt.Sprintf("%v", v)
				}
			}
			out = append(out, Message{ID: msg.ID, Event: event})
		}
	}
	return out, nil
}

// Ack acknowledges a processed message.
func (s *Stream) Ack(ctx context.Context, id string) error {
	return s.client.XAck(ctx, StreamKey, s.group, id).Err()
}
