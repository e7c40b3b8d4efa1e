// Package queue is the event-driven intake: a Redis Streams consumer
// group delivering messages at least once into the idempotent
// orchestrator.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStream is the stream the WhatsApp sniffer publishes to.
const DefaultStream = "whatsapp_messages"

const blockDuration = time.Second

// Pending-entry reclaim defaults. A crashed consumer never acks, and a
// deferred message stays in its reader's pending list; without a
// periodic XAUTOCLAIM sweep neither would ever be redelivered, because
// XREADGROUP on ">" only yields entries no consumer has seen.
const (
	defaultClaimMinIdle  = time.Minute
	defaultClaimInterval = 30 * time.Second
	defaultClaimBatch    = 16
)

// QueuedMessage is the wire shape of one message on the stream. The row
// already exists in the database when it is enqueued; ID is the database
// message id.
type QueuedMessage struct {
	ID        int64
	MessageID string
	RawText   string
	SenderID  int64
	GroupID   *int64
	Timestamp time.Time
}

// Handler processes one delivered message. A non-nil error leaves the
// message unacknowledged so it is redelivered.
type Handler func(ctx context.Context, msg QueuedMessage) error

// StreamsQueue wraps a Redis Streams stream with consumer-group
// semantics.
type StreamsQueue struct {
	client *redis.Client
	stream string
	logger *zap.Logger

	claimMinIdle  time.Duration
	claimInterval time.Duration
	claimBatch    int64
}

// NewStreamsQueue connects to Redis.
func NewStreamsQueue(addr, stream string, logger *zap.Logger) *StreamsQueue {
	if stream == "" {
		stream = DefaultStream
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	logger.Info("Redis Streams queue initialized",
		zap.String("addr", addr),
		zap.String("stream", stream))
	return &StreamsQueue{
		client:        client,
		stream:        stream,
		logger:        logger,
		claimMinIdle:  defaultClaimMinIdle,
		claimInterval: defaultClaimInterval,
		claimBatch:    defaultClaimBatch,
	}
}

// GroupName returns the consumer group for a deployment environment.
// Each environment consumes the full stream independently.
func GroupName(environment string) string {
	return "classifier_group_" + environment
}

// ConsumerName returns a process-unique consumer identity.
func ConsumerName(environment string) string {
	return fmt.Sprintf("classifier_%s_%s", environment, uuid.NewString()[:8])
}

// CreateConsumerGroup creates the consumer group, creating the stream if
// it does not exist yet. An already-existing group is not an error.
func (q *StreamsQueue) CreateConsumerGroup(ctx context.Context, group string) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, group, "0").Err()
	if err != nil && strings.Contains(err.Error(), "BUSYGROUP") {
		q.logger.Info("Consumer group already exists", zap.String("group", group))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create consumer group %q: %w", group, err)
	}
	q.logger.Info("Created consumer group",
		zap.String("group", group),
		zap.String("stream", q.stream))
	return nil
}

// Publish adds a message to the stream. Producer side, also used by
// tests and the synthetic-message tool.
func (q *StreamsQueue) Publish(ctx context.Context, msg QueuedMessage) (string, error) {
	values := map[string]interface{}{
		"id":         strconv.FormatInt(msg.ID, 10),
		"message_id": msg.MessageID,
		"raw_text":   msg.RawText,
		"sender_id":  strconv.FormatInt(msg.SenderID, 10),
		"timestamp":  msg.Timestamp.UTC().Format(time.RFC3339),
	}
	if msg.GroupID != nil {
		values["group_id"] = strconv.FormatInt(*msg.GroupID, 10)
	}

	id, err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.stream, Values: values}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}
	return id, nil
}

// Consume reads one message at a time from the stream and invokes the
// handler, acknowledging only after it returns nil. Pending entries
// abandoned by other consumers, or deferred earlier by this one, are
// reclaimed at startup and then every claimInterval. Runs until ctx is
// cancelled.
func (q *StreamsQueue) Consume(ctx context.Context, group, consumer string, handler Handler) error {
	q.logger.Info("Consumer listening",
		zap.String("group", group),
		zap.String("consumer", consumer),
		zap.String("stream", q.stream))

	var lastClaim time.Time
	for {
		if ctx.Err() != nil {
			q.logger.Info("Consumer stopped", zap.String("consumer", consumer))
			return nil
		}

		if time.Since(lastClaim) >= q.claimInterval {
			q.claimStale(ctx, group, consumer, handler)
			lastClaim = time.Now()
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    1,
			Block:    blockDuration,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				q.logger.Info("Consumer stopped", zap.String("consumer", consumer))
				return nil
			}
			// Transient Redis error: log and keep consuming.
			q.logger.Error("Failed to read from stream", zap.Error(err))
			continue
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				q.handleEntry(ctx, group, entry, handler)
			}
		}
	}
}

// claimStale sweeps the group's pending entries and redelivers any that
// have been idle for at least claimMinIdle through the handler, taking
// ownership of them. Claim errors are logged and abandoned until the
// next sweep.
func (q *StreamsQueue) claimStale(ctx context.Context, group, consumer string, handler Handler) {
	start := "0-0"
	for {
		entries, next, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.stream,
			Group:    group,
			Consumer: consumer,
			MinIdle:  q.claimMinIdle,
			Start:    start,
			Count:    q.claimBatch,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() == nil {
				q.logger.Error("Failed to claim pending entries", zap.Error(err))
			}
			return
		}
		if len(entries) > 0 {
			q.logger.Info("Reclaimed pending entries",
				zap.Int("count", len(entries)),
				zap.String("consumer", consumer))
		}

		for _, entry := range entries {
			q.handleEntry(ctx, group, entry, handler)
		}

		if next == "0-0" || len(entries) == 0 {
			return
		}
		start = next
	}
}

// handleEntry parses and processes one delivered entry, acknowledging it
// only on handler success. Malformed entries are acknowledged and
// dropped: they would otherwise be redelivered forever.
func (q *StreamsQueue) handleEntry(ctx context.Context, group string, entry redis.XMessage, handler Handler) {
	msg, err := parseQueuedMessage(entry.Values)
	if err != nil {
		q.logger.Error("Dropping malformed stream entry",
			zap.String("entry_id", entry.ID),
			zap.Error(err))
		q.ack(ctx, group, entry.ID)
		return
	}

	if err := handler(ctx, msg); err != nil {
		q.logger.Error("Handler failed, message will be redelivered",
			zap.String("entry_id", entry.ID),
			zap.Int64("message_id", msg.ID),
			zap.Error(err))
		return
	}

	q.ack(ctx, group, entry.ID)
}

func (q *StreamsQueue) ack(ctx context.Context, group, entryID string) {
	if err := q.client.XAck(ctx, q.stream, group, entryID).Err(); err != nil {
		q.logger.Error("Failed to acknowledge message",
			zap.String("entry_id", entryID),
			zap.Error(err))
	}
}

// Close releases the Redis connection.
func (q *StreamsQueue) Close() error {
	return q.client.Close()
}

func parseQueuedMessage(values map[string]interface{}) (QueuedMessage, error) {
	var msg QueuedMessage

	id, err := int64Field(values, "id")
	if err != nil {
		return msg, err
	}
	msg.ID = id

	senderID, err := int64Field(values, "sender_id")
	if err != nil {
		return msg, err
	}
	msg.SenderID = senderID

	msg.MessageID, _ = stringField(values, "message_id")
	rawText, ok := stringField(values, "raw_text")
	if !ok {
		return msg, fmt.Errorf("stream entry missing raw_text")
	}
	msg.RawText = rawText

	if _, ok := values["group_id"]; ok {
		groupID, err := int64Field(values, "group_id")
		if err != nil {
			return msg, err
		}
		msg.GroupID = &groupID
	}

	if ts, ok := stringField(values, "timestamp"); ok {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return msg, fmt.Errorf("invalid timestamp %q: %w", ts, err)
		}
		msg.Timestamp = parsed
	}

	return msg, nil
}

func stringField(values map[string]interface{}, key string) (string, bool) {
	v, ok := values[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func int64Field(values map[string]interface{}, key string) (int64, error) {
	s, ok := stringField(values, key)
	if !ok {
		return 0, fmt.Errorf("stream entry missing %s", key)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}
