package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamConsumerConfig configures a StreamConsumer.
type StreamConsumerConfig struct {
	// Stream is the Redis stream name to consume from (required).
	Stream string

	// LastID is the starting position: "0" from the beginning, "$" only
	// new entries, or a concrete entry id. Default: "$".
	LastID string

	// Count is the max number of entries per read. Default: 100.
	Count int64

	// Block is how long a read waits for new entries. Default: 5 seconds.
	Block time.Duration

	// RetryInterval is the first wait after a read error, doubled up to
	// MaxRetryInterval. Defaults: 1s and 30s.
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration

	Logger *zap.Logger
}

// MessageHandler processes a stream message. Errors are logged and the
// consumer moves on.
type MessageHandler func(ctx context.Context, msg Message) error

// Message is a single stream entry.
type Message struct {
	ID     string
	Stream string
	Values map[string]interface{}
}

// StreamConsumer tails a Redis stream, reconnecting with backoff on errors.
type StreamConsumer struct {
	client *Client
	config StreamConsumerConfig
	logger *zap.Logger
}

// NewStreamConsumer creates a new stream consumer.
func NewStreamConsumer(client *Client, config StreamConsumerConfig) (*StreamConsumer, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Stream == "" {
		return nil, errors.New("stream name is required")
	}

	if config.LastID == "" {
		config.LastID = "$"
	}
	if config.Count == 0 {
		config.Count = 100
	}
	if config.Block == 0 {
		config.Block = 5 * time.Second
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = time.Second
	}
	if config.MaxRetryInterval == 0 {
		config.MaxRetryInterval = 30 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StreamConsumer{client: client, config: config, logger: logger}, nil
}

// Run calls handler for each new entry until ctx is cancelled.
func (sc *StreamConsumer) Run(ctx context.Context, handler MessageHandler) error {
	lastID := sc.config.LastID
	retryInterval := sc.config.RetryInterval

	for {
		select {
		case <-ctx.Done():
			sc.logger.Info("Stream consumer shutting down", zap.String("stream", sc.config.Stream))
			return ctx.Err()
		default:
		}

		streams, err := sc.client.XRead(ctx, sc.config.Stream, lastID, sc.config.Count, sc.config.Block)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, redis.Nil) {
				continue
			}

			sc.logger.Warn("Error reading from stream, will retry",
				zap.String("stream", sc.config.Stream),
				zap.Error(err),
				zap.Duration("retryIn", retryInterval))

			select {
			case <-time.After(retryInterval):
				retryInterval = min(retryInterval*2, sc.config.MaxRetryInterval)
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		retryInterval = sc.config.RetryInterval

		for _, stream := range streams {
			for _, x := range stream.Messages {
				lastID = x.ID
				msg := Message{ID: x.ID, Stream: stream.Stream, Values: x.Values}
				if err := handler(ctx, msg); err != nil {
					sc.logger.Error("Error processing message",
						zap.String("stream", sc.config.Stream),
						zap.String("id", msg.ID),
						zap.Error(err))
				}
			}
		}
	}
}

// GetData returns the "data" field, or nil if absent.
func (m *Message) GetData() []byte {
	if data, ok := m.Values["data"].(string); ok {
		return []byte(data)
	}
	if data, ok := m.Values["data"].([]byte); ok {
		return data
	}
	return nil
}

// GetString returns a string field, or "" if absent.
func (m *Message) GetString(field string) string {
	if v, ok := m.Values[field].(string); ok {
		return v
	}
	return ""
}
