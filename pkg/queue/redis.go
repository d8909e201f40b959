package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"EmeraldAgent/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher pushes messages onto capped Redis lists, one list per topic.
// Newest entries sit at the head; the tail is trimmed past MaxLen.
type RedisPublisher struct {
	logger    *logger.Logger
	client    redis.UniversalClient
	keyPrefix string
	maxLen    int64
}

// RedisPublisherOption configures RedisPublisher.
type RedisPublisherOption func(*RedisPublisher)

// WithKeyPrefix sets custom key prefix.
func WithKeyPrefix(prefix string) RedisPublisherOption {
	return func(r *RedisPublisher) {
		r.keyPrefix = prefix
	}
}

// WithMaxLen caps each topic list. Zero or less disables trimming.
func WithMaxLen(n int64) RedisPublisherOption {
	return func(r *RedisPublisher) {
		r.maxLen = n
	}
}

// NewRedisPublisher creates a publisher on client.
func NewRedisPublisher(lgr *logger.Logger, client redis.UniversalClient, opts ...RedisPublisherOption) *RedisPublisher {
	if lgr == nil {
		lgr = logger.NewNop()
	}
	p := &RedisPublisher{
		logger:    lgr,
		client:    client,
		keyPrefix: "emerald:logs",
		maxLen:    10000,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start checks the connection.
func (r *RedisPublisher) Start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	r.logger.Info("redis publisher started", logger.String("prefix", r.keyPrefix))
	return nil
}

// PublishMessage implements QueueService.
func (r *RedisPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	b, err := newMessage(topic, payload, time.Now())
	if err != nil {
		return err
	}

	key := r.key(topic)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, b)
	if r.maxLen > 0 {
		pipe.LTrim(ctx, key, 0, r.maxLen-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lpush %s: %w", key, err)
	}
	return nil
}

// Recent returns up to n of the newest messages of topic, newest first.
func (r *RedisPublisher) Recent(ctx context.Context, topic string, n int64) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := r.client.LRange(ctx, r.key(topic), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange: %w", err)
	}
	out := make([]Message, 0, len(raw))
	for _, s := range raw {
		var m Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			r.logger.Warn("skip undecodable message", logger.String("topic", topic), logger.Error(err))
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Close closes the underlying client.
func (r *RedisPublisher) Close() error {
	return r.client.Close()
}

func (r *RedisPublisher) key(topic string) string {
	return fmt.Sprintf("%s:%s", r.keyPrefix, topic)
}
