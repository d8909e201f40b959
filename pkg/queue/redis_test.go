package queue

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logBatch struct {
	Count int `json:"count"`
}

func TestNewMessageRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b, err := newMessage("errors", []logBatch{{Count: 3}}, now)
	require.NoError(t, err)

	var m Message
	require.NoError(t, json.Unmarshal(b, &m))
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "errors", m.Topic)
	assert.True(t, now.Equal(m.Timestamp))

	got, err := ParsePayload[[]logBatch](m)
	require.NoError(t, err)
	assert.Equal(t, []logBatch{{Count: 3}}, *got)
}

func TestNewMessageRejectsUnencodable(t *testing.T) {
	_, err := newMessage("errors", make(chan int), time.Now())
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	p := NewRedisPublisher(nil, redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), WithKeyPrefix("x:logs"))
	defer p.Close()
	assert.Equal(t, "x:logs:errors", p.key("errors"))
}

// Runs against a real server when REDIS_ADDR is set.
func TestRedisPublisherIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	prefix := "emerald:test:" + time.Now().Format("150405.000000")
	p := NewRedisPublisher(nil, client, WithKeyPrefix(prefix), WithMaxLen(2))
	defer p.Close()
	defer client.Del(ctx, p.key("errors"))

	require.NoError(t, p.Start(ctx))
	for i := 1; i <= 3; i++ {
		require.NoError(t, p.PublishMessage(ctx, "errors", logBatch{Count: i}))
	}

	msgs, err := p.Recent(ctx, "errors", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	first, err := ParsePayload[logBatch](msgs[0])
	require.NoError(t, err)
	assert.Equal(t, 3, first.Count)
}
