package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QueueService publishes payloads under a topic.
type QueueService interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// Message is the envelope stored for every published payload.
type Message struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func newMessage(topic string, payload interface{}, now time.Time) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	b, err := json.Marshal(Message{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   raw,
		Timestamp: now.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return b, nil
}

// ParsePayload decodes a stored message payload into T.
func ParsePayload[T any](m Message) (*T, error) {
	var out T
	if err := json.Unmarshal(m.Payload, &out); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &out, nil
}
