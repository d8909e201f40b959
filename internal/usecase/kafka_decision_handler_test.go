package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"EmeraldAgent/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deciderFunc func(ctx context.Context, req *models.DecisionRequest) (*models.DecisionResponse, error)

func (f deciderFunc) Decide(ctx context.Context, req *models.DecisionRequest) (*models.DecisionResponse, error) {
	return f(ctx, req)
}

type capturePublisher struct {
	mu      sync.Mutex
	results []*models.DecisionResult
	err     error
}

func (p *capturePublisher) PublishResult(_ context.Context, res *models.DecisionResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, res)
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

func TestKafkaDecisionHandlerPublishesResponse(t *testing.T) {
	pub := &capturePublisher{}
	var seenID string
	var seenSymbol string
	decider := deciderFunc(func(ctx context.Context, req *models.DecisionRequest) (*models.DecisionResponse, error) {
		seenID = RequestIDFrom(ctx)
		seenSymbol = req.Market.Symbol
		return okDecision(), nil
	})
	h := NewKafkaDecisionHandler("agent.decision.requests", decider, pub, nil, nil)
	assert.Equal(t, "agent.decision.requests", h.Topic())

	err := h.Handle(context.Background(), []byte(`{"request_id":"k-1","request":{"market":{"symbol":"ETH","price":3000},"data":{}}}`))
	require.NoError(t, err)

	assert.Equal(t, "k-1", seenID)
	assert.Equal(t, "ETH", seenSymbol)
	require.Len(t, pub.results, 1)
	res := pub.results[0]
	assert.Equal(t, "k-1", res.RequestID)
	assert.Equal(t, okDecision(), res.Response)
	assert.Nil(t, res.Error)
	assert.False(t, res.Timestamp.IsZero())
}

func TestKafkaDecisionHandlerGeneratesRequestID(t *testing.T) {
	pub := &capturePublisher{}
	decider := deciderFunc(func(ctx context.Context, _ *models.DecisionRequest) (*models.DecisionResponse, error) {
		return okDecision(), nil
	})
	h := NewKafkaDecisionHandler("t", decider, pub, nil, nil)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"request":{"market":{"symbol":"BTC","price":1},"data":{}}}`)))
	require.Len(t, pub.results, 1)
	assert.NotEmpty(t, pub.results[0].RequestID)
}

func TestKafkaDecisionHandlerPublishesClassifiedFailure(t *testing.T) {
	pub := &capturePublisher{}
	decider := deciderFunc(func(ctx context.Context, _ *models.DecisionRequest) (*models.DecisionResponse, error) {
		return nil, newOrchestrationError(ClassDeadline, RequestIDFrom(ctx), errors.New("interpreted engine timed out"))
	})
	h := NewKafkaDecisionHandler("t", decider, pub, nil, nil)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"request_id":"k-2","request":{"market":{"symbol":"BTC","price":1},"data":{}}}`)))
	require.Len(t, pub.results, 1)
	res := pub.results[0]
	assert.Nil(t, res.Response)
	require.NotNil(t, res.Error)
	assert.Equal(t, "ERR_ENGINE_DEADLINE", res.Error.Code)
	assert.Equal(t, "deadline_exceeded", res.Error.Classification)
	assert.NotContains(t, res.Error.Message, "interpreted")
}

func TestKafkaDecisionHandlerRejectsBadMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `nope`},
		{name: "missing request", body: `{"request_id":"x"}`},
		{name: "missing symbol", body: `{"request_id":"x","request":{"market":{"price":1},"data":{}}}`},
		{name: "missing data", body: `{"request_id":"x","request":{"market":{"symbol":"BTC","price":1}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &capturePublisher{}
			called := false
			decider := deciderFunc(func(context.Context, *models.DecisionRequest) (*models.DecisionResponse, error) {
				called = true
				return okDecision(), nil
			})
			m := &fakeMetrics{}
			h := NewKafkaDecisionHandler("t", decider, pub, m, nil)

			require.NoError(t, h.Handle(context.Background(), []byte(tt.body)))
			assert.False(t, called)
			require.Len(t, pub.results, 1)
			assert.Equal(t, "ERR_BAD_REQUEST", pub.results[0].Error.Code)
			assert.Equal(t, []string{"consumer_bad_request"}, m.errors)
		})
	}
}

func TestKafkaDecisionHandlerReturnsPublishError(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker unavailable")}
	decider := deciderFunc(func(context.Context, *models.DecisionRequest) (*models.DecisionResponse, error) {
		return okDecision(), nil
	})
	h := NewKafkaDecisionHandler("t", decider, pub, nil, nil)

	err := h.Handle(context.Background(), []byte(`{"request":{"market":{"symbol":"BTC","price":1},"data":{}}}`))
	assert.EqualError(t, err, "broker unavailable")
}
