package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"EmeraldAgent/internal/domain/models"
	drepo "EmeraldAgent/internal/domain/repository"
	httpx "EmeraldAgent/pkg/http"
	pkgkafka "EmeraldAgent/pkg/kafka"
	"EmeraldAgent/pkg/logger"
)

const codeBadRequest = "ERR_BAD_REQUEST"

// Decider is the orchestration entry point shared by the transports.
type Decider interface {
	Decide(ctx context.Context, req *models.DecisionRequest) (*models.DecisionResponse, error)
}

// decisionEnvelope is the value of a queued decision request.
type decisionEnvelope struct {
	RequestID string                  `json:"request_id"`
	Request   *models.DecisionRequest `json:"request" validate:"required"`
}

// KafkaDecisionHandler answers decision requests read from Kafka by publishing
// a DecisionResult for each of them.
type KafkaDecisionHandler struct {
	topic   string
	decider Decider
	results drepo.ResultPublisher
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewKafkaDecisionHandler(topic string, decider Decider, results drepo.ResultPublisher, metrics drepo.Metrics, log *logger.Logger) *KafkaDecisionHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &KafkaDecisionHandler{topic: topic, decider: decider, results: results, metrics: metrics, log: log}
}

func (h *KafkaDecisionHandler) Topic() string { return h.topic }

// Handle never returns an error for a bad request or a failed decision: both are
// answered with an error result. Only a failed publish is returned, so the
// consumer can retry or dead-letter it.
func (h *KafkaDecisionHandler) Handle(ctx context.Context, b []byte) error {
	var env decisionEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return h.reject(ctx, "", "message is not a valid decision envelope", err)
	}
	if verrs := httpx.ValidateStruct(ctx, &env); len(verrs) > 0 {
		return h.reject(ctx, env.RequestID, "invalid decision request: "+verrs[0].Message, fmt.Errorf("%s: %s", verrs[0].Field, verrs[0].Code))
	}

	ctx, requestID := ensureRequestID(withOptionalRequestID(ctx, env.RequestID))
	res := &models.DecisionResult{RequestID: requestID}

	resp, err := h.decider.Decide(ctx, env.Request)
	if err != nil {
		var oe *OrchestrationError
		if !errors.As(err, &oe) {
			oe = newOrchestrationError(ClassInfrastructure, requestID, err)
		}
		res.Error = &models.ResultError{Code: oe.Code, Classification: string(oe.Class), Message: oe.Message}
	} else {
		res.Response = resp
	}
	return h.publish(ctx, res)
}

func (h *KafkaDecisionHandler) reject(ctx context.Context, requestID, msg string, cause error) error {
	if h.metrics != nil {
		h.metrics.RecordError("consumer_bad_request")
	}
	h.log.Warn("rejecting decision request",
		logger.String("request_id", requestID),
		logger.Error(cause),
	)
	return h.publish(ctx, &models.DecisionResult{
		RequestID: requestID,
		Error:     &models.ResultError{Code: codeBadRequest, Message: msg},
	})
}

func (h *KafkaDecisionHandler) publish(ctx context.Context, res *models.DecisionResult) error {
	res.Timestamp = time.Now().UTC()
	if err := h.results.PublishResult(ctx, res); err != nil {
		if h.metrics != nil {
			h.metrics.RecordError("result_publish")
		}
		return err
	}
	return nil
}

func withOptionalRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return WithRequestID(ctx, id)
}

var _ pkgkafka.MessageHandler = (*KafkaDecisionHandler)(nil)
