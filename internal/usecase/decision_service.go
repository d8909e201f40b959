package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"EmeraldAgent/internal/domain/models"
	drepo "EmeraldAgent/internal/domain/repository"
	"EmeraldAgent/internal/engine"
	"EmeraldAgent/pkg/logger"
)

// OrchestrationError is the only failure Decide returns to transports.
type OrchestrationError struct {
	Class     Classification
	Code      string
	Message   string
	RequestID string
	Err       error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }

func newOrchestrationError(class Classification, requestID string, cause error) *OrchestrationError {
	return &OrchestrationError{
		Class:     class,
		Code:      class.Code(),
		Message:   class.Message(),
		RequestID: requestID,
		Err:       cause,
	}
}

// DecisionService turns a decision request into the engine's response.
type DecisionService struct {
	controller   *FallbackController
	store        drepo.AttemptStore
	log          *logger.Logger
	metrics      drepo.Metrics
	storeTimeout time.Duration
	wg           sync.WaitGroup
}

// NewDecisionService creates the orchestration service. store may be nil.
func NewDecisionService(controller *FallbackController, store drepo.AttemptStore, log *logger.Logger, metrics drepo.Metrics) *DecisionService {
	if log == nil {
		log = logger.NewNop()
	}
	return &DecisionService{
		controller:   controller,
		store:        store,
		log:          log,
		metrics:      metrics,
		storeTimeout: 5 * time.Second,
	}
}

// Decide runs the fallback controller for req. An engine-reported error
// (status "error") is a successful call and is returned as a response;
// every other failure is an *OrchestrationError.
func (s *DecisionService) Decide(ctx context.Context, req *models.DecisionRequest) (resp *models.DecisionResponse, err error) {
	ctx, requestID := ensureRequestID(ctx)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic during decision",
				logger.String("request_id", requestID),
				logger.Any("panic", r),
			)
			resp, err = nil, newOrchestrationError(ClassInfrastructure, requestID, fmt.Errorf("panic: %v", r))
		}
		s.observe(resp, err, time.Since(start))
	}()

	if req == nil || req.Market == nil {
		return nil, newOrchestrationError(ClassInfrastructure, requestID, errors.New("empty decision request"))
	}

	payload, encErr := engine.Encode(req)
	if encErr != nil {
		s.log.Error("encode decision request",
			logger.String("request_id", requestID),
			logger.Error(encErr),
		)
		return nil, newOrchestrationError(ClassInfrastructure, requestID, encErr)
	}

	resp, records, runErr := s.controller.Run(ctx, payload)
	s.record(requestID, req.Market.Symbol, records)

	if runErr != nil {
		class := ClassInfrastructure
		var exhausted *ExhaustedError
		if errors.As(runErr, &exhausted) {
			class = exhausted.Class
		}
		return nil, newOrchestrationError(class, requestID, runErr)
	}

	s.log.Info("decision completed",
		logger.String("request_id", requestID),
		logger.String("symbol", req.Market.Symbol),
		logger.String("status", string(resp.Status)),
		logger.Int("attempts", len(records)),
		logger.Duration("elapsed_ms", time.Since(start)),
	)
	return resp, nil
}

func (s *DecisionService) observe(resp *models.DecisionResponse, err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordLatency("decide", elapsed.Seconds())
	var oe *OrchestrationError
	switch {
	case errors.As(err, &oe):
		s.metrics.RecordDecision(string(oe.Class))
		s.metrics.RecordError(oe.Code)
	case err != nil:
		s.metrics.RecordDecision(string(ClassInfrastructure))
	case resp != nil && resp.Status == models.StatusError:
		s.metrics.RecordDecision("engine_error")
	default:
		s.metrics.RecordDecision("ok")
	}
}

// record hands attempt telemetry to the store without holding up the caller.
func (s *DecisionService) record(requestID, symbol string, records []models.AttemptRecord) {
	if s.store == nil || len(records) == 0 {
		return
	}
	for i := range records {
		records[i].RequestID = requestID
		records[i].Symbol = symbol
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
		defer cancel()
		if err := s.store.RecordAttempts(ctx, records); err != nil {
			s.log.Warn("record engine attempts",
				logger.String("request_id", requestID),
				logger.Error(err),
			)
		}
	}()
}

// Close waits for pending telemetry writes.
func (s *DecisionService) Close() {
	s.wg.Wait()
}
