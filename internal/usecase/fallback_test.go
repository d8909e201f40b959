package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"EmeraldAgent/internal/domain/models"
	"EmeraldAgent/internal/domain/service"
	"EmeraldAgent/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	name  string
	resp  *models.DecisionResponse
	err   error
	block bool // wait for ctx to end, then report it like the invoker does
	panic bool
	calls atomic.Int32

	mu  sync.Mutex
	got []byte
}

func (e *fakeEngine) Strategy() string { return e.name }

func (e *fakeEngine) Decide(ctx context.Context, payload []byte) (*models.DecisionResponse, error) {
	e.calls.Add(1)
	e.mu.Lock()
	e.got = payload
	e.mu.Unlock()
	if e.panic {
		panic("engine exploded")
	}
	if e.block {
		<-ctx.Done()
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, &engine.InvokeError{Strategy: e.name, Kind: service.FailureCanceled, Err: ctx.Err()}
		}
		return nil, &engine.InvokeError{Strategy: e.name, Kind: service.FailureTimeout, Err: context.DeadlineExceeded}
	}
	return e.resp, e.err
}

type fakeResolver []service.DecisionEngine

func (r fakeResolver) Engines() []service.DecisionEngine { return r }

type fakeMetrics struct {
	mu        sync.Mutex
	attempts  []string
	fallbacks []string
	decisions []string
	errors    []string
}

func (m *fakeMetrics) RecordAttempt(strategy, outcome string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, strategy+":"+outcome)
}

func (m *fakeMetrics) RecordFallback(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks = append(m.fallbacks, from+"->"+to)
}

func (m *fakeMetrics) RecordDecision(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, result)
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, kind)
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

func okDecision() *models.DecisionResponse {
	return models.OK(models.ConsensusDecision{Direction: models.DirectionYes, Size: 0.5, Reasoning: "strong"}, []models.AgentOutput{
		{Agent: "trend", Decision: models.AgentDecision{Direction: models.DirectionYes, Confidence: 0.8, Size: 0.5, Reasoning: "up"}},
	})
}

func launchFailed(name string) error {
	return &engine.InvokeError{Strategy: name, Kind: service.FailureLaunch, Err: errors.New("entry: no such file")}
}

func exited(name string, code int) error {
	return &engine.InvokeError{Strategy: name, Kind: service.FailureNonZeroExit, ExitCode: code, Stderr: "Error: Cannot find module"}
}

func malformedOutput() error {
	return &engine.DecodeError{Kind: service.FailureMalformed, Err: errors.New("output is not valid JSON")}
}

func timedOut(name string) error {
	return &engine.InvokeError{Strategy: name, Kind: service.FailureTimeout, Err: context.DeadlineExceeded}
}

func TestFallbackFirstStrategySucceeds(t *testing.T) {
	compiled := &fakeEngine{name: "compiled", resp: okDecision()}
	interpreted := &fakeEngine{name: "interpreted", resp: okDecision()}
	m := &fakeMetrics{}

	resp, records, err := NewFallbackController(fakeResolver{compiled, interpreted}, time.Minute, nil, m).
		Run(context.Background(), []byte(`{"x":1}`))

	require.NoError(t, err)
	assert.Equal(t, okDecision(), resp)
	assert.Equal(t, int32(1), compiled.calls.Load())
	assert.Equal(t, int32(0), interpreted.calls.Load())
	assert.Equal(t, []byte(`{"x":1}`), compiled.got)
	require.Len(t, records, 1)
	assert.Equal(t, "ok", records[0].Outcome)
	assert.Equal(t, []string{"compiled:ok"}, m.attempts)
	assert.Empty(t, m.fallbacks)
}

func TestFallbackToInterpretedExactlyOnce(t *testing.T) {
	compiled := &fakeEngine{name: "compiled", err: launchFailed("compiled")}
	interpreted := &fakeEngine{name: "interpreted", resp: okDecision()}
	m := &fakeMetrics{}

	resp, records, err := NewFallbackController(fakeResolver{compiled, interpreted}, time.Minute, nil, m).
		Run(context.Background(), []byte(`{}`))

	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, resp.Status)
	assert.Equal(t, int32(1), compiled.calls.Load())
	assert.Equal(t, int32(1), interpreted.calls.Load())
	require.Len(t, records, 2)
	assert.Equal(t, string(service.FailureLaunch), records[0].Outcome)
	assert.Equal(t, "ok", records[1].Outcome)
	assert.Equal(t, []string{"compiled->interpreted"}, m.fallbacks)
}

func TestFallbackEngineReportedErrorIsSuccess(t *testing.T) {
	interpreted := &fakeEngine{name: "interpreted", resp: models.Failed("insufficient data")}

	resp, _, err := NewFallbackController(fakeResolver{interpreted}, 0, nil, nil).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, resp.Status)
	assert.Equal(t, "insufficient data", resp.Error)
}

func TestFallbackClassification(t *testing.T) {
	tests := []struct {
		name  string
		errs  []error
		class Classification
	}{
		{name: "missing dependency", errs: []error{launchFailed("interpreted")}, class: ClassInfrastructure},
		{name: "crash after launch failure", errs: []error{launchFailed("compiled"), exited("interpreted", 1)}, class: ClassInfrastructure},
		{name: "bad output wins over crash", errs: []error{malformedOutput(), exited("interpreted", 1)}, class: ClassInvalidOutput},
		{name: "schema violation", errs: []error{exited("compiled", 1), &engine.DecodeError{Kind: service.FailureSchemaViolation, Field: "decision.direction"}}, class: ClassInvalidOutput},
		{name: "timeout wins over bad output", errs: []error{timedOut("compiled"), malformedOutput()}, class: ClassDeadline},
		{name: "unknown error", errs: []error{errors.New("weird")}, class: ClassInfrastructure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := []string{"compiled", "interpreted"}
			engines := fakeResolver{}
			for i, e := range tt.errs {
				engines = append(engines, &fakeEngine{name: names[i], err: e})
			}

			resp, records, err := NewFallbackController(engines, time.Minute, nil, nil).Run(context.Background(), nil)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.Len(t, records, len(tt.errs))

			var ex *ExhaustedError
			require.ErrorAs(t, err, &ex)
			assert.Equal(t, tt.class, ex.Class)
			assert.Len(t, ex.Failures, len(tt.errs))
		})
	}
}

func TestFallbackRecordsExitCode(t *testing.T) {
	_, records, err := NewFallbackController(fakeResolver{&fakeEngine{name: "interpreted", err: exited("interpreted", 7)}}, 0, nil, nil).
		Run(context.Background(), nil)
	require.Error(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 7, records[0].ExitCode)
	assert.Equal(t, string(service.FailureNonZeroExit), records[0].Outcome)
}

func TestFallbackNoStrategies(t *testing.T) {
	_, records, err := NewFallbackController(fakeResolver{}, time.Minute, nil, nil).Run(context.Background(), nil)

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, ClassInfrastructure, ex.Class)
	assert.Empty(t, records)
}

func TestFallbackStopsWhenBudgetSpent(t *testing.T) {
	compiled := &fakeEngine{name: "compiled", block: true}
	interpreted := &fakeEngine{name: "interpreted", resp: okDecision()}

	start := time.Now()
	_, _, err := NewFallbackController(fakeResolver{compiled, interpreted}, 50*time.Millisecond, nil, nil).
		Run(context.Background(), nil)

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, ClassDeadline, ex.Class)
	assert.True(t, ex.BudgetSpent)
	assert.Equal(t, int32(0), interpreted.calls.Load())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFallbackCallerAlreadyGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	compiled := &fakeEngine{name: "compiled", resp: okDecision()}

	_, records, err := NewFallbackController(fakeResolver{compiled}, time.Minute, nil, nil).Run(ctx, nil)

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, ClassDeadline, ex.Class)
	assert.Empty(t, records)
	assert.Equal(t, int32(0), compiled.calls.Load())
}

func TestClassificationCodes(t *testing.T) {
	assert.Equal(t, "ERR_ENGINE_UNAVAILABLE", ClassInfrastructure.Code())
	assert.Equal(t, "ERR_ENGINE_INVALID_OUTPUT", ClassInvalidOutput.Code())
	assert.Equal(t, "ERR_ENGINE_DEADLINE", ClassDeadline.Code())
}
