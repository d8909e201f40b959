package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordAttempt("compiled", "non_zero_exit", 0.4)
	r.RecordAttempt("interpreted", "ok", 1.2)
	r.RecordFallback("compiled", "interpreted")
	r.RecordDecision("ok")
	r.RecordDecision("ok")
	r.RecordError("consumer_bad_request")
	r.RecordLatency("decide", 1.6)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.attempts.WithLabelValues("compiled", "non_zero_exit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fallbacks.WithLabelValues("compiled", "interpreted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.decisions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errors.WithLabelValues("consumer_bad_request")))

	expected := `
# HELP emerald_engine_fallbacks_total Fallbacks from one strategy to the next
# TYPE emerald_engine_fallbacks_total counter
emerald_engine_fallbacks_total{from="compiled",to="interpreted"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "emerald_engine_fallbacks_total"))
}

func TestNewPanicsOnDuplicateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
