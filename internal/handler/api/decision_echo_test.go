package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	models "EmeraldAgent/internal/domain/models"
	"EmeraldAgent/internal/usecase"
	xhttp "EmeraldAgent/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDecider struct {
	resp      *models.DecisionResponse
	err       error
	got       *models.DecisionRequest
	requestID string
}

func (s *stubDecider) Decide(ctx context.Context, req *models.DecisionRequest) (*models.DecisionResponse, error) {
	s.got = req
	s.requestID = usecase.RequestIDFrom(ctx)
	return s.resp, s.err
}

type stubStrategies []string

func (s stubStrategies) Available() []string { return s }

func newTestServer(d usecase.Decider) *echo.Echo {
	reg := prometheus.NewRegistry()
	h := NewDecisionEchoHandler(nil, d, stubStrategies{"compiled", "interpreted"})
	return xhttp.NewServer(h, xhttp.WithMetrics(reg, reg)).Echo()
}

func postDecision(e *echo.Echo, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/agent/decision", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const btcBody = `{"market":{"symbol":"BTC","price":50000,"volume24h":1000},"data":{"sentiment":{"score":0.3}}}`

func TestDecideReturnsEngineResponse(t *testing.T) {
	d := &stubDecider{resp: models.OK(
		models.ConsensusDecision{Direction: models.DirectionNo, Size: 0, Reasoning: "risk too high"},
		[]models.AgentOutput{{Agent: "risk", Decision: models.AgentDecision{Direction: models.DirectionNo, Confidence: 0.7, Size: 0, Reasoning: "drawdown"}}},
	)}
	rec := postDecision(newTestServer(d), btcBody, map[string]string{echo.HeaderXRequestID: "client-7"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","decision":{"direction":"NO","size":0,"reasoning":"risk too high"},`+
		`"agents":[{"agent":"risk","decision":{"direction":"NO","confidence":0.7,"size":0,"reasoning":"drawdown"}}]}`, rec.Body.String())
	assert.Equal(t, "client-7", rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "client-7", d.requestID)
	require.NotNil(t, d.got)
	assert.Equal(t, "BTC", d.got.Market.Symbol)
	require.NotNil(t, d.got.Market.Volume24h)
	assert.Equal(t, 1000.0, *d.got.Market.Volume24h)
	assert.Equal(t, 0.3, d.got.Data.Sentiment["score"])
}

func TestDecidePassesEngineErrorWith200(t *testing.T) {
	d := &stubDecider{resp: models.Failed("not enough history")}
	rec := postDecision(newTestServer(d), btcBody, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"error","error":"not enough history"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestDecideValidation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "missing market", body: `{"data":{}}`, field: "market"},
		{name: "missing data", body: `{"market":{"symbol":"BTC","price":1}}`, field: "data"},
		{name: "empty symbol", body: `{"market":{"symbol":"","price":1},"data":{}}`, field: "market.symbol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &stubDecider{}
			rec := postDecision(newTestServer(d), tt.body, nil)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, d.got)

			var body struct {
				Status int                     `json:"status"`
				Data   []xhttp.ValidationError `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, http.StatusBadRequest, body.Status)
			require.NotEmpty(t, body.Data)
			assert.Equal(t, tt.field, body.Data[0].Field)
		})
	}
}

func TestDecideAcceptsAnyPriceAndSymbol(t *testing.T) {
	d := &stubDecider{resp: models.Failed("no liquidity")}
	body := `{"market":{"symbol":"A-VERY-LONG-SYNTHETIC-INDEX-SYMBOL-2026","price":0,"volume24h":-1},"data":{}}`
	rec := postDecision(newTestServer(d), body, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, d.got)
	assert.Equal(t, 0.0, d.got.Market.Price)
}

func TestDecideMalformedBody(t *testing.T) {
	d := &stubDecider{}
	rec := postDecision(newTestServer(d), `{"market":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, d.got)
}

func TestDecideFailureStatusMapping(t *testing.T) {
	tests := []struct {
		class  usecase.Classification
		status int
	}{
		{class: usecase.ClassInfrastructure, status: http.StatusServiceUnavailable},
		{class: usecase.ClassInvalidOutput, status: http.StatusBadGateway},
		{class: usecase.ClassDeadline, status: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			d := &stubDecider{err: &usecase.OrchestrationError{
				Class:     tt.class,
				Code:      tt.class.Code(),
				Message:   tt.class.Message(),
				RequestID: "r-9",
				Err:       errors.New("/srv/backend/dist/decisionService.js: exit 1"),
			}}
			rec := postDecision(newTestServer(d), btcBody, nil)

			require.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "/srv/backend")

			var body struct {
				Data []struct {
					Code    string         `json:"code"`
					Message string         `json:"message"`
					Params  map[string]any `json:"params"`
				} `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Len(t, body.Data, 1)
			assert.Equal(t, tt.class.Code(), body.Data[0].Code)
			assert.Equal(t, "r-9", body.Data[0].Params["request_id"])
			assert.Equal(t, string(tt.class), body.Data[0].Params["classification"])
		})
	}
}

func TestEngineAndHealthRoutes(t *testing.T) {
	e := newTestServer(&stubDecider{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/agent/engine", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"message":"OK","data":{"strategies":["compiled","interpreted"]}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
