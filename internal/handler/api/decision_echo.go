package api

import (
	"errors"
	"net/http"

	models "EmeraldAgent/internal/domain/models"
	"EmeraldAgent/internal/usecase"
	xhttp "EmeraldAgent/pkg/http"
	xlogger "EmeraldAgent/pkg/logger"

	"github.com/labstack/echo/v4"
)

// StrategyLister reports which engine strategies would be attempted right now.
type StrategyLister interface {
	Available() []string
}

// DecisionEchoHandler serves the agent decision API.
type DecisionEchoHandler struct {
	logger     *xlogger.Logger
	decider    usecase.Decider
	strategies StrategyLister
}

func NewDecisionEchoHandler(logger *xlogger.Logger, decider usecase.Decider, strategies StrategyLister) *DecisionEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &DecisionEchoHandler{logger: logger, decider: decider, strategies: strategies}
}

func (h *DecisionEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/agent")
	g.POST("/decision", h.Decide)
	g.GET("/engine", h.Engine)
}

// Decide answers 200 with the engine response, including engine-reported
// errors. Orchestration failures map to 503, 502 or 504.
func (h *DecisionEchoHandler) Decide(c echo.Context) error {
	req := &models.DecisionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	ctx := c.Request().Context()
	if requestID != "" {
		ctx = usecase.WithRequestID(ctx, requestID)
	}

	resp, err := h.decider.Decide(ctx, req)
	if err != nil {
		return xhttp.AppErrorResponse(c, h.toAppError(err))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *DecisionEchoHandler) toAppError(err error) *xhttp.AppError {
	var oe *usecase.OrchestrationError
	if !errors.As(err, &oe) {
		h.logger.Error("decision failed", xlogger.Error(err))
		return xhttp.InternalError("Something went wrong").WithError(err)
	}

	var appErr *xhttp.AppError
	switch oe.Class {
	case usecase.ClassInvalidOutput:
		appErr = xhttp.BadGatewayError(oe.Code, oe.Message)
	case usecase.ClassDeadline:
		appErr = xhttp.GatewayTimeoutError(oe.Code, oe.Message)
	default:
		appErr = xhttp.ServiceUnavailableError(oe.Code, oe.Message)
	}
	return appErr.WithParam("request_id", oe.RequestID).WithParam("classification", string(oe.Class)).WithError(err)
}

// EngineInfo lists strategy kinds. Locations are never exposed.
type EngineInfo struct {
	Strategies []string `json:"strategies"`
}

func (h *DecisionEchoHandler) Engine(c echo.Context) error {
	return xhttp.SuccessResponse(c, EngineInfo{Strategies: h.strategies.Available()})
}

func (h *DecisionEchoHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

var _ xhttp.Handler = (*DecisionEchoHandler)(nil)
