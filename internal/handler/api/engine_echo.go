package api

import (
	"time"

	models "SigPulse/internal/domain/models"
	enginemetrics "SigPulse/internal/service/metrics"
	"SigPulse/internal/usecase"
	xhttp "SigPulse/pkg/http"
	xlogger "SigPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// EngineEchoHandler exposes the signal engine over HTTP.
type EngineEchoHandler struct {
	logger    *xlogger.Logger
	pipeline  *usecase.SignalPipeline
	evaluate  *usecase.EvaluateUseCase
	decisions *usecase.DecisionsUseCase
}

func NewEngineEchoHandler(
	logger *xlogger.Logger,
	pipeline *usecase.SignalPipeline,
	evaluate *usecase.EvaluateUseCase,
	decisions *usecase.DecisionsUseCase,
) *EngineEchoHandler {
	enginemetrics.Register()
	return &EngineEchoHandler{
		logger:    logger,
		pipeline:  pipeline,
		evaluate:  evaluate,
		decisions: decisions,
	}
}

func (h *EngineEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api")
	g.POST("/evaluate", h.Evaluate)
	g.GET("/indicators", h.Indicators)
	g.GET("/decisions", h.Decisions)
	g.GET("/cache/stats", h.CacheStats)
	g.POST("/reset", h.Reset)
}

func (h *EngineEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":  "ok",
		"symbols": h.pipeline.Symbols(),
	})
}

func (h *EngineEchoHandler) Evaluate(c echo.Context) error {
	req := &models.EvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	class, _ := models.ParseSignalClass(req.Class)

	res, err := h.evaluate.Evaluate(c.Request().Context(), usecase.EvaluateParams{
		Symbol:   req.Symbol,
		Class:    class,
		Strength: req.Strength,
		Price:    req.Price,
		Volume:   req.Volume,
	})
	if err != nil {
		if err == usecase.ErrEvaluationInFlight {
			return xhttp.BadRequestResponse(c, "evaluation already in flight")
		}
		h.logger.Error("evaluate usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineEchoHandler) Indicators(c echo.Context) error {
	req := &models.IndicatorsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap, vol, ok := h.pipeline.Indicators(req.Symbol)
	if !ok {
		return xhttp.BadRequestResponse(c, "unknown symbol")
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"state":      h.pipeline.State(req.Symbol).String(),
		"indicators": snap,
		"volume":     vol,
	})
}

func (h *EngineEchoHandler) Decisions(c echo.Context) error {
	if h.decisions == nil {
		return xhttp.BadRequestResponse(c, "decision store not configured")
	}
	req := &models.DecisionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	to := xhttp.ParseTimeDefault(req.To, time.Now())
	from := xhttp.ParseTimeDefault(req.From, to.Add(-24*time.Hour))

	res, err := h.decisions.GetDecisions(c.Request().Context(), usecase.GetDecisionsParams{
		Symbol: req.Symbol,
		From:   from,
		To:     to,
		Limit:  req.Limit,
	})
	if err != nil {
		h.logger.Error("decisions usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineEchoHandler) CacheStats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.pipeline.CacheStats())
}

func (h *EngineEchoHandler) Reset(c echo.Context) error {
	req := &models.ResetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.pipeline.Reset(c.Request().Context(), req.Symbol)
	return xhttp.SuccessResponse(c, map[string]string{"symbol": req.Symbol, "state": h.pipeline.State(req.Symbol).String()})
}
