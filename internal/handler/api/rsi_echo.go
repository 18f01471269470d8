package api

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"RSIBoard/internal/domain/models"
	svcmetrics "RSIBoard/internal/service/metrics"
	"RSIBoard/internal/usecase"
	xhttp "RSIBoard/pkg/http"
	xlogger "RSIBoard/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RSIEchoHandler serves the RSI board.
type RSIEchoHandler struct {
	logger *xlogger.Logger
	board  *usecase.BoardUseCase
}

func NewRSIEchoHandler(logger *xlogger.Logger, board *usecase.BoardUseCase) *RSIEchoHandler {
	svcmetrics.Register()
	return &RSIEchoHandler{logger: logger, board: board}
}

func (h *RSIEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/rsi", h.Board)
	g.GET("/rsi/:instrument", h.Instrument)
	e.GET("/healthz", h.Health)
}

// Board returns every configured pair. It never fails on upstream state:
// unavailable pairs are rendered as "-".
func (h *RSIEchoHandler) Board(c echo.Context) error {
	start := time.Now()
	defer observe("board", start)

	b, err := h.board.BoardJSON(c.Request().Context())
	if err != nil {
		h.logger.Error("board render error", xlogger.Error(err))
		svcmetrics.BoardErrors.WithLabelValues("board", "render").Inc()
		return xhttp.InternalServerErrorResponse(c)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	return c.JSONBlob(http.StatusOK, b)
}

func (h *RSIEchoHandler) Instrument(c echo.Context) error {
	start := time.Now()
	defer observe("instrument", start)

	req := &models.InstrumentRSIRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		svcmetrics.BoardErrors.WithLabelValues("instrument", "validation").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	if name, err := url.PathUnescape(req.Instrument); err == nil {
		req.Instrument = name
	}

	res, err := h.board.Instrument(req.Instrument, req.TF)
	switch {
	case errors.Is(err, usecase.ErrUnknownInstrument):
		svcmetrics.BoardErrors.WithLabelValues("instrument", "unknown_instrument").Inc()
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("instrument", "instrument %q is not configured", req.Instrument).WithError(err))
	case errors.Is(err, usecase.ErrUnknownTimeframe):
		svcmetrics.BoardErrors.WithLabelValues("instrument", "unknown_timeframe").Inc()
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("tf", "timeframe %q is not configured", req.TF).
			WithParam("options", h.board.Layout().Timeframes).WithError(err))
	case err != nil:
		h.logger.Error("instrument usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *RSIEchoHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, h.board.Health())
}

func observe(endpoint string, start time.Time) {
	svcmetrics.BoardLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

var _ xhttp.Handler = (*RSIEchoHandler)(nil)
