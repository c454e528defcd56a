package api

import (
	"time"

	models "FinFuse/internal/domain/models"
	"FinFuse/internal/service/metrics"
	"FinFuse/internal/usecase"
	xhttp "FinFuse/pkg/http"
	applogger "FinFuse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Intents serves the audit read path: stored intents for one ticker over a
// clamped time range.
func (h *FusionHandler) Intents(c echo.Context) error {
	start := time.Now()
	endpoint := "intents"
	defer func() { metrics.FusionLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.IntentsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":intents", 5, 2) {
		if h.l != nil {
			h.l.Warn("intents rate_limited", applogger.String("remote", c.RealIP()))
		}
		return xhttp.TooManyRequestsResponse(c, "rate limited")
	}

	res, err := h.intents.GetIntents(c.Request().Context(), usecase.GetIntentsParams{
		Ticker: req.Ticker,
		From:   xhttp.ParseTimeDefault(req.From, time.Time{}),
		To:     xhttp.ParseTimeDefault(req.To, time.Time{}),
		Limit:  req.Limit,
	})
	if err != nil {
		metrics.FusionErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("intents query error", applogger.String("ticker", req.Ticker), applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, appErrorFor(err))
	}
	return xhttp.ListResponse(c, res.Intents, int64(res.Count))
}
