package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	models "FinFuse/internal/domain/models"
	icache "FinFuse/internal/service/cache"
	"FinFuse/internal/service/metrics"
	"FinFuse/internal/service/ratelimit"
	"FinFuse/internal/services/fusion"
	"FinFuse/internal/usecase"
	xhttp "FinFuse/pkg/http"
	applogger "FinFuse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// FusionHandler serves the fusion API: fuse one ticker, fuse a batch, read
// back stored intents.
type FusionHandler struct {
	fuse    *usecase.FuseUseCase
	batch   *usecase.FuseBatchUseCase
	intents *usecase.IntentsQueryUseCase
	cache   icache.BytesCache
	rl      *ratelimit.Limiter
	l       *applogger.Logger
	respTTL time.Duration
}

func NewFusionHandler(fuse *usecase.FuseUseCase, batch *usecase.FuseBatchUseCase, intents *usecase.IntentsQueryUseCase) *FusionHandler {
	metrics.Register()
	return &FusionHandler{
		fuse:    fuse,
		batch:   batch,
		intents: intents,
		rl:      ratelimit.New(),
		respTTL: 30 * time.Second,
	}
}

func (h *FusionHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetLogger injects a structured logger.
func (h *FusionHandler) SetLogger(l *applogger.Logger) { h.l = l }

// SetResponseTTL overrides how long fuse responses stay cached.
func (h *FusionHandler) SetResponseTTL(d time.Duration) {
	if d > 0 {
		h.respTTL = d
	}
}

func (h *FusionHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/fuse", h.Fuse)
	g.POST("/fuse/batch", h.FuseBatch)
	g.GET("/intents", h.Intents)
}

var _ xhttp.Handler = (*FusionHandler)(nil)

// Fuse runs one fusion call. Fusion is deterministic, so responses are
// cached briefly keyed by the canonical request.
func (h *FusionHandler) Fuse(c echo.Context) error {
	start := time.Now()
	endpoint := "fuse"
	defer func() { metrics.FusionLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.FuseRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":fuse", 10, 5) {
		if h.l != nil {
			h.l.Warn("fuse rate_limited", applogger.String("remote", c.RealIP()))
		}
		return xhttp.TooManyRequestsResponse(c, "rate limited")
	}

	key := requestKey("fuse:", req)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(key); err != nil {
			if h.l != nil {
				h.l.Warn("fuse cache_get_error", applogger.Error(err))
			}
		} else if ok {
			if h.l != nil {
				h.l.Debug("fuse cache_hit", applogger.String("key", key))
			}
			return xhttp.SuccessResponse(c, json.RawMessage(b))
		}
	}

	intent, err := h.fuse.Fuse(c.Request().Context(), usecase.FuseParams{
		Ticker:  req.Ticker,
		Signals: usecase.SignalsFromPayloads(req.Signals),
		Context: req.Context,
	})
	if err != nil {
		metrics.FusionErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("fuse error", applogger.String("ticker", req.Ticker), applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, appErrorFor(err))
	}

	wire := intent.Wire()
	for _, g := range wire.GatesTriggered {
		metrics.GateOutcomes.WithLabelValues(g).Inc()
	}
	if h.cache != nil {
		if b, err := json.Marshal(wire); err == nil {
			if err := h.cache.SetBytes(key, b, h.respTTL); err != nil && h.l != nil {
				h.l.Warn("fuse cache_set_error", applogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, wire)
}

type fuseBatchResponse struct {
	Intents []models.IntentWire `json:"intents"`
	Errors  map[string]string   `json:"errors,omitempty"`
}

// FuseBatch fuses several tickers in one call.
func (h *FusionHandler) FuseBatch(c echo.Context) error {
	start := time.Now()
	endpoint := "fuse_batch"
	defer func() { metrics.FusionLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.FuseBatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":batch", 3, 1) {
		if h.l != nil {
			h.l.Warn("fuse batch rate_limited", applogger.String("remote", c.RealIP()))
		}
		return xhttp.TooManyRequestsResponse(c, "rate limited")
	}

	params := make([]usecase.FuseParams, 0, len(req.Requests))
	for _, r := range req.Requests {
		params = append(params, usecase.FuseParams{
			Ticker:  r.Ticker,
			Signals: usecase.SignalsFromPayloads(r.Signals),
			Context: r.Context,
		})
	}

	res, err := h.batch.FuseBatch(c.Request().Context(), params)
	if err != nil {
		metrics.FusionErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("fuse batch error", applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, appErrorFor(err))
	}

	out := fuseBatchResponse{
		Intents: make([]models.IntentWire, 0, len(res.Intents)),
		Errors:  res.Errors,
	}
	for _, in := range res.Intents {
		wire := in.Wire()
		for _, g := range wire.GatesTriggered {
			metrics.GateOutcomes.WithLabelValues(g).Inc()
		}
		out.Intents = append(out.Intents, wire)
	}
	return xhttp.SuccessResponse(c, out)
}

// requestKey hashes the canonical request JSON so equivalent requests share
// one cache entry.
func requestKey(prefix string, req interface{}) string {
	b, _ := json.Marshal(req)
	sum := sha256.Sum256(b)
	return prefix + hex.EncodeToString(sum[:])
}

// appErrorFor maps engine errors onto transport errors.
func appErrorFor(err error) *xhttp.AppError {
	var inv *fusion.InvalidSignalError
	if errors.As(err, &inv) {
		return xhttp.NewAppError("ERR_INVALID_SIGNAL", inv.Field, inv.Error(), http.StatusBadRequest).
			WithParam("source", string(inv.Source)).WithError(err)
	}
	var ins *fusion.InsufficientSignalError
	if errors.As(err, &ins) {
		return xhttp.NewAppError("ERR_INSUFFICIENT_SIGNALS", "signals", ins.Error(), http.StatusUnprocessableEntity).
			WithParam("ticker", ins.Ticker).WithError(err)
	}
	var cfg *fusion.ConfigurationError
	if errors.As(err, &cfg) {
		return xhttp.NewAppError("ERR_BAD_CONFIG", cfg.Field, cfg.Error(), http.StatusInternalServerError).WithError(err)
	}
	return xhttp.InternalError("Something went wrong").WithError(err)
}
