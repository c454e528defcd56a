package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "FinFuse/internal/domain/models"
	icache "FinFuse/internal/service/cache"
	"FinFuse/internal/services/fusion"
	"FinFuse/internal/usecase"
	xhttp "FinFuse/pkg/http"
)

type noopMetrics struct{}

func (noopMetrics) RecordIntentEmitted(string, string) {}
func (noopMetrics) RecordError(string)                 {}
func (noopMetrics) RecordComposite(string, float64)    {}
func (noopMetrics) RecordLatency(string, float64)      {}

type zeroProvider struct{}

func (zeroProvider) Snapshot(context.Context, string) (models.GateContext, error) {
	return models.GateContext{}, nil
}

type apiStore struct {
	mu      sync.Mutex
	rows    []*models.StoredIntent
	failErr error
}

func (s *apiStore) Init(context.Context) error                          { return nil }
func (s *apiStore) Store(context.Context, *models.TradingIntent) error  { return nil }
func (s *apiStore) StoreBatch(context.Context, []*models.TradingIntent) error { return nil }
func (s *apiStore) Health(context.Context) error                        { return nil }
func (s *apiStore) Close() error                                        { return nil }

func (s *apiStore) Query(_ context.Context, ticker string, _, _ time.Time, limit int) ([]*models.StoredIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	out := make([]*models.StoredIntent, 0, len(s.rows))
	for _, r := range s.rows {
		if r.Ticker == ticker && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

// countingCache wraps the TTL cache so tests can observe hit behavior.
type countingCache struct {
	inner *icache.TTLCache
	gets  int
	hits  int
	sets  int
}

func newCountingCache() *countingCache { return &countingCache{inner: icache.NewTTLCache()} }

func (c *countingCache) GetBytes(key string) ([]byte, bool, error) {
	c.gets++
	b, ok, err := c.inner.GetBytes(key)
	if ok {
		c.hits++
	}
	return b, ok, err
}

func (c *countingCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	c.sets++
	return c.inner.SetBytes(key, value, ttl)
}

func newTestHandler(t *testing.T, store *apiStore) *FusionHandler {
	t.Helper()
	engine, err := fusion.NewEngine(fusion.DefaultConfig())
	require.NoError(t, err)
	fuse := usecase.NewFuseUseCase(engine, zeroProvider{}, noopMetrics{})
	batch := usecase.NewFuseBatchUseCase(fuse)
	intents := usecase.NewIntentsQueryUseCase(store)
	return NewFusionHandler(fuse, batch, intents)
}

type apiEnvelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, h echo.HandlerFunc, method, target, body string) apiEnvelope {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code, "transport status is always 200, the envelope carries the rest")

	var env apiEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

const fuseBody = `{
	"ticker": "AAPL",
	"signals": [
		{"source": "news", "raw_score": 0.8, "confidence": 0.9, "observed_at": "2026-08-25T10:00:00Z"},
		{"source": "chart", "raw_score": 0.6, "confidence": 0.8, "observed_at": "2026-08-25T10:00:00Z"}
	],
	"context": {"volume": 250000, "impact_score": 2.7182818, "importance": 0.5, "volatility": 0.2}
}`

func TestFuseEndpoint(t *testing.T) {
	h := newTestHandler(t, &apiStore{})

	env := doJSON(t, h.Fuse, http.MethodPost, "/api/fuse", fuseBody)
	require.Equal(t, http.StatusOK, env.Status)

	var wire models.IntentWire
	require.NoError(t, json.Unmarshal(env.Data, &wire))
	assert.Equal(t, "AAPL", wire.Ticker)
	assert.Equal(t, models.DirectionBuy, wire.Direction)
	assert.Equal(t, 1.0, wire.RecommendedSizeAdj)
	assert.Contains(t, wire.Rationale, "news")
	assert.Contains(t, wire.Rationale, "chart")
	assert.Empty(t, wire.GatesTriggered)
}

func TestFuseEndpointValidation(t *testing.T) {
	h := newTestHandler(t, &apiStore{})

	env := doJSON(t, h.Fuse, http.MethodPost, "/api/fuse", `{"signals": []}`)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestFuseEndpointInsufficientSignals(t *testing.T) {
	h := newTestHandler(t, &apiStore{})

	env := doJSON(t, h.Fuse, http.MethodPost, "/api/fuse", `{"ticker": "AAPL", "signals": []}`)
	require.Equal(t, http.StatusUnprocessableEntity, env.Status)

	var errs []*xhttp.AppError
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_INSUFFICIENT_SIGNALS", errs[0].Code)
}

func TestFuseEndpointInvalidSignal(t *testing.T) {
	h := newTestHandler(t, &apiStore{})

	body := `{
		"ticker": "AAPL",
		"signals": [{"source": "news", "raw_score": 2.0, "confidence": 0.9, "observed_at": "2026-08-25T10:00:00Z"}]
	}`
	env := doJSON(t, h.Fuse, http.MethodPost, "/api/fuse", body)
	require.Equal(t, http.StatusBadRequest, env.Status)

	var errs []*xhttp.AppError
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_INVALID_SIGNAL", errs[0].Code)
	assert.Equal(t, "raw_score", errs[0].Field)
}

func TestFuseEndpointCachesResponses(t *testing.T) {
	h := newTestHandler(t, &apiStore{})
	cache := newCountingCache()
	h.SetCache(cache)

	first := doJSON(t, h.Fuse, http.MethodPost, "/api/fuse", fuseBody)
	second := doJSON(t, h.Fuse, http.MethodPost, "/api/fuse", fuseBody)

	assert.Equal(t, 1, cache.sets, "only the miss writes")
	assert.Equal(t, 1, cache.hits)
	assert.JSONEq(t, string(first.Data), string(second.Data))
}

func TestFuseEndpointRateLimit(t *testing.T) {
	h := newTestHandler(t, &apiStore{})

	var last apiEnvelope
	for i := 0; i < 11; i++ {
		last = doJSON(t, h.Fuse, http.MethodPost, "/api/fuse", fuseBody)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Status)
}

func TestFuseBatchEndpoint(t *testing.T) {
	h := newTestHandler(t, &apiStore{})

	body := `{"requests": [
		` + fuseBody + `,
		{"ticker": "MSFT", "signals": []}
	]}`
	env := doJSON(t, h.FuseBatch, http.MethodPost, "/api/fuse/batch", body)
	require.Equal(t, http.StatusOK, env.Status)

	var out fuseBatchResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.Intents, 1)
	assert.Equal(t, "AAPL", out.Intents[0].Ticker)
	assert.Contains(t, out.Errors, "MSFT")
}

func TestFuseBatchEndpointValidation(t *testing.T) {
	h := newTestHandler(t, &apiStore{})

	env := doJSON(t, h.FuseBatch, http.MethodPost, "/api/fuse/batch", `{"requests": []}`)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestIntentsEndpoint(t *testing.T) {
	now := time.Now().UTC()
	store := &apiStore{rows: []*models.StoredIntent{
		{At: now, Ticker: "AAPL", Direction: models.DirectionBuy, SizeAdj: 1.0},
		{At: now.Add(-time.Hour), Ticker: "AAPL", Direction: models.DirectionHold, SizeAdj: 1.0},
		{At: now, Ticker: "MSFT", Direction: models.DirectionSell, SizeAdj: 1.0},
	}}
	h := newTestHandler(t, store)

	env := doJSON(t, h.Intents, http.MethodGet, "/api/intents?ticker=AAPL", "")
	require.Equal(t, http.StatusOK, env.Status)

	var list struct {
		Rows  []*models.StoredIntent `json:"rows"`
		Total int64                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(2), list.Total)
	require.Len(t, list.Rows, 2)
	assert.Equal(t, "AAPL", list.Rows[0].Ticker)
}

func TestIntentsEndpointLimit(t *testing.T) {
	now := time.Now().UTC()
	store := &apiStore{rows: []*models.StoredIntent{
		{At: now, Ticker: "AAPL"},
		{At: now, Ticker: "AAPL"},
		{At: now, Ticker: "AAPL"},
	}}
	h := newTestHandler(t, store)

	env := doJSON(t, h.Intents, http.MethodGet, "/api/intents?ticker=AAPL&limit=2", "")
	require.Equal(t, http.StatusOK, env.Status)

	var list struct {
		Rows  []*models.StoredIntent `json:"rows"`
		Total int64                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(2), list.Total)
}

func TestIntentsEndpointValidation(t *testing.T) {
	h := newTestHandler(t, &apiStore{})
	env := doJSON(t, h.Intents, http.MethodGet, "/api/intents", "")
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestIntentsEndpointStoreError(t *testing.T) {
	h := newTestHandler(t, &apiStore{failErr: fmt.Errorf("clickhouse down")})
	env := doJSON(t, h.Intents, http.MethodGet, "/api/intents?ticker=AAPL", "")
	assert.Equal(t, http.StatusInternalServerError, env.Status)
}
