package marketctx

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    "FinFuse/internal/domain/models"
    domsvc "FinFuse/internal/domain/service"
    pkgcache "FinFuse/pkg/cache"
    xhttp "FinFuse/pkg/http"
    applogger "FinFuse/pkg/logger"
)

const snapshotPath = "/context/snapshot"

// HTTPContextProvider fetches market context snapshots from the context
// service and caches them per ticker for a short TTL. With no base URL
// configured it degrades to zero context, which the gates treat as absent.
type HTTPContextProvider struct {
    baseURL string
    client  *xhttp.Client
    cache   pkgcache.Service
    ttl     time.Duration
    l       *applogger.Logger
}

type snapshotRequest struct {
    Ticker string `json:"ticker"`
}

// New builds a provider against the context service at baseURL.
func New(baseURL string, timeout, cacheTTL time.Duration, cache pkgcache.Service, l *applogger.Logger) *HTTPContextProvider {
    if timeout <= 0 {
        timeout = 3 * time.Second
    }
    if cacheTTL <= 0 {
        cacheTTL = 5 * time.Second
    }
    return &HTTPContextProvider{
        baseURL: baseURL,
        client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
        cache:   cache,
        ttl:     cacheTTL,
        l:       l,
    }
}

var _ domsvc.ContextProvider = (*HTTPContextProvider)(nil)

// Snapshot returns the current market context for ticker. Failures and a
// missing upstream both yield a zero context rather than an error: fusion
// with closed gates beats no fusion at all.
func (p *HTTPContextProvider) Snapshot(ctx context.Context, ticker string) (models.GateContext, error) {
    if p.baseURL == "" {
        return models.GateContext{}, nil
    }

    key := pkgcache.GenerateKey("ctx", ticker)
    if p.cache != nil {
        var cached string
        if err := p.cache.Get(ctx, key, &cached); err == nil {
            var payload models.ContextPayload
            if err := json.Unmarshal([]byte(cached), &payload); err == nil {
                return payload.GateContext(), nil
            }
        }
    }

    var payload models.ContextPayload
    if err := p.postJSONWithRetry(ctx, snapshotPath, snapshotRequest{Ticker: ticker}, &payload, 3); err != nil {
        if p.l != nil {
            p.l.Warn("context snapshot unavailable", applogger.String("ticker", ticker), applogger.Error(err))
        }
        return models.GateContext{}, nil
    }

    if p.cache != nil {
        if b, err := json.Marshal(payload); err == nil {
            _ = p.cache.Set(ctx, key, string(b), p.ttl)
        }
    }
    return payload.GateContext(), nil
}

func (p *HTTPContextProvider) postJSON(ctx context.Context, path string, payload, dest interface{}) error {
    if p.client == nil || p.baseURL == "" {
        return fmt.Errorf("context http client not initialized")
    }
    req := &xhttp.RequestOptions{
        Method:  xhttp.MethodPost,
        URL:     p.baseURL + path,
        Headers: map[string]string{"Content-Type": "application/json"},
        Body:    payload,
    }
    if err := p.client.SendAndParse(ctx, req, dest); err != nil {
        return fmt.Errorf("post %s: %w", path, err)
    }
    return nil
}

// postJSONWithRetry retries transient failures with a linearly growing pause
// between attempts.
func (p *HTTPContextProvider) postJSONWithRetry(ctx context.Context, path string, payload, dest interface{}, attempts int) error {
    var err error
    for i := 1; ; i++ {
        if err = p.postJSON(ctx, path, payload, dest); err == nil {
            return nil
        }
        if i >= attempts {
            return err
        }
        select {
        case <-time.After(time.Duration(i) * 50 * time.Millisecond):
        case <-ctx.Done():
            return ctx.Err()
        }
    }
}
