package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/capital-weather-dashboard/internal/cache"
	"github.com/kjstillabower/capital-weather-dashboard/internal/observability"
)

const tracerName = "github.com/kjstillabower/capital-weather-dashboard/internal/client"

// maxBodyBytes bounds how much of an upstream body is read.
const maxBodyBytes = 16 << 20

var (
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrInvalidPayload  = errors.New("invalid upstream payload")
)

// StatusError is a non-2xx upstream response. Body is kept for server-side logs only.
type StatusError struct {
	API        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %v: HTTP %d", e.API, ErrUpstreamFailure, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrUpstreamFailure }

// StatusText is the reason phrase of the response ("Not Found"), without the code.
func (e *StatusError) StatusText() string {
	text := strings.TrimSpace(strings.TrimPrefix(e.Status, strconv.Itoa(e.StatusCode)))
	if text == "" {
		text = http.StatusText(e.StatusCode)
	}
	return text
}

// FetchPolicy is the cache directive for one upstream API. With Enabled and a
// zero TTL, successful bodies are kept indefinitely.
type FetchPolicy struct {
	Enabled bool
	TTL     time.Duration
}

// fetcher performs GET requests against one upstream API, with an optional
// fetch cache and coalescing of identical concurrent requests.
type fetcher struct {
	api    string
	client *http.Client
	cache  cache.Cache
	policy FetchPolicy
	tracer trace.Tracer
	group  singleflight.Group
}

func newFetcher(api string, timeout time.Duration, c cache.Cache, policy FetchPolicy) *fetcher {
	if c == nil {
		policy.Enabled = false
	}
	return &fetcher{
		api:    api,
		client: &http.Client{Timeout: timeout},
		cache:  c,
		policy: policy,
		tracer: otel.Tracer(tracerName),
	}
}

// get returns the 2xx body for reqURL. cacheKey identifies the request for the
// fetch cache and for coalescing; it must not contain credentials. A body is only
// cached once check accepts it; check may be nil.
func (f *fetcher) get(ctx context.Context, reqURL, cacheKey string, check func([]byte) error) ([]byte, error) {
	ctx, span := f.tracer.Start(ctx, "upstream."+f.api,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("upstream.api", f.api)))
	defer span.End()

	logger := observability.LoggerFrom(ctx)

	if f.policy.Enabled {
		body, ok, err := f.cache.Get(ctx, cacheKey)
		switch {
		case err != nil:
			observability.FetchCacheLookupsTotal.WithLabelValues(f.api, "error").Inc()
			logger.Warn("fetch cache get failed", zap.String("api", f.api), zap.Error(err))
		case ok:
			observability.FetchCacheLookupsTotal.WithLabelValues(f.api, "hit").Inc()
			span.SetAttributes(attribute.Bool("fetch.cache_hit", true))
			return body, nil
		default:
			observability.FetchCacheLookupsTotal.WithLabelValues(f.api, "miss").Inc()
		}
	}
	span.SetAttributes(attribute.Bool("fetch.cache_hit", false))

	// The shared call outlives any single caller; the client timeout still bounds it.
	ch := f.group.DoChan(cacheKey, func() (interface{}, error) {
		return f.do(context.WithoutCancel(ctx), reqURL)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		res.Err = ctxError(f.api, ctx.Err())
	case res = <-ch:
		if res.Shared {
			observability.FetchCoalescedTotal.WithLabelValues(f.api).Inc()
		}
	}
	v, err := res.Val, res.Err
	if err != nil {
		observability.UpstreamErrorsTotal.WithLabelValues(f.api, string(CategorizeError(err))).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	body := v.([]byte)
	if check != nil {
		if err := check(body); err != nil {
			observability.UpstreamErrorsTotal.WithLabelValues(f.api, string(ErrorCategoryInvalidPayload)).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	if f.policy.Enabled {
		if err := f.cache.Set(ctx, cacheKey, body, f.policy.TTL); err != nil {
			logger.Warn("fetch cache set failed", zap.String("api", f.api), zap.Error(err))
		}
	}
	return body, nil
}

func (f *fetcher) do(ctx context.Context, reqURL string) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", f.api, err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(f.api, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(f.api, "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, ctxError(f.api, err)
		}
		return nil, fmt.Errorf("%s: http request failed: %w", f.api, err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(f.api, status).Inc()
	observability.UpstreamDuration.WithLabelValues(f.api, status).Observe(time.Since(start).Seconds())
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read response body: %w", f.api, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{API: f.api, StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
	}
	return body, nil
}

// ctxError wraps a context error, naming cancellation apart from timeout.
func ctxError(api string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: request canceled: %w", api, err)
	}
	return fmt.Errorf("%s: request timeout: %w", api, err)
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
