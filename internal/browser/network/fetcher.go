// browser/network/fetcher.go
package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/domscript/api/schemas"
)

// DefaultMaxBodyBytes caps how much of a response body is buffered.
const DefaultMaxBodyBytes int64 = 32 << 20

// ErrBodyTooLarge is returned when a response exceeds the configured cap.
var ErrBodyTooLarge = errors.New("response body exceeds limit")

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// Client performs the exchanges. Nil means NewClient(nil).
	Client *http.Client
	// UserAgent and AcceptLanguage are sent unless the request sets them.
	UserAgent      string
	AcceptLanguage string
	// RequestsPerSecond limits outbound exchanges. Zero means unlimited.
	RequestsPerSecond float64
	Burst             int
	// MaxBodyBytes caps buffered response bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// Fetcher executes schemas.FetchRequest values over HTTP. It satisfies the
// transport interfaces of the request and loader packages and is safe for
// concurrent use.
type Fetcher struct {
	client    *http.Client
	anonymous *http.Client
	limiter   *rate.Limiter
	cfg       FetcherConfig
	logger    *zap.Logger
}

// NewFetcher builds a Fetcher from cfg.
func NewFetcher(cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Client == nil {
		cfg.Client = NewClient(nil)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	// Requests with credentials "omit" never see the cookie jar.
	anonymous := *cfg.Client
	anonymous.Jar = nil

	return &Fetcher{
		client:    cfg.Client,
		anonymous: &anonymous,
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger.Named("network"),
	}
}

// Fetch performs one exchange and buffers the decoded body. Non-2xx
// statuses are responses, not errors.
func (f *Fetcher) Fetch(ctx context.Context, req schemas.FetchRequest) (*schemas.FetchResponse, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	log := f.logger.With(zap.String("request_id", req.ID), zap.String("method", method), zap.String("url", req.URL))

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header = req.HTTPHeader()
	if httpReq.Header.Get("User-Agent") == "" && f.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	if httpReq.Header.Get("Accept-Language") == "" && f.cfg.AcceptLanguage != "" {
		httpReq.Header.Set("Accept-Language", f.cfg.AcceptLanguage)
	}
	if req.Username != "" || req.Password != "" {
		httpReq.SetBasicAuth(req.Username, req.Password)
	}

	client := f.client
	if req.Credentials == "omit" {
		client = f.anonymous
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		log.Debug("Exchange failed.", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > f.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%s: %w", req.URL, ErrBodyTooLarge)
	}

	out := &schemas.FetchResponse{
		URL:        resp.Request.URL.String(),
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Headers:    sortedHeaders(resp.Header),
		Body:       data,
	}
	log.Debug("Exchange complete.",
		zap.Int("status", out.Status),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// statusText returns the reason phrase the server sent.
func statusText(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func sortedHeaders(h http.Header) []schemas.NVPair {
	var out []schemas.NVPair
	for _, name := range slices.Sorted(maps.Keys(h)) {
		for _, v := range h[name] {
			out = append(out, schemas.NVPair{Name: name, Value: v})
		}
	}
	return out
}
