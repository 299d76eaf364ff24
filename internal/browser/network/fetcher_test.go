// browser/network/fetcher_test.go
package network

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/domscript/api/schemas"
)

func newTestFetcher(t *testing.T, cfg FetcherConfig) *Fetcher {
	t.Helper()
	return NewFetcher(cfg, zaptest.NewLogger(t))
}

func TestFetcher_RoundTrip(t *testing.T) {
	type seen struct {
		method, ua, lang, custom, user, pass, body string
		authOK                                     bool
	}
	requests := make(chan seen, 1)
	compressed := gzipBytes(t, []byte("<p>hi</p>"))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		user, pass, ok := r.BasicAuth()
		requests <- seen{
			method: r.Method, ua: r.UserAgent(), lang: r.Header.Get("Accept-Language"),
			custom: r.Header.Get("X-Custom"), user: user, pass: pass, authOK: ok, body: string(body),
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Add("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusCreated)
		w.Write(compressed)
	}))
	defer server.Close()

	f := newTestFetcher(t, FetcherConfig{UserAgent: "domscript-test/1.0", AcceptLanguage: "en-US"})
	resp, err := f.Fetch(context.Background(), schemas.FetchRequest{
		URL:      server.URL + "/submit",
		Method:   http.MethodPost,
		Headers:  []schemas.NVPair{{Name: "X-Custom", Value: "1"}},
		Body:     []byte("payload"),
		Username: "alice",
		Password: "secret",
	})
	require.NoError(t, err)

	got := <-requests
	want := seen{
		method: "POST", ua: "domscript-test/1.0", lang: "en-US", custom: "1",
		user: "alice", pass: "secret", authOK: true, body: "payload",
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(seen{})); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, server.URL+"/submit", resp.URL)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "Created", resp.StatusText)
	assert.Equal(t, "<p>hi</p>", string(resp.Body))

	names := make([]string, 0, len(resp.Headers))
	for _, h := range resp.Headers {
		names = append(names, h.Name)
	}
	assert.IsIncreasing(t, dedupe(names))
	v, ok := resp.Header("x-multi")
	require.True(t, ok)
	assert.Equal(t, "a", v)
	_, ok = resp.Header("Content-Encoding")
	assert.False(t, ok, "decoded responses drop Content-Encoding")
}

func dedupe(names []string) []string {
	var out []string
	for _, n := range names {
		if len(out) == 0 || out[len(out)-1] != n {
			out = append(out, n)
		}
	}
	return out
}

func TestFetcher_RedirectReportsFinalURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
			return
		}
		io.WriteString(w, "moved")
	}))
	defer server.Close()

	resp, err := newTestFetcher(t, FetcherConfig{}).Fetch(context.Background(), schemas.FetchRequest{URL: server.URL + "/old"})
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/new", resp.URL)
	assert.Equal(t, "moved", string(resp.Body))
}

func TestFetcher_ErrorStatusIsAResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	resp, err := newTestFetcher(t, FetcherConfig{}).Fetch(context.Background(), schemas.FetchRequest{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, 404, resp.Status)
	assert.Equal(t, "Not Found", resp.StatusText)
}

func TestFetcher_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", 64))
	}))
	defer server.Close()

	_, err := newTestFetcher(t, FetcherConfig{MaxBodyBytes: 16}).Fetch(context.Background(), schemas.FetchRequest{URL: server.URL})
	assert.True(t, errors.Is(err, ErrBodyTooLarge))

	resp, err := newTestFetcher(t, FetcherConfig{MaxBodyBytes: 64}).Fetch(context.Background(), schemas.FetchRequest{URL: server.URL})
	require.NoError(t, err)
	assert.Len(t, resp.Body, 64)
}

func TestFetcher_CredentialsOmitSkipsCookies(t *testing.T) {
	cookies := make(chan string, 3)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookies <- r.Header.Get("Cookie")
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
	}))
	defer server.Close()

	f := newTestFetcher(t, FetcherConfig{})
	ctx := context.Background()
	for _, creds := range []string{"include", "include", "omit"} {
		_, err := f.Fetch(ctx, schemas.FetchRequest{URL: server.URL, Credentials: creds})
		require.NoError(t, err)
	}
	assert.Equal(t, "", <-cookies)
	assert.Equal(t, "session=abc", <-cookies)
	assert.Equal(t, "", <-cookies)
}

func TestFetcher_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	f := newTestFetcher(t, FetcherConfig{RequestsPerSecond: 20, Burst: 1})
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), schemas.FetchRequest{URL: server.URL})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, schemas.FetchRequest{URL: server.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestFetcher_InvalidURL(t *testing.T) {
	_, err := newTestFetcher(t, FetcherConfig{}).Fetch(context.Background(), schemas.FetchRequest{URL: "http://[::1]:namedport"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build request")
}
