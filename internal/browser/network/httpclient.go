// browser/network/httpclient.go
package network

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultDialTimeout           = 15 * time.Second
	DefaultKeepAliveInterval     = 30 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultRequestTimeout        = 120 * time.Second

	// DefaultMaxRedirects matches the redirect limit of current browsers.
	DefaultMaxRedirects = 20

	// Pool sizing for one page and its subresources.
	idleConnsPerHost = 6
	maxIdleConns     = 64
	idleConnTimeout  = 90 * time.Second
)

// SecureMinTLSVersion defines the lowest TLS version the client negotiates.
const SecureMinTLSVersion = tls.VersionTLS12

// ClientConfig configures the HTTP client behind the fetcher.
type ClientConfig struct {
	RequestTimeout time.Duration
	Dialer         *DialerConfig
	// MaxRedirects bounds followed redirects. Zero disables following and
	// hands 3xx responses back to the caller.
	MaxRedirects int
	ProxyURL     *url.URL
	// RootCAs replaces the system roots when set.
	RootCAs            *x509.CertPool
	InsecureSkipVerify bool
	Logger             *zap.Logger
}

// NewBrowserClientConfig returns the defaults for page loading.
func NewBrowserClientConfig() *ClientConfig {
	return &ClientConfig{
		RequestTimeout: DefaultRequestTimeout,
		Dialer:         NewDialerConfig(),
		MaxRedirects:   DefaultMaxRedirects,
		Logger:         zap.NewNop(),
	}
}

// NewClient builds a cookie-keeping http.Client whose transport decodes
// every supported Content-Encoding. A nil config means the defaults.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = NewBrowserClientConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	// cookiejar.New only errors on invalid options.
	jar, _ := cookiejar.New(nil)

	return &http.Client{
		Transport:     NewCompressionMiddleware(newTransport(cfg)),
		Timeout:       cfg.RequestTimeout,
		Jar:           jar,
		CheckRedirect: redirectPolicy(cfg.MaxRedirects, cfg.Logger),
	}
}

func newTransport(cfg *ClientConfig) *http.Transport {
	dialer := cfg.Dialer.Clone()
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSClientConfig:       cfg.tlsConfig(dialer),
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   idleConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		// CompressionMiddleware decodes every supported encoding.
		DisableCompression: true,
		ForceAttemptHTTP2:  true,
	}
	if cfg.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(cfg.ProxyURL)
	}
	return transport
}

// tlsConfig starts from the dialer's TLS defaults and applies the trust
// settings. ALPN offers h2 first.
func (cfg *ClientConfig) tlsConfig(dialer *DialerConfig) *tls.Config {
	tc := dialer.TLSConfig
	if tc == nil {
		tc = NewDialerConfig().TLSConfig
	}
	tc = tc.Clone()
	if tc.MinVersion < SecureMinTLSVersion {
		tc.MinVersion = SecureMinTLSVersion
	}
	tc.NextProtos = []string{"h2", "http/1.1"}
	tc.RootCAs = cfg.RootCAs
	tc.InsecureSkipVerify = cfg.InsecureSkipVerify
	return tc
}

// redirectPolicy follows up to limit redirects. Past the limit the request
// fails the way browsers fail it, with a network error.
func redirectPolicy(limit int, logger *zap.Logger) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if limit <= 0 {
			return http.ErrUseLastResponse
		}
		if len(via) >= limit {
			return fmt.Errorf("stopped after %d redirects", limit)
		}
		logger.Debug("Following redirect.",
			zap.String("from", via[len(via)-1].URL.String()),
			zap.String("to", req.URL.String()),
			zap.Int("hop", len(via)))
		return nil
	}
}
