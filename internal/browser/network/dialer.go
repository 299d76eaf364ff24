// browser/network/dialer.go
package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// happyEyeballsDelay is the head start given to the preferred address family.
const happyEyeballsDelay = 300 * time.Millisecond

// DialerConfig tunes the TCP connections the fetcher opens.
type DialerConfig struct {
	Timeout time.Duration
	// KeepAlive is both the idle time before the first keep-alive packet and
	// the interval between them. Zero or less disables keep-alive.
	KeepAlive time.Duration
	TLSConfig *tls.Config
	NoDelay   bool
	Resolver  *net.Resolver
}

// Clone returns a deep copy; a nil receiver yields fresh defaults.
func (c *DialerConfig) Clone() *DialerConfig {
	if c == nil {
		return NewDialerConfig()
	}
	clone := *c
	if c.TLSConfig != nil {
		clone.TLSConfig = c.TLSConfig.Clone()
	}
	return &clone
}

// NewDialerConfig returns TLS 1.2+ with AEAD suites only and a shared
// session cache for resumption across page subresources.
func NewDialerConfig() *DialerConfig {
	return &DialerConfig{
		Timeout:   DefaultDialTimeout,
		KeepAlive: DefaultKeepAliveInterval,
		TLSConfig: &tls.Config{
			MinVersion:       SecureMinTLSVersion,
			CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
			CipherSuites: []uint16{
				tls.TLS_AES_128_GCM_SHA256,
				tls.TLS_CHACHA20_POLY1305_SHA256,
				tls.TLS_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
				tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			},
			ClientSessionCache: tls.NewLRUClientSessionCache(512),
		},
		NoDelay:  true,
		Resolver: net.DefaultResolver,
	}
}

func (c *DialerConfig) netDialer() *net.Dialer {
	d := &net.Dialer{
		Timeout:       c.Timeout,
		FallbackDelay: happyEyeballsDelay,
		Resolver:      c.Resolver,
		KeepAlive:     -1,
	}
	if c.KeepAlive > 0 {
		d.KeepAliveConfig = net.KeepAliveConfig{
			Enable:   true,
			Idle:     c.KeepAlive,
			Interval: c.KeepAlive,
		}
	}
	return d
}

// DialContext opens a plain TCP connection for http.Transport. TLS and
// proxies are layered on by the transport.
func (c *DialerConfig) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := c.netDialer().DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("tcp dial %s failed: %w", address, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(c.NoDelay); err != nil {
			_ = tcp.Close()
			return nil, fmt.Errorf("failed to set TCP NoDelay: %w", err)
		}
	}
	return conn, nil
}
