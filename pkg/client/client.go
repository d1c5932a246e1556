package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jmerrifield20/certauth/pkg/api"
)

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 1 << 20
)

// Client sends requests to a single server over HTTP(S). It implements
// api.Client and is safe for concurrent use.
type Client struct {
	address    string
	httpClient *http.Client
	tlsConfig  *tls.Config
	timeout    time.Duration
	namespace  string
	limiter    *rate.Limiter
	metrics    *metrics
	logger     *zap.Logger

	// token is replaced after a login; guarded by mu
	mu    sync.RWMutex
	token string
}

var _ api.Client = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client, overriding any TLS and timeout
// options.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithToken sets the token sent as X-Vault-Token.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithNamespace sets the namespace sent as X-Vault-Namespace.
func WithNamespace(ns string) Option {
	return func(c *Client) error {
		c.namespace = strings.Trim(ns, "/")
		return nil
	}
}

// WithTimeout bounds each request, including reading the response body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.timeout = d
		return nil
	}
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
// Send waits for a slot rather than failing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rate limit: rps and burst must be positive")
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithLogger sets the logger used for per-request debug logs. The pipeline
// in package api picks it up through Logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) error {
		if l != nil {
			c.logger = l
		}
		return nil
	}
}

// WithMTLS presents certPEM/keyPEM as the client certificate and trusts
// caPEM for the server. caPEM may be empty to use the system roots.
func WithMTLS(certPEM, keyPEM, caPEM string) Option {
	return func(c *Client) error {
		clientCert, err := tls.X509KeyPair([]byte(certPEM), []byte(keyPEM))
		if err != nil {
			return fmt.Errorf("parse mTLS cert/key: %w", err)
		}
		c.tls().Certificates = []tls.Certificate{clientCert}
		if caPEM != "" {
			return WithCACert(caPEM)(c)
		}
		return nil
	}
}

// WithCACert trusts only caPEM when verifying the server.
func WithCACert(caPEM string) Option {
	return func(c *Client) error {
		pool, err := certPool(caPEM)
		if err != nil {
			return err
		}
		c.tls().RootCAs = pool
		return nil
	}
}

// WithInsecureSkipVerify disables server certificate verification.
// Only use this in development against a locally-generated CA.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		c.tls().InsecureSkipVerify = true //nolint:gosec
		return nil
	}
}

func (c *Client) tls() *tls.Config {
	if c.tlsConfig == nil {
		c.tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return c.tlsConfig
}

// New creates a Client for the server at address, e.g.
// "https://vault.example.com:8200".
//
//	c, err := client.New(addr,
//	    client.WithCertDir(os.ExpandEnv("$HOME/.certauth/certs")),
//	    client.WithLogger(logger),
//	)
func New(address string, opts ...Option) (*Client, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", address, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("address %q: scheme must be http or https", address)
	}

	c := &Client{
		address: strings.TrimRight(address, "/"),
		timeout: defaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: c.tlsConfig,
			},
			Timeout: c.timeout,
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(address string, opts ...Option) *Client {
	c, err := New(address, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Address returns the server address the client was created with.
func (c *Client) Address() string { return c.address }

// Logger returns the client's logger.
func (c *Client) Logger() *zap.Logger { return c.logger }

// SetToken replaces the token, typically with the one returned by a login.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Send implements api.Client. Any HTTP status is returned as a response;
// an error means no response was received.
func (c *Client) Send(ctx context.Context, r *api.HTTPRequest) (*api.HTTPResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	target := c.address + "/v1" + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("X-Vault-Token", token)
	}
	if c.namespace != "" {
		req.Header.Set("X-Vault-Namespace", c.namespace)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(r.Method, "error", time.Since(start))
		c.logger.Debug("request failed",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.Path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.observe(r.Method, "error", time.Since(start))
		return nil, fmt.Errorf("read response: %w", err)
	}

	took := time.Since(start)
	c.metrics.observe(r.Method, fmt.Sprint(resp.StatusCode), took)
	c.logger.Debug("request sent",
		zap.String("request_id", requestID),
		zap.String("method", r.Method),
		zap.String("path", r.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", took),
	)
	return &api.HTTPResponse{StatusCode: resp.StatusCode, Body: respBody}, nil
}
