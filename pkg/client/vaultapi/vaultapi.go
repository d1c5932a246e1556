// Package vaultapi adapts a *github.com/hashicorp/vault/api.Client to
// api.Client, so the cert auth functions can share a client (and its token,
// namespace, retry and TLS settings) with the rest of a program.
package vaultapi

import (
	"context"
	"errors"
	"fmt"
	"io"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/jmerrifield20/certauth/pkg/api"
)

const maxResponseBytes = 1 << 20

// Client sends requests through a vault.Client.
type Client struct {
	vc     *vault.Client
	logger *zap.Logger
}

var _ api.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger picked up by package api.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New wraps vc.
func New(vc *vault.Client, opts ...Option) *Client {
	c := &Client{vc: vc, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewFromConfig builds a vault.Client from cfg, or from vault.DefaultConfig
// (which reads VAULT_ADDR and friends) when cfg is nil.
func NewFromConfig(cfg *vault.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = vault.DefaultConfig()
		if cfg.Error != nil {
			return nil, fmt.Errorf("read vault environment: %w", cfg.Error)
		}
	}
	vc, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	return New(vc, opts...), nil
}

// Vault returns the wrapped client, e.g. to call SetToken after a login.
func (c *Client) Vault() *vault.Client { return c.vc }

// Logger returns the client's logger.
func (c *Client) Logger() *zap.Logger { return c.logger }

// Send implements api.Client. vault.Client reports HTTP errors as errors
// alongside the response; Send turns them back into a plain response so
// the executor can classify them.
func (c *Client) Send(ctx context.Context, r *api.HTTPRequest) (*api.HTTPResponse, error) {
	req := c.vc.NewRequest(r.Method, "/v1"+r.Path)
	if len(r.Query) > 0 {
		req.Params = r.Query
	}
	if r.Body != nil {
		req.BodyBytes = r.Body
	}

	//nolint:staticcheck // RawRequestWithContext is the only way to get a raw body back
	resp, err := c.vc.RawRequestWithContext(ctx, req)
	if resp == nil || resp.Response == nil {
		if err == nil {
			err = errors.New("no response")
		}
		return nil, fmt.Errorf("vault request failed: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		return nil, fmt.Errorf("read response: %w", readErr)
	}
	c.logger.Debug("vault request sent",
		zap.String("method", r.Method),
		zap.String("path", r.Path),
		zap.Int("status", resp.StatusCode),
	)
	return &api.HTTPResponse{StatusCode: resp.StatusCode, Body: body}, nil
}
