package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AuthInfo is the session material returned by a successful login.
type AuthInfo struct {
	ClientToken      string            `json:"client_token"`
	Accessor         string            `json:"accessor"`
	Policies         []string          `json:"policies"`
	TokenPolicies    []string          `json:"token_policies"`
	IdentityPolicies []string          `json:"identity_policies"`
	Metadata         map[string]string `json:"metadata"`
	LeaseDuration    int               `json:"lease_duration"`
	Renewable        bool              `json:"renewable"`
	EntityID         string            `json:"entity_id"`
	TokenType        string            `json:"token_type"`
	Orphan           bool              `json:"orphan"`
}

// TTL returns the lease duration as a time.Duration.
func (a *AuthInfo) TTL() time.Duration {
	return time.Duration(a.LeaseDuration) * time.Second
}

// Auth runs a login endpoint (ResponseAuth) and unwraps its session
// material. A 2xx reply without a client token is an error wrapping
// ErrMissingAuth; a rejected login is a CodeUnauthenticated error.
func Auth(ctx context.Context, c Client, r Request) (*AuthInfo, error) {
	req, payload, err := execute(ctx, c, r, ResponseAuth)
	if err != nil {
		return nil, err
	}

	var info AuthInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		return nil, &Error{Code: CodeDecode, Method: req.Method, Path: req.Path, Err: fmt.Errorf("decode auth: %w", err)}
	}
	if info.ClientToken == "" {
		return nil, &Error{Code: CodeDecode, Method: req.Method, Path: req.Path, Err: ErrMissingAuth}
	}
	return &info, nil
}
