// Package api is the request pipeline shared by every endpoint in certauth.
//
// An operation is described by a request struct that implements Request.
// Build validates it and produces an Endpoint descriptor; the Exec family
// turns the descriptor into one HTTP exchange through a Client and decodes
// the reply according to the descriptor's ResponseKind.
//
//	role, err := api.ExecOptional[cert.RoleResponse](ctx, c, &cert.ReadRoleRequest{
//	    Mount: "cert",
//	    Role:  "web",
//	})
//
// Most callers use the typed functions in pkg/auth/cert instead of calling
// this package directly.
package api

import (
	"context"
	"net/url"

	"go.uber.org/zap"
)

// HTTPRequest is a fully resolved request handed to a Client.
// Path is relative to the service's API prefix (e.g. "/auth/cert/certs/web");
// the Client decides how to join it with its base address.
type HTTPRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte // nil when the endpoint has no body
}

// HTTPResponse is the raw reply received from the service.
type HTTPResponse struct {
	StatusCode int
	Body       []byte
}

// Client dispatches one request to the service.
//
// Implementations own the base address, the auth token, default headers and
// the transport. Send returns an error only when no HTTP response was
// received; every status code that was received, successful or not, must be
// returned as an *HTTPResponse so the Executor can interpret it.
type Client interface {
	Send(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

// loggerFor returns the Client's logger when it exposes one.
func loggerFor(c Client) *zap.Logger {
	if lp, ok := c.(interface{ Logger() *zap.Logger }); ok {
		if l := lp.Logger(); l != nil {
			return l
		}
	}
	return zap.NewNop()
}
