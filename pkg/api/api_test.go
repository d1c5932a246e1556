package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/jmerrifield20/certauth/pkg/api"
)

// ── Stub client ─────────────────────────────────────────────────────────

// stubClient returns a canned reply and records the last request.
type stubClient struct {
	status int
	body   string
	err    error

	got   *api.HTTPRequest
	calls int
}

func (s *stubClient) Send(ctx context.Context, req *api.HTTPRequest) (*api.HTTPResponse, error) {
	s.calls++
	s.got = req
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return &api.HTTPResponse{StatusCode: s.status, Body: []byte(s.body)}, nil
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:8200: connect: connection refused")

// ── Test requests ───────────────────────────────────────────────────────

type thing struct {
	Certificate string `json:"certificate"`
	TTL         int    `json:"ttl"`
}

type readThingRequest struct {
	Mount string `json:"-" validate:"required"`
	Name  string `json:"-" validate:"required"`
}

func (r *readThingRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/things/{name}",
		Method:   http.MethodGet,
		Params:   map[string]string{"mount": r.Mount, "name": r.Name},
		Response: api.ResponseOptional,
	}
}

type segmentThingRequest struct {
	Mount string `json:"-" validate:"required,mountpath"`
	Name  string `json:"-" validate:"required,segment"`
}

func (r *segmentThingRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/things/{name}",
		Method:   http.MethodGet,
		Params:   map[string]string{"mount": r.Mount, "name": r.Name},
		Response: api.ResponseOptional,
	}
}

type getThingRequest struct {
	Mount string `json:"-" validate:"required"`
}

func (r *getThingRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/thing",
		Method:   http.MethodGet,
		Params:   map[string]string{"mount": r.Mount},
		Response: api.ResponseValue,
	}
}

type listThingsRequest struct {
	Mount string `json:"-" validate:"required"`
}

func (r *listThingsRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/things",
		Method:   http.MethodGet,
		Params:   map[string]string{"mount": r.Mount},
		Query:    url.Values{"list": []string{"true"}},
		Response: api.ResponseOptional,
	}
}

type writeThingRequest struct {
	Mount       string                 `json:"-" validate:"required"`
	Name        string                 `json:"-" validate:"required"`
	Certificate string                 `json:"certificate"`
	Enabled     api.Optional[bool]     `json:"enabled,omitzero"`
	Names       api.Optional[[]string] `json:"names,omitzero"`
	CacheSize   api.Optional[uint32]   `json:"cache_size,omitzero"`
	DisplayName api.Optional[string]   `json:"display_name,omitzero"`
}

func (r *writeThingRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/things/{name}",
		Method:   http.MethodPost,
		Params:   map[string]string{"mount": r.Mount, "name": r.Name},
		Body:     r,
		Response: api.ResponseNone,
	}
}

type loginRequest struct {
	Mount string `json:"-" validate:"required"`
	Name  string `json:"name,omitempty"`
}

func (r *loginRequest) Endpoint() api.Endpoint {
	return api.Endpoint{
		Path:     "/auth/{mount}/login",
		Method:   http.MethodPost,
		Params:   map[string]string{"mount": r.Mount},
		Body:     r,
		Response: api.ResponseAuth,
	}
}
