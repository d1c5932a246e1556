package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// envelope is the service's standard reply wrapper.
type envelope struct {
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Auth      json.RawMessage `json:"auth"`
	Warnings  []string        `json:"warnings"`
}

// listResponse is the payload of every LIST-style read.
type listResponse struct {
	Keys []string `json:"keys"`
}

// Exec runs an endpoint whose ResponseKind is ResponseNone.
func Exec(ctx context.Context, c Client, r Request) error {
	_, _, err := execute(ctx, c, r, ResponseNone)
	return err
}

// ExecOptional runs an endpoint whose ResponseKind is ResponseOptional.
// A nil result with a nil error means the object does not exist.
func ExecOptional[T any](ctx context.Context, c Client, r Request) (*T, error) {
	return executeInto[T](ctx, c, r, ResponseOptional)
}

// ExecValue runs an endpoint whose ResponseKind is ResponseValue. The result
// is never nil when err is nil.
func ExecValue[T any](ctx context.Context, c Client, r Request) (*T, error) {
	return executeInto[T](ctx, c, r, ResponseValue)
}

// ExecList runs an optional list endpoint and returns its keys. An absent
// list is returned as nil with a nil error.
func ExecList(ctx context.Context, c Client, r Request) ([]string, error) {
	list, err := ExecOptional[listResponse](ctx, c, r)
	if err != nil || list == nil {
		return nil, err
	}
	return list.Keys, nil
}

func executeInto[T any](ctx context.Context, c Client, r Request, want ResponseKind) (*T, error) {
	req, payload, err := execute(ctx, c, r, want)
	if err != nil || payload == nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, &Error{Code: CodeDecode, Method: req.Method, Path: req.Path, Err: fmt.Errorf("decode %T: %w", out, err)}
	}
	return &out, nil
}

// execute builds r, sends it through c and returns the request sent along
// with the payload for the endpoint's kind: nil for ResponseNone and for an
// absent optional value.
func execute(ctx context.Context, c Client, r Request, want ResponseKind) (*HTTPRequest, json.RawMessage, error) {
	ep, err := Build(r)
	if err != nil {
		return nil, nil, err
	}
	if ep.Response != want {
		return nil, nil, &Error{
			Code:   CodeBuild,
			Method: ep.Method,
			Path:   ep.Path,
			Err:    fmt.Errorf("%w: endpoint returns %s, caller expects %s", ErrKindMismatch, ep.Response, want),
		}
	}

	req, err := ep.HTTPRequest()
	if err != nil {
		return nil, nil, err
	}

	logger := loggerFor(c).With(zap.String("method", req.Method), zap.String("path", req.Path))
	start := time.Now()

	resp, err := c.Send(ctx, req)
	if err != nil {
		logger.Error("request failed", zap.Error(err))
		return nil, nil, &Error{Code: CodeTransport, Method: req.Method, Path: req.Path, Err: err}
	}

	payload, err := interpret(ep.Response, req, resp)
	if err != nil {
		logger.Error("request failed", zap.Int("status", resp.StatusCode), zap.Error(err))
		return nil, nil, err
	}
	logger.Debug("request complete",
		zap.Int("status", resp.StatusCode),
		zap.Bool("absent", want == ResponseOptional && payload == nil),
		zap.Duration("took", time.Since(start)),
	)
	return req, payload, nil
}

// interpret maps a reply to a payload or an error according to kind.
func interpret(kind ResponseKind, req *HTTPRequest, resp *HTTPResponse) (json.RawMessage, error) {
	success := resp.StatusCode >= 200 && resp.StatusCode < 300

	switch kind {
	case ResponseNone:
		if !success {
			return nil, statusError(CodeStatus, req, resp)
		}
		return nil, nil

	case ResponseOptional:
		if IsAbsent(resp.StatusCode, resp.Body) {
			return nil, nil
		}
		if !success {
			return nil, statusError(CodeStatus, req, resp)
		}
		env, err := decodeEnvelope(req, resp)
		if err != nil {
			return nil, err
		}
		if isNullJSON(env.Data) {
			return nil, nil
		}
		return env.Data, nil

	case ResponseValue:
		if !success {
			return nil, statusError(CodeStatus, req, resp)
		}
		if isNullJSON(resp.Body) {
			return nil, decodeError(req, resp, fmt.Errorf("empty response body"))
		}
		env, err := decodeEnvelope(req, resp)
		if err != nil {
			return nil, err
		}
		if isNullJSON(env.Data) {
			return nil, decodeError(req, resp, fmt.Errorf("response carries no data"))
		}
		return env.Data, nil

	case ResponseAuth:
		switch {
		case resp.StatusCode == http.StatusBadRequest,
			resp.StatusCode == http.StatusUnauthorized,
			resp.StatusCode == http.StatusForbidden:
			return nil, statusError(CodeUnauthenticated, req, resp)
		case !success:
			return nil, statusError(CodeStatus, req, resp)
		}
		if isNullJSON(resp.Body) {
			return nil, decodeError(req, resp, ErrMissingAuth)
		}
		env, err := decodeEnvelope(req, resp)
		if err != nil {
			return nil, err
		}
		if isNullJSON(env.Auth) {
			return nil, decodeError(req, resp, ErrMissingAuth)
		}
		return env.Auth, nil
	}

	return nil, &Error{Code: CodeBuild, Method: req.Method, Path: req.Path, Err: fmt.Errorf("unknown response kind %s", kind)}
}

// IsAbsent reports whether a reply to an optional read means "no such
// object". Only two cases qualify: a 404, or a 2xx whose body is empty or
// JSON null. Every other 4xx is an error, and a 2xx envelope whose data is
// null is handled by the Executor after decoding.
func IsAbsent(statusCode int, body []byte) bool {
	if statusCode == http.StatusNotFound {
		return true
	}
	return statusCode >= 200 && statusCode < 300 && isNullJSON(body)
}

func decodeEnvelope(req *HTTPRequest, resp *HTTPResponse) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, decodeError(req, resp, fmt.Errorf("decode response: %w", err))
	}
	return &env, nil
}

func decodeError(req *HTTPRequest, resp *HTTPResponse, err error) *Error {
	return &Error{Code: CodeDecode, Method: req.Method, Path: req.Path, StatusCode: resp.StatusCode, Err: err}
}

func isNullJSON(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}
