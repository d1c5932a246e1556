package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode classifies a failed call.
type ErrorCode string

const (
	// CodeTransport: no HTTP response was received (connection failure,
	// TLS failure, context cancellation or deadline).
	CodeTransport ErrorCode = "transport"
	// CodeStatus: the service answered with a non-2xx status that does not
	// mean "absent".
	CodeStatus ErrorCode = "status"
	// CodeDecode: a 2xx body did not match the expected shape.
	CodeDecode ErrorCode = "decode"
	// CodeBuild: the request could not be built (missing identity field,
	// unresolved placeholder, unmarshalable body).
	CodeBuild ErrorCode = "build"
	// CodeUnauthenticated: a login was rejected by the service.
	CodeUnauthenticated ErrorCode = "unauthenticated"
)

var (
	// ErrUnresolvedPlaceholder is returned when a path template references a
	// parameter that has no value.
	ErrUnresolvedPlaceholder = errors.New("unresolved path placeholder")

	// ErrMissingAuth is returned when a login succeeds at the HTTP level but
	// the reply carries no client token.
	ErrMissingAuth = errors.New("response carries no auth data")

	// ErrKindMismatch is returned when a typed Exec helper is used with an
	// endpoint that declares a different ResponseKind.
	ErrKindMismatch = errors.New("response kind mismatch")
)

// Error is the single error type returned by the Exec family.
type Error struct {
	Code       ErrorCode
	Method     string
	Path       string
	StatusCode int
	// Messages holds the service's "errors" array, or the raw body when it
	// is not JSON.
	Messages []string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Method != "" || e.Path != "" {
		fmt.Fprintf(&b, " %s %s", e.Method, e.Path)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if len(e.Messages) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Messages, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the ErrorCode of err, or "" when err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the service. Optional reads
// never return it; it surfaces from writes and deletes.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// statusError builds the error for a non-2xx reply.
func statusError(code ErrorCode, req *HTTPRequest, resp *HTTPResponse) *Error {
	return &Error{
		Code:       code,
		Method:     req.Method,
		Path:       req.Path,
		StatusCode: resp.StatusCode,
		Messages:   serviceMessages(resp.Body),
	}
}

// serviceMessages extracts {"errors": [...]} from body, falling back to the
// trimmed body text.
func serviceMessages(body []byte) []string {
	var payload struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		return payload.Errors
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return []string{s}
	}
	return nil
}
