package api

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// ResponseKind is the shape of the reply an endpoint produces.
type ResponseKind int

const (
	// ResponseNone expects no decoded value; any 2xx is success.
	ResponseNone ResponseKind = iota
	// ResponseOptional may legitimately be absent (404 or an empty payload).
	ResponseOptional
	// ResponseValue must decode into the expected type.
	ResponseValue
	// ResponseAuth carries session material in the "auth" envelope.
	ResponseAuth
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseNone:
		return "none"
	case ResponseOptional:
		return "optional"
	case ResponseValue:
		return "value"
	case ResponseAuth:
		return "auth"
	default:
		return fmt.Sprintf("ResponseKind(%d)", int(k))
	}
}

// Endpoint describes one API call.
type Endpoint struct {
	// Path is a template such as "/auth/{mount}/certs/{role}".
	Path   string
	Method string
	// Params holds the identity fields substituted into Path. They never
	// appear in the body.
	Params map[string]string
	Query  url.Values
	// Body is marshalled as JSON when non-nil.
	Body     any
	Response ResponseKind
}

// Request is implemented by every operation's parameter struct.
type Request interface {
	Endpoint() Endpoint
}

// ResolvePath substitutes each {name} placeholder in tmpl with params[name].
// Substitution is exact; values are not escaped. A placeholder with no value,
// or with an empty one, is reported as ErrUnresolvedPlaceholder.
func ResolvePath(tmpl string, params map[string]string) (string, error) {
	var b strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated placeholder in %q", ErrUnresolvedPlaceholder, tmpl)
		}
		name := rest[open+1 : open+end]
		value := params[name]
		if value == "" {
			return "", fmt.Errorf("%w: {%s} in %q", ErrUnresolvedPlaceholder, name, tmpl)
		}
		b.WriteString(rest[:open])
		b.WriteString(value)
		rest = rest[open+end+1:]
	}
}

// HTTPRequest resolves the path template and marshals the body.
func (e Endpoint) HTTPRequest() (*HTTPRequest, error) {
	path, err := ResolvePath(e.Path, e.Params)
	if err != nil {
		return nil, &Error{Code: CodeBuild, Method: e.Method, Path: e.Path, Err: err}
	}

	req := &HTTPRequest{Method: e.Method, Path: path, Query: e.Query}
	if e.Body != nil {
		b, err := json.Marshal(e.Body)
		if err != nil {
			return nil, &Error{Code: CodeBuild, Method: e.Method, Path: path, Err: fmt.Errorf("marshal request body: %w", err)}
		}
		req.Body = b
	}
	return req, nil
}
