package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// pathReserved are the characters that would escape a substituted path value
// into a new placeholder, query string or fragment.
const pathReserved = "?#{}"

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// segment: a role or CRL name, substituted as exactly one path segment.
	_ = v.RegisterValidation("segment", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return !strings.ContainsAny(s, "/"+pathReserved) && s != "." && s != ".."
	})
	// mountpath: a mount, which may span several segments ("team/cert").
	_ = v.RegisterValidation("mountpath", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if strings.ContainsAny(s, pathReserved) {
			return false
		}
		for _, seg := range strings.Split(s, "/") {
			if seg == "" || seg == "." || seg == ".." {
				return false
			}
		}
		return true
	})
	return v
}

// Build validates r and returns its endpoint descriptor.
//
// Identity fields (mount, role and CRL names) must be set, and must stay
// inside their path segments: a role tagged `validate:"required,segment"`
// may not contain '/', '?', '#', '{' or '}' or be "." or "..". A mount tagged
// `validate:"required,mountpath"` may contain '/' but no empty, "." or ".."
// segment. Violations are CodeBuild errors rather than panics.
// Build also checks that every placeholder in the path template resolves.
func Build(r Request) (Endpoint, error) {
	if r == nil {
		return Endpoint{}, &Error{Code: CodeBuild, Err: errors.New("nil request")}
	}

	if err := validate.Struct(r); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return Endpoint{}, &Error{Code: CodeBuild, Err: err}
		}
		ep := r.Endpoint()
		return Endpoint{}, &Error{Code: CodeBuild, Method: ep.Method, Path: ep.Path, Err: newValidationError(err)}
	}

	ep := r.Endpoint()
	if _, err := ResolvePath(ep.Path, ep.Params); err != nil {
		return Endpoint{}, &Error{Code: CodeBuild, Method: ep.Method, Path: ep.Path, Err: err}
	}
	return ep, nil
}

// validationError renders validator output as "Field reason" phrases while
// still unwrapping to validator.ValidationErrors.
type validationError struct {
	err  error
	msgs []string
}

func newValidationError(err error) error {
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return err
	}
	msgs := make([]string, 0, len(valErrs))
	for _, fe := range valErrs {
		msgs = append(msgs, fe.Field()+" "+formatValidationError(fe))
	}
	return &validationError{err: err, msgs: msgs}
}

func (v *validationError) Error() string { return strings.Join(v.msgs, "; ") }

func (v *validationError) Unwrap() error { return v.err }

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "segment":
		return fmt.Sprintf("must be a single path segment without any of %q", "/"+pathReserved)
	case "mountpath":
		return fmt.Sprintf("must be a path without any of %q or empty, \".\" or \"..\" segments", pathReserved)
	default:
		return strings.TrimSpace(fmt.Sprintf("failed %s %s", fe.Tag(), fe.Param()))
	}
}
