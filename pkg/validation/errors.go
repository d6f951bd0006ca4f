// Package validation collects request field problems so a handler can
// reject a request with every problem listed at once.
package validation

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Errors struct {
	Fields []FieldError
}

func (e *Errors) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation_error"
	}
	codes := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		codes = append(codes, f.Field+":"+f.Code)
	}
	return "validation_error: " + strings.Join(codes, ",")
}

func (e *Errors) Add(field, code, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: message})
}

// Err returns nil when nothing was added.
func (e *Errors) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// As extracts *Errors from err.
func As(err error) (*Errors, bool) {
	var verr *Errors
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// FromBinding converts struct tag validation failures into field errors.
// Any other error is reported under "request".
func FromBinding(err error) Errors {
	var out Errors
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.Add("request", "invalid_request", "invalid request")
		return out
	}
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		out.Add(field, fe.Tag(), field+" failed "+fe.Tag()+" validation")
	}
	return out
}
