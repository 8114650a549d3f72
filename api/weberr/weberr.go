// Package weberr attaches the HTTP answer of a failed request to the error
// itself, so handlers return plain errors and middleware.Errors renders them.
package weberr

import (
	"errors"
	"net/http"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// Error is a handler error with the status and body sent to the client and
// the fields added to its log entry.
type Error struct {
	Err    error
	Status int
	Body   any
	Fields map[string]any
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

type Opt func(*Error)

// WithFields adds fields to the log entry of the error.
func WithFields(fields map[string]any) Opt {
	return func(e *Error) {
		if e.Fields == nil {
			e.Fields = make(map[string]any, len(fields))
		}
		for k, v := range fields {
			e.Fields[k] = v
		}
	}
}

func NewError(err error, msg string, status int, opts ...Opt) error {
	e := &Error{
		Err:    err,
		Status: status,
		Body:   ErrorResponse{Error: msg},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Response returns the answer attached to the outermost Error in err's chain.
func Response(err error) (body any, status int, ok bool) {
	var e *Error
	if !errors.As(err, &e) {
		return nil, 0, false
	}
	return e.Body, e.Status, true
}

// Fields merges the log fields of every Error in err's chain. Outer errors
// win on conflicting keys.
func Fields(err error) (map[string]any, bool) {
	var out map[string]any
	for {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		for k, v := range e.Fields {
			if out == nil {
				out = make(map[string]any)
			}
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
		err = e.Err
	}
	return out, len(out) > 0
}

func NotFound(err error, opts ...Opt) error {
	return NewError(err, "the resource could not be found", http.StatusNotFound, opts...)
}

func NotAuthorized(err error, opts ...Opt) error {
	return NewError(err, "not authorized to access resource", http.StatusUnauthorized, opts...)
}

func Forbidden(err error, opts ...Opt) error {
	return NewError(err, "forbidden", http.StatusForbidden, opts...)
}

func BadRequest(err error, opts ...Opt) error {
	return NewError(err, "bad request", http.StatusBadRequest, opts...)
}

// Invalid answers 400 with the validation message itself.
func Invalid(err error, opts ...Opt) error {
	return NewError(err, err.Error(), http.StatusBadRequest, opts...)
}

func Unprocessable(err error, msg string, opts ...Opt) error {
	return NewError(err, msg, http.StatusUnprocessableEntity, opts...)
}

func TooManyRequests(err error, opts ...Opt) error {
	return NewError(err, "rate limit exceeded, retry later", http.StatusTooManyRequests, opts...)
}

func InternalError(err error, opts ...Opt) error {
	return NewError(
		err,
		"the server encountered a problem and could not process your request",
		http.StatusInternalServerError,
		opts...,
	)
}
