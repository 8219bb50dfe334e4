package weberr

import (
	"net/http"
)

type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type RequestError struct {
	Err error
}

func (r *RequestError) Error() string { return r.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

func NewError(err error, msg string, status int, opts ...Opt) error {
	return NewDetailedError(err, msg, status, nil, opts...)
}

// NewDetailedError is NewError with machine readable details in the body,
// e.g. the product that ran out of stock.
func NewDetailedError(err error, msg string, status int, details map[string]interface{}, opts ...Opt) error {
	e := &RequestError{Err: err}
	opts = append(opts, WithResponse(
		&ErrorResponse{Error: msg, Details: details},
		status,
	))

	return Wrap(e, opts...)
}

func NotFound(err error, opts ...Opt) error {
	return NewError(err, "the resource could not be found", http.StatusNotFound, opts...)
}

func NotAuthorized(err error, opts ...Opt) error {
	return NewError(err, "not authorized to access resource", http.StatusUnauthorized, opts...)
}

func Forbidden(err error, opts ...Opt) error {
	return NewError(err, "not allowed to perform this action", http.StatusForbidden, opts...)
}

func BadRequest(err error, opts ...Opt) error {
	return NewError(err, "bad request", http.StatusBadRequest, opts...)
}

// Conflict reports a request that is valid but clashes with the current
// state of the resource.
func Conflict(err error, opts ...Opt) error {
	return NewError(err, err.Error(), http.StatusConflict, opts...)
}

func Unprocessable(err error, opts ...Opt) error {
	return NewError(err, err.Error(), http.StatusUnprocessableEntity, opts...)
}

// Unavailable marks a failure the client may retry as is.
func Unavailable(err error, opts ...Opt) error {
	return NewError(err, "the service is temporarily unavailable, please retry", http.StatusServiceUnavailable, opts...)
}

func TooManyRequests(err error, opts ...Opt) error {
	return NewError(err, "too many requests", http.StatusTooManyRequests, opts...)
}

func InternalError(err error, opts ...Opt) error {
	return NewError(err, "the server encountered a problem and could not process your request", http.StatusInternalServerError, opts...)
}
