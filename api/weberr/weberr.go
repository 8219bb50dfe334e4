package weberr

import "errors"

// Opt decorates an error with extra behaviour understood by the error
// middleware.
type Opt func(error) error

func Wrap(err error, opts ...Opt) error {
	for _, opt := range opts {
		err = opt(err)
	}
	return err
}

// WithResponse makes the middleware answer with body and status instead of
// a generic 500.
func WithResponse(body interface{}, status int) Opt {
	return func(err error) error {
		return &responseError{error: err, body: body, status: status}
	}
}

// WithFields attaches structured log fields to the error.
func WithFields(fields map[string]interface{}) Opt {
	return func(err error) error {
		return &fieldsError{error: err, fields: fields}
	}
}

type responder interface {
	Response() (body interface{}, status int)
}

func Response(err error) (body interface{}, status int, ok bool) {
	var re responder
	if errors.As(err, &re) {
		body, code := re.Response()
		return body, code, true
	}
	return nil, 0, false
}

type fielder interface {
	Fields() map[string]interface{}
}

// Fields merges the fields of every decorated layer of err, outer layers
// winning on conflicts.
func Fields(err error) (fields map[string]interface{}, ok bool) {
	for err != nil {
		if fe, is := err.(fielder); is {
			if fields == nil {
				fields = make(map[string]interface{})
			}
			for k, v := range fe.Fields() {
				if _, set := fields[k]; !set {
					fields[k] = v
				}
			}
		}
		err = errors.Unwrap(err)
	}
	return fields, fields != nil
}

type responseError struct {
	error
	body   interface{}
	status int
}

func (e *responseError) Response() (interface{}, int) { return e.body, e.status }

func (e *responseError) Unwrap() error { return e.error }

type fieldsError struct {
	error
	fields map[string]interface{}
}

func (e *fieldsError) Fields() map[string]interface{} { return e.fields }

func (e *fieldsError) Unwrap() error { return e.error }
