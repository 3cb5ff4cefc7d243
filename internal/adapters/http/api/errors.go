package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrUnavailable  = errors.New("snapshot unavailable")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")
)

// opError records the handler operation that failed, the error kind used to
// pick the response, and the underlying cause.
type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	switch {
	case e.err == nil:
		return e.op + ": " + e.kind.Error()
	case e.kind == nil:
		return e.op + ": " + e.err.Error()
	default:
		return e.op + ": " + e.kind.Error() + ": " + e.err.Error()
	}
}

func (e *opError) Unwrap() []error {
	var errs []error
	if e.kind != nil {
		errs = append(errs, e.kind)
	}
	if e.err != nil {
		errs = append(errs, e.err)
	}
	return errs
}

// NewKind returns an error of the given kind for op.
func NewKind(op string, kind error) error {
	return &opError{op: op, kind: kind}
}

// Wrap annotates err with op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, err: err}
}

// WrapKind annotates err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &opError{op: op, kind: kind, err: err}
}
