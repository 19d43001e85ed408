package inference

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNotFound     = errors.New("tensor not found")
	ErrTypeMismatch = errors.New("tensor type mismatch")
)

// FieldError reports a failure reading or writing a named tensor.
// Err is ErrNotFound or ErrTypeMismatch.
type FieldError struct {
	Field  string
	Err    error
	Detail string
}

func (e *FieldError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: %q", e.Err, e.Field)
	}
	return fmt.Sprintf("%v: %q: %s", e.Err, e.Field, e.Detail)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// GRPCStatus lets status.Code and the grpc server report field errors with a proper code.
func (e *FieldError) GRPCStatus() *status.Status {
	code := codes.InvalidArgument
	if errors.Is(e.Err, ErrNotFound) {
		code = codes.NotFound
	}
	return status.New(code, e.Error())
}

func notFound(field string) error {
	return &FieldError{Field: field, Err: ErrNotFound}
}

func typeMismatch(field string, format string, args ...any) error {
	return &FieldError{Field: field, Err: ErrTypeMismatch, Detail: fmt.Sprintf(format, args...)}
}

// IsFieldError is true if err (or anything it wraps) is a *FieldError.
func IsFieldError(err error) bool {
	var fieldErr *FieldError
	return errors.As(err, &fieldErr)
}
