package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error wraps a Firestore failure with a coarse classification that callers
// can branch on without importing gRPC status codes.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.op == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("firestore: %s: %v", e.op, e.err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// ClassifyError wraps err with a classification derived from its gRPC status
// code. Already-classified errors pass through unchanged.
func ClassifyError(err error) error {
	return classify("", err)
}

// WrapError annotates err with the operation name and classification.
func WrapError(op string, err error) error {
	return classify(op, err)
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}

	classified := &Error{op: op, err: err}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		classified.unavailable = true
	default:
		if st, ok := status.FromError(err); ok {
			switch st.Code() {
			case codes.NotFound:
				classified.notFound = true
			case codes.AlreadyExists, codes.Aborted, codes.FailedPrecondition:
				classified.conflict = true
			case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
				classified.unavailable = true
			}
		}
	}
	return classified
}

// IsNotFound reports whether err represents a missing document.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.notFound
}

// IsConflict reports whether err represents a contention or precondition
// failure.
func IsConflict(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.conflict
}

// IsUnavailable reports whether err represents a transient backend failure
// worth retrying.
func IsUnavailable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.unavailable
}
