package shared

import (
	"errors"
	"fmt"
)

// TransportError is a network level failure talking to a remote system:
// connection refused, timeout, or a response that could not be parsed.
// Operations failing with it are safe to retry.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RejectionError is a business decision by a remote system (a non-2xx
// response carrying a body). It is terminal and never retried.
type RejectionError struct {
	Op         string
	StatusCode int
	Body       []byte
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s rejected with status %d: %s", e.Op, e.StatusCode, truncate(e.Body, 256))
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRejection reports whether err is, or wraps, a RejectionError.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
