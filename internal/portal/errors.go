package portal

import (
	"errors"
	"fmt"
)

var (
	// ErrBlocked means the portal's anti-automation defense rejected the
	// request. No further requests should be made for the same subscriber
	// until the next cycle.
	ErrBlocked = errors.New("portal blocked the request")

	// ErrMalformedResponse means a success response had an unexpected shape.
	// It is always reported wrapped in an *UpstreamError.
	ErrMalformedResponse = errors.New("malformed portal response")
)

// UpstreamError is any non-block failure: transport, timeout, unexpected
// status or an undecodable body.
type UpstreamError struct {
	Course string
	Status int // 0 when no response was received
	Err    error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("portal %s: status %d: %v", e.Course, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("portal %s: status %d", e.Course, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("portal %s: %v", e.Course, e.Err)
	default:
		return fmt.Sprintf("portal %s: upstream error", e.Course)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }
