package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by a single attempt when the upstream accepted
	// the request but has not produced the payload yet. Fetch polls on it and
	// never returns it to callers.
	ErrNotReady = errors.New("fetch: upstream not ready")

	// ErrUnavailable matches the error returned when the upstream stayed
	// not-ready for the whole retry budget.
	ErrUnavailable = errors.New("fetch: upstream unavailable")

	// ErrCircuitOpen is returned without contacting the upstream while the
	// breaker is open.
	ErrCircuitOpen = errors.New("fetch: circuit open")

	// ErrBodyTooLarge is returned when a response exceeds the body limit.
	ErrBodyTooLarge = errors.New("fetch: response body too large")
)

// UnavailableError reports an exhausted retry budget.
type UnavailableError struct {
	URL      string
	Attempts int
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("fetch: upstream unavailable: %s not ready after %d attempts", e.URL, e.Attempts)
}

// Is makes errors.Is(err, ErrUnavailable) hold.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// StatusError reports a response status that is neither ready nor not-ready.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: %s: unexpected status %d", e.URL, e.Code)
}
