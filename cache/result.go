package cache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNilCreator is returned when ResolveBatch is called without a creator.
var ErrNilCreator = errors.New("cache: nil creator")

// ErrCreatorPanic is the outcome error of a key whose creator panicked.
var ErrCreatorPanic = errors.New("cache: creator panicked")

// Source tells which step of a resolution produced a key's outcome.
type Source int

const (
	// FromFailed means the key could not be resolved; Outcome.Err says why.
	FromFailed Source = iota
	// FromMemory means the key was a live memory tier hit.
	FromMemory
	// FromDurable means the key was found in the durable store and promoted.
	FromDurable
	// FromCreated means the creator produced the value during this call.
	FromCreated
	// FromRecheck means the creator failed but the final durable re-check
	// found a value written by a concurrent resolution.
	FromRecheck
)

func (s Source) String() string {
	switch s {
	case FromMemory:
		return "memory"
	case FromDurable:
		return "durable"
	case FromCreated:
		return "created"
	case FromRecheck:
		return "recheck"
	default:
		return "failed"
	}
}

// Outcome is the result of resolving one key.
type Outcome[V any] struct {
	Value  V
	Source Source
	Err    error
}

// OK reports whether the key was resolved.
func (o Outcome[V]) OK() bool { return o.Source != FromFailed }

// Result maps every distinct requested key to its outcome.
type Result[V any] map[string]Outcome[V]

// Values returns only the resolved keys and their values.
func (r Result[V]) Values() map[string]V {
	out := make(map[string]V, len(r))
	for k, o := range r {
		if o.OK() {
			out[k] = o.Value
		}
	}
	return out
}

// Failed returns the error of every unresolved key.
func (r Result[V]) Failed() map[string]error {
	out := make(map[string]error)
	for k, o := range r {
		if !o.OK() {
			out[k] = o.Err
		}
	}
	return out
}

// Mode selects how ResolveBatch reports per-key failures.
type Mode int

const (
	// BestEffort returns a nil error when only individual keys failed. The
	// failures are still visible in the Result.
	BestEffort Mode = iota
	// Strict additionally returns a *BatchError when any key failed.
	Strict
)

// BatchError reports the keys a strict resolution could not resolve.
type BatchError struct {
	Namespace string
	Keys      map[string]error
}

func (e *BatchError) Error() string {
	keys := make([]string, 0, len(e.Keys))
	for k := range e.Keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("cache: %s: %d key(s) unresolved: %s", e.Namespace, len(keys), strings.Join(keys, ", "))
}

// Unwrap exposes the per-key errors to errors.Is and errors.As.
func (e *BatchError) Unwrap() error {
	errs := make([]error, 0, len(e.Keys))
	for k, err := range e.Keys {
		errs = append(errs, fmt.Errorf("%s: %w", k, err))
	}
	return errors.Join(errs...)
}
