package models

import (
	"errors"
	"fmt"
)

// ErrAllAgentsFailed is returned by a deep review when every specialist call
// failed; no synthesis is attempted in that case.
var ErrAllAgentsFailed = errors.New("all specialist agents disconnected")

// TransportError wraps a network or HTTP failure talking to an external
// service (hosting platform or review engine).
type TransportError struct {
	Service string
	Status  int // HTTP status, 0 when the request never completed
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: request failed (status %d): %v", e.Service, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: request failed: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError indicates a missing or rejected token, detected via HTTP 401/403.
type AuthError struct {
	Service string
	Status  int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed (status %d): check the configured token", e.Service, e.Status)
}

// MalformedResponseError indicates the engine answered, but not in the shape
// the caller asked for (non-JSON, missing candidates, wrong report structure).
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed engine response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed engine response: %s", e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ValidationError reports invalid user input. It is raised before any
// network call is issued.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// StoreError wraps a history persistence failure. Unreadable or corrupt
// history is NOT a StoreError: loads degrade to an empty history instead.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("history store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
