package ido

import (
	"errors"
	"fmt"
)

// ErrorKind classifies journey errors reported by the service or the client.
type ErrorKind string

const (
	ErrNotInitialized         ErrorKind = "not_initialized"
	ErrNoActiveJourney        ErrorKind = "no_active_journey"
	ErrNetwork                ErrorKind = "network_error"
	ErrClientResponseNotValid ErrorKind = "client_response_not_valid"
	ErrServer                 ErrorKind = "server_error"
	ErrInvalidStateToken      ErrorKind = "invalid_state_token"
	ErrInvalidCredentials     ErrorKind = "invalid_credentials"
	ErrUnknown                ErrorKind = "unknown"
)

// ParseErrorKind maps a wire error code to an ErrorKind.
func ParseErrorKind(code string) ErrorKind {
	switch k := ErrorKind(code); k {
	case ErrNotInitialized, ErrNoActiveJourney, ErrNetwork, ErrClientResponseNotValid,
		ErrServer, ErrInvalidStateToken, ErrInvalidCredentials:
		return k
	}
	return ErrUnknown
}

// JourneyError is a failure reported for a start or submit call.
type JourneyError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *JourneyError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("journey error: %s", e.Kind)
	}
	return fmt.Sprintf("journey error: %s: %s", e.Kind, e.Message)
}

func (e *JourneyError) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err, or ErrUnknown.
func KindOf(err error) ErrorKind {
	var je *JourneyError
	if errors.As(err, &je) {
		return je.Kind
	}
	return ErrUnknown
}
