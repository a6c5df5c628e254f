// Package errors defines the availability engine's error taxonomy. Only
// IntegrationMissing and AuthError are meant to reach a user as actionable
// messages; everything else either degrades to partial data upstream or maps
// to a plain request error at the API edge.
package errors

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories when no row matches.
var ErrNotFound = errors.New("not found")

// ErrIntegrationMissing signals that no credential exists for the requested
// (user, provider). Non-retryable; the caller should prompt a connection.
var ErrIntegrationMissing = errors.New("calendar integration not connected")

// ErrInterruptedFlow signals that the pending authorization record for an
// OAuth callback is missing or expired, so the code exchange cannot complete.
var ErrInterruptedFlow = errors.New("authorization flow interrupted or expired")

// ErrUnsupportedProvider signals a provider tag with no registered adapter.
var ErrUnsupportedProvider = errors.New("calendar provider not supported")

// AuthError means the provider rejected our credential: a refresh was
// declined or an API call returned 401. The stored credential is left in
// place so the UI can offer a "reconnect" affordance.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authorization rejected: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError wraps a provider rejection.
func NewAuthError(provider string, err error) *AuthError {
	return &AuthError{Provider: provider, Err: err}
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// TransientFetchError is a network failure, 5xx, or timeout while talking to
// a provider. Within one reconciliation it degrades to "zero events from
// this calendar"; there is no internal retry loop.
type TransientFetchError struct {
	Provider string
	Err      error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("transient %s fetch failure: %v", e.Provider, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// NewTransientFetchError wraps a transient provider failure.
func NewTransientFetchError(provider string, err error) *TransientFetchError {
	return &TransientFetchError{Provider: provider, Err: err}
}

// IsTransientFetchError reports whether err is (or wraps) a transient fetch failure.
func IsTransientFetchError(err error) bool {
	var te *TransientFetchError
	return errors.As(err, &te)
}

// ValidationError is malformed caller input. Surfaced directly, never
// silently corrected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError describes a rejected input field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PersistenceError means the store was unavailable. Hard failure for writes;
// the widget tracker alone swallows it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError wraps a store failure with the failing operation.
func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// IsPersistenceError reports whether err is (or wraps) a PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// ProviderError carries the upstream OAuth error payload from a failed code
// exchange or refresh, in the standard error/error_description shape.
type ProviderError struct {
	Provider    string `json:"provider"`
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Description)
}

// NewProviderError builds a ProviderError from an upstream OAuth response.
func NewProviderError(provider, code, description string) *ProviderError {
	return &ProviderError{Provider: provider, Code: code, Description: description}
}
