package provider

import (
	"errors"
	"fmt"
)

// AuthError means the account's credentials are bad or expired. It is
// job-fatal: the orchestrator fails the scan and never retries.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// AdapterError is a transient provider or network failure scoped to one
// region. The orchestrator records it and moves on to the next region.
type AdapterError struct {
	Provider string
	Region   string
	Err      error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter failed in %s: %v", e.Provider, e.Region, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is or wraps an AuthError
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
