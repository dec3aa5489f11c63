// Package ai provides the text-generation stack: provider adapters, the
// failover router, structured-output repair, and the deterministic local
// engine that keeps the simulation functional with zero external providers.
package ai

import (
	"errors"
	"fmt"
)

// ErrProviderExhausted is returned by an adapter when every configured model
// variant failed. The router treats it as a signal to move to the next
// credentialed instance.
var ErrProviderExhausted = errors.New("all model variants exhausted")

// AuthError marks a rejected credential. It is non-retryable for the
// credential that produced it: a bad key will fail on every model variant, so
// the adapter aborts its variant walk immediately.
type AuthError struct {
	Family string
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed (status %d)", e.Family, e.Status)
}

// IsAuthError reports whether err is (or wraps) a credential rejection.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// MalformedOutputError indicates that structured-output repair could not
// recover a well-formed value from the model's raw text. The raw text is
// carried for diagnostics only and is never shown to the end user.
type MalformedOutputError struct {
	Raw string
}

func (e *MalformedOutputError) Error() string {
	return "malformed structured output"
}
