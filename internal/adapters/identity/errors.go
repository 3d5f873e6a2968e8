package identity

import "errors"

// Sentinel kinds for identity errors.
var (
	// ErrUnauthorizedDomain means the provider accepted the sign-in but
	// the email fails the allowlist; the session is torn down first.
	ErrUnauthorizedDomain = errors.New("email domain is not allowed for this competition")

	// ErrProvider wraps failures from the external identity service.
	ErrProvider = errors.New("identity provider request failed")
)
