package sso

import "errors"

var (
	// ErrUnknownProvider is returned when looking up a provider id or name
	// that was never registered
	ErrUnknownProvider = errors.New("sso: unknown provider")

	// ErrDuplicateProvider is returned when a provider name is registered twice
	ErrDuplicateProvider = errors.New("sso: duplicate provider")

	// ErrRegistrySealed is returned when registering after Seal
	ErrRegistrySealed = errors.New("sso: registry is sealed")

	// ErrMissingEndpoint is returned when a client is built for a provider
	// without all three endpoint URLs
	ErrMissingEndpoint = errors.New("sso: provider endpoint not configured")

	// ErrMalformedResponse is returned by the transport when a provider
	// response cannot be decoded at all. Parsers never return it.
	ErrMalformedResponse = errors.New("sso: malformed provider response")

	// ErrInvalidState is returned for unknown, expired or tampered state tokens
	ErrInvalidState = errors.New("sso: invalid or expired state")
)
