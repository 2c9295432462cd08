// Package hmac signs and verifies short messages such as OAuth2 state values
// with HMAC-SHA256. Signatures are unpadded URL-safe base64 so they can travel
// in query parameters.
package hmac

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

// Common errors returned by the package
var (
	ErrInvalidKey       = errors.New("hmac: key cannot be empty")
	ErrInvalidMessage   = errors.New("hmac: message cannot be empty")
	ErrInvalidSignature = errors.New("hmac: invalid signature")
)

// HMACer defines the interface for HMAC operations
type HMACer interface {
	// Sign creates an HMAC signature for the given message
	Sign(message []byte) (string, error)

	// Verify checks if the provided signature matches the expected HMAC for the message
	Verify(message []byte, providedSignature string) error
}

// HMAC implements the HMACer interface
type HMAC struct {
	key []byte
}

// NewHMAC creates a signer for key
func NewHMAC(key []byte) (*HMAC, error) {
	if len(key) == 0 {
		return nil, ErrInvalidKey
	}
	return &HMAC{key: key}, nil
}

// Sign creates an HMAC signature for the given message
func (h *HMAC) Sign(message []byte) (string, error) {
	if len(message) == 0 {
		return "", ErrInvalidMessage
	}

	mac := hmac.New(sha256.New, h.key)
	mac.Write(message)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks the signature in constant time.
func (h *HMAC) Verify(message []byte, providedSignature string) error {
	if len(message) == 0 {
		return ErrInvalidMessage
	}
	if providedSignature == "" {
		return ErrInvalidSignature
	}

	expected, err := h.Sign(message)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(providedSignature)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
