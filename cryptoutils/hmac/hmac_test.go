package hmac

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHMAC_EmptyKey(t *testing.T) {
	h, err := NewHMAC(nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Nil(t, h)
}

func TestHMAC_Sign(t *testing.T) {
	key := []byte("state-key")
	message := []byte("abc123:/dashboard")

	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	h, err := NewHMAC(key)
	require.NoError(t, err)

	got, err := h.Sign(message)
	require.NoError(t, err)
	assert.Equal(t, expected, got)
	assert.NotContains(t, got, "=")
}

func TestHMAC_SignEmptyMessage(t *testing.T) {
	h, err := NewHMAC([]byte("k"))
	require.NoError(t, err)

	_, err = h.Sign(nil)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestHMAC_Verify(t *testing.T) {
	signer, err := NewHMAC([]byte("state-key"))
	require.NoError(t, err)
	other, err := NewHMAC([]byte("other-key"))
	require.NoError(t, err)

	message := []byte("abc123:/dashboard")
	signature, err := signer.Sign(message)
	require.NoError(t, err)

	tests := []struct {
		name      string
		verifier  *HMAC
		message   []byte
		signature string
		wantErr   error
	}{
		{"valid", signer, message, signature, nil},
		{"tampered message", signer, []byte("abc123:https://evil.example"), signature, ErrInvalidSignature},
		{"wrong key", other, message, signature, ErrInvalidSignature},
		{"empty signature", signer, message, "", ErrInvalidSignature},
		{"empty message", signer, nil, signature, ErrInvalidMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.verifier.Verify(tt.message, tt.signature)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
