package sso

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"federation/cache"
	"federation/cryptoutils/hmac"
)

// StateStore keeps issued OAuth2 state tokens until they are consumed or
// expire. Consume must succeed at most once per token.
type StateStore interface {
	Save(ctx context.Context, state string, ttl time.Duration) error
	Consume(ctx context.Context, state string) (bool, error)
}

// MemoryStateStore is a process-local StateStore.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

// NewMemoryStateStore creates a new MemoryStateStore
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		states: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Save stores a state token with an expiration time
func (s *MemoryStateStore) Save(_ context.Context, state string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.states {
		if now.After(exp) {
			delete(s.states, k)
		}
	}
	s.states[state] = now.Add(ttl)
	return nil
}

// Consume checks that a state token is known and not expired, and removes it
func (s *MemoryStateStore) Consume(_ context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiration, exists := s.states[state]
	if !exists {
		return false, nil
	}
	delete(s.states, state)
	return !s.now().After(expiration), nil
}

// CacheStateStore keeps state tokens in a shared cache so any instance
// behind a load balancer can complete the callback.
type CacheStateStore struct {
	cache cache.Cache
}

// NewCacheStateStore creates a state store backed by c
func NewCacheStateStore(c cache.Cache) *CacheStateStore {
	return &CacheStateStore{cache: c}
}

func stateKey(state string) string { return "sso:state:" + state }

// Save stores the state with the cache's native expiry
func (s *CacheStateStore) Save(ctx context.Context, state string, ttl time.Duration) error {
	return s.cache.Set(ctx, stateKey(state), time.Now().Add(ttl).Unix(), ttl)
}

// Consume takes the state out of the cache
func (s *CacheStateStore) Consume(ctx context.Context, state string) (bool, error) {
	var expiresAt int64
	err := s.cache.Take(ctx, stateKey(state), &expiresAt)
	if errors.Is(err, cache.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return time.Now().Unix() <= expiresAt, nil
}

// StateCodec binds a state token to its post-login redirect URL and signs
// both, so the redirect cannot be swapped on the way back from the provider.
type StateCodec struct {
	signer hmac.HMACer
}

// NewStateCodec creates a codec signing with secret
func NewStateCodec(secret []byte) (*StateCodec, error) {
	signer, err := hmac.NewHMAC(secret)
	if err != nil {
		return nil, err
	}
	return &StateCodec{signer: signer}, nil
}

// Encode returns payload.signature where payload is the base64url encoding
// of "state:redirectURL".
func (c *StateCodec) Encode(state, redirectURL string) (string, error) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(state + ":" + redirectURL))
	sig, err := c.signer.Sign([]byte(payload))
	if err != nil {
		return "", err
	}
	return payload + "." + sig, nil
}

// Decode verifies the signature and splits the payload.
func (c *StateCodec) Decode(encoded string) (state, redirectURL string, err error) {
	payload, sig, ok := strings.Cut(encoded, ".")
	if !ok {
		return "", "", fmt.Errorf("%w: unsigned state", ErrInvalidState)
	}
	if err := c.signer.Verify([]byte(payload), sig); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	state, redirectURL, _ = strings.Cut(string(raw), ":")
	return state, redirectURL, nil
}
