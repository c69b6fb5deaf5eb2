package authclient

import (
	"encoding/json"

	goerrors "github.com/goliatone/go-errors"
)

// Persisted storage keys. The canonical copy holds the raw token with no
// scheme prefix; the bearer copy keeps a "Bearer "-prefixed duplicate for
// external readers that expect a ready-to-send header value.
const (
	KeyToken       = "auth.token"
	KeyBearerToken = "auth.token.bearer"
	KeyProfile     = "auth.profile"
)

// TokenStore reads and writes session artifacts to a Storage. Pure data
// access: no decoding, no network, no policy beyond representation
// normalization on write.
type TokenStore struct {
	storage Storage
}

// NewTokenStore creates a store over the given storage
func NewTokenStore(storage Storage) *TokenStore {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &TokenStore{storage: storage}
}

// Storage exposes the backing storage, shared with the reconciler.
func (s *TokenStore) Storage() Storage {
	return s.storage
}

// SaveToken normalizes the token and writes both persisted representations.
// Saving an empty token clears instead.
func (s *TokenStore) SaveToken(token string) error {
	canonical := NormalizeToken(token)
	if canonical == "" {
		return s.Clear()
	}

	if err := s.storage.Set(KeyToken, canonical); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist token")
	}
	if err := s.storage.Set(KeyBearerToken, PrefixToken(canonical)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist bearer token copy")
	}
	return nil
}

// LoadToken returns the canonical token. It tolerates either representation
// being the only one present and always hands back the unprefixed form.
func (s *TokenStore) LoadToken() (string, bool) {
	if v, ok := s.storage.Get(KeyToken); ok && NormalizeToken(v) != "" {
		return NormalizeToken(v), true
	}
	if v, ok := s.storage.Get(KeyBearerToken); ok && NormalizeToken(v) != "" {
		return NormalizeToken(v), true
	}
	return "", false
}

// SaveProfile caches the user profile as JSON.
func (s *TokenStore) SaveProfile(profile *UserProfile) error {
	if profile == nil {
		return s.storage.Delete(KeyProfile)
	}

	b, err := json.Marshal(profile)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode user profile")
	}
	if err := s.storage.Set(KeyProfile, string(b)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist user profile")
	}
	return nil
}

// LoadProfile reads the cached profile, if any.
func (s *TokenStore) LoadProfile() (*UserProfile, bool) {
	v, ok := s.storage.Get(KeyProfile)
	if !ok || v == "" {
		return nil, false
	}

	profile := &UserProfile{}
	if err := json.Unmarshal([]byte(v), profile); err != nil {
		return nil, false
	}
	return profile, true
}

// Clear removes every persisted session artifact. Idempotent.
func (s *TokenStore) Clear() error {
	var firstErr error
	for _, key := range []string{KeyToken, KeyBearerToken, KeyProfile} {
		if err := s.storage.Delete(key); err != nil && firstErr == nil {
			firstErr = goerrors.Wrap(err, goerrors.CategoryOperation, "failed to clear session storage")
		}
	}
	return firstErr
}
