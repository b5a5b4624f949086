package auth

import (
	"sync/atomic"
)

// KeyPool is an immutable snapshot of the signing key and every key a
// token may currently be validated against. Rotation builds a new pool.
type KeyPool struct {
	signing    *SecurityKey
	validation []SecurityKey
}

// NewKeyPool creates a pool. signing may be nil for validate only services.
func NewKeyPool(signing *SecurityKey, validation ...SecurityKey) (*KeyPool, error) {
	if signing != nil && !signing.CanSign() {
		return nil, failure(ErrInvalidConfiguration, "signing key carries no signing material", nil)
	}

	if len(validation) == 0 {
		return nil, failure(ErrInvalidConfiguration, "key pool needs at least one validation key", nil)
	}

	pool := &KeyPool{
		validation: append([]SecurityKey(nil), validation...),
	}
	if signing != nil {
		key := *signing
		pool.signing = &key
	}

	return pool, nil
}

// KeyPoolFromConfigs builds the pool of the current key generation followed
// by retired generations still accepted for validation. The current
// generation signs when it has signing material.
func KeyPoolFromConfigs(current KeyConfig, retired ...KeyConfig) (*KeyPool, error) {
	var signing *SecurityKey

	builder := NewKeyBuilder(current)
	if !current.UseAsymmetricCrypto() || current.PrivateKey != "" {
		key, err := builder.BuildSigningKey()
		if err != nil {
			return nil, err
		}
		signing = &key
	}

	validation := make([]SecurityKey, 0, len(retired)+1)
	for _, cfg := range append([]KeyConfig{current}, retired...) {
		key, err := NewKeyBuilder(cfg).BuildValidationSigningKey()
		if err != nil {
			return nil, err
		}
		validation = append(validation, key)
	}

	return NewKeyPool(signing, validation...)
}

// SigningKey returns the key new tokens are signed with
func (p *KeyPool) SigningKey() (SecurityKey, bool) {
	if p == nil || p.signing == nil {
		return SecurityKey{}, false
	}
	return *p.signing, true
}

// ValidationKeys returns a copy of the validation keys
func (p *KeyPool) ValidationKeys() []SecurityKey {
	if p == nil {
		return nil
	}
	return append([]SecurityKey(nil), p.validation...)
}

// Resolve returns the validation keys a token with kid may verify against
func (p *KeyPool) Resolve(kid string) []SecurityKey {
	if p == nil {
		return nil
	}
	return ResolveKeysForKid(p.validation, kid)
}

// ResolveKeysForKid selects the candidate keys for a token kid header. An
// empty kid returns the whole pool; otherwise every key sharing the id is
// returned, which may be none.
func ResolveKeysForKid(pool []SecurityKey, kid string) []SecurityKey {
	if kid == "" {
		return pool
	}

	var out []SecurityKey
	for _, key := range pool {
		if key.KeyID == kid {
			out = append(out, key)
		}
	}
	return out
}

// KeyRing publishes the current KeyPool to concurrent readers
type KeyRing struct {
	current atomic.Pointer[KeyPool]
}

func NewKeyRing(pool *KeyPool) (*KeyRing, error) {
	ring := &KeyRing{}
	if err := ring.Rotate(pool); err != nil {
		return nil, err
	}
	return ring, nil
}

// Current returns the active pool
func (r *KeyRing) Current() *KeyPool {
	return r.current.Load()
}

// Rotate publishes pool. Readers holding the previous pool keep using it
// until they load again.
func (r *KeyRing) Rotate(pool *KeyPool) error {
	if pool == nil {
		return failure(ErrInvalidConfiguration, "key pool is nil", nil)
	}
	r.current.Store(pool)
	return nil
}
