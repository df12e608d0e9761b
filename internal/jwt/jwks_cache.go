package jwt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/slopeoasis/usergate/internal/cache"
	"github.com/slopeoasis/usergate/internal/observability/logger"
)

// KeyCache guarda las SigningKey resueltas, por kid. Las implementaciones deben
// ser seguras para uso concurrente.
type KeyCache interface {
	Get(ctx context.Context, kid string) (SigningKey, bool)
	Put(ctx context.Context, key SigningKey)
}

// KeyStore implementa KeyCache sobre un cache.Client (memory o redis).
// ttl == 0 => las claves no expiran.
type KeyStore struct {
	client cache.Client
	ttl    time.Duration
}

// NewKeyStore crea un KeyStore. Con client nil usa un cache en memoria.
func NewKeyStore(client cache.Client, ttl time.Duration) *KeyStore {
	if client == nil {
		client = cache.NewMemory("")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &KeyStore{client: client, ttl: ttl}
}

func keyStoreKey(kid string) string { return "jwks:" + kid }

func (s *KeyStore) Get(ctx context.Context, kid string) (SigningKey, bool) {
	raw, err := s.client.Get(ctx, keyStoreKey(kid))
	if err != nil {
		if !cache.IsNotFound(err) {
			logger.From(ctx).Warn("key cache read failed", logger.Op("KeyStore.Get"), logger.KeyID(kid), logger.Err(err))
		}
		return SigningKey{}, false
	}
	var entry jwk
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return SigningKey{}, false
	}
	key, err := entry.signingKey()
	if err != nil || key.KeyID != kid {
		return SigningKey{}, false
	}
	return key, true
}

func (s *KeyStore) Put(ctx context.Context, key SigningKey) {
	entry := jwk{
		Kty: "RSA",
		Kid: key.KeyID,
		N:   encodeSegment(key.Modulus.Bytes()),
		E:   encodeSegment(bigEndian(key.Exponent)),
	}
	b, _ := json.Marshal(entry)
	if err := s.client.Set(ctx, keyStoreKey(key.KeyID), string(b), s.ttl); err != nil {
		logger.From(ctx).Warn("key cache write failed", logger.Op("KeyStore.Put"), logger.KeyID(key.KeyID), logger.Err(err))
	}
}

func bigEndian(v int) []byte {
	var out []byte
	for v > 0 {
		out = append([]byte{byte(v & 0xff)}, out...)
		v >>= 8
	}
	return out
}
