package garden

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/goliatone/go-errors"
)

const defaultKeyFetchTimeout = 10 * time.Second

// KeySet caches the identity provider's published signing keys, keyed by
// key ID, for the lifetime of the process.
//
// The cache is an immutable map behind an atomic pointer: a miss fetches the
// full key set once and replaces the map wholesale. Concurrent misses may
// race and fetch twice; the refetch is idempotent and the last writer wins,
// so no lock is held across the network call.
type KeySet struct {
	jwksURL string
	client  *http.Client
	logger  Logger
	keys    atomic.Pointer[map[string]any]
}

// KeySetOption mutates a KeySet during construction.
type KeySetOption func(*KeySet)

// WithKeySetHTTPClient overrides the HTTP client used to fetch the key set.
func WithKeySetHTTPClient(client *http.Client) KeySetOption {
	return func(k *KeySet) {
		if client != nil {
			k.client = client
		}
	}
}

// WithKeySetLogger overrides the KeySet logger.
func WithKeySetLogger(logger Logger) KeySetOption {
	return func(k *KeySet) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// NewKeySet creates a KeySet for the given JWKS endpoint. The endpoint is
// usually derived from the issuer: <issuer>/.well-known/jwks.json.
func NewKeySet(jwksURL string, opts ...KeySetOption) *KeySet {
	k := &KeySet{
		jwksURL: strings.TrimSpace(jwksURL),
		client:  &http.Client{Timeout: defaultKeyFetchTimeout},
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(k)
		}
	}

	return k
}

// JWKSEndpointForIssuer returns the conventional key set URL for an issuer.
func JWKSEndpointForIssuer(issuer string) string {
	return strings.TrimSuffix(strings.TrimSpace(issuer), "/") + "/.well-known/jwks.json"
}

// Resolve returns the public key that matches keyID. A cache hit performs no
// I/O; a miss refetches the full key set and repopulates the cache before
// deciding the key is unknown.
func (k *KeySet) Resolve(ctx context.Context, keyID string) (any, error) {
	if keys := k.keys.Load(); keys != nil {
		if pub, ok := (*keys)[keyID]; ok {
			return pub, nil
		}
	}

	keys, err := k.refresh(ctx)
	if err != nil {
		return nil, err
	}

	if pub, ok := keys[keyID]; ok {
		return pub, nil
	}

	return nil, ErrKeyNotFound.Clone().WithMetadata(map[string]any{
		"kid": keyID,
	})
}

// Invalidate drops the cached key set so the next Resolve refetches it.
func (k *KeySet) Invalidate() {
	k.keys.Store(nil)
}

func (k *KeySet) refresh(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.jwksURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, ErrKeyFetch.Category, ErrKeyFetch.Message).
			WithTextCode(ErrKeyFetch.TextCode).
			WithCode(ErrKeyFetch.Code)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		k.logger.Error("KeySet fetch failed", "url", k.jwksURL, "error", err)
		return nil, errors.Wrap(err, ErrKeyFetch.Category, ErrKeyFetch.Message).
			WithTextCode(ErrKeyFetch.TextCode).
			WithCode(ErrKeyFetch.Code)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, ErrKeyFetch.Category, ErrKeyFetch.Message).
			WithTextCode(ErrKeyFetch.TextCode).
			WithCode(ErrKeyFetch.Code)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, ErrKeyFetch.Clone().WithMetadata(map[string]any{
			"status": resp.StatusCode,
		})
	}

	jwks, err := keyfunc.NewJSON(json.RawMessage(body))
	if err != nil {
		return nil, errors.Wrap(err, ErrKeyFetch.Category, "malformed key set document").
			WithTextCode(ErrKeyFetch.TextCode).
			WithCode(ErrKeyFetch.Code)
	}

	keys := jwks.ReadOnlyKeys()
	k.keys.Store(&keys)

	k.logger.Debug("KeySet refreshed", "keys", len(keys))

	return keys, nil
}
