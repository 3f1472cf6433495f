package garden_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	garden "github.com/goliatone/garden-planner"
)

type signingKey struct {
	kid string
	key *rsa.PrivateKey
}

func newSigningKey(t *testing.T, kid string) signingKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return signingKey{kid: kid, key: key}
}

func (s signingKey) jwk() map[string]any {
	return map[string]any{
		"kty": "RSA",
		"kid": s.kid,
		"use": "sig",
		"alg": "RS256",
		"n":   base64.RawURLEncoding.EncodeToString(s.key.PublicKey.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(s.key.PublicKey.E)).Bytes()),
	}
}

// sign produces an RS256 token with the key's kid in the header.
func (s signingKey) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.kid
	signed, err := token.SignedString(s.key)
	require.NoError(t, err)
	return signed
}

// jwksServer serves the given keys as a JWKS document and counts fetches.
func jwksServer(t *testing.T, keys ...signingKey) (*httptest.Server, *int64) {
	t.Helper()

	var fetches int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&fetches, 1)

		set := make([]map[string]any, 0, len(keys))
		for _, key := range keys {
			set = append(set, key.jwk())
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"keys": set})
	}))
	t.Cleanup(srv.Close)

	return srv, &fetches
}

func validClaims(issuer, subject string) jwt.MapClaims {
	return jwt.MapClaims{
		"iss": issuer,
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Add(-time.Minute).Unix(),
	}
}

type testConfig struct {
	issuer   string
	audience string
	jwks     string
	scheme   string
	ctxKey   string
	strategy string
}

func (c testConfig) GetIssuer() string           { return c.issuer }
func (c testConfig) GetAudience() string         { return c.audience }
func (c testConfig) GetJWKSEndpoint() string     { return c.jwks }
func (c testConfig) GetAuthScheme() string       { return c.scheme }
func (c testConfig) GetContextKey() string       { return c.ctxKey }
func (c testConfig) GetProviderStrategy() string { return c.strategy }

var dbSeq int64

// setupDB creates an isolated in-memory database with the full schema.
func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	err = db.ResetModel(ctx,
		(*garden.User)(nil),
		(*garden.Garden)(nil),
		(*garden.GardenElement)(nil),
		(*garden.GardenNote)(nil),
		(*garden.GardenRecommendation)(nil),
	)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return db
}

type resolverStub struct {
	calls   int64
	profile *garden.Profile
	err     error
}

func (r *resolverStub) ResolveProfile(ctx context.Context, subjectID string, hints garden.ProfileHints) (*garden.Profile, error) {
	atomic.AddInt64(&r.calls, 1)
	if r.err != nil {
		return nil, r.err
	}
	return r.profile, nil
}
