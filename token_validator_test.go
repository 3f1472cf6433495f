package garden_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	garden "github.com/goliatone/garden-planner"
)

const testIssuer = "https://tenant.example.com"

func newValidator(t *testing.T, key signingKey, cfg testConfig) *garden.TokenValidator {
	t.Helper()
	srv, _ := jwksServer(t, key)
	keys := garden.NewKeySet(srv.URL)
	if cfg.issuer == "" {
		cfg.issuer = testIssuer
	}
	return garden.NewTokenValidator(keys, cfg, nil)
}

func assertTextCode(t *testing.T, err error, code string) {
	t.Helper()
	var rich *errors.Error
	require.ErrorAs(t, err, &rich)
	assert.Equal(t, code, rich.TextCode)
}

func TestTokenValidator_ValidToken(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	validator := newValidator(t, key, testConfig{})

	token := key.sign(t, validClaims(testIssuer, "usr_123"))

	claims, err := validator.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "usr_123", claims.Subject)
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.Expiry, time.Minute)
}

func TestTokenValidator_ExpiredToken(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	validator := newValidator(t, key, testConfig{})

	claims := validClaims(testIssuer, "usr_123")
	claims["exp"] = time.Now().Add(-time.Hour).Unix()

	_, err := validator.Validate(context.Background(), key.sign(t, claims))
	require.Error(t, err)
	assertTextCode(t, err, garden.TextCodeTokenExpired)
}

func TestTokenValidator_WrongIssuer(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	validator := newValidator(t, key, testConfig{})

	_, err := validator.Validate(context.Background(), key.sign(t, validClaims("https://other.example.com", "usr_123")))
	require.Error(t, err)
	assertTextCode(t, err, garden.TextCodeInvalidIssuer)
}

func TestTokenValidator_AudienceEnforcedWhenConfigured(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	validator := newValidator(t, key, testConfig{audience: "garden-api"})

	claims := validClaims(testIssuer, "usr_123")
	claims["aud"] = "some-other-api"

	_, err := validator.Validate(context.Background(), key.sign(t, claims))
	require.Error(t, err)
	assertTextCode(t, err, garden.TextCodeInvalidAudience)
}

func TestTokenValidator_AudienceSkippedWhenUnconfigured(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	validator := newValidator(t, key, testConfig{})

	claims := validClaims(testIssuer, "usr_123")
	claims["aud"] = "whatever"

	_, err := validator.Validate(context.Background(), key.sign(t, claims))
	assert.NoError(t, err)
}

func TestTokenValidator_RejectsNonRS256(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	validator := newValidator(t, key, testConfig{})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(testIssuer, "usr_123"))
	token.Header["kid"] = "kid-1"
	signed, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = validator.Validate(context.Background(), signed)
	require.Error(t, err)
	assert.True(t, garden.IsAuthError(err))
}

func TestTokenValidator_WrongKeySignature(t *testing.T) {
	published := newSigningKey(t, "kid-1")
	impostor := newSigningKey(t, "kid-1")
	validator := newValidator(t, published, testConfig{})

	_, err := validator.Validate(context.Background(), impostor.sign(t, validClaims(testIssuer, "usr_123")))
	require.Error(t, err)
	assertTextCode(t, err, garden.TextCodeInvalidSignature)
}

func TestTokenValidator_UnknownKeyID(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	other := newSigningKey(t, "kid-2")
	validator := newValidator(t, key, testConfig{})

	_, err := validator.Validate(context.Background(), other.sign(t, validClaims(testIssuer, "usr_123")))
	require.Error(t, err)
	assertTextCode(t, err, garden.TextCodeKeyResolution)
}

func TestTokenValidator_MissingKID(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	validator := newValidator(t, key, testConfig{})

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims(testIssuer, "usr_123"))
	signed, err := token.SignedString(key.key)
	require.NoError(t, err)

	_, err = validator.Validate(context.Background(), signed)
	require.Error(t, err)
	assertTextCode(t, err, garden.TextCodeTokenMalformed)
}

func TestTokenValidator_MalformedToken(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	validator := newValidator(t, key, testConfig{})

	_, err := validator.Validate(context.Background(), "not-a-jwt")
	require.Error(t, err)
	assertTextCode(t, err, garden.TextCodeTokenMalformed)
}

func TestTokenValidator_MissingSubject(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	validator := newValidator(t, key, testConfig{})

	claims := validClaims(testIssuer, "usr_123")
	delete(claims, "sub")

	_, err := validator.Validate(context.Background(), key.sign(t, claims))
	require.Error(t, err)
	assertTextCode(t, err, garden.TextCodeTokenMalformed)
}

func TestTokenValidator_MissingExpiry(t *testing.T) {
	key := newSigningKey(t, "kid-1")
	validator := newValidator(t, key, testConfig{})

	claims := validClaims(testIssuer, "usr_123")
	delete(claims, "exp")

	_, err := validator.Validate(context.Background(), key.sign(t, claims))
	require.Error(t, err)
}
