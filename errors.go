package garden

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeTokenMalformed    = "auth_token_malformed"
	TextCodeInvalidSignature  = "auth_invalid_signature"
	TextCodeTokenExpired      = "auth_token_expired"
	TextCodeInvalidIssuer     = "auth_invalid_issuer"
	TextCodeInvalidAudience   = "auth_invalid_audience"
	TextCodeKeyFetch          = "auth_key_fetch_failed"
	TextCodeKeyNotFound       = "auth_key_not_found"
	TextCodeKeyResolution     = "auth_key_resolution_failed"
	TextCodeMissingProfile    = "identity_missing_profile"
	TextCodeUpstreamProvision = "identity_upstream_provision_failed"
	TextCodeProviderConfig    = "identity_provider_misconfigured"
	TextCodeStorage           = "identity_storage_error"
	TextCodeUnauthenticated   = "auth_unauthenticated"
)

// ErrTokenMalformed is returned when a token cannot be parsed at all.
var ErrTokenMalformed = errors.New("malformed token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidSignature is returned when the signature does not verify or the
// token declares a signing algorithm other than the provider's.
var ErrInvalidSignature = errors.New("invalid token signature", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when the token expiry is in the past.
var ErrTokenExpired = errors.New("token has expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidIssuer is returned when the issuer claim does not match the
// configured issuer.
var ErrInvalidIssuer = errors.New("invalid token issuer", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidIssuer).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidAudience is returned when an expected audience is configured and
// the token's audience does not match it.
var ErrInvalidAudience = errors.New("invalid token audience", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidAudience).
	WithCode(errors.CodeUnauthorized)

// ErrKeyFetch is returned when the provider key set cannot be fetched or
// decoded. It is fatal to the current validation attempt, so it carries the
// auth category rather than the external one.
var ErrKeyFetch = errors.New("unable to fetch provider key set", errors.CategoryAuth).
	WithTextCode(TextCodeKeyFetch).
	WithCode(errors.CodeUnauthorized)

// ErrKeyNotFound is returned when a key ID is absent from a freshly fetched
// key set.
var ErrKeyNotFound = errors.New("signing key not found in key set", errors.CategoryAuth).
	WithTextCode(TextCodeKeyNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrKeyResolution wraps KeySet failures surfaced through the validator.
var ErrKeyResolution = errors.New("unable to resolve signing key", errors.CategoryAuth).
	WithTextCode(TextCodeKeyResolution).
	WithCode(errors.CodeUnauthorized)

// ErrMissingProfile is returned when profile data required for provisioning
// (email, display name) cannot be obtained.
var ErrMissingProfile = errors.New("missing required profile data", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingProfile).
	WithCode(errors.CodeBadRequest)

// ErrUpstreamProvision is returned when the identity provider's user API
// fails during just-in-time provisioning.
var ErrUpstreamProvision = errors.New("identity provider request failed", errors.CategoryExternal).
	WithTextCode(TextCodeUpstreamProvision).
	WithCode(http.StatusBadGateway)

// ErrProviderConfig is returned when the deployment lacks the credentials or
// settings needed to reach the identity provider. This is a server fault,
// never the caller's.
var ErrProviderConfig = errors.New("identity provider not configured", errors.CategoryInternal).
	WithTextCode(TextCodeProviderConfig).
	WithCode(errors.CodeInternal)

// ErrStorage is returned for user-store failures during reconciliation.
var ErrStorage = errors.New("identity storage error", errors.CategoryInternal).
	WithTextCode(TextCodeStorage).
	WithCode(errors.CodeInternal)

// ErrUnauthenticated is the umbrella failure for the mandatory auth path.
var ErrUnauthenticated = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// IsAuthError reports whether err belongs to the auth category, as opposed
// to provider misconfiguration or storage faults that should not surface as
// a 401.
func IsAuthError(err error) bool {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		return false
	}
	return rich.Category == errors.CategoryAuth
}

// IsUniqueViolation detects duplicate-row constraint failures across the
// drivers we ship (modernc/mattn sqlite, pgdriver).
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
