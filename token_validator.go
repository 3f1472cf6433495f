package garden

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenClaims is the validated claim set. It exists only for the duration of
// one request's validation.
type TokenClaims struct {
	Subject  string
	Issuer   string
	Audience []string
	Expiry   time.Time
	Raw      jwt.MapClaims
}

// TokenValidator decodes and cryptographically verifies bearer tokens using
// the provider's published keys. A failed validation is a terminal rejection
// of the request; nothing here retries.
type TokenValidator struct {
	keys     *KeySet
	issuer   string
	audience string
	logger   Logger
}

// NewTokenValidator builds a validator bound to a key set and the configured
// issuer/audience. An empty audience disables the audience check, matching
// the provider's default deployment.
func NewTokenValidator(keys *KeySet, cfg Config, logger Logger) *TokenValidator {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenValidator{
		keys:     keys,
		issuer:   cfg.GetIssuer(),
		audience: cfg.GetAudience(),
		logger:   logger,
	}
}

// Validate verifies tokenString and returns its claims.
//
// Only RS256 is accepted; tokens declaring any other algorithm are rejected
// before signature verification to prevent algorithm-confusion attacks.
func (v *TokenValidator) Validate(ctx context.Context, tokenString string) (*TokenClaims, error) {
	// Structural parse first, to learn which key the token claims it was
	// signed with. Nothing is trusted yet.
	unverified, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode).
			WithCode(ErrTokenMalformed.Code)
	}

	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, ErrTokenMalformed.Clone().WithMetadata(map[string]any{
			"cause": "missing kid header",
		})
	}

	key, err := v.keys.Resolve(ctx, kid)
	if err != nil {
		return nil, errors.Wrap(err, ErrKeyResolution.Category, ErrKeyResolution.Message).
			WithTextCode(ErrKeyResolution.TextCode).
			WithCode(ErrKeyResolution.Code)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(v.issuer),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return nil, v.mapParseError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidSignature.Clone()
	}

	return claimsFromToken(claims)
}

func (v *TokenValidator) mapParseError(err error) error {
	var target *errors.Error

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		target = ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		target = ErrInvalidIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		target = ErrInvalidAudience
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		target = ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		// Wrong declared algorithm lands here with jwt/v5.
		target = ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		target = ErrTokenMalformed
	default:
		target = ErrTokenMalformed
	}

	return errors.Wrap(err, target.Category, target.Message).
		WithTextCode(target.TextCode).
		WithCode(target.Code)
}

func claimsFromToken(claims jwt.MapClaims) (*TokenClaims, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrTokenMalformed.Clone().WithMetadata(map[string]any{
			"cause": "missing sub claim",
		})
	}

	iss, _ := claims.GetIssuer()

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrTokenMalformed.Clone().WithMetadata(map[string]any{
			"cause": "missing exp claim",
		})
	}

	var audience []string
	if aud, err := claims.GetAudience(); err == nil {
		audience = aud
	}

	return &TokenClaims{
		Subject:  sub,
		Issuer:   iss,
		Audience: audience,
		Expiry:   exp.Time,
		Raw:      claims,
	}, nil
}
