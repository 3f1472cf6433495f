package garden

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Identity hint headers, honored only when the header profile strategy is
// active. The gateway asserting them is trusted out-of-band.
const (
	HeaderUserEmailHint = "X-Auth-User-Email"
	HeaderUserNameHint  = "X-Auth-User-Name"
)

const defaultContextKey = "user"

// Gate authenticates one inbound request: it extracts the bearer token,
// validates it and reconciles the subject with the local user store.
type Gate struct {
	validator  *TokenValidator
	reconciler *Reconciler
	scheme     string
	contextKey string
	logger     Logger
}

// NewGate wires the validator and reconciler for per-request use.
func NewGate(validator *TokenValidator, reconciler *Reconciler, cfg Config, logger Logger) *Gate {
	scheme := cfg.GetAuthScheme()
	if scheme == "" {
		scheme = "Bearer"
	}

	contextKey := cfg.GetContextKey()
	if contextKey == "" {
		contextKey = defaultContextKey
	}

	if logger == nil {
		logger = defLogger{}
	}

	return &Gate{
		validator:  validator,
		reconciler: reconciler,
		scheme:     scheme,
		contextKey: contextKey,
		logger:     logger,
	}
}

// ContextKey returns the router locals key under which the authenticated
// user is stored.
func (g *Gate) ContextKey() string {
	return g.contextKey
}

// Authenticate resolves the identity behind the Authorization header.
//
// Every validator or reconciler auth failure is wrapped in
// ErrUnauthenticated with only a short diagnostic attached. Provider
// misconfiguration, upstream 5xx and storage faults keep their own codes
// since they are not the caller's fault.
func (g *Gate) Authenticate(ctx context.Context, authorization string, hints ProfileHints) (*User, error) {
	raw, ok := g.extractToken(authorization)
	if !ok {
		return nil, ErrUnauthenticated.Clone().WithMetadata(map[string]any{
			"cause": "missing bearer token",
		})
	}

	claims, err := g.validator.Validate(ctx, raw)
	if err != nil {
		return nil, g.wrapAuthFailure(err)
	}

	user, err := g.reconciler.Reconcile(ctx, claims.Subject, hints)
	if err != nil {
		return nil, g.wrapAuthFailure(err)
	}

	return user, nil
}

// AuthenticateOptional is the advisory variant: every failure, of any kind,
// collapses to nil. Callers must not distinguish "bad token" from "no
// token".
func (g *Gate) AuthenticateOptional(ctx context.Context, authorization string, hints ProfileHints) *User {
	user, err := g.Authenticate(ctx, authorization, hints)
	if err != nil {
		return nil
	}
	return user
}

func (g *Gate) extractToken(authorization string) (string, bool) {
	header := strings.TrimSpace(authorization)
	l := len(g.scheme)
	if len(header) <= l+1 || !strings.EqualFold(header[:l], g.scheme) || header[l] != ' ' {
		return "", false
	}

	token := strings.TrimSpace(header[l:])
	if token == "" {
		return "", false
	}
	return token, true
}

func (g *Gate) wrapAuthFailure(err error) error {
	if !IsAuthError(err) {
		// Provider misconfiguration or storage fault: keep the original
		// category and code so it maps to 500/502 upstream.
		return err
	}

	var rich *errors.Error
	diagnostic := "invalid credentials"
	if errors.As(err, &rich) {
		diagnostic = rich.Message
	}

	g.logger.Debug("Authentication rejected", "cause", diagnostic)

	return errors.Wrap(err, ErrUnauthenticated.Category, ErrUnauthenticated.Message).
		WithTextCode(ErrUnauthenticated.TextCode).
		WithCode(ErrUnauthenticated.Code).
		WithMetadata(map[string]any{
			"cause": diagnostic,
		})
}

func hintsFromContext(ctx router.Context) ProfileHints {
	return ProfileHints{
		Email: ctx.GetString(HeaderUserEmailHint, ""),
		Name:  ctx.GetString(HeaderUserNameHint, ""),
	}
}

// RequireAuth rejects requests that do not carry a valid identity. The
// resolved user is stored in the router locals under the gate's context key
// and propagated to the standard request context.
func RequireAuth(gate *Gate) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			authorization := ctx.GetString(router.HeaderAuthorization, "")

			user, err := gate.Authenticate(ctx.Context(), authorization, hintsFromContext(ctx))
			if err != nil {
				return renderAuthError(ctx, err)
			}

			ctx.Locals(gate.ContextKey(), user)
			ctx.SetContext(WithContext(ctx.Context(), user))

			return next(ctx)
		}
	}
}

// OptionalAuth resolves an identity when one is presented but never rejects
// the request.
func OptionalAuth(gate *Gate) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			authorization := ctx.GetString(router.HeaderAuthorization, "")

			if user := gate.AuthenticateOptional(ctx.Context(), authorization, hintsFromContext(ctx)); user != nil {
				ctx.Locals(gate.ContextKey(), user)
				ctx.SetContext(WithContext(ctx.Context(), user))
			}

			return next(ctx)
		}
	}
}

func renderAuthError(ctx router.Context, err error) error {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		rich = errors.Wrap(err, errors.CategoryInternal, "unexpected authentication error").
			WithCode(errors.CodeInternal)
	}

	if rich.Code == 0 {
		rich.Code = router.StatusInternalServerError
	}

	return ctx.JSON(rich.Code, map[string]any{
		"error": rich.Message,
		"code":  rich.TextCode,
	})
}
