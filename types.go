package garden

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the auth options consumed by the token validator, the key
// set and the gate.
type Config interface {
	GetIssuer() string
	GetAudience() string
	GetJWKSEndpoint() string
	GetAuthScheme() string
	GetContextKey() string
	GetProviderStrategy() string
}

// ProfileHints carries caller-asserted identity data, extracted from request
// headers when the header strategy is active.
type ProfileHints struct {
	Email string
	Name  string
}

// Profile is the data required to provision a local user.
type Profile struct {
	Email string
	Name  string
}

// ProfileResolver obtains profile data for a never-seen subject. Exactly one
// strategy is active per deployment, selected at startup.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, subjectID string, hints ProfileHints) (*Profile, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] GARDEN "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] GARDEN "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] GARDEN "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
