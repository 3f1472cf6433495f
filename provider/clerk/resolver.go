package clerk

import (
	"context"
	stderrors "errors"

	garden "github.com/goliatone/garden-planner"
	"github.com/goliatone/go-errors"
)

// Resolver implements the upstream profile strategy on top of the Backend
// API: the subject id doubles as the Clerk user id.
type Resolver struct {
	client *Client
	logger garden.Logger
}

var _ garden.ProfileResolver = (*Resolver)(nil)

// NewResolver creates the upstream-fetch profile resolver.
func NewResolver(client *Client, logger garden.Logger) *Resolver {
	return &Resolver{
		client: client,
		logger: logger,
	}
}

// ResolveProfile fetches the user record for the subject and reduces it to
// the fields we persist locally.
func (r *Resolver) ResolveProfile(ctx context.Context, subjectID string, _ garden.ProfileHints) (*garden.Profile, error) {
	record, err := r.client.User(ctx, subjectID)
	if err != nil {
		var cfgErr *ConfigError
		if stderrors.As(err, &cfgErr) {
			return nil, errors.Wrap(err, garden.ErrProviderConfig.Category, garden.ErrProviderConfig.Message).
				WithTextCode(garden.ErrProviderConfig.TextCode).
				WithCode(garden.ErrProviderConfig.Code)
		}

		return nil, errors.Wrap(err, garden.ErrUpstreamProvision.Category, garden.ErrUpstreamProvision.Message).
			WithTextCode(garden.ErrUpstreamProvision.TextCode).
			WithCode(garden.ErrUpstreamProvision.Code)
	}

	email := record.PrimaryEmail()
	if email == "" {
		return nil, garden.ErrMissingProfile.Clone().WithMetadata(map[string]any{
			"subject_id": subjectID,
			"cause":      "no usable email address",
		})
	}

	name := record.DisplayName()
	if name == "" {
		return nil, garden.ErrMissingProfile.Clone().WithMetadata(map[string]any{
			"subject_id": subjectID,
			"cause":      "no usable display name",
		})
	}

	return &garden.Profile{
		Email: email,
		Name:  name,
	}, nil
}
