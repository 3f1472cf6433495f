package garden

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
)

// Reconciler maps an authenticated subject to a local user row, provisioning
// it just-in-time on first sight.
type Reconciler struct {
	users    Users
	resolver ProfileResolver
	logger   Logger
}

// NewReconciler creates a Reconciler. The ProfileResolver is the deployment's
// single provisioning strategy: header hints or an upstream fetch.
func NewReconciler(users Users, resolver ProfileResolver, logger Logger) *Reconciler {
	if logger == nil {
		logger = defLogger{}
	}
	return &Reconciler{
		users:    users,
		resolver: resolver,
		logger:   logger,
	}
}

// Reconcile returns the local user for subjectID, creating it if needed.
//
// The lookup and the insert are not atomic: two concurrent requests for the
// same never-seen subject may both reach the insert. The uniqueness
// constraint on provider_subject_id decides the winner; the loser re-reads
// the winner's row instead of surfacing the conflict.
func (r *Reconciler) Reconcile(ctx context.Context, subjectID string, hints ProfileHints) (*User, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, ErrMissingProfile.Clone().WithMetadata(map[string]any{
			"cause": "empty subject id",
		})
	}

	user, err := r.users.FindBySubject(ctx, subjectID)
	if err == nil {
		return user, nil
	}
	if !IsRecordNotFound(err) {
		return nil, wrapStorageErr(err)
	}

	profile, err := r.resolver.ResolveProfile(ctx, subjectID, hints)
	if err != nil {
		return nil, err
	}
	// Both provisioning strategies must yield a full profile; a partial one
	// never creates a row.
	if profile == nil || profile.Email == "" || profile.Name == "" {
		return nil, ErrMissingProfile.Clone().WithMetadata(map[string]any{
			"subject": subjectID,
		})
	}

	created, err := r.users.Create(ctx, &User{
		SubjectID: subjectID,
		Email:     profile.Email,
		Name:      profile.Name,
	})
	if err == nil {
		r.logger.Info("Provisioned user", "subject", subjectID, "email", profile.Email)
		return created, nil
	}

	if IsUniqueViolation(err) {
		// A concurrent request won the insert race; its row is authoritative.
		winner, ferr := r.users.FindBySubject(ctx, subjectID)
		if ferr != nil {
			return nil, wrapStorageErr(ferr)
		}
		return winner, nil
	}

	return nil, wrapStorageErr(err)
}

func wrapStorageErr(err error) error {
	return errors.Wrap(err, ErrStorage.Category, ErrStorage.Message).
		WithTextCode(ErrStorage.TextCode).
		WithCode(ErrStorage.Code)
}

// HeaderProfileResolver trusts identity data asserted by the caller through
// request headers. Use it only behind a gateway that populates those headers
// itself.
type HeaderProfileResolver struct{}

// ResolveProfile satisfies ProfileResolver.
func (HeaderProfileResolver) ResolveProfile(ctx context.Context, subjectID string, hints ProfileHints) (*Profile, error) {
	email := strings.TrimSpace(hints.Email)
	name := strings.TrimSpace(hints.Name)

	if email == "" || name == "" {
		return nil, ErrMissingProfile.Clone().WithMetadata(map[string]any{
			"subject": subjectID,
			"cause":   "identity headers absent",
		})
	}

	return &Profile{Email: email, Name: name}, nil
}
