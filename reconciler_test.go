package garden_test

import (
	"context"
	"sync"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	garden "github.com/goliatone/garden-planner"
)

func TestReconciler_ExistingUserShortCircuits(t *testing.T) {
	db := setupDB(t)
	users := garden.NewUsersRepository(db)
	ctx := context.Background()

	seeded, err := users.Create(ctx, &garden.User{
		SubjectID: "usr_123",
		Email:     "a@b.com",
		Name:      "Ann Lee",
	})
	require.NoError(t, err)

	resolver := &resolverStub{profile: &garden.Profile{Email: "x@y.com", Name: "Other"}}
	reconciler := garden.NewReconciler(users, resolver, nil)

	user, err := reconciler.Reconcile(ctx, "usr_123", garden.ProfileHints{})
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, user.ID)
	assert.Equal(t, "a@b.com", user.Email)

	// The resolver must never be contacted for a known subject.
	assert.EqualValues(t, 0, resolver.calls)
}

func TestReconciler_ProvisionsNewUser(t *testing.T) {
	db := setupDB(t)
	users := garden.NewUsersRepository(db)
	ctx := context.Background()

	resolver := &resolverStub{profile: &garden.Profile{Email: "a@b.com", Name: "Ann Lee"}}
	reconciler := garden.NewReconciler(users, resolver, nil)

	user, err := reconciler.Reconcile(ctx, "usr_123", garden.ProfileHints{})
	require.NoError(t, err)
	assert.Equal(t, "usr_123", user.SubjectID)
	assert.Equal(t, "a@b.com", user.Email)
	assert.Equal(t, "Ann Lee", user.Name)
	assert.NotZero(t, user.ID)

	// Second call is a pure lookup.
	again, err := reconciler.Reconcile(ctx, "usr_123", garden.ProfileHints{})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.EqualValues(t, 1, resolver.calls)
}

func TestReconciler_EmptySubject(t *testing.T) {
	db := setupDB(t)
	reconciler := garden.NewReconciler(garden.NewUsersRepository(db), &resolverStub{}, nil)

	_, err := reconciler.Reconcile(context.Background(), "  ", garden.ProfileHints{})
	require.Error(t, err)

	var rich *errors.Error
	require.ErrorAs(t, err, &rich)
	assert.Equal(t, garden.TextCodeMissingProfile, rich.TextCode)
}

func TestReconciler_ResolverFailureCreatesNoRow(t *testing.T) {
	db := setupDB(t)
	users := garden.NewUsersRepository(db)

	resolver := &resolverStub{err: garden.ErrUpstreamProvision.Clone()}
	reconciler := garden.NewReconciler(users, resolver, nil)

	_, err := reconciler.Reconcile(context.Background(), "usr_123", garden.ProfileHints{})
	require.Error(t, err)

	_, err = users.FindBySubject(context.Background(), "usr_123")
	assert.True(t, garden.IsRecordNotFound(err))
}

func TestReconciler_MissingEmailCreatesNoRow(t *testing.T) {
	db := setupDB(t)
	users := garden.NewUsersRepository(db)

	resolver := &resolverStub{profile: &garden.Profile{Email: "", Name: "No Mail"}}
	reconciler := garden.NewReconciler(users, resolver, nil)

	_, err := reconciler.Reconcile(context.Background(), "usr_123", garden.ProfileHints{})
	require.Error(t, err)

	var rich *errors.Error
	require.ErrorAs(t, err, &rich)
	assert.Equal(t, garden.TextCodeMissingProfile, rich.TextCode)

	_, err = users.FindBySubject(context.Background(), "usr_123")
	assert.True(t, garden.IsRecordNotFound(err))
}

func TestReconciler_MissingNameCreatesNoRow(t *testing.T) {
	db := setupDB(t)
	users := garden.NewUsersRepository(db)

	resolver := &resolverStub{profile: &garden.Profile{Email: "a@b.com", Name: ""}}
	reconciler := garden.NewReconciler(users, resolver, nil)

	_, err := reconciler.Reconcile(context.Background(), "usr_123", garden.ProfileHints{})
	require.Error(t, err)

	var rich *errors.Error
	require.ErrorAs(t, err, &rich)
	assert.Equal(t, garden.TextCodeMissingProfile, rich.TextCode)

	_, err = users.FindBySubject(context.Background(), "usr_123")
	assert.True(t, garden.IsRecordNotFound(err))
}

func TestReconciler_ConcurrentFirstSight(t *testing.T) {
	db := setupDB(t)
	users := garden.NewUsersRepository(db)
	ctx := context.Background()

	resolver := &resolverStub{profile: &garden.Profile{Email: "a@b.com", Name: "Ann Lee"}}
	reconciler := garden.NewReconciler(users, resolver, nil)

	const workers = 12

	var wg sync.WaitGroup
	results := make([]*garden.User, workers)
	failures := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n], failures[n] = reconciler.Reconcile(ctx, "usr_123", garden.ProfileHints{})
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, failures[i])
		require.NotNil(t, results[i])
	}

	// Exactly one row exists and every caller observed it.
	winner, err := users.FindBySubject(ctx, "usr_123")
	require.NoError(t, err)
	for _, user := range results {
		assert.Equal(t, winner.ID, user.ID)
	}

	count, err := db.NewSelect().Model((*garden.User)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHeaderProfileResolver(t *testing.T) {
	resolver := garden.HeaderProfileResolver{}

	t.Run("returns trusted hints", func(t *testing.T) {
		profile, err := resolver.ResolveProfile(context.Background(), "usr_123", garden.ProfileHints{
			Email: "a@b.com",
			Name:  "Ann Lee",
		})
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", profile.Email)
		assert.Equal(t, "Ann Lee", profile.Name)
	})

	t.Run("rejects absent headers", func(t *testing.T) {
		_, err := resolver.ResolveProfile(context.Background(), "usr_123", garden.ProfileHints{})
		require.Error(t, err)

		var rich *errors.Error
		require.ErrorAs(t, err, &rich)
		assert.Equal(t, garden.TextCodeMissingProfile, rich.TextCode)
	})

	t.Run("rejects partial headers", func(t *testing.T) {
		_, err := resolver.ResolveProfile(context.Background(), "usr_123", garden.ProfileHints{
			Email: "a@b.com",
		})
		require.Error(t, err)
	})
}
