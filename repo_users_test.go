package garden_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	garden "github.com/goliatone/garden-planner"
)

func TestUsersRepository_CreateAndFind(t *testing.T) {
	db := setupDB(t)
	users := garden.NewUsersRepository(db)
	ctx := context.Background()

	created, err := users.Create(ctx, &garden.User{
		SubjectID: "usr_123",
		Email:     "a@b.com",
		Name:      "Ann Lee",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	bySubject, err := users.FindBySubject(ctx, "usr_123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySubject.ID)

	byID, err := users.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", byID.Email)
}

func TestUsersRepository_FindBySubjectTrimsInput(t *testing.T) {
	db := setupDB(t)
	users := garden.NewUsersRepository(db)
	ctx := context.Background()

	_, err := users.Create(ctx, &garden.User{SubjectID: "usr_123", Email: "a@b.com"})
	require.NoError(t, err)

	found, err := users.FindBySubject(ctx, "  usr_123  ")
	require.NoError(t, err)
	assert.Equal(t, "usr_123", found.SubjectID)
}

func TestUsersRepository_NotFound(t *testing.T) {
	db := setupDB(t)
	users := garden.NewUsersRepository(db)

	_, err := users.FindBySubject(context.Background(), "usr_unknown")
	require.Error(t, err)
	assert.True(t, garden.IsRecordNotFound(err))
}

func TestUsersRepository_DuplicateSubjectSurfacesConstraint(t *testing.T) {
	db := setupDB(t)
	users := garden.NewUsersRepository(db)
	ctx := context.Background()

	_, err := users.Create(ctx, &garden.User{SubjectID: "usr_123", Email: "a@b.com"})
	require.NoError(t, err)

	_, err = users.Create(ctx, &garden.User{SubjectID: "usr_123", Email: "b@c.com"})
	require.Error(t, err)
	assert.True(t, garden.IsUniqueViolation(err))
}

func TestUsersRepository_Update(t *testing.T) {
	db := setupDB(t)
	users := garden.NewUsersRepository(db)
	ctx := context.Background()

	created, err := users.Create(ctx, &garden.User{SubjectID: "usr_123", Email: "a@b.com", Name: "Ann"})
	require.NoError(t, err)

	created.Name = "Ann Lee"
	updated, err := users.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", updated.Name)

	found, err := users.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", found.Name)
}

func TestUserDisplay(t *testing.T) {
	assert.Equal(t, "Ann Lee", (&garden.User{Name: "Ann Lee", Email: "a@b.com"}).Display())
	assert.Equal(t, "a@b.com", (&garden.User{Email: "a@b.com"}).Display())
}
