package garden

import (
	"context"
	"database/sql"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Users is the local user store. The uniqueness constraint on
// provider_subject_id is the correctness backstop for concurrent
// provisioning; Create surfaces the raw driver error so callers can detect
// the conflict with IsUniqueViolation.
type Users interface {
	FindBySubject(ctx context.Context, subjectID string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, record *User) (*User, error)
	Update(ctx context.Context, record *User) (*User, error)
}

type users struct {
	db bun.IDB
}

var _ Users = (*users)(nil)

// NewUsersRepository creates the bun-backed Users repository.
func NewUsersRepository(db bun.IDB) Users {
	return &users{db: db}
}

func (a *users) FindBySubject(ctx context.Context, subjectID string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_subject_id = ?", strings.TrimSpace(subjectID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (a *users) FindByID(ctx context.Context, id int64) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	if _, err := a.db.NewInsert().Model(record).Returning("*").Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (a *users) Update(ctx context.Context, record *User) (*User, error) {
	_, err := a.db.NewUpdate().
		Model(record).
		Column("email", "name").
		WherePK().
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// IsRecordNotFound reports whether err means "no row matched".
func IsRecordNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
