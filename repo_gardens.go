package garden

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

// Gardens is the garden layout store. Every read and write is scoped to the
// owning subject so one user can never address another user's rows; a
// mismatch surfaces as sql.ErrNoRows, which handlers render as not-found.
type Gardens interface {
	Create(ctx context.Context, record *Garden) (*Garden, error)
	FindByID(ctx context.Context, ownerID string, id int64) (*Garden, error)
	List(ctx context.Context, ownerID string) ([]*Garden, error)
	Summaries(ctx context.Context, ownerID string) ([]*GardenSummary, error)
	Update(ctx context.Context, record *Garden) (*Garden, error)
	Delete(ctx context.Context, ownerID string, id int64) error
	SaveSnapshot(ctx context.Context, record *Garden, elements []*GardenElement) (*Garden, error)

	AddElement(ctx context.Context, record *GardenElement) (*GardenElement, error)
	UpdateElement(ctx context.Context, record *GardenElement) (*GardenElement, error)
	DeleteElement(ctx context.Context, gardenID int64, elementID string) error

	AddNote(ctx context.Context, record *GardenNote) (*GardenNote, error)
	ListNotes(ctx context.Context, gardenID int64) ([]*GardenNote, error)
	DeleteNote(ctx context.Context, gardenID, noteID int64) error

	Recommendation(ctx context.Context, gardenID int64) (*GardenRecommendation, error)
	SaveRecommendation(ctx context.Context, gardenID int64, data string) (*GardenRecommendation, error)
	DeleteRecommendation(ctx context.Context, gardenID int64) error
}

type gardens struct {
	db bun.IDB
}

var _ Gardens = (*gardens)(nil)

// NewGardensRepository creates the bun-backed Gardens repository.
func NewGardensRepository(db bun.IDB) Gardens {
	return &gardens{db: db}
}

func (a *gardens) Create(ctx context.Context, record *Garden) (*Garden, error) {
	if _, err := a.db.NewInsert().Model(record).Returning("*").Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (a *gardens) FindByID(ctx context.Context, ownerID string, id int64) (*Garden, error) {
	record := &Garden{}
	err := a.db.NewSelect().
		Model(record).
		Relation("Elements").
		Relation("Notes").
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.user_id = ?", ownerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (a *gardens) List(ctx context.Context, ownerID string) ([]*Garden, error) {
	records := []*Garden{}
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", ownerID).
		Order("grd.updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Summaries returns the list-view rows with a correlated element count,
// newest first.
func (a *gardens) Summaries(ctx context.Context, ownerID string) ([]*GardenSummary, error) {
	records := []*GardenSummary{}
	err := a.db.NewSelect().
		Model((*Garden)(nil)).
		Column("id", "name", "description", "zip_code", "created_at", "updated_at").
		ColumnExpr("(SELECT count(*) FROM garden_elements AS gel WHERE gel.garden_id = grd.id) AS element_count").
		Where("?TableAlias.user_id = ?", ownerID).
		Order("grd.updated_at DESC").
		Scan(ctx, &records)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *gardens) Update(ctx context.Context, record *Garden) (*Garden, error) {
	res, err := a.db.NewUpdate().
		Model(record).
		Column("name", "description", "zip_code").
		Where("?TableAlias.id = ?", record.ID).
		Where("?TableAlias.user_id = ?", record.UserID).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, sql.ErrNoRows
	}
	return record, nil
}

func (a *gardens) Delete(ctx context.Context, ownerID string, id int64) error {
	return a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*Garden)(nil)).
			Where("?TableAlias.id = ?", id).
			Where("?TableAlias.user_id = ?", ownerID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return sql.ErrNoRows
		}

		if _, err := tx.NewDelete().
			Model((*GardenElement)(nil)).
			Where("?TableAlias.garden_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewDelete().
			Model((*GardenNote)(nil)).
			Where("?TableAlias.garden_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}

		_, err = tx.NewDelete().
			Model((*GardenRecommendation)(nil)).
			Where("?TableAlias.garden_id = ?", id).
			Exec(ctx)
		return err
	})
}

// SaveSnapshot replaces the garden canvas wholesale: viewport columns on the
// garden row plus every element. Runs in one transaction so a concurrent
// reader never observes a half-written canvas.
func (a *gardens) SaveSnapshot(ctx context.Context, record *Garden, elements []*GardenElement) (*Garden, error) {
	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model(record).
			Column("name", "view_box_x", "view_box_y", "view_box_width", "view_box_height", "zoom", "grid_size").
			Where("?TableAlias.id = ?", record.ID).
			Where("?TableAlias.user_id = ?", record.UserID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return sql.ErrNoRows
		}

		if _, err := tx.NewDelete().
			Model((*GardenElement)(nil)).
			Where("?TableAlias.garden_id = ?", record.ID).
			Exec(ctx); err != nil {
			return err
		}

		if len(elements) == 0 {
			return nil
		}

		for _, el := range elements {
			el.GardenID = record.ID
		}

		_, err = tx.NewInsert().Model(&elements).Returning("*").Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	record.Elements = elements
	return record, nil
}

func (a *gardens) AddElement(ctx context.Context, record *GardenElement) (*GardenElement, error) {
	if _, err := a.db.NewInsert().Model(record).Returning("*").Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// UpdateElement rewrites the mutable columns of the element addressed by
// (garden_id, element_id). The frontend identifier itself never changes.
func (a *gardens) UpdateElement(ctx context.Context, record *GardenElement) (*GardenElement, error) {
	res, err := a.db.NewUpdate().
		Model(record).
		Column(
			"element_type", "position_x", "position_y",
			"width", "height", "z_height", "label", "color", "shape",
			"common_name", "botanical_name", "plant_type", "sunlight_needs",
			"water_needs", "mature_size", "spacing", "show_spacing",
			"text_content", "font_size", "text_color",
		).
		Where("?TableAlias.garden_id = ?", record.GardenID).
		Where("?TableAlias.element_id = ?", record.ElementID).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, sql.ErrNoRows
	}
	return record, nil
}

func (a *gardens) DeleteElement(ctx context.Context, gardenID int64, elementID string) error {
	res, err := a.db.NewDelete().
		Model((*GardenElement)(nil)).
		Where("?TableAlias.garden_id = ?", gardenID).
		Where("?TableAlias.element_id = ?", elementID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (a *gardens) AddNote(ctx context.Context, record *GardenNote) (*GardenNote, error) {
	if _, err := a.db.NewInsert().Model(record).Returning("*").Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (a *gardens) ListNotes(ctx context.Context, gardenID int64) ([]*GardenNote, error) {
	records := []*GardenNote{}
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.garden_id = ?", gardenID).
		Order("gnt.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *gardens) DeleteNote(ctx context.Context, gardenID, noteID int64) error {
	res, err := a.db.NewDelete().
		Model((*GardenNote)(nil)).
		Where("?TableAlias.id = ?", noteID).
		Where("?TableAlias.garden_id = ?", gardenID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (a *gardens) Recommendation(ctx context.Context, gardenID int64) (*GardenRecommendation, error) {
	record := &GardenRecommendation{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.garden_id = ?", gardenID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// SaveRecommendation upserts the single cached payload for a garden, keyed
// by the unique garden_id constraint.
func (a *gardens) SaveRecommendation(ctx context.Context, gardenID int64, data string) (*GardenRecommendation, error) {
	record := &GardenRecommendation{
		GardenID: gardenID,
		Data:     data,
	}

	_, err := a.db.NewInsert().
		Model(record).
		On("CONFLICT (garden_id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = CURRENT_TIMESTAMP").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (a *gardens) DeleteRecommendation(ctx context.Context, gardenID int64) error {
	_, err := a.db.NewDelete().
		Model((*GardenRecommendation)(nil)).
		Where("?TableAlias.garden_id = ?", gardenID).
		Exec(ctx)
	return err
}
