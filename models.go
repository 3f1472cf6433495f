package garden

import (
	"time"

	"github.com/uptrace/bun"
)

// ElementType discriminates garden element rows.
type ElementType = string

const (
	ElementStructure ElementType = "structure"
	ElementPlant     ElementType = "plant"
	ElementText      ElementType = "text"
)

// User is the local user row. One row exists per distinct provider subject,
// created lazily on first successful authentication and never deleted by
// this subsystem. The uniqueness constraint on provider_subject_id is
// enforced at the storage layer, not in process.
type User struct {
	bun.BaseModel `bun:"table:app_users,alias:usr"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id"`
	SubjectID     string     `bun:"provider_subject_id,notnull,unique" json:"provider_subject_id"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	Name          string     `bun:"name" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Display returns the name we show for the user, falling back to the email.
func (u *User) Display() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Garden is a named layout owned by exactly one subject.
type Garden struct {
	bun.BaseModel `bun:"table:gardens,alias:grd"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	Name          string `bun:"name,notnull" json:"name"`
	Description   string `bun:"description" json:"description,omitempty"`
	ZipCode       string `bun:"zip_code,notnull" json:"zip_code"`
	// Owner scope: the provider subject id, matching the original schema so
	// rows survive local user re-provisioning.
	UserID string `bun:"user_id,notnull" json:"user_id"`

	ViewBoxX      float64 `bun:"view_box_x,default:-500" json:"view_box_x"`
	ViewBoxY      float64 `bun:"view_box_y,default:-500" json:"view_box_y"`
	ViewBoxWidth  float64 `bun:"view_box_width,default:1000" json:"view_box_width"`
	ViewBoxHeight float64 `bun:"view_box_height,default:1000" json:"view_box_height"`
	Zoom          float64 `bun:"zoom,default:1" json:"zoom"`
	GridSize      int     `bun:"grid_size,default:50" json:"grid_size"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`

	Elements []*GardenElement `bun:"rel:has-many,join:id=garden_id" json:"elements,omitempty"`
	Notes    []*GardenNote    `bun:"rel:has-many,join:id=garden_id" json:"notes,omitempty"`
}

// GardenSummary is the list-view projection of a garden: header columns plus
// the element count, no relations loaded.
type GardenSummary struct {
	ID           int64      `bun:"id" json:"id"`
	Name         string     `bun:"name" json:"name"`
	Description  string     `bun:"description" json:"description,omitempty"`
	ZipCode      string     `bun:"zip_code" json:"zip_code"`
	ElementCount int        `bun:"element_count" json:"element_count"`
	CreatedAt    *time.Time `bun:"created_at" json:"created_at,omitempty"`
	UpdatedAt    *time.Time `bun:"updated_at" json:"updated_at,omitempty"`
}

// GardenElement is a positioned element on the canvas. ElementID is the
// frontend-generated identifier used for updates and deletes.
type GardenElement struct {
	bun.BaseModel `bun:"table:garden_elements,alias:gel"`
	ID            int64       `bun:"id,pk,autoincrement" json:"id"`
	ElementID     string      `bun:"element_id,notnull" json:"element_id"`
	GardenID      int64       `bun:"garden_id,notnull" json:"garden_id"`
	ElementType   ElementType `bun:"element_type,notnull" json:"element_type"`

	PositionX float64 `bun:"position_x,notnull" json:"position_x"`
	PositionY float64 `bun:"position_y,notnull" json:"position_y"`

	Width   *float64 `bun:"width" json:"width,omitempty"`
	Height  *float64 `bun:"height" json:"height,omitempty"`
	ZHeight *float64 `bun:"z_height" json:"z_height,omitempty"`
	Label   string   `bun:"label" json:"label,omitempty"`
	Color   string   `bun:"color" json:"color,omitempty"`
	Shape   string   `bun:"shape" json:"shape,omitempty"`

	CommonName    string   `bun:"common_name" json:"common_name,omitempty"`
	BotanicalName string   `bun:"botanical_name" json:"botanical_name,omitempty"`
	PlantType     string   `bun:"plant_type" json:"plant_type,omitempty"`
	SunlightNeeds string   `bun:"sunlight_needs" json:"sunlight_needs,omitempty"`
	WaterNeeds    string   `bun:"water_needs" json:"water_needs,omitempty"`
	MatureSize    string   `bun:"mature_size" json:"mature_size,omitempty"`
	Spacing       *float64 `bun:"spacing" json:"spacing,omitempty"`
	ShowSpacing   bool     `bun:"show_spacing,default:false" json:"show_spacing,omitempty"`

	TextContent string `bun:"text_content" json:"text_content,omitempty"`
	FontSize    *int   `bun:"font_size" json:"font_size,omitempty"`
	TextColor   string `bun:"text_color" json:"text_color,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// GardenNote is a free-form note attached to a garden.
type GardenNote struct {
	bun.BaseModel `bun:"table:garden_notes,alias:gnt"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id"`
	GardenID      int64      `bun:"garden_id,notnull" json:"garden_id"`
	Content       string     `bun:"content,notnull" json:"content"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// GardenRecommendation caches the AI recommendation payload, one row per
// garden (unique garden_id).
type GardenRecommendation struct {
	bun.BaseModel `bun:"table:garden_recommendations,alias:grc"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id"`
	GardenID      int64      `bun:"garden_id,notnull,unique" json:"garden_id"`
	Data          string     `bun:"data,notnull" json:"data"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
