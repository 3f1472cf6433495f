package garden

import (
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPController handles garden and profile HTTP routes. Every route assumes
// the auth middleware already ran: a missing user in locals is a server-side
// wiring error, not a client error.
type HTTPController struct {
	repo       RepositoryManager
	contextKey string
	logger     Logger
}

// NewHTTPController creates the garden HTTP controller.
func NewHTTPController(repo RepositoryManager, contextKey string, logger Logger) *HTTPController {
	if contextKey == "" {
		contextKey = defaultContextKey
	}
	if logger == nil {
		logger = defLogger{}
	}

	return &HTTPController{
		repo:       repo,
		contextKey: contextKey,
		logger:     logger,
	}
}

// RegisterRoutes registers profile and garden routes on the given group.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get("/users/me", c.ShowProfile)
	group.Put("/users/me", c.UpdateProfile)

	group.Get("/gardens", c.ListGardens)
	group.Post("/gardens", c.CreateGarden)
	group.Get("/gardens/:id", c.ShowGarden)
	group.Put("/gardens/:id", c.UpdateGarden)
	group.Delete("/gardens/:id", c.DeleteGarden)
	group.Post("/gardens/:id/save-snapshot", c.SaveSnapshot)

	group.Post("/gardens/:id/elements", c.CreateElement)
	group.Put("/gardens/:id/elements/:element_id", c.UpdateElement)
	group.Delete("/gardens/:id/elements/:element_id", c.DeleteElement)

	group.Get("/gardens/:id/notes", c.ListNotes)
	group.Post("/gardens/:id/notes", c.CreateNote)
	group.Delete("/gardens/:id/notes/:note_id", c.DeleteNote)
}

// ShowProfile returns the authenticated user's local record.
func (c *HTTPController) ShowProfile(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}
	return ctx.JSON(router.StatusOK, user)
}

// ProfileUpdatePayload is the users/me update body.
type ProfileUpdatePayload struct {
	Name string `json:"name"`
}

// Validate will run validation rules
func (r ProfileUpdatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
	)
}

// UpdateProfile updates the mutable profile fields on the local record.
func (c *HTTPController) UpdateProfile(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}

	payload := new(ProfileUpdatePayload)
	if err := ctx.Bind(payload); err != nil {
		return c.renderBadPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return c.renderValidation(ctx, err)
	}

	user.Name = payload.Name

	updated, err := c.repo.Users().Update(ctx.Context(), user)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, updated)
}

// GardenPayload is the create/update body for a garden.
type GardenPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ZipCode     string `json:"zip_code"`
}

// Validate will run validation rules
func (r GardenPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(0, 2000)),
		validation.Field(&r.ZipCode, validation.Required, validation.Length(5, 5), is.Digit),
	)
}

// ListGardens returns the caller's garden summaries ordered by recency.
func (c *HTTPController) ListGardens(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}

	records, err := c.repo.Gardens().Summaries(ctx.Context(), user.SubjectID)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"gardens": records,
	})
}

// CreateGarden creates a garden owned by the caller.
func (c *HTTPController) CreateGarden(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}

	payload := new(GardenPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.renderBadPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return c.renderValidation(ctx, err)
	}

	record := &Garden{
		Name:        payload.Name,
		Description: payload.Description,
		ZipCode:     payload.ZipCode,
		UserID:      user.SubjectID,

		ViewBoxX:      -500,
		ViewBoxY:      -500,
		ViewBoxWidth:  1000,
		ViewBoxHeight: 1000,
		Zoom:          1,
		GridSize:      50,
	}

	created, err := c.repo.Gardens().Create(ctx.Context(), record)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, created)
}

// ShowGarden returns one garden with its elements and notes.
func (c *HTTPController) ShowGarden(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}

	id, err := c.paramID(ctx, "id")
	if err != nil {
		return c.renderError(ctx, err)
	}

	record, err := c.repo.Gardens().FindByID(ctx.Context(), user.SubjectID, id)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, record)
}

// UpdateGarden updates the garden metadata fields.
func (c *HTTPController) UpdateGarden(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}

	id, err := c.paramID(ctx, "id")
	if err != nil {
		return c.renderError(ctx, err)
	}

	payload := new(GardenPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.renderBadPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return c.renderValidation(ctx, err)
	}

	record := &Garden{
		ID:          id,
		UserID:      user.SubjectID,
		Name:        payload.Name,
		Description: payload.Description,
		ZipCode:     payload.ZipCode,
	}

	updated, err := c.repo.Gardens().Update(ctx.Context(), record)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, updated)
}

// DeleteGarden removes the garden and every dependent row.
func (c *HTTPController) DeleteGarden(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}

	id, err := c.paramID(ctx, "id")
	if err != nil {
		return c.renderError(ctx, err)
	}

	if err := c.repo.Gardens().Delete(ctx.Context(), user.SubjectID, id); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "deleted",
	})
}

// SnapshotPayload is the full-canvas save body.
type SnapshotPayload struct {
	Name          string           `json:"name"`
	ViewBoxX      float64          `json:"view_box_x"`
	ViewBoxY      float64          `json:"view_box_y"`
	ViewBoxWidth  float64          `json:"view_box_width"`
	ViewBoxHeight float64          `json:"view_box_height"`
	Zoom          float64          `json:"zoom"`
	GridSize      int              `json:"grid_size"`
	Elements      []*GardenElement `json:"elements"`
}

// Validate will run validation rules
func (r SnapshotPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Zoom, validation.Min(0.01)),
		validation.Field(&r.GridSize, validation.Min(1)),
		validation.Field(&r.Elements, validation.By(validateElements)),
	)
}

func validateElements(value any) error {
	elements, _ := value.([]*GardenElement)
	for _, el := range elements {
		if err := validateElement(el); err != nil {
			return err
		}
	}
	return nil
}

func validateElement(el *GardenElement) error {
	if el == nil {
		return errors.New("element must not be null", errors.CategoryBadInput)
	}
	if el.ElementID == "" {
		return errors.New("element_id is required", errors.CategoryBadInput)
	}
	switch el.ElementType {
	case ElementStructure, ElementPlant, ElementText:
	default:
		return errors.New("unknown element_type: "+el.ElementType, errors.CategoryBadInput)
	}
	return nil
}

// SaveSnapshot replaces the garden canvas with the submitted state.
func (c *HTTPController) SaveSnapshot(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}

	id, err := c.paramID(ctx, "id")
	if err != nil {
		return c.renderError(ctx, err)
	}

	payload := new(SnapshotPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.renderBadPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return c.renderValidation(ctx, err)
	}

	record := &Garden{
		ID:            id,
		UserID:        user.SubjectID,
		Name:          payload.Name,
		ViewBoxX:      payload.ViewBoxX,
		ViewBoxY:      payload.ViewBoxY,
		ViewBoxWidth:  payload.ViewBoxWidth,
		ViewBoxHeight: payload.ViewBoxHeight,
		Zoom:          payload.Zoom,
		GridSize:      payload.GridSize,
	}

	saved, err := c.repo.Gardens().SaveSnapshot(ctx.Context(), record, payload.Elements)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, saved)
}

// CreateElement adds a single element to one of the caller's gardens. When
// the client omits element_id the server assigns one.
func (c *HTTPController) CreateElement(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}

	id, err := c.paramID(ctx, "id")
	if err != nil {
		return c.renderError(ctx, err)
	}

	element := new(GardenElement)
	if err := ctx.Bind(element); err != nil {
		return c.renderBadPayload(ctx, err)
	}

	if element.ElementID == "" {
		element.ElementID = uuid.NewString()
	}

	if err := validateElement(element); err != nil {
		return c.renderValidation(ctx, err)
	}

	// Ownership check before touching the child table.
	if _, err := c.repo.Gardens().FindByID(ctx.Context(), user.SubjectID, id); err != nil {
		return c.renderError(ctx, err)
	}

	element.ID = 0
	element.GardenID = id

	created, err := c.repo.Gardens().AddElement(ctx.Context(), element)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, created)
}

// UpdateElement rewrites an element addressed by its frontend identifier.
func (c *HTTPController) UpdateElement(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}

	id, err := c.paramID(ctx, "id")
	if err != nil {
		return c.renderError(ctx, err)
	}

	elementID := ctx.Param("element_id")
	if elementID == "" {
		return c.renderError(ctx, errors.New("invalid element_id parameter", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest))
	}

	element := new(GardenElement)
	if err := ctx.Bind(element); err != nil {
		return c.renderBadPayload(ctx, err)
	}

	element.ElementID = elementID
	if err := validateElement(element); err != nil {
		return c.renderValidation(ctx, err)
	}

	if _, err := c.repo.Gardens().FindByID(ctx.Context(), user.SubjectID, id); err != nil {
		return c.renderError(ctx, err)
	}

	element.GardenID = id

	updated, err := c.repo.Gardens().UpdateElement(ctx.Context(), element)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, updated)
}

// DeleteElement removes an element from one of the caller's gardens.
func (c *HTTPController) DeleteElement(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}

	id, err := c.paramID(ctx, "id")
	if err != nil {
		return c.renderError(ctx, err)
	}

	elementID := ctx.Param("element_id")
	if elementID == "" {
		return c.renderError(ctx, errors.New("invalid element_id parameter", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest))
	}

	if _, err := c.repo.Gardens().FindByID(ctx.Context(), user.SubjectID, id); err != nil {
		return c.renderError(ctx, err)
	}

	if err := c.repo.Gardens().DeleteElement(ctx.Context(), id, elementID); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "deleted",
	})
}

// NotePayload is the note creation body.
type NotePayload struct {
	Content string `json:"content"`
}

// Validate will run validation rules
func (r NotePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required, validation.Length(1, 5000)),
	)
}

// ListNotes returns the notes for one of the caller's gardens, newest first.
func (c *HTTPController) ListNotes(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}

	id, err := c.paramID(ctx, "id")
	if err != nil {
		return c.renderError(ctx, err)
	}

	if _, err := c.repo.Gardens().FindByID(ctx.Context(), user.SubjectID, id); err != nil {
		return c.renderError(ctx, err)
	}

	notes, err := c.repo.Gardens().ListNotes(ctx.Context(), id)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"notes": notes,
	})
}

// CreateNote attaches a note to one of the caller's gardens.
func (c *HTTPController) CreateNote(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}

	id, err := c.paramID(ctx, "id")
	if err != nil {
		return c.renderError(ctx, err)
	}

	payload := new(NotePayload)
	if err := ctx.Bind(payload); err != nil {
		return c.renderBadPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return c.renderValidation(ctx, err)
	}

	// Ownership check before touching the child table.
	if _, err := c.repo.Gardens().FindByID(ctx.Context(), user.SubjectID, id); err != nil {
		return c.renderError(ctx, err)
	}

	note, err := c.repo.Gardens().AddNote(ctx.Context(), &GardenNote{
		GardenID: id,
		Content:  payload.Content,
	})
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, note)
}

// DeleteNote removes a note from one of the caller's gardens.
func (c *HTTPController) DeleteNote(ctx router.Context) error {
	user, err := c.currentUser(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}

	id, err := c.paramID(ctx, "id")
	if err != nil {
		return c.renderError(ctx, err)
	}

	noteID, err := c.paramID(ctx, "note_id")
	if err != nil {
		return c.renderError(ctx, err)
	}

	if _, err := c.repo.Gardens().FindByID(ctx.Context(), user.SubjectID, id); err != nil {
		return c.renderError(ctx, err)
	}

	if err := c.repo.Gardens().DeleteNote(ctx.Context(), id, noteID); err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"status": "deleted",
	})
}

func (c *HTTPController) currentUser(ctx router.Context) (*User, error) {
	user, ok := FromRouterContext(ctx, c.contextKey)
	if !ok {
		return nil, errors.New("no authenticated user in request context", errors.CategoryInternal).
			WithCode(errors.CodeInternal)
	}
	return user, nil
}

func (c *HTTPController) paramID(ctx router.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid "+name+" parameter", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}
	return id, nil
}

func (c *HTTPController) renderBadPayload(ctx router.Context, err error) error {
	c.logger.Error("parse payload: %s", err)
	return ctx.JSON(router.StatusBadRequest, map[string]string{
		"error": "failed to parse request body",
	})
}

func (c *HTTPController) renderValidation(ctx router.Context, err error) error {
	return ctx.JSON(router.StatusBadRequest, map[string]any{
		"error":      "validation failed",
		"validation": err.Error(),
	})
}

func (c *HTTPController) renderError(ctx router.Context, err error) error {
	if IsRecordNotFound(err) {
		return ctx.JSON(router.StatusNotFound, map[string]string{
			"error": "record not found",
		})
	}

	var rich *errors.Error
	if errors.As(err, &rich) {
		if rich.Code == 0 {
			rich.Code = router.StatusInternalServerError
		}
		return ctx.JSON(rich.Code, map[string]any{
			"error": rich.Message,
			"code":  rich.TextCode,
		})
	}

	c.logger.Error("request failed: %s", err)
	return ctx.JSON(router.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}
