package recommend

import (
	"encoding/json"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"

	garden "github.com/goliatone/garden-planner"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPController serves the recommendation routes. Per-garden results are
// cached in storage so repeat requests skip the model entirely.
type HTTPController struct {
	service    *Service
	repo       garden.RepositoryManager
	contextKey string
	logger     garden.Logger
}

// NewHTTPController creates the recommendation controller.
func NewHTTPController(service *Service, repo garden.RepositoryManager, contextKey string, logger garden.Logger) *HTTPController {
	if contextKey == "" {
		contextKey = "user"
	}
	if logger == nil {
		logger = NopLogger{}
	}

	return &HTTPController{
		service:    service,
		repo:       repo,
		contextKey: contextKey,
		logger:     logger,
	}
}

// RegisterRoutes registers recommendation routes on the given group.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Post("/plant-recommendations", c.PlantRecommendations)
	group.Post("/ask", c.Ask)
	group.Get("/gardens/:id/recommendations", c.ShowGardenRecommendations)
	group.Post("/gardens/:id/recommendations", c.GenerateGardenRecommendations)
}

// PlantRecommendationPayload is the by-zip request body.
type PlantRecommendationPayload struct {
	ZipCode string `json:"zip_code"`
}

// Validate will run validation rules
func (r PlantRecommendationPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ZipCode, validation.Required, validation.Length(5, 5), is.Digit),
	)
}

// PlantRecommendations generates recommendations for an arbitrary zip code
// without touching the cache.
func (c *HTTPController) PlantRecommendations(ctx router.Context) error {
	payload := new(PlantRecommendationPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.renderBadPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return c.renderValidation(ctx, err)
	}

	recommendations, err := c.service.PlantRecommendations(ctx.Context(), payload.ZipCode)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"zip_code":        payload.ZipCode,
		"recommendations": recommendations,
	})
}

// QuestionPayload is the free-form question body.
type QuestionPayload struct {
	Question string `json:"question"`
}

// Validate will run validation rules
func (r QuestionPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Question, validation.Required, validation.Length(1, 2000)),
	)
}

// Ask answers a general gardening question.
func (c *HTTPController) Ask(ctx router.Context) error {
	payload := new(QuestionPayload)
	if err := ctx.Bind(payload); err != nil {
		return c.renderBadPayload(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return c.renderValidation(ctx, err)
	}

	answer, err := c.service.Ask(ctx.Context(), payload.Question)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"answer": answer,
	})
}

// ShowGardenRecommendations returns the cached payload for a garden.
func (c *HTTPController) ShowGardenRecommendations(ctx router.Context) error {
	record, err := c.ownedGarden(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}

	cached, err := c.repo.Gardens().Recommendation(ctx.Context(), record.ID)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"garden_id":       record.ID,
		"zip_code":        record.ZipCode,
		"recommendations": json.RawMessage(cached.Data),
		"generated_at":    cached.UpdatedAt,
	})
}

// GenerateGardenRecommendations generates recommendations for the garden's
// zip code and upserts them into the cache. Pass refresh=true to force a
// model call even when a cached row exists.
func (c *HTTPController) GenerateGardenRecommendations(ctx router.Context) error {
	record, err := c.ownedGarden(ctx)
	if err != nil {
		return c.renderError(ctx, err)
	}

	if ctx.Query("refresh") != "true" {
		if cached, err := c.repo.Gardens().Recommendation(ctx.Context(), record.ID); err == nil {
			return ctx.JSON(router.StatusOK, map[string]any{
				"garden_id":       record.ID,
				"zip_code":        record.ZipCode,
				"recommendations": json.RawMessage(cached.Data),
				"generated_at":    cached.UpdatedAt,
				"cached":          true,
			})
		}
	}

	recommendations, err := c.service.PlantRecommendations(ctx.Context(), record.ZipCode)
	if err != nil {
		return c.renderError(ctx, err)
	}

	cached, err := c.repo.Gardens().SaveRecommendation(ctx.Context(), record.ID, string(recommendations))
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"garden_id":       record.ID,
		"zip_code":        record.ZipCode,
		"recommendations": recommendations,
		"generated_at":    cached.UpdatedAt,
		"cached":          false,
	})
}

func (c *HTTPController) ownedGarden(ctx router.Context) (*garden.Garden, error) {
	user, ok := garden.FromRouterContext(ctx, c.contextKey)
	if !ok {
		return nil, errors.New("no authenticated user in request context", errors.CategoryInternal).
			WithCode(errors.CodeInternal)
	}

	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New("invalid id parameter", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	return c.repo.Gardens().FindByID(ctx.Context(), user.SubjectID, id)
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
	if garden.IsRecordNotFound(err) {
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
