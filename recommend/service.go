// Package recommend produces AI-backed planting advice: structured plant
// recommendations for a climate (by US zip code) and free-form gardening
// answers, both served by the Gemini API.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	garden "github.com/goliatone/garden-planner"
)

const defaultModel = "gemini-1.5-flash"

const recommendationPrompt = `You are an expert horticulturalist and garden planner. Based on the user's location, your task is to recommend a variety of plants that will thrive in that specific climate and growing conditions.

**User's Location:**
- Zip Code: %s

**Your Task:**
Using your knowledge of climate zones, growing conditions, and regional plant suitability for the provided zip code, provide a list of 5-7 plant recommendations for each of the following categories: "Shade Trees", "Fruit Trees", "Flowering Shrubs", "Vegetables", and "Herbs".

For each plant, you must provide the following details:
- commonName: The common, everyday name of the plant.
- botanicalName: The scientific or botanical name.
- plantType: The category you are placing it in (e.g., "Shade Tree").
- sunlightNeeds: A brief description (e.g., "Full Sun", "Partial Shade", "6-8 hours of sun").
- waterNeeds: A brief description (e.g., "Drought tolerant once established", "Consistent moisture").
- matureSize: The typical height and width at maturity (e.g., "15-20 ft tall, 10 ft wide").
- spacing: The recommended planting distance from other plants, in feet. This must be a single number.

Return your response as a single, valid JSON object that strictly follows the schema provided. Do not include any introductory text or explanations outside of the JSON structure.`

// Generator is the model surface the service depends on, extracted so tests
// can substitute a canned model.
type Generator interface {
	Generate(ctx context.Context, prompt string, structured bool) (string, error)
}

// Config configures the recommendation service.
type Config struct {
	APIKey string
	Model  string
}

// Service turns zip codes and questions into Gemini calls.
type Service struct {
	generator Generator
	logger    garden.Logger
}

// New creates the recommendation service backed by the real Gemini client.
func New(ctx context.Context, cfg Config, logger garden.Logger) (*Service, func() error, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, nil, errors.New("recommendation API key is not configured", errors.CategoryInternal).
			WithCode(errors.CodeInternal)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CategoryInternal, "failed to create generative client").
			WithCode(errors.CodeInternal)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	svc := NewWithGenerator(&geminiGenerator{client: client, model: model}, logger)
	return svc, client.Close, nil
}

// NewWithGenerator creates the service over any Generator.
func NewWithGenerator(g Generator, logger garden.Logger) *Service {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Service{
		generator: g,
		logger:    logger,
	}
}

// PlantRecommendations asks the model for a structured recommendation
// payload for the zip code and returns it as raw JSON.
func (s *Service) PlantRecommendations(ctx context.Context, zipCode string) (json.RawMessage, error) {
	prompt := fmt.Sprintf(recommendationPrompt, zipCode)

	out, err := s.generator.Generate(ctx, prompt, true)
	if err != nil {
		return nil, wrapModelErr(err, "plant recommendation request failed")
	}

	if !json.Valid([]byte(out)) {
		s.logger.Error("Model returned invalid JSON payload", "zip_code", zipCode)
		return nil, errors.New("model returned an invalid recommendation payload", errors.CategoryExternal).
			WithCode(http.StatusBadGateway)
	}

	s.logger.Info("Generated plant recommendations", "zip_code", zipCode)
	return json.RawMessage(out), nil
}

// Ask answers a free-form gardening question.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	out, err := s.generator.Generate(ctx, question, false)
	if err != nil {
		return "", wrapModelErr(err, "gardening question failed")
	}
	return strings.TrimSpace(out), nil
}

func wrapModelErr(err error, msg string) error {
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich
	}
	return errors.Wrap(err, errors.CategoryExternal, msg).
		WithCode(http.StatusBadGateway)
}

type geminiGenerator struct {
	client *genai.Client
	model  string
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string, structured bool) (string, error) {
	model := g.client.GenerativeModel(g.model)
	if structured {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = recommendationSchema()
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("model returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("model returned no text parts")
	}

	return sb.String(), nil
}

// recommendationSchema inlines the plant schema per category because the
// API does not support $ref.
func recommendationSchema() *genai.Schema {
	plant := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"commonName":    {Type: genai.TypeString},
			"botanicalName": {Type: genai.TypeString},
			"plantType":     {Type: genai.TypeString},
			"sunlightNeeds": {Type: genai.TypeString},
			"waterNeeds":    {Type: genai.TypeString},
			"matureSize":    {Type: genai.TypeString},
			"spacing":       {Type: genai.TypeNumber},
		},
		Required: []string{
			"commonName",
			"botanicalName",
			"plantType",
			"sunlightNeeds",
			"waterNeeds",
			"matureSize",
			"spacing",
		},
	}

	categories := []string{"shadeTrees", "fruitTrees", "floweringShrubs", "vegetables", "herbs"}
	props := make(map[string]*genai.Schema, len(categories))
	for _, category := range categories {
		props[category] = &genai.Schema{Type: genai.TypeArray, Items: plant}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"recommendedPlants": {
				Type:       genai.TypeObject,
				Properties: props,
			},
		},
	}
}

// NopLogger discards all log output.
type NopLogger struct{}

func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Error(string, ...any) {}
