package recommend_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/garden-planner/recommend"
)

type generatorStub struct {
	calls          int
	lastPrompt     string
	lastStructured bool
	out            string
	err            error
}

func (g *generatorStub) Generate(ctx context.Context, prompt string, structured bool) (string, error) {
	g.calls++
	g.lastPrompt = prompt
	g.lastStructured = structured
	return g.out, g.err
}

func TestService_PlantRecommendations(t *testing.T) {
	stub := &generatorStub{out: `{"recommendedPlants":{"herbs":[]}}`}
	service := recommend.NewWithGenerator(stub, nil)

	payload, err := service.PlantRecommendations(context.Background(), "94110")
	require.NoError(t, err)
	assert.JSONEq(t, `{"recommendedPlants":{"herbs":[]}}`, string(payload))

	assert.True(t, stub.lastStructured)
	assert.Contains(t, stub.lastPrompt, "94110")
}

func TestService_PlantRecommendationsInvalidJSON(t *testing.T) {
	stub := &generatorStub{out: "sorry, I cannot help with that"}
	service := recommend.NewWithGenerator(stub, nil)

	_, err := service.PlantRecommendations(context.Background(), "94110")
	require.Error(t, err)

	var rich *errors.Error
	require.ErrorAs(t, err, &rich)
	assert.Equal(t, errors.CodeBadGateway, rich.Code)
}

func TestService_PlantRecommendationsModelFailure(t *testing.T) {
	stub := &generatorStub{err: fmt.Errorf("rate limited")}
	service := recommend.NewWithGenerator(stub, nil)

	_, err := service.PlantRecommendations(context.Background(), "94110")
	require.Error(t, err)

	var rich *errors.Error
	require.ErrorAs(t, err, &rich)
	assert.Equal(t, errors.CodeBadGateway, rich.Code)
}

func TestService_Ask(t *testing.T) {
	stub := &generatorStub{out: "  Water deeply once a week.\n"}
	service := recommend.NewWithGenerator(stub, nil)

	answer, err := service.Ask(context.Background(), "How often should I water tomatoes?")
	require.NoError(t, err)
	assert.Equal(t, "Water deeply once a week.", answer)

	assert.False(t, stub.lastStructured)
	assert.True(t, strings.HasPrefix(stub.lastPrompt, "How often"))
}
