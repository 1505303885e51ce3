package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealforge/mealforge-api/internal/circuitbreaker"
)

type flakyAnalyzer struct {
	calls int
	err   error
}

func (a *flakyAnalyzer) AnalyzePlate(_ context.Context, _ string) (*PlateAnalysis, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &PlateAnalysis{TotalCalories: 420, Confidence: 0.9}, nil
}

func newNutrition(analyzer Analyzer) *NutritionService {
	breaker := circuitbreaker.New(circuitbreaker.Config{MaxFailures: 2, Cooldown: time.Minute})
	return NewNutritionService(analyzer, TemplateGenerator{}, breaker)
}

func TestAnalyzePlate_RequiresImageURL(t *testing.T) {
	s := newNutrition(&flakyAnalyzer{})

	_, err := s.AnalyzePlate(context.Background(), "")
	assert.Error(t, err)
}

func TestAnalyzePlate_PassesThroughResult(t *testing.T) {
	s := newNutrition(&flakyAnalyzer{})

	res, err := s.AnalyzePlate(context.Background(), "https://img/plate.jpg")
	require.NoError(t, err)
	assert.Equal(t, 420.0, res.TotalCalories)
}

func TestAnalyzePlate_FailsFastWhenBreakerOpens(t *testing.T) {
	analyzer := &flakyAnalyzer{err: errors.New("model timeout")}
	s := newNutrition(analyzer)

	_, err := s.AnalyzePlate(context.Background(), "https://img/a.jpg")
	require.Error(t, err)
	_, err = s.AnalyzePlate(context.Background(), "https://img/a.jpg")
	require.Error(t, err)

	// Breaker is now open: the collaborator must not be reached again.
	_, err = s.AnalyzePlate(context.Background(), "https://img/a.jpg")
	assert.ErrorIs(t, err, ErrAnalysisUnavailable)
	assert.Equal(t, 2, analyzer.calls)

	snap := s.BreakerSnapshot()
	assert.Equal(t, circuitbreaker.StateOpen, snap.State)
}

func TestGeneratePlan_ClampsDays(t *testing.T) {
	s := newNutrition(&flakyAnalyzer{})

	plan, err := s.GeneratePlan(context.Background(), "workout", "strength", 0)
	require.NoError(t, err)
	assert.Len(t, plan.Days, 7)

	plan, err = s.GeneratePlan(context.Background(), "meal", "cutting", 90)
	require.NoError(t, err)
	assert.Len(t, plan.Days, 30)
}

func TestTemplateGenerator_NumbersDays(t *testing.T) {
	plan, err := TemplateGenerator{}.GeneratePlan(context.Background(), "workout", "endurance", 10)
	require.NoError(t, err)

	require.Len(t, plan.Days, 10)
	for i, day := range plan.Days {
		assert.Equal(t, i+1, day.Day)
		assert.NotEmpty(t, day.Entries)
	}
}

func TestStaticAnalyzer_KeysOffURLHints(t *testing.T) {
	res, err := StaticAnalyzer{}.AnalyzePlate(context.Background(), "https://img/salad-bowl.jpg")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "garden salad", res.Items[0].Name)
	assert.Equal(t, res.Items[0].Calories, res.TotalCalories)
}
