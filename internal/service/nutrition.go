package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mealforge/mealforge-api/internal/circuitbreaker"
)

// PlateAnalysis is the structured result of analyzing a food-plate image.
type PlateAnalysis struct {
	Items         []PlateItem `json:"items"`
	TotalCalories float64     `json:"total_calories"`
	Confidence    float64     `json:"confidence"`
}

type PlateItem struct {
	Name     string  `json:"name"`
	Portion  string  `json:"portion"`
	Calories float64 `json:"calories"`
}

// Plan is a generated workout or meal plan.
type Plan struct {
	Kind string    `json:"kind"`
	Goal string    `json:"goal"`
	Days []PlanDay `json:"days"`
}

type PlanDay struct {
	Day     int      `json:"day"`
	Entries []string `json:"entries"`
}

// Analyzer is the external image-analysis collaborator. Correctness of the
// analysis is outside this service's scope.
type Analyzer interface {
	AnalyzePlate(ctx context.Context, imageURL string) (*PlateAnalysis, error)
}

// PlanGenerator is the external plan-generation collaborator.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, kind, goal string, days int) (*Plan, error)
}

var ErrAnalysisUnavailable = errors.New("analysis backend unavailable")

// NutritionService fronts the external collaborators and shields them with a
// circuit breaker: a flapping model backend fails fast instead of piling up
// in-flight requests.
type NutritionService struct {
	analyzer  Analyzer
	generator PlanGenerator
	breaker   *circuitbreaker.CircuitBreaker
}

func NewNutritionService(analyzer Analyzer, generator PlanGenerator, breaker *circuitbreaker.CircuitBreaker) *NutritionService {
	return &NutritionService{
		analyzer:  analyzer,
		generator: generator,
		breaker:   breaker,
	}
}

func (s *NutritionService) AnalyzePlate(ctx context.Context, imageURL string) (*PlateAnalysis, error) {
	if imageURL == "" {
		return nil, errors.New("image_url is required")
	}

	var result *PlateAnalysis
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.analyzer.AnalyzePlate(ctx, imageURL)
		return err
	})

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil, ErrAnalysisUnavailable
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *NutritionService) GeneratePlan(ctx context.Context, kind, goal string, days int) (*Plan, error) {
	if days <= 0 {
		days = 7
	}
	if days > 30 {
		days = 30
	}

	var result *Plan
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.generator.GeneratePlan(ctx, kind, goal, days)
		return err
	})

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil, ErrAnalysisUnavailable
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *NutritionService) BreakerSnapshot() circuitbreaker.Snapshot {
	return s.breaker.Snapshot()
}

// TemplateGenerator is a deterministic PlanGenerator that expands static
// templates. It stands in for the model-backed generator in development and
// tests.
type TemplateGenerator struct{}

var workoutTemplate = []string{
	"30 min cardio",
	"Upper body strength",
	"Rest or light stretching",
	"Lower body strength",
	"Core and mobility",
	"Full body circuit",
	"Rest",
}

var mealTemplate = []string{
	"Oatmeal with berries / grilled chicken salad / salmon with rice",
	"Greek yogurt with granola / turkey wrap / lentil curry",
	"Scrambled eggs on toast / quinoa bowl / lean beef stir fry",
}

func (TemplateGenerator) GeneratePlan(_ context.Context, kind, goal string, days int) (*Plan, error) {
	template := workoutTemplate
	if kind == "meal" {
		template = mealTemplate
	}

	plan := &Plan{Kind: kind, Goal: goal}
	for i := 0; i < days; i++ {
		plan.Days = append(plan.Days, PlanDay{
			Day:     i + 1,
			Entries: []string{template[i%len(template)]},
		})
	}

	return plan, nil
}

// StaticAnalyzer is a development stand-in for the model-backed analyzer.
// It keys canned results off hints in the image URL.
type StaticAnalyzer struct{}

func (StaticAnalyzer) AnalyzePlate(_ context.Context, imageURL string) (*PlateAnalysis, error) {
	item := PlateItem{Name: "mixed plate", Portion: "1 serving", Calories: 560}
	if strings.Contains(imageURL, "salad") {
		item = PlateItem{Name: "garden salad", Portion: "1 bowl", Calories: 180}
	}

	return &PlateAnalysis{
		Items:         []PlateItem{item},
		TotalCalories: item.Calories,
		Confidence:    0.42,
	}, nil
}

// String summary used in logs.
func (p *Plan) String() string {
	return fmt.Sprintf("%s plan (%s, %d days)", p.Kind, p.Goal, len(p.Days))
}
