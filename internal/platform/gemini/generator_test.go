package gemini

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"text/template"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge-api/internal/config"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/generation"
	"github.com/planforge/planforge-api/internal/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testGenerator builds a generator with only the fields exercised by the
// helper under test. The genai client is left nil, so these tests must not
// reach callGemini.
func testGenerator(plans *mocks.MockPlanStore) *GeminiGenerator {
	weeklyTmpl := template.Must(template.New("weekly").Parse(weeklyPlanPrompt))
	regenTmpl := template.Must(template.New("regen").Parse(weeklyRegenerationPrompt))
	dayTmpl := template.Must(template.New("day").Parse(dayRegenerationPrompt))

	return &GeminiGenerator{
		logger:     testLogger(),
		plans:      plans,
		model:      "gemini-2.0-flash",
		weeklyTmpl: weeklyTmpl,
		regenTmpl:  regenTmpl,
		dayTmpl:    dayTmpl,
	}
}

func validSchema() *planSchema {
	return &planSchema{
		Name: "Push Pull Legs",
		Days: []daySchema{
			{
				DayIndex: 1,
				Focus:    "Push",
				Exercises: []exerciseSchema{
					{Name: "Bench Press", Sets: 3, Reps: "8-10"},
					{Name: "Overhead Press", Sets: 3, Reps: "8-12"},
				},
			},
			{
				DayIndex: 2,
				Focus:    "Pull",
				Exercises: []exerciseSchema{
					{Name: "Barbell Row", Sets: 4, Reps: "6-8", Style: "strength"},
				},
			},
		},
	}
}

func TestNewGeminiGenerator_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	plans := mocks.NewMockPlanStore()
	cfg := config.LLMConfig{GeminiAPIKey: "test-key", ModelName: "gemini-2.0-flash"}

	t.Run("nil logger", func(t *testing.T) {
		t.Parallel()

		_, err := NewGeminiGenerator(ctx, nil, cfg, plans)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger cannot be nil")
	})

	t.Run("nil plan store", func(t *testing.T) {
		t.Parallel()

		_, err := NewGeminiGenerator(ctx, testLogger(), cfg, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "plan store cannot be nil")
	})

	t.Run("empty API key", func(t *testing.T) {
		t.Parallel()

		badCfg := cfg
		badCfg.GeminiAPIKey = ""
		_, err := NewGeminiGenerator(ctx, testLogger(), badCfg, plans)
		assert.ErrorIs(t, err, generation.ErrInvalidConfig)
	})

	t.Run("empty model name", func(t *testing.T) {
		t.Parallel()

		badCfg := cfg
		badCfg.ModelName = ""
		_, err := NewGeminiGenerator(ctx, testLogger(), badCfg, plans)
		assert.ErrorIs(t, err, generation.ErrInvalidConfig)
	})
}

func TestBuildPlan(t *testing.T) {
	t.Parallel()

	g := testGenerator(mocks.NewMockPlanStore())
	userID := uuid.New()

	t.Run("valid schema produces a plan", func(t *testing.T) {
		t.Parallel()

		sourceID := uuid.New()
		plan, err := g.buildPlan(context.Background(), validSchema(), userID, &sourceID)
		require.NoError(t, err)

		assert.Equal(t, "Push Pull Legs", plan.Name)
		assert.Equal(t, userID, plan.UserID)
		require.NotNil(t, plan.SourceID)
		assert.Equal(t, sourceID, *plan.SourceID)
		require.Len(t, plan.Days, 2)
		assert.Equal(t, 1, plan.Days[0].DayIndex)
		assert.Equal(t, "Push", plan.Days[0].Focus)
		assert.NotEqual(t, uuid.Nil, plan.Days[0].ID)
		assert.Equal(t, 3, plan.ExerciseCount())
		assert.Equal(t, "strength", plan.Days[1].Exercises[0].Style)
	})

	t.Run("nil source leaves SourceID unset", func(t *testing.T) {
		t.Parallel()

		plan, err := g.buildPlan(context.Background(), validSchema(), userID, nil)
		require.NoError(t, err)
		assert.Nil(t, plan.SourceID)
	})

	t.Run("missing day index falls back to position", func(t *testing.T) {
		t.Parallel()

		schema := validSchema()
		schema.Days[0].DayIndex = 0
		schema.Days[1].DayIndex = -3

		plan, err := g.buildPlan(context.Background(), schema, userID, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, plan.Days[0].DayIndex)
		assert.Equal(t, 2, plan.Days[1].DayIndex)
	})

	t.Run("nil schema is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := g.buildPlan(context.Background(), nil, userID, nil)
		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
	})

	t.Run("missing plan name is rejected", func(t *testing.T) {
		t.Parallel()

		schema := validSchema()
		schema.Name = ""
		_, err := g.buildPlan(context.Background(), schema, userID, nil)
		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
	})

	t.Run("empty days are rejected", func(t *testing.T) {
		t.Parallel()

		schema := validSchema()
		schema.Days = nil
		_, err := g.buildPlan(context.Background(), schema, userID, nil)
		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
	})

	t.Run("day without exercises is rejected", func(t *testing.T) {
		t.Parallel()

		schema := validSchema()
		schema.Days[1].Exercises = nil
		_, err := g.buildPlan(context.Background(), schema, userID, nil)
		require.ErrorIs(t, err, generation.ErrInvalidResponse)
		assert.Contains(t, err.Error(), "day 1 has no exercises")
	})

	t.Run("exercise without name is rejected", func(t *testing.T) {
		t.Parallel()

		schema := validSchema()
		schema.Days[0].Exercises[1].Name = ""
		_, err := g.buildPlan(context.Background(), schema, userID, nil)
		require.ErrorIs(t, err, generation.ErrInvalidResponse)
		assert.Contains(t, err.Error(), "exercise 1 missing name")
	})
}

func TestFindDay(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	dayID := uuid.New()

	seedPlan := func(t *testing.T, plans *mocks.MockPlanStore) *domain.Plan {
		t.Helper()

		plan, err := domain.NewPlan(userID, "Upper Lower", []domain.PlanDay{
			{ID: uuid.New(), DayIndex: 1, Focus: "Upper", Exercises: []domain.Exercise{
				{Name: "Bench Press", Sets: 3, Reps: "8-10"},
			}},
			{ID: dayID, DayIndex: 2, Focus: "Lower", Exercises: []domain.Exercise{
				{Name: "Back Squat", Sets: 5, Reps: "5"},
			}},
		})
		require.NoError(t, err)
		require.NoError(t, plans.Create(context.Background(), plan))
		return plan
	}

	t.Run("finds the day in a recent plan", func(t *testing.T) {
		t.Parallel()

		plans := mocks.NewMockPlanStore()
		seeded := seedPlan(t, plans)
		g := testGenerator(plans)

		plan, day, err := g.findDay(context.Background(), userID, dayID)
		require.NoError(t, err)
		assert.Equal(t, seeded.ID, plan.ID)
		assert.Equal(t, dayID, day.ID)
		assert.Equal(t, "Lower", day.Focus)
	})

	t.Run("unknown day fails generation", func(t *testing.T) {
		t.Parallel()

		plans := mocks.NewMockPlanStore()
		seedPlan(t, plans)
		g := testGenerator(plans)

		_, _, err := g.findDay(context.Background(), userID, uuid.New())
		assert.ErrorIs(t, err, generation.ErrGenerationFailed)
	})

	t.Run("another user's plans are not searched", func(t *testing.T) {
		t.Parallel()

		plans := mocks.NewMockPlanStore()
		seedPlan(t, plans)
		g := testGenerator(plans)

		_, _, err := g.findDay(context.Background(), uuid.New(), dayID)
		assert.ErrorIs(t, err, generation.ErrGenerationFailed)
	})
}

func TestRenderPrompt(t *testing.T) {
	t.Parallel()

	g := testGenerator(mocks.NewMockPlanStore())

	t.Run("weekly prompt includes the profile", func(t *testing.T) {
		t.Parallel()

		prompt, err := g.renderPrompt(g.weeklyTmpl, promptData{Profile: "intermediate, 4 days/week"})
		require.NoError(t, err)
		assert.Contains(t, prompt, "intermediate, 4 days/week")
		assert.Contains(t, prompt, "single JSON object")
	})

	t.Run("regeneration prompt omits the previous plan section when empty", func(t *testing.T) {
		t.Parallel()

		prompt, err := g.renderPrompt(g.regenTmpl, promptData{Feedback: "too much volume"})
		require.NoError(t, err)
		assert.Contains(t, prompt, "too much volume")
		assert.NotContains(t, prompt, "previous plan, for reference")
	})

	t.Run("regeneration prompt includes the previous plan when present", func(t *testing.T) {
		t.Parallel()

		prompt, err := g.renderPrompt(g.regenTmpl, promptData{
			Feedback:     "too much volume",
			PreviousPlan: "Old Plan\nDay 1 (Push): Bench Press 3x8-10",
		})
		require.NoError(t, err)
		assert.Contains(t, prompt, "previous plan, for reference")
		assert.Contains(t, prompt, "Bench Press 3x8-10")
	})

	t.Run("day prompt includes styles only when given", func(t *testing.T) {
		t.Parallel()

		data := promptData{
			DayFocus:     "day 2 (Lower)",
			DayExercises: "Back Squat 5x5",
			Reason:       "knee pain",
		}
		prompt, err := g.renderPrompt(g.dayTmpl, data)
		require.NoError(t, err)
		assert.Contains(t, prompt, "knee pain")
		assert.NotContains(t, prompt, "Preferred training styles")

		data.Styles = "bodyweight, bands"
		prompt, err = g.renderPrompt(g.dayTmpl, data)
		require.NoError(t, err)
		assert.Contains(t, prompt, "Preferred training styles: bodyweight, bands")
	})
}

func TestStripCodeFences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain json untouched", `{"name":"Plan"}`, `{"name":"Plan"}`},
		{"json fence", "```json\n{\"name\":\"Plan\"}\n```", `{"name":"Plan"}`},
		{"bare fence", "```\n{\"name\":\"Plan\"}\n```", `{"name":"Plan"}`},
		{"fence without trailing newline", "```json\n{\"name\":\"Plan\"}```", `{"name":"Plan"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, stripCodeFences(tc.input))
		})
	}
}

func TestDescribeHelpers(t *testing.T) {
	t.Parallel()

	exercises := []domain.Exercise{
		{Name: "Bench Press", Sets: 3, Reps: "8-10"},
		{Name: "Dips", Sets: 3, Reps: "AMRAP"},
	}
	assert.Equal(t, "Bench Press 3x8-10, Dips 3xAMRAP", describeExercises(exercises))

	plan := &domain.Plan{
		Name: "Push Day Plan",
		Days: []domain.PlanDay{
			{DayIndex: 1, Focus: "Push", Exercises: exercises},
		},
	}
	got := describePlan(plan)
	assert.Contains(t, got, "Push Day Plan")
	assert.Contains(t, got, "Day 1 (Push): Bench Press 3x8-10, Dips 3xAMRAP")
}
