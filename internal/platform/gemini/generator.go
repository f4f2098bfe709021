package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/planforge/planforge-api/internal/config"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/generation"
	"github.com/planforge/planforge-api/internal/store"
)

// Progress milestones reported to the caller during one generation.
const (
	progressPromptReady   = 15
	progressModelCalled   = 30
	progressResponseReady = 70
	progressPlanParsed    = 90
)

// maxPlansScannedForDay bounds how many recent plans the day-regeneration
// flow searches when resolving which plan a day belongs to.
const maxPlansScannedForDay = 20

// GeminiGenerator implements the generation.PlanGenerator interface using
// Google's Gemini API.
type GeminiGenerator struct {
	logger *slog.Logger
	config config.LLMConfig
	client *genai.Client
	plans  store.PlanStore
	model  string

	weeklyTmpl *template.Template
	regenTmpl  *template.Template
	dayTmpl    *template.Template
}

// NewGeminiGenerator creates a new instance of GeminiGenerator with the
// provided dependencies. The plan store is used to load source plans for
// the regeneration flows.
func NewGeminiGenerator(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
	plans store.PlanStore,
) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if plans == nil {
		return nil, errors.New("plan store cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	weeklyTmpl, err := template.New("weekly").Parse(weeklyPlanPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse weekly prompt template: %v",
			generation.ErrInvalidConfig, err)
	}
	regenTmpl, err := template.New("regen").Parse(weeklyRegenerationPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse regeneration prompt template: %v",
			generation.ErrInvalidConfig, err)
	}
	dayTmpl, err := template.New("day").Parse(dayRegenerationPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse day prompt template: %v",
			generation.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &GeminiGenerator{
		logger:     logger.With(slog.String("component", "gemini_generator")),
		config:     cfg,
		client:     client,
		plans:      plans,
		model:      cfg.ModelName,
		weeklyTmpl: weeklyTmpl,
		regenTmpl:  regenTmpl,
		dayTmpl:    dayTmpl,
	}, nil
}

// Ensure GeminiGenerator implements generation.PlanGenerator
var _ generation.PlanGenerator = (*GeminiGenerator)(nil)

// GenerateWeeklyPlan implements generation.PlanGenerator.GenerateWeeklyPlan.
func (g *GeminiGenerator) GenerateWeeklyPlan(
	ctx context.Context,
	userID uuid.UUID,
	profile string,
	onProgress generation.ProgressFunc,
) (*domain.Plan, error) {
	if profile == "" {
		return nil, fmt.Errorf("%w: profile cannot be empty", generation.ErrGenerationFailed)
	}

	prompt, err := g.renderPrompt(g.weeklyTmpl, promptData{Profile: profile})
	if err != nil {
		return nil, err
	}
	report(onProgress, progressPromptReady, "prompt prepared")

	schema, err := g.callGeminiWithRetry(ctx, prompt, onProgress)
	if err != nil {
		return nil, err
	}

	plan, err := g.buildPlan(ctx, schema, userID, nil)
	if err != nil {
		return nil, err
	}
	report(onProgress, progressPlanParsed, "plan validated")
	return plan, nil
}

// RegenerateWeeklyPlan implements
// generation.PlanGenerator.RegenerateWeeklyPlan.
func (g *GeminiGenerator) RegenerateWeeklyPlan(
	ctx context.Context,
	userID uuid.UUID,
	previousPlanID uuid.UUID,
	feedback string,
	onProgress generation.ProgressFunc,
) (*domain.Plan, error) {
	if feedback == "" {
		return nil, fmt.Errorf("%w: feedback cannot be empty", generation.ErrGenerationFailed)
	}

	data := promptData{Feedback: feedback}

	// The previous plan enriches the prompt but is not required: it may
	// already have been deleted.
	previous, err := g.plans.GetByID(ctx, previousPlanID)
	switch {
	case err == nil:
		if previous.UserID != userID {
			return nil, fmt.Errorf("%w: plan %s does not belong to user",
				generation.ErrGenerationFailed, previousPlanID)
		}
		data.PreviousPlan = describePlan(previous)
	case errors.Is(err, store.ErrPlanNotFound):
		g.logger.InfoContext(ctx, "previous plan not found, regenerating from feedback only",
			"plan_id", previousPlanID)
	default:
		return nil, fmt.Errorf("failed to load previous plan: %w", err)
	}

	prompt, err := g.renderPrompt(g.regenTmpl, data)
	if err != nil {
		return nil, err
	}
	report(onProgress, progressPromptReady, "prompt prepared")

	schema, err := g.callGeminiWithRetry(ctx, prompt, onProgress)
	if err != nil {
		return nil, err
	}

	plan, err := g.buildPlan(ctx, schema, userID, &previousPlanID)
	if err != nil {
		return nil, err
	}
	report(onProgress, progressPlanParsed, "plan validated")
	return plan, nil
}

// RegenerateDay implements generation.PlanGenerator.RegenerateDay.
func (g *GeminiGenerator) RegenerateDay(
	ctx context.Context,
	userID uuid.UUID,
	dayID uuid.UUID,
	reason string,
	styles []string,
	onProgress generation.ProgressFunc,
) (*domain.Plan, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: reason cannot be empty", generation.ErrGenerationFailed)
	}

	sourcePlan, sourceDay, err := g.findDay(ctx, userID, dayID)
	if err != nil {
		return nil, err
	}

	prompt, err := g.renderPrompt(g.dayTmpl, promptData{
		DayFocus:     fmt.Sprintf("day %d (%s)", sourceDay.DayIndex, sourceDay.Focus),
		DayExercises: describeExercises(sourceDay.Exercises),
		Reason:       reason,
		Styles:       strings.Join(styles, ", "),
	})
	if err != nil {
		return nil, err
	}
	report(onProgress, progressPromptReady, "prompt prepared")

	schema, err := g.callGeminiWithRetry(ctx, prompt, onProgress)
	if err != nil {
		return nil, err
	}

	plan, err := g.buildPlan(ctx, schema, userID, &sourcePlan.ID)
	if err != nil {
		return nil, err
	}
	plan.Name = fmt.Sprintf("%s (day %d reworked)", sourcePlan.Name, sourceDay.DayIndex)
	report(onProgress, progressPlanParsed, "plan validated")
	return plan, nil
}

// findDay locates the plan owning the given day among the user's recent
// plans.
func (g *GeminiGenerator) findDay(ctx context.Context, userID, dayID uuid.UUID) (*domain.Plan, *domain.PlanDay, error) {
	plans, err := g.plans.FindByUserID(ctx, userID, maxPlansScannedForDay)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load plans: %w", err)
	}

	for _, plan := range plans {
		for i := range plan.Days {
			if plan.Days[i].ID == dayID {
				return plan, &plan.Days[i], nil
			}
		}
	}
	return nil, nil, fmt.Errorf("%w: day %s not found in user's plans",
		generation.ErrGenerationFailed, dayID)
}

// renderPrompt executes a prompt template.
func (g *GeminiGenerator) renderPrompt(tmpl *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// callGeminiWithRetry makes a call to the Gemini API with exponential
// backoff retry logic. Transient errors are retried up to
// config.MaxRetries times; permanent errors (safety blocks, malformed
// responses) are returned immediately.
func (g *GeminiGenerator) callGeminiWithRetry(
	ctx context.Context,
	prompt string,
	onProgress generation.ProgressFunc,
) (*planSchema, error) {
	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		g.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	report(onProgress, progressModelCalled, "calling model")

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1
		g.logger.InfoContext(ctx, "making Gemini API call",
			"attempt", attemptNum,
			"max_attempts", maxRetries+1,
			"model", g.model)

		schema, transient, err := g.callGemini(ctx, prompt)
		if err == nil {
			report(onProgress, progressResponseReady, "response received")
			return schema, nil
		}

		g.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attemptNum,
			"error", err)

		if !transient {
			return nil, err
		}
		if attempt >= maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, maxRetries, err)
		}

		// Exponential backoff with jitter:
		// delay = 2^attempt * (0.5 + rand(0, 0.5)) seconds
		backoffSeconds := math.Pow(2, float64(attempt))
		jitterFactor := 0.5 + rng.Float64()*0.5
		delay := time.Duration(backoffSeconds * jitterFactor * float64(time.Second))

		g.logger.InfoContext(ctx, "retrying after delay",
			"attempt", attemptNum,
			"delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

// callGemini performs a single API call and classifies any failure as
// transient (retryable) or permanent.
func (g *GeminiGenerator) callGemini(ctx context.Context, prompt string) (*planSchema, bool, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, false, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, false, generation.ErrContentBlocked
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, false, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var schema planSchema
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &schema); err != nil {
		return nil, false, fmt.Errorf("%w: failed to parse JSON response: %v",
			generation.ErrInvalidResponse, err)
	}
	return &schema, false, nil
}

// buildPlan converts a planSchema from the Gemini API into a domain.Plan,
// validating each day along the way.
func (g *GeminiGenerator) buildPlan(
	ctx context.Context,
	schema *planSchema,
	userID uuid.UUID,
	sourceID *uuid.UUID,
) (*domain.Plan, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: response is nil", generation.ErrInvalidResponse)
	}
	if schema.Name == "" {
		return nil, fmt.Errorf("%w: plan missing name", generation.ErrInvalidResponse)
	}
	if len(schema.Days) == 0 {
		return nil, fmt.Errorf("%w: no days in response", generation.ErrInvalidResponse)
	}

	days := make([]domain.PlanDay, 0, len(schema.Days))
	for i, day := range schema.Days {
		if len(day.Exercises) == 0 {
			return nil, fmt.Errorf("%w: day %d has no exercises", generation.ErrInvalidResponse, i)
		}

		exercises := make([]domain.Exercise, 0, len(day.Exercises))
		for j, ex := range day.Exercises {
			if ex.Name == "" {
				return nil, fmt.Errorf("%w: day %d exercise %d missing name",
					generation.ErrInvalidResponse, i, j)
			}
			exercises = append(exercises, domain.Exercise{
				Name:  ex.Name,
				Sets:  ex.Sets,
				Reps:  ex.Reps,
				Style: ex.Style,
			})
		}

		dayIndex := day.DayIndex
		if dayIndex <= 0 {
			dayIndex = i + 1
		}
		days = append(days, domain.PlanDay{
			ID:        uuid.New(),
			DayIndex:  dayIndex,
			Focus:     day.Focus,
			Exercises: exercises,
		})
	}

	plan, err := domain.NewPlan(userID, schema.Name, days)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}
	plan.SourceID = sourceID

	g.logger.InfoContext(ctx, "parsed plan from API response",
		"plan_id", plan.ID,
		"days", len(plan.Days),
		"exercises", plan.ExerciseCount())
	return plan, nil
}

// report invokes the progress callback if one was supplied.
func report(onProgress generation.ProgressFunc, percent int, milestone string) {
	if onProgress != nil {
		onProgress(percent, milestone)
	}
}

// stripCodeFences removes a surrounding markdown code fence if the model
// wrapped its JSON in one despite instructions.
func stripCodeFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// describePlan renders a plan as compact text for inclusion in a prompt.
func describePlan(plan *domain.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", plan.Name)
	for _, day := range plan.Days {
		fmt.Fprintf(&b, "Day %d (%s): %s\n", day.DayIndex, day.Focus, describeExercises(day.Exercises))
	}
	return b.String()
}

// describeExercises renders an exercise list as compact text.
func describeExercises(exercises []domain.Exercise) string {
	parts := make([]string, 0, len(exercises))
	for _, ex := range exercises {
		parts = append(parts, fmt.Sprintf("%s %dx%s", ex.Name, ex.Sets, ex.Reps))
	}
	return strings.Join(parts, ", ")
}
