package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge-api/internal/api"
	"github.com/planforge/planforge-api/internal/api/shared"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/quota"
	"github.com/planforge/planforge-api/internal/service"
)

// mockJobService implements service.JobService for handler tests.
type mockJobService struct {
	SubmitWeeklyGenerationFn   func(ctx context.Context, userID uuid.UUID, profile string) (*domain.GenerationJob, error)
	SubmitWeeklyRegenerationFn func(ctx context.Context, userID uuid.UUID, previousPlanID uuid.UUID, feedback string) (*domain.GenerationJob, error)
	SubmitDailyRegenerationFn  func(ctx context.Context, userID uuid.UUID, dayID uuid.UUID, reason string, styles []string) (*domain.GenerationJob, error)
	GetJobFn                   func(ctx context.Context, jobID, userID uuid.UUID) (*domain.GenerationJob, error)
}

var _ service.JobService = (*mockJobService)(nil)

func (m *mockJobService) SubmitWeeklyGeneration(ctx context.Context, userID uuid.UUID, profile string) (*domain.GenerationJob, error) {
	return m.SubmitWeeklyGenerationFn(ctx, userID, profile)
}

func (m *mockJobService) SubmitWeeklyRegeneration(ctx context.Context, userID uuid.UUID, previousPlanID uuid.UUID, feedback string) (*domain.GenerationJob, error) {
	return m.SubmitWeeklyRegenerationFn(ctx, userID, previousPlanID, feedback)
}

func (m *mockJobService) SubmitDailyRegeneration(ctx context.Context, userID uuid.UUID, dayID uuid.UUID, reason string, styles []string) (*domain.GenerationJob, error) {
	return m.SubmitDailyRegenerationFn(ctx, userID, dayID, reason, styles)
}

func (m *mockJobService) GetJob(ctx context.Context, jobID, userID uuid.UUID) (*domain.GenerationJob, error) {
	return m.GetJobFn(ctx, jobID, userID)
}

func authenticatedRequest(t *testing.T, method, target string, userID uuid.UUID, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		ctx := context.WithValue(req.Context(), shared.UserIDContextKey, userID)
		req = req.WithContext(ctx)
	}
	return req
}

func newPendingJob(t *testing.T, userID uuid.UUID, jobType domain.JobType) *domain.GenerationJob {
	t.Helper()

	job, err := domain.NewGenerationJob(userID, jobType, []byte(`{}`))
	require.NoError(t, err)
	return job
}

func TestGenerateWeeklyPlan(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("accepted submission returns 202 with job record", func(t *testing.T) {
		t.Parallel()

		job := newPendingJob(t, userID, domain.JobTypeWeeklyGeneration)
		svc := &mockJobService{
			SubmitWeeklyGenerationFn: func(ctx context.Context, gotUser uuid.UUID, profile string) (*domain.GenerationJob, error) {
				assert.Equal(t, userID, gotUser)
				assert.Equal(t, "3 days full body", profile)
				return job, nil
			},
		}
		handler := api.NewJobHandler(svc)

		req := authenticatedRequest(t, http.MethodPost, "/api/plans/generate", userID,
			api.GenerateWeeklyPlanRequest{Profile: "3 days full body"})
		rr := httptest.NewRecorder()
		handler.GenerateWeeklyPlan(rr, req)

		require.Equal(t, http.StatusAccepted, rr.Code)

		var resp api.JobResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, job.ID, resp.ID)
		assert.Equal(t, string(domain.JobStatusPending), resp.Status)
		assert.Equal(t, 0, resp.Progress)
	})

	t.Run("missing authentication returns 401", func(t *testing.T) {
		t.Parallel()

		handler := api.NewJobHandler(&mockJobService{})
		req := authenticatedRequest(t, http.MethodPost, "/api/plans/generate", uuid.Nil,
			api.GenerateWeeklyPlanRequest{Profile: "3 days"})
		rr := httptest.NewRecorder()
		handler.GenerateWeeklyPlan(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		t.Parallel()

		handler := api.NewJobHandler(&mockJobService{})
		req := httptest.NewRequest(http.MethodPost, "/api/plans/generate", bytes.NewBufferString("{not json"))
		req = req.WithContext(context.WithValue(req.Context(), shared.UserIDContextKey, userID))
		rr := httptest.NewRecorder()
		handler.GenerateWeeklyPlan(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("empty profile fails validation", func(t *testing.T) {
		t.Parallel()

		handler := api.NewJobHandler(&mockJobService{})
		req := authenticatedRequest(t, http.MethodPost, "/api/plans/generate", userID,
			api.GenerateWeeklyPlanRequest{Profile: ""})
		rr := httptest.NewRecorder()
		handler.GenerateWeeklyPlan(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("quota denial returns 429 with every reason", func(t *testing.T) {
		t.Parallel()

		reasons := []string{
			"Weekly plan generation limit reached (2 of 2 used).",
			"Token budget exhausted (50000 of 50000 used).",
		}
		svc := &mockJobService{
			SubmitWeeklyGenerationFn: func(ctx context.Context, gotUser uuid.UUID, profile string) (*domain.GenerationJob, error) {
				return nil, &service.QuotaExceededError{Decision: quota.Decision{Allowed: false, Reasons: reasons}}
			},
		}
		handler := api.NewJobHandler(svc)

		req := authenticatedRequest(t, http.MethodPost, "/api/plans/generate", userID,
			api.GenerateWeeklyPlanRequest{Profile: "3 days"})
		rr := httptest.NewRecorder()
		handler.GenerateWeeklyPlan(rr, req)

		require.Equal(t, http.StatusTooManyRequests, rr.Code)

		var resp api.QuotaDeniedResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "Usage limit exceeded", resp.Error)
		assert.Equal(t, reasons, resp.Reasons)
	})

	t.Run("saturated queue returns 503", func(t *testing.T) {
		t.Parallel()

		svc := &mockJobService{
			SubmitWeeklyGenerationFn: func(ctx context.Context, gotUser uuid.UUID, profile string) (*domain.GenerationJob, error) {
				return nil, fmt.Errorf("%w: queue is full", service.ErrSubmissionRejected)
			},
		}
		handler := api.NewJobHandler(svc)

		req := authenticatedRequest(t, http.MethodPost, "/api/plans/generate", userID,
			api.GenerateWeeklyPlanRequest{Profile: "3 days"})
		rr := httptest.NewRecorder()
		handler.GenerateWeeklyPlan(rr, req)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestRegenerateWeeklyPlan(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	previousID := uuid.New()

	t.Run("accepted submission returns 202", func(t *testing.T) {
		t.Parallel()

		job := newPendingJob(t, userID, domain.JobTypeWeeklyRegeneration)
		svc := &mockJobService{
			SubmitWeeklyRegenerationFn: func(ctx context.Context, gotUser uuid.UUID, gotPrev uuid.UUID, feedback string) (*domain.GenerationJob, error) {
				assert.Equal(t, previousID, gotPrev)
				assert.Equal(t, "more cardio", feedback)
				return job, nil
			},
		}
		handler := api.NewJobHandler(svc)

		req := authenticatedRequest(t, http.MethodPost, "/api/plans/regenerate", userID,
			api.RegenerateWeeklyPlanRequest{PreviousPlanID: previousID, Feedback: "more cardio"})
		rr := httptest.NewRecorder()
		handler.RegenerateWeeklyPlan(rr, req)

		assert.Equal(t, http.StatusAccepted, rr.Code)
	})

	t.Run("missing feedback fails validation", func(t *testing.T) {
		t.Parallel()

		handler := api.NewJobHandler(&mockJobService{})
		req := authenticatedRequest(t, http.MethodPost, "/api/plans/regenerate", userID,
			api.RegenerateWeeklyPlanRequest{PreviousPlanID: previousID})
		rr := httptest.NewRecorder()
		handler.RegenerateWeeklyPlan(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRegenerateDay(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	dayID := uuid.New()

	t.Run("accepted submission returns 202", func(t *testing.T) {
		t.Parallel()

		job := newPendingJob(t, userID, domain.JobTypeDailyRegeneration)
		svc := &mockJobService{
			SubmitDailyRegenerationFn: func(ctx context.Context, gotUser uuid.UUID, gotDay uuid.UUID, reason string, styles []string) (*domain.GenerationJob, error) {
				assert.Equal(t, dayID, gotDay)
				assert.Equal(t, "equipment unavailable", reason)
				assert.Equal(t, []string{"bodyweight", "bands"}, styles)
				return job, nil
			},
		}
		handler := api.NewJobHandler(svc)

		req := authenticatedRequest(t, http.MethodPost, "/api/plans/days/regenerate", userID,
			api.RegenerateDayRequest{DayID: dayID, Reason: "equipment unavailable", Styles: []string{"bodyweight", "bands"}})
		rr := httptest.NewRecorder()
		handler.RegenerateDay(rr, req)

		assert.Equal(t, http.StatusAccepted, rr.Code)
	})

	t.Run("too many styles fails validation", func(t *testing.T) {
		t.Parallel()

		styles := make([]string, 11)
		for i := range styles {
			styles[i] = "style"
		}

		handler := api.NewJobHandler(&mockJobService{})
		req := authenticatedRequest(t, http.MethodPost, "/api/plans/days/regenerate", userID,
			api.RegenerateDayRequest{DayID: dayID, Reason: "because", Styles: styles})
		rr := httptest.NewRecorder()
		handler.RegenerateDay(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	newRouter := func(svc service.JobService) http.Handler {
		r := chi.NewRouter()
		handler := api.NewJobHandler(svc)
		r.Get("/api/jobs/{id}", handler.GetJob)
		return r
	}

	t.Run("returns job for its owner", func(t *testing.T) {
		t.Parallel()

		job := newPendingJob(t, userID, domain.JobTypeWeeklyGeneration)
		svc := &mockJobService{
			GetJobFn: func(ctx context.Context, jobID, gotUser uuid.UUID) (*domain.GenerationJob, error) {
				assert.Equal(t, job.ID, jobID)
				assert.Equal(t, userID, gotUser)
				return job, nil
			},
		}

		req := authenticatedRequest(t, http.MethodGet, "/api/jobs/"+job.ID.String(), userID, nil)
		rr := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var resp api.JobResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, job.ID, resp.ID)
	})

	t.Run("invalid job ID returns 400", func(t *testing.T) {
		t.Parallel()

		req := authenticatedRequest(t, http.MethodGet, "/api/jobs/not-a-uuid", userID, nil)
		rr := httptest.NewRecorder()
		newRouter(&mockJobService{}).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown or foreign job returns 404", func(t *testing.T) {
		t.Parallel()

		svc := &mockJobService{
			GetJobFn: func(ctx context.Context, jobID, gotUser uuid.UUID) (*domain.GenerationJob, error) {
				return nil, service.ErrJobNotFound
			},
		}

		req := authenticatedRequest(t, http.MethodGet, "/api/jobs/"+uuid.New().String(), userID, nil)
		rr := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("store failure returns 500 without leaking details", func(t *testing.T) {
		t.Parallel()

		svc := &mockJobService{
			GetJobFn: func(ctx context.Context, jobID, gotUser uuid.UUID) (*domain.GenerationJob, error) {
				return nil, errors.New("pq: connection refused host=10.0.0.5")
			},
		}

		req := authenticatedRequest(t, http.MethodGet, "/api/jobs/"+uuid.New().String(), userID, nil)
		rr := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "10.0.0.5")
	})
}
