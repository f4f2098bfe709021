package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/planforge/planforge-api/internal/api/middleware"
	"github.com/planforge/planforge-api/internal/api/shared"
	"github.com/planforge/planforge-api/internal/service"
)

// JobHandler handles generation job HTTP requests.
type JobHandler struct {
	jobService service.JobService
	validator  *validator.Validate
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobService service.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		validator:  validator.New(),
	}
}

// GenerateWeeklyPlan handles POST /api/plans/generate requests.
// Accepted submissions return 202 with the job record; the client polls
// GetJob (or subscribes to progress events) for the outcome.
func (h *JobHandler) GenerateWeeklyPlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok || userID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	var req GenerateWeeklyPlanRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	job, err := h.jobService.SubmitWeeklyGeneration(r.Context(), userID, req.Profile)
	if err != nil {
		h.respondSubmitError(w, r, err, userID)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToResponse(job))
}

// RegenerateWeeklyPlan handles POST /api/plans/regenerate requests.
func (h *JobHandler) RegenerateWeeklyPlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok || userID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	var req RegenerateWeeklyPlanRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	job, err := h.jobService.SubmitWeeklyRegeneration(r.Context(), userID, req.PreviousPlanID, req.Feedback)
	if err != nil {
		h.respondSubmitError(w, r, err, userID)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToResponse(job))
}

// RegenerateDay handles POST /api/plans/days/regenerate requests.
func (h *JobHandler) RegenerateDay(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok || userID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	var req RegenerateDayRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	job, err := h.jobService.SubmitDailyRegeneration(r.Context(), userID, req.DayID, req.Reason, req.Styles)
	if err != nil {
		h.respondSubmitError(w, r, err, userID)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToResponse(job))
}

// GetJob handles GET /api/jobs/{id} requests. Ownership is enforced by the
// service: jobs belonging to other users return 404.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok || userID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.jobService.GetJob(r.Context(), jobID, userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}

// respondSubmitError maps submission failures onto HTTP responses. Quota
// denials get a dedicated body listing every breached limit.
func (h *JobHandler) respondSubmitError(w http.ResponseWriter, r *http.Request, err error, userID uuid.UUID) {
	if qe, ok := service.IsQuotaExceeded(err); ok {
		slog.Warn("submission denied by usage gate",
			"user_id", userID,
			"reasons", qe.Decision.Reasons,
			"trace_id", shared.GetTraceID(r.Context()))
		shared.RespondWithJSON(w, r, http.StatusTooManyRequests, QuotaDeniedResponse{
			Error:   "Usage limit exceeded",
			Reasons: qe.Decision.Reasons,
			TraceID: shared.GetTraceID(r.Context()),
		})
		return
	}

	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
