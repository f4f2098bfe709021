package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/planforge/planforge-api/internal/api/shared"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/service"
)

// WebhookHandler receives billing events from the external billing
// provider. The provider retries on any non-2xx response, so duplicates are
// expected and must always be acknowledged.
type WebhookHandler struct {
	billingService service.BillingService
	validator      *validator.Validate
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(billingService service.BillingService) *WebhookHandler {
	return &WebhookHandler{
		billingService: billingService,
		validator:      validator.New(),
	}
}

// HandleBillingEvent handles POST /api/webhooks/billing requests.
// A duplicate event ID is acknowledged with 200 without reapplying the
// event.
func (h *WebhookHandler) HandleBillingEvent(w http.ResponseWriter, r *http.Request) {
	var req BillingWebhookRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	applied, err := h.billingService.ProcessEvent(r.Context(), service.BillingEvent{
		EventID:   req.EventID,
		EventType: req.EventType,
		UserID:    req.UserID,
		Status:    domain.SubscriptionStatus(req.Status),
		Payload:   req.Data,
	})
	if err != nil {
		// A 5xx prompts the provider to redeliver; the idempotency ledger
		// makes the retry safe.
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to process event", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]bool{"applied": applied})
}
