package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/planforge/planforge-api/internal/api/middleware"
	"github.com/planforge/planforge-api/internal/api/shared"
	"github.com/planforge/planforge-api/internal/progress"
	"github.com/planforge/planforge-api/internal/redact"
)

// ProgressHandler streams generation progress events to clients over
// Server-Sent Events. Events are hints, not state: a client that connects
// late or drops the stream reconstructs state by polling the job endpoint.
type ProgressHandler struct {
	broadcaster progress.Broadcaster
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(broadcaster progress.Broadcaster) *ProgressHandler {
	return &ProgressHandler{
		broadcaster: broadcaster,
	}
}

// Stream handles GET /api/progress requests. It subscribes the caller to
// their own progress channel and forwards events until the client
// disconnects.
func (h *ProgressHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok || userID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	events, cancel, err := h.broadcaster.Subscribe(r.Context(), userID)
	if err != nil {
		slog.Error("failed to subscribe to progress events",
			"user_id", userID,
			"error", redact.Error(err))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to subscribe to progress events")
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				slog.Error("failed to encode progress event", "error", err)
				continue
			}
			if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
