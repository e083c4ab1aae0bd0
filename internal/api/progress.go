package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fweigel/mordspiel/internal/progress"
	"github.com/go-chi/chi/v5"
)

// ProgressHandler ingests progress callbacks from the generation pipeline
// and republishes them to live subscribers.
type ProgressHandler struct {
	broker *progress.Broker
}

// NewProgressHandler creates the progress ingestion handler.
func NewProgressHandler(broker *progress.Broker) *ProgressHandler {
	return &ProgressHandler{broker: broker}
}

// RegisterRoutes registers the internal progress route.
func (h *ProgressHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/internal/progress", h.Ingest)
}

// Ingest validates one progress event and republishes it under the game's
// topic. Events are fire-and-forget for the caller; there is no backlog
// and no acknowledgement beyond this response.
func (h *ProgressHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	defer func() {
		_ = r.Body.Close()
	}()

	var event progress.Event
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64<<10)).Decode(&event); err != nil {
		Error(w, http.StatusUnprocessableEntity, "invalid progress payload")
		return
	}

	if err := event.Validate(); err != nil {
		Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	event.Timestamp = time.Now().UTC()
	h.broker.Publish(progress.Topic(event.GameID), event)

	slog.Debug("Progress event relayed",
		"game_id", event.GameID,
		"stage", event.Stage,
		"progress", event.Progress)

	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
