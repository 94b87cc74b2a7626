package handlers

import (
	"net/http"
	"time"

	"drowsydetect/internal/models"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	sidecarUp := h.pipeline.SidecarConnected()

	status := "healthy"
	if !sidecarUp {
		status = "degraded"
	}

	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:          status,
		LandmarkService: sidecarUp,
		ActiveClients:   h.hub.Count(),
		Timestamp:       time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	snapshot := h.metrics.Snapshot()
	snapshot["timestamp"] = time.Now().Format(time.RFC3339)
	respondJSON(w, http.StatusOK, snapshot)
}
