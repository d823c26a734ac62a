package handlers

import (
	"net/http"
	"time"

	"tutorbot-backend/internal/models"
	"tutorbot-backend/pkg/httputil"
)

// HandleHealth handles GET /health.
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, models.HealthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}
