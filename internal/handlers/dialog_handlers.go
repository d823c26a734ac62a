package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tutorbot-backend/internal/models"
	"tutorbot-backend/pkg/httputil"
)

// DialogService defines the read-only dialog reports.
type DialogService interface {
	ListUsers(ctx context.Context) (*models.ListDialogUsersResponse, error)
	GetDialog(ctx context.Context, userID string) (*models.Conversation, error)
	Stats(ctx context.Context) (*models.DialogStatsResponse, error)
}

type DialogHandler struct {
	service DialogService
}

func NewDialogHandler(s DialogService) *DialogHandler {
	return &DialogHandler{service: s}
}

// ListUsers handles GET /api/dialogs/users.
func (h *DialogHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListUsers(r.Context())
	if err != nil {
		respondServiceError(w, err, "", "Failed to load users")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// GetDialog handles GET /api/dialogs/{userId}.
func (h *DialogHandler) GetDialog(w http.ResponseWriter, r *http.Request) {
	conv, err := h.service.GetDialog(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		respondServiceError(w, err, "Dialog not found for this user", "Failed to load dialog")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, conv)
}

// Stats handles GET /api/dialogs/stats.
func (h *DialogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Stats(r.Context())
	if err != nil {
		respondServiceError(w, err, "", "Failed to load statistics")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}
