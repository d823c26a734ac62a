package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"tutorbot-backend/internal/models"
	"tutorbot-backend/internal/services"
	"tutorbot-backend/internal/store"
	"tutorbot-backend/pkg/httputil"
)

// PromptService defines the prompt operations exposed over HTTP.
type PromptService interface {
	ListPrompts(ctx context.Context) (*models.ListPromptsResponse, error)
	GetPrompt(ctx context.Context, id string) (*models.Prompt, error)
	CreatePrompt(ctx context.Context, req models.CreatePromptRequest) (*models.Prompt, error)
	UpdatePrompt(ctx context.Context, id string, req models.UpdatePromptRequest) (*models.Prompt, error)
	DeletePrompt(ctx context.Context, id string) error
	ActivatePrompt(ctx context.Context, id string) (*models.ActivatePromptResponse, error)
}

type PromptHandler struct {
	service PromptService
}

func NewPromptHandler(s PromptService) *PromptHandler {
	return &PromptHandler{service: s}
}

// respondServiceError maps service errors to HTTP status codes.
func respondServiceError(w http.ResponseWriter, err error, notFound, internal string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, notFound)
	case errors.Is(err, services.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg(internal)
		httputil.RespondError(w, http.StatusInternalServerError, internal)
	}
}

// ListPrompts handles GET /api/prompts.
func (h *PromptHandler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListPrompts(r.Context())
	if err != nil {
		respondServiceError(w, err, "", "Failed to load prompts")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}

// GetPrompt handles GET /api/prompts/{id}.
func (h *PromptHandler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPrompt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "Prompt not found", "Failed to load prompt")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, p)
}

// CreatePrompt handles POST /api/prompts.
func (h *PromptHandler) CreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePromptRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	p, err := h.service.CreatePrompt(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "", "Failed to create prompt")
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, p)
}

// UpdatePrompt handles PUT /api/prompts/{id}.
func (h *PromptHandler) UpdatePrompt(w http.ResponseWriter, r *http.Request) {
	var req models.UpdatePromptRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	p, err := h.service.UpdatePrompt(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err, "Prompt not found", "Failed to update prompt")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, p)
}

// DeletePrompt handles DELETE /api/prompts/{id}.
func (h *PromptHandler) DeletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePrompt(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err, "Prompt not found", "Failed to delete prompt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivatePrompt handles POST /api/prompts/{id}/activate.
func (h *PromptHandler) ActivatePrompt(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ActivatePrompt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "Prompt not found", "Failed to set active prompt")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}
