package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	api_models "tutorbot-backend/internal/models"
	"tutorbot-backend/internal/services"
	"tutorbot-backend/pkg/httputil"
)

// AuthService defines the interface expected from the auth service.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*api_models.AuthResponse, error)
}

type AuthHandler struct {
	authService AuthService
}

func NewAuthHandler(authSvc AuthService) *AuthHandler {
	return &AuthHandler{authService: authSvc}
}

// HandleLogin handles the POST /api/auth/login request.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req api_models.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	resp, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			httputil.RespondError(w, http.StatusUnauthorized, err.Error()) // 401
		default:
			log.Error().Err(err).Str("username", req.Username).Msg("login handler failed")
			httputil.RespondError(w, http.StatusInternalServerError, "Login failed due to an internal error")
		}
		return
	}
	httputil.RespondJSON(w, http.StatusOK, resp)
}
