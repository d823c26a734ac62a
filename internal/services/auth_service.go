package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"tutorbot-backend/internal/auth"
	"tutorbot-backend/internal/config"
	"tutorbot-backend/internal/models"
)

// AuthService authenticates the single dashboard administrator.
type AuthService struct {
	cfg *config.Config
	log zerolog.Logger
}

func NewAuthService(cfg *config.Config, logger zerolog.Logger) *AuthService {
	return &AuthService{cfg: cfg, log: logger.With().Str("component", "AuthService").Logger()}
}

// Login verifies the admin credentials and returns a signed access token.
// ADMIN_PASSWORD_HASH (bcrypt) takes precedence over ADMIN_PASSWORD.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.AuthResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if !auth.EqualConstantTime(username, s.cfg.AdminUsername) || !s.passwordMatches(password) {
		s.log.Warn().Str("username", username).Msg("admin login rejected")
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := auth.NewAccessToken(username, s.cfg.JWTSecret, s.cfg.TokenExpiration)
	if err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("error generating JWT")
		return nil, ErrCreatingToken
	}
	s.log.Info().Str("username", username).Msg("admin logged in")
	return &models.AuthResponse{AccessToken: token, ExpiresAt: expiresAt.Unix()}, nil
}

func (s *AuthService) passwordMatches(password string) bool {
	if s.cfg.AdminPasswordHash != "" {
		if auth.IsMalformedHash(password, s.cfg.AdminPasswordHash) {
			s.log.Error().Msg("ADMIN_PASSWORD_HASH is not a valid bcrypt hash")
			return false
		}
		return auth.CheckPasswordHash(password, s.cfg.AdminPasswordHash)
	}
	return s.cfg.AdminPassword != "" && auth.EqualConstantTime(password, s.cfg.AdminPassword)
}
