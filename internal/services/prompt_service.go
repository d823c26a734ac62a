package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tutorbot-backend/internal/models"
	"tutorbot-backend/internal/store"
)

const (
	defaultPromptName    = "Default Prompt"
	defaultPromptContent = "You are a helpful AI assistant. Be concise, friendly, and professional."
)

// PromptService handles business logic for system prompts and the active pointer.
type PromptService struct {
	store store.PromptStore
	log   zerolog.Logger
	newID func() string
}

// NewPromptService creates a new PromptService.
func NewPromptService(s store.PromptStore, logger zerolog.Logger) *PromptService {
	return &PromptService{
		store: s,
		log:   logger.With().Str("component", "PromptService").Logger(),
		newID: uuid.NewString,
	}
}

// ListPrompts returns every prompt plus the active id (nil when none is set).
func (s *PromptService) ListPrompts(ctx context.Context) (*models.ListPromptsResponse, error) {
	prompts, err := s.store.ListPrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts from store: %w", err)
	}
	activeID, err := s.store.GetActivePromptID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get active prompt id: %w", err)
	}
	resp := &models.ListPromptsResponse{Prompts: prompts}
	if activeID != "" {
		resp.ActiveID = &activeID
	}
	return resp, nil
}

// GetPrompt propagates store.ErrNotFound.
func (s *PromptService) GetPrompt(ctx context.Context, id string) (*models.Prompt, error) {
	p, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get prompt from store: %w", err)
	}
	return p, nil
}

// CreatePrompt stores a new prompt. The first prompt ever stored becomes active.
func (s *PromptService) CreatePrompt(ctx context.Context, req models.CreatePromptRequest) (*models.Prompt, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: name and content are required", ErrValidation)
	}
	existing, err := s.store.ListPrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts from store: %w", err)
	}

	p := &models.Prompt{ID: s.newID(), Name: req.Name, Content: req.Content}
	if err := s.store.CreatePrompt(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create prompt in store: %w", err)
	}
	s.log.Info().Str("promptId", p.ID).Str("name", p.Name).Msg("prompt created")

	if len(existing) == 0 {
		if err := s.store.SetActivePromptID(ctx, p.ID); err != nil {
			return nil, fmt.Errorf("failed to activate first prompt: %w", err)
		}
	}
	return p, nil
}

// UpdatePrompt applies a partial update. Empty strings leave a field unchanged.
func (s *PromptService) UpdatePrompt(ctx context.Context, id string, req models.UpdatePromptRequest) (*models.Prompt, error) {
	params := store.UpdatePromptParams{ID: id}
	if req.Name != nil && *req.Name != "" {
		params.Name = req.Name
	}
	if req.Content != nil && *req.Content != "" {
		params.Content = req.Content
	}
	p, err := s.store.UpdatePrompt(ctx, params)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update prompt in store: %w", err)
	}
	return p, nil
}

// DeletePrompt removes a prompt. Deleting the active prompt activates the
// first remaining one, or clears the pointer when none is left.
func (s *PromptService) DeletePrompt(ctx context.Context, id string) error {
	if err := s.store.DeletePrompt(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete prompt from store: %w", err)
	}

	activeID, err := s.store.GetActivePromptID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get active prompt id: %w", err)
	}
	if activeID != id {
		return nil
	}
	remaining, err := s.store.ListPrompts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list prompts from store: %w", err)
	}
	next := ""
	if len(remaining) > 0 {
		next = remaining[0].ID
	}
	if err := s.store.SetActivePromptID(ctx, next); err != nil {
		return fmt.Errorf("failed to reassign active prompt: %w", err)
	}
	s.log.Info().Str("deletedId", id).Str("activeId", next).Msg("active prompt deleted, pointer reassigned")
	return nil
}

// ActivatePrompt points the bot at an existing prompt.
func (s *PromptService) ActivatePrompt(ctx context.Context, id string) (*models.ActivatePromptResponse, error) {
	if _, err := s.GetPrompt(ctx, id); err != nil {
		return nil, err
	}
	if err := s.store.SetActivePromptID(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to set active prompt: %w", err)
	}
	return &models.ActivatePromptResponse{Success: true, ActiveID: id}, nil
}

// EnsureDefaultPrompt seeds and activates a default prompt when the store is empty.
func (s *PromptService) EnsureDefaultPrompt(ctx context.Context) error {
	prompts, err := s.store.ListPrompts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list prompts from store: %w", err)
	}
	if len(prompts) > 0 {
		return nil
	}
	p, err := s.CreatePrompt(ctx, models.CreatePromptRequest{Name: defaultPromptName, Content: defaultPromptContent})
	if err != nil {
		return err
	}
	s.log.Info().Str("promptId", p.ID).Msg("seeded default prompt")
	return nil
}
