package store

import (
	"context"
	"errors"

	"tutorbot-backend/internal/models"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// UpdatePromptParams contains parameters for updating a prompt.
// Nil fields are left unchanged.
type UpdatePromptParams struct {
	ID      string
	Name    *string
	Content *string
}

// DialogStore persists one conversation record per user.
type DialogStore interface {
	// LoadDialog returns ErrNotFound when the user has no conversation yet.
	LoadDialog(ctx context.Context, userID string) (*models.Conversation, error)
	SaveDialog(ctx context.Context, conv *models.Conversation) error
	ListDialogUserIDs(ctx context.Context) ([]string, error)
}

// PromptStore persists prompts and the single active-prompt pointer.
type PromptStore interface {
	// GetActivePromptID returns "" when no prompt is active.
	GetActivePromptID(ctx context.Context) (string, error)
	SetActivePromptID(ctx context.Context, id string) error

	GetPrompt(ctx context.Context, id string) (*models.Prompt, error)
	ListPrompts(ctx context.Context) ([]models.Prompt, error)
	CreatePrompt(ctx context.Context, prompt *models.Prompt) error
	UpdatePrompt(ctx context.Context, arg UpdatePromptParams) (*models.Prompt, error)
	DeletePrompt(ctx context.Context, id string) error
}

// Store combines both record stores behind one backend.
// This allows for fakes in tests and switching the storage driver by configuration.
type Store interface {
	DialogStore
	PromptStore
	Close() error
}
