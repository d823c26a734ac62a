package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tutorbot-backend/internal/models"
	"tutorbot-backend/internal/store"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDialogUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.LoadDialog(ctx, "1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	trim := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	conv := &models.Conversation{
		UserID:      "1",
		DisplayName: "Anna",
		Messages:    []models.Message{{Role: models.RoleUser, Text: "привет"}},
		LastTrimAt:  trim,
		UpdatedAt:   trim.Add(time.Hour),
	}
	if err := s.SaveDialog(ctx, conv); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	conv.Messages = append(conv.Messages, models.Message{Role: models.RoleModel, Text: "здравствуйте"})
	conv.DisplayName = "Anna K"
	if err := s.SaveDialog(ctx, conv); err != nil {
		t.Fatalf("unexpected second save error: %v", err)
	}

	got, err := s.LoadDialog(ctx, "1")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if got.DisplayName != "Anna K" || len(got.Messages) != 2 || got.Messages[1].Text != "здравствуйте" {
		t.Fatalf("unexpected conversation: %+v", got)
	}
	if !got.LastTrimAt.Equal(trim) || !got.UpdatedAt.Equal(trim.Add(time.Hour)) {
		t.Fatalf("unexpected timestamps: %v %v", got.LastTrimAt, got.UpdatedAt)
	}

	if err := s.SaveDialog(ctx, &models.Conversation{UserID: "0", LastTrimAt: trim}); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	ids, err := s.ListDialogUserIDs(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "0" || ids[1] != "1" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestPromptCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if id, err := s.GetActivePromptID(ctx); err != nil || id != "" {
		t.Fatalf("expected empty active id, got %q, %v", id, err)
	}

	for _, p := range []*models.Prompt{
		{ID: "b", Name: "Second by id, first by insertion", Content: "x"},
		{ID: "a", Name: "First by id", Content: "y"},
	} {
		if err := s.CreatePrompt(ctx, p); err != nil {
			t.Fatalf("unexpected create error: %v", err)
		}
	}
	prompts, err := s.ListPrompts(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(prompts) != 2 || prompts[0].ID != "b" {
		t.Fatalf("expected insertion order, got %+v", prompts)
	}

	content := "new content"
	updated, err := s.UpdatePrompt(ctx, store.UpdatePromptParams{ID: "a", Content: &content})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Content != content || updated.Name != "First by id" {
		t.Fatalf("unexpected updated prompt: %+v", updated)
	}
	if _, err := s.UpdatePrompt(ctx, store.UpdatePromptParams{ID: "zzz", Content: &content}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.SetActivePromptID(ctx, "a"); err != nil {
		t.Fatalf("unexpected activate error: %v", err)
	}
	if err := s.SetActivePromptID(ctx, "b"); err != nil {
		t.Fatalf("unexpected activate error: %v", err)
	}
	if id, _ := s.GetActivePromptID(ctx); id != "b" {
		t.Fatalf("active id = %q, want b", id)
	}

	if err := s.DeletePrompt(ctx, "b"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, err := s.GetPrompt(ctx, "b"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeletePrompt(ctx, "b"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
