package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"tutorbot-backend/internal/models"
	"tutorbot-backend/internal/store"
)

func newPromptService(s *memStore) *PromptService {
	svc := NewPromptService(s, zerolog.Nop())
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("p%d", n)
	}
	return svc
}

func strPtr(s string) *string { return &s }

func TestCreatePromptFirstBecomesActive(t *testing.T) {
	s := newMemStore()
	svc := newPromptService(s)
	ctx := context.Background()

	first, err := svc.CreatePrompt(ctx, models.CreatePromptRequest{Name: "A", Content: "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.CreatePrompt(ctx, models.CreatePromptRequest{Name: "B", Content: "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := svc.ListPrompts(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Prompts) != 2 || resp.ActiveID == nil || *resp.ActiveID != first.ID {
		t.Fatalf("unexpected list: %+v", resp)
	}
}

func TestCreatePromptValidation(t *testing.T) {
	svc := newPromptService(newMemStore())
	for _, req := range []models.CreatePromptRequest{{Name: "A"}, {Content: "a"}, {Name: " ", Content: "a"}} {
		if _, err := svc.CreatePrompt(context.Background(), req); !errors.Is(err, ErrValidation) {
			t.Fatalf("request %+v: expected ErrValidation, got %v", req, err)
		}
	}
}

func TestUpdatePromptPartial(t *testing.T) {
	s := newMemStore()
	svc := newPromptService(s)
	ctx := context.Background()
	p, _ := svc.CreatePrompt(ctx, models.CreatePromptRequest{Name: "A", Content: "a"})

	got, err := svc.UpdatePrompt(ctx, p.ID, models.UpdatePromptRequest{Name: strPtr("Renamed"), Content: strPtr("")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Renamed" || got.Content != "a" {
		t.Fatalf("unexpected prompt: %+v", got)
	}
	if _, err := svc.UpdatePrompt(ctx, "missing", models.UpdatePromptRequest{Name: strPtr("x")}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeletePromptReassignsActive(t *testing.T) {
	s := newMemStore()
	svc := newPromptService(s)
	ctx := context.Background()
	a, _ := svc.CreatePrompt(ctx, models.CreatePromptRequest{Name: "A", Content: "a"})
	b, _ := svc.CreatePrompt(ctx, models.CreatePromptRequest{Name: "B", Content: "b"})
	c, _ := svc.CreatePrompt(ctx, models.CreatePromptRequest{Name: "C", Content: "c"})

	if _, err := svc.ActivatePrompt(ctx, c.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.DeletePrompt(ctx, a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.activeID != c.ID {
		t.Fatalf("deleting an inactive prompt moved the pointer to %q", s.activeID)
	}

	if err := svc.DeletePrompt(ctx, c.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.activeID != b.ID {
		t.Fatalf("active = %q, want first remaining %q", s.activeID, b.ID)
	}

	if err := svc.DeletePrompt(ctx, b.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.activeID != "" {
		t.Fatalf("active = %q, want empty", s.activeID)
	}
	if err := svc.DeletePrompt(ctx, b.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestActivatePromptUnknown(t *testing.T) {
	svc := newPromptService(newMemStore())
	if _, err := svc.ActivatePrompt(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureDefaultPrompt(t *testing.T) {
	s := newMemStore()
	svc := newPromptService(s)
	ctx := context.Background()

	for range 2 {
		if err := svc.EnsureDefaultPrompt(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(s.prompts) != 1 || s.prompts[0].Name != defaultPromptName || s.activeID != s.prompts[0].ID {
		t.Fatalf("unexpected seed state: %+v active=%q", s.prompts, s.activeID)
	}
}
