package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tutorbot-backend/internal/models"
	"tutorbot-backend/internal/store"
)

func seedDialogs(s *memStore, now time.Time) {
	yesterday := now.Add(-24 * time.Hour)
	msgs := func(n int) []models.Message {
		out := make([]models.Message, n)
		for i := range out {
			out[i] = models.Message{Role: models.RoleUser, Text: "x"}
		}
		return out
	}
	s.dialogs["1"] = &models.Conversation{UserID: "1", DisplayName: "Old", Messages: msgs(2), LastTrimAt: yesterday, UpdatedAt: yesterday}
	s.dialogs["2"] = &models.Conversation{UserID: "2", DisplayName: "Fresh", Messages: msgs(3), LastTrimAt: yesterday, UpdatedAt: now}
	s.dialogs["3"] = &models.Conversation{UserID: "3", DisplayName: "Legacy", Messages: msgs(0), LastTrimAt: now.Add(-time.Hour)}
}

func TestDialogServiceListUsers(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.Local)
	s := newMemStore()
	seedDialogs(s, now)
	svc := NewDialogService(s, ActivityUpdated, zerolog.Nop())
	svc.now = func() time.Time { return now }

	resp, err := svc.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var order []string
	for _, u := range resp.Users {
		order = append(order, u.UserID)
	}
	if len(order) != 3 || order[0] != "2" || order[1] != "3" || order[2] != "1" {
		t.Fatalf("unexpected order: %v", order)
	}
	if resp.Users[0].Username != "Fresh" || resp.Users[0].MessageCount != 3 {
		t.Fatalf("unexpected summary: %+v", resp.Users[0])
	}
}

func TestDialogServiceTrimActivitySource(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.Local)
	s := newMemStore()
	seedDialogs(s, now)
	svc := NewDialogService(s, ActivityTrim, zerolog.Nop())
	svc.now = func() time.Time { return now }

	resp, err := svc.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// user 3 has no messages and reports "now"; 1 and 2 share lastTrimAt.
	if resp.Users[0].UserID != "3" || !resp.Users[0].LastMessageAt.Equal(now) {
		t.Fatalf("unexpected first user: %+v", resp.Users[0])
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.ActiveToday != 1 {
		t.Fatalf("activeToday = %d, want 1", stats.ActiveToday)
	}
}

func TestDialogServiceStats(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.Local)
	s := newMemStore()
	seedDialogs(s, now)
	svc := NewDialogService(s, ActivityUpdated, zerolog.Nop())
	svc.now = func() time.Time { return now }

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := models.DialogStatsResponse{TotalUsers: 3, TotalMessages: 5, ActiveToday: 2, AverageMessagesPerUser: 2}
	if *stats != want {
		t.Fatalf("stats = %+v, want %+v", *stats, want)
	}

	empty := NewDialogService(newMemStore(), ActivityUpdated, zerolog.Nop())
	stats, err = empty.Stats(context.Background())
	if err != nil || stats.AverageMessagesPerUser != 0 || stats.TotalUsers != 0 {
		t.Fatalf("unexpected empty stats: %+v, %v", stats, err)
	}
}

func TestDialogServiceGetDialog(t *testing.T) {
	s := newMemStore()
	svc := NewDialogService(s, ActivityUpdated, zerolog.Nop())
	if _, err := svc.GetDialog(context.Background(), "404"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
