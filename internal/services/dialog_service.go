package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"tutorbot-backend/internal/models"
	"tutorbot-backend/internal/store"
)

// Activity sources for dashboard reporting.
const (
	ActivityUpdated = "updated"
	ActivityTrim    = "trim"
)

// DialogService serves read-only conversation reports to the admin API.
type DialogService struct {
	store          store.DialogStore
	activitySource string
	log            zerolog.Logger
	now            func() time.Time
}

func NewDialogService(s store.DialogStore, activitySource string, logger zerolog.Logger) *DialogService {
	return &DialogService{
		store:          s,
		activitySource: activitySource,
		log:            logger.With().Str("component", "DialogService").Logger(),
		now:            time.Now,
	}
}

// lastActivity picks the timestamp reported as a user's last message.
func (s *DialogService) lastActivity(conv *models.Conversation) time.Time {
	if s.activitySource == ActivityTrim {
		if len(conv.Messages) == 0 {
			return s.now()
		}
		return conv.LastTrimAt
	}
	if conv.UpdatedAt.IsZero() {
		return conv.LastTrimAt
	}
	return conv.UpdatedAt
}

// loadAll loads every stored conversation, skipping ones that vanish between
// listing and loading.
func (s *DialogService) loadAll(ctx context.Context) ([]*models.Conversation, error) {
	ids, err := s.store.ListDialogUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list dialog users: %w", err)
	}
	convs := make([]*models.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := s.store.LoadDialog(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load dialog %s: %w", id, err)
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// ListUsers returns one summary per user, most recent activity first.
func (s *DialogService) ListUsers(ctx context.Context) (*models.ListDialogUsersResponse, error) {
	convs, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]models.DialogUserInfo, 0, len(convs))
	for _, conv := range convs {
		users = append(users, models.DialogUserInfo{
			UserID:        conv.UserID,
			Username:      conv.DisplayName,
			MessageCount:  len(conv.Messages),
			LastMessageAt: s.lastActivity(conv),
		})
	}
	slices.SortStableFunc(users, func(a, b models.DialogUserInfo) int {
		return b.LastMessageAt.Compare(a.LastMessageAt)
	})
	return &models.ListDialogUsersResponse{Users: users}, nil
}

// GetDialog propagates store.ErrNotFound.
func (s *DialogService) GetDialog(ctx context.Context, userID string) (*models.Conversation, error) {
	conv, err := s.store.LoadDialog(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load dialog %s: %w", userID, err)
	}
	return conv, nil
}

// Stats aggregates message counts. A user is active today when their last
// activity falls on or after local midnight.
func (s *DialogService) Stats(ctx context.Context) (*models.DialogStatsResponse, error) {
	convs, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	resp := &models.DialogStatsResponse{TotalUsers: len(convs)}
	for _, conv := range convs {
		resp.TotalMessages += len(conv.Messages)
		last := conv.LastTrimAt
		if s.activitySource != ActivityTrim {
			last = s.lastActivity(conv)
		}
		if !last.Before(midnight) {
			resp.ActiveToday++
		}
	}
	if resp.TotalUsers > 0 {
		resp.AverageMessagesPerUser = int(math.Round(float64(resp.TotalMessages) / float64(resp.TotalUsers)))
	}
	return resp, nil
}
