package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"tutorbot-backend/internal/models"
	"tutorbot-backend/internal/store"
)

// ErrStorage wraps every dialog store failure surfaced by the Builder.
var ErrStorage = errors.New("dialog storage failure")

// Builder runs the read-append-trim-write cycle around a user's Conversation.
type Builder struct {
	store store.DialogStore
	now   func() time.Time
}

func NewBuilder(s store.DialogStore) *Builder {
	return &Builder{store: s, now: time.Now}
}

// load returns the stored conversation or a fresh one when the user has none.
func (b *Builder) load(ctx context.Context, userID string) (*models.Conversation, error) {
	conv, err := b.store.LoadDialog(ctx, userID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: load dialog %s: %w", ErrStorage, userID, err)
	}
	return &models.Conversation{
		UserID:     userID,
		Messages:   []models.Message{},
		LastTrimAt: b.now(),
	}, nil
}

// AppendUserTurn loads (or creates) the conversation and appends a user
// message. Nothing is persisted until TrimAndPersist.
func (b *Builder) AppendUserTurn(ctx context.Context, userID, displayName, text string) (*models.Conversation, error) {
	conv, err := b.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if displayName != "" {
		conv.DisplayName = displayName
	}
	conv.Messages = append(conv.Messages, models.Message{Role: models.RoleUser, Text: text})
	return conv, nil
}

// WindowForModel returns a copy of the last maxContext messages in order.
// A non-positive maxContext returns the whole history.
func WindowForModel(conv *models.Conversation, maxContext int) []models.Message {
	msgs := conv.Messages
	if maxContext > 0 && len(msgs) > maxContext {
		msgs = msgs[len(msgs)-maxContext:]
	}
	return slices.Clone(msgs)
}

// AppendModelTurn appends the model's reply.
func AppendModelTurn(conv *models.Conversation, text string) {
	conv.Messages = append(conv.Messages, models.Message{Role: models.RoleModel, Text: text})
}

// TrimAndPersist drops the oldest messages beyond maxStored and saves the
// conversation. LastTrimAt only moves when messages were actually dropped.
func (b *Builder) TrimAndPersist(ctx context.Context, conv *models.Conversation, maxStored int) error {
	now := b.now()
	if maxStored > 0 && len(conv.Messages) > maxStored {
		conv.Messages = slices.Clone(conv.Messages[len(conv.Messages)-maxStored:])
		conv.LastTrimAt = now
	}
	conv.UpdatedAt = now
	if err := b.store.SaveDialog(ctx, conv); err != nil {
		return fmt.Errorf("%w: save dialog %s: %w", ErrStorage, conv.UserID, err)
	}
	return nil
}

// Clear empties the user's history but keeps the record. Clearing a user
// without a stored conversation does nothing.
func (b *Builder) Clear(ctx context.Context, userID string) error {
	conv, err := b.store.LoadDialog(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: load dialog %s: %w", ErrStorage, userID, err)
	}
	now := b.now()
	conv.Messages = []models.Message{}
	conv.LastTrimAt = now
	conv.UpdatedAt = now
	if err := b.store.SaveDialog(ctx, conv); err != nil {
		return fmt.Errorf("%w: save dialog %s: %w", ErrStorage, userID, err)
	}
	return nil
}
