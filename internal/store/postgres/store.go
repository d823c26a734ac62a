package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"tutorbot-backend/internal/models"
	"tutorbot-backend/internal/store"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

func NewPostgresStore(db *pgxpool.Pool, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: logger.With().Str("component", "PostgresStore").Logger()}
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS prompts (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS active_prompt (
    singleton BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
    prompt_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS dialogs (
    user_id      TEXT PRIMARY KEY,
    username     TEXT NOT NULL DEFAULT '',
    messages     JSONB NOT NULL DEFAULT '[]'::jsonb,
    last_trim_at TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
);
`

// Migrate creates the tables if they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		s.logPgError("Migrate", err)
		return fmt.Errorf("database error applying schema: %w", err)
	}
	s.log.Info().Msg("schema applied")
	return nil
}

func (s *PostgresStore) logPgError(op string, err error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		s.log.Error().Str("op", op).Str("code", pgErr.Code).Str("detail", pgErr.Detail).Msg(pgErr.Message)
		return
	}
	s.log.Error().Str("op", op).Err(err).Msg("query failed")
}

// --- Dialog Methods ---

const loadDialog = `-- name: LoadDialog :one
SELECT user_id, username, messages, last_trim_at, updated_at
FROM dialogs
WHERE user_id = $1;
`

// LoadDialog returns store.ErrNotFound if the user has no conversation.
func (s *PostgresStore) LoadDialog(ctx context.Context, userID string) (*models.Conversation, error) {
	var (
		conv     models.Conversation
		messages []byte
	)
	err := s.db.QueryRow(ctx, loadDialog, userID).Scan(
		&conv.UserID,
		&conv.DisplayName,
		&messages,
		&conv.LastTrimAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		s.logPgError("LoadDialog", err)
		return nil, fmt.Errorf("database error fetching dialog for user %s: %w", userID, err)
	}
	if err := json.Unmarshal(messages, &conv.Messages); err != nil {
		return nil, fmt.Errorf("failed to parse messages for user %s: %w", userID, err)
	}
	return &conv, nil
}

const saveDialog = `-- name: SaveDialog :exec
INSERT INTO dialogs (user_id, username, messages, last_trim_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE
SET username = EXCLUDED.username,
    messages = EXCLUDED.messages,
    last_trim_at = EXCLUDED.last_trim_at,
    updated_at = EXCLUDED.updated_at;
`

// SaveDialog upserts the whole message log as one JSONB value.
func (s *PostgresStore) SaveDialog(ctx context.Context, conv *models.Conversation) error {
	msgs := conv.Messages
	if msgs == nil {
		msgs = []models.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to marshal messages for user %s: %w", conv.UserID, err)
	}
	updatedAt := conv.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	if _, err := s.db.Exec(ctx, saveDialog, conv.UserID, conv.DisplayName, data, conv.LastTrimAt, updatedAt); err != nil {
		s.logPgError("SaveDialog", err)
		return fmt.Errorf("database error saving dialog for user %s: %w", conv.UserID, err)
	}
	return nil
}

const listDialogUserIDs = `-- name: ListDialogUserIDs :many
SELECT user_id FROM dialogs ORDER BY user_id;
`

func (s *PostgresStore) ListDialogUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, listDialogUserIDs)
	if err != nil {
		s.logPgError("ListDialogUserIDs", err)
		return nil, fmt.Errorf("database error listing dialogs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("error iterating dialog rows: %w", err)
	}
	return ids, nil
}

// --- Prompt Methods ---

const getActivePromptID = `-- name: GetActivePromptID :one
SELECT prompt_id FROM active_prompt WHERE singleton;
`

func (s *PostgresStore) GetActivePromptID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, getActivePromptID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		s.logPgError("GetActivePromptID", err)
		return "", fmt.Errorf("database error fetching active prompt: %w", err)
	}
	return id, nil
}

const setActivePromptID = `-- name: SetActivePromptID :exec
INSERT INTO active_prompt (singleton, prompt_id) VALUES (TRUE, $1)
ON CONFLICT (singleton) DO UPDATE SET prompt_id = EXCLUDED.prompt_id;
`

func (s *PostgresStore) SetActivePromptID(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, setActivePromptID, id); err != nil {
		s.logPgError("SetActivePromptID", err)
		return fmt.Errorf("database error setting active prompt: %w", err)
	}
	s.log.Info().Str("promptId", id).Msg("active prompt changed")
	return nil
}

const getPrompt = `-- name: GetPrompt :one
SELECT id, name, content, created_at, updated_at
FROM prompts
WHERE id = $1;
`

func (s *PostgresStore) GetPrompt(ctx context.Context, id string) (*models.Prompt, error) {
	var p models.Prompt
	err := s.db.QueryRow(ctx, getPrompt, id).Scan(&p.ID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		s.logPgError("GetPrompt", err)
		return nil, fmt.Errorf("database error fetching prompt %s: %w", id, err)
	}
	return &p, nil
}

const listPrompts = `-- name: ListPrompts :many
SELECT id, name, content, created_at, updated_at
FROM prompts
ORDER BY created_at, id;
`

func (s *PostgresStore) ListPrompts(ctx context.Context) ([]models.Prompt, error) {
	rows, err := s.db.Query(ctx, listPrompts)
	if err != nil {
		s.logPgError("ListPrompts", err)
		return nil, fmt.Errorf("database error listing prompts: %w", err)
	}
	defer rows.Close()

	items := []models.Prompt{}
	for rows.Next() {
		var p models.Prompt
		if err := rows.Scan(&p.ID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning prompt row: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prompt rows: %w", err)
	}
	return items, nil
}

const createPrompt = `-- name: CreatePrompt :one
INSERT INTO prompts (id, name, content)
VALUES ($1, $2, $3)
RETURNING created_at, updated_at;
`

func (s *PostgresStore) CreatePrompt(ctx context.Context, prompt *models.Prompt) error {
	err := s.db.QueryRow(ctx, createPrompt, prompt.ID, prompt.Name, prompt.Content).Scan(&prompt.CreatedAt, &prompt.UpdatedAt)
	if err != nil {
		s.logPgError("CreatePrompt", err)
		return fmt.Errorf("database error creating prompt: %w", err)
	}
	return nil
}

// UpdatePrompt builds the SET clause from the provided fields and always bumps updated_at.
func (s *PostgresStore) UpdatePrompt(ctx context.Context, arg store.UpdatePromptParams) (*models.Prompt, error) {
	setClauses := []string{}
	args := []any{}
	argID := 1

	if arg.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argID))
		args = append(args, *arg.Name)
		argID++
	}
	if arg.Content != nil {
		setClauses = append(setClauses, fmt.Sprintf("content = $%d", argID))
		args = append(args, *arg.Content)
		argID++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, arg.ID)

	query := fmt.Sprintf(`-- name: UpdatePrompt :one
		UPDATE prompts
		SET %s
		WHERE id = $%d
		RETURNING id, name, content, created_at, updated_at;`,
		strings.Join(setClauses, ", "),
		argID,
	)

	var p models.Prompt
	err := s.db.QueryRow(ctx, query, args...).Scan(&p.ID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		s.logPgError("UpdatePrompt", err)
		return nil, fmt.Errorf("database error updating prompt %s: %w", arg.ID, err)
	}
	return &p, nil
}

const deletePrompt = `-- name: DeletePrompt :exec
DELETE FROM prompts WHERE id = $1;
`

func (s *PostgresStore) DeletePrompt(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, deletePrompt, id)
	if err != nil {
		s.logPgError("DeletePrompt", err)
		return fmt.Errorf("database error deleting prompt %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
