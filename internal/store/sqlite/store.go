// Package sqlite is an embedded, single-file storage driver built on the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"tutorbot-backend/internal/models"
	"tutorbot-backend/internal/store"
)

// Compile-time check to ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS prompts (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS active_prompt (
    singleton INTEGER PRIMARY KEY CHECK (singleton = 1),
    prompt_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS dialogs (
    user_id      TEXT PRIMARY KEY,
    username     TEXT NOT NULL DEFAULT '',
    messages     TEXT NOT NULL DEFAULT '[]',
    last_trim_at TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);
`

type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// Open opens (or creates) the database file and applies the schema.
func Open(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running schema migration: %w", err)
	}
	return &SQLiteStore{
		db:  db,
		log: logger.With().Str("component", "SQLiteStore").Logger(),
		now: time.Now,
	}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(v string) (time.Time, error) {
	return time.Parse(timeLayout, v)
}

// --- Dialogs ---

func (s *SQLiteStore) LoadDialog(ctx context.Context, userID string) (*models.Conversation, error) {
	var (
		conv                models.Conversation
		messages            string
		lastTrim, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, messages, last_trim_at, updated_at FROM dialogs WHERE user_id = ?`,
		userID,
	).Scan(&conv.UserID, &conv.DisplayName, &messages, &lastTrim, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		s.log.Error().Err(err).Str("userId", userID).Msg("LoadDialog failed")
		return nil, fmt.Errorf("querying dialog for user %s: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(messages), &conv.Messages); err != nil {
		return nil, fmt.Errorf("parsing messages for user %s: %w", userID, err)
	}
	if conv.LastTrimAt, err = parseTime(lastTrim); err != nil {
		return nil, fmt.Errorf("parsing last_trim_at for user %s: %w", userID, err)
	}
	if conv.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at for user %s: %w", userID, err)
	}
	return &conv, nil
}

func (s *SQLiteStore) SaveDialog(ctx context.Context, conv *models.Conversation) error {
	msgs := conv.Messages
	if msgs == nil {
		msgs = []models.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("marshaling messages for user %s: %w", conv.UserID, err)
	}
	updatedAt := conv.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dialogs (user_id, username, messages, last_trim_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET username = excluded.username,
		    messages = excluded.messages,
		    last_trim_at = excluded.last_trim_at,
		    updated_at = excluded.updated_at`,
		conv.UserID, conv.DisplayName, string(data), formatTime(conv.LastTrimAt), formatTime(updatedAt),
	)
	if err != nil {
		s.log.Error().Err(err).Str("userId", conv.UserID).Msg("SaveDialog failed")
		return fmt.Errorf("saving dialog for user %s: %w", conv.UserID, err)
	}
	return nil
}

func (s *SQLiteStore) ListDialogUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM dialogs ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("listing dialogs: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning dialog row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Prompts ---

func (s *SQLiteStore) GetActivePromptID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT prompt_id FROM active_prompt WHERE singleton = 1`).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("querying active prompt: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) SetActivePromptID(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO active_prompt (singleton, prompt_id) VALUES (1, ?)
		ON CONFLICT (singleton) DO UPDATE SET prompt_id = excluded.prompt_id`, id)
	if err != nil {
		return fmt.Errorf("setting active prompt: %w", err)
	}
	s.log.Info().Str("promptId", id).Msg("active prompt changed")
	return nil
}

func scanPrompt(scan func(dest ...any) error) (*models.Prompt, error) {
	var (
		p                models.Prompt
		created, updated string
	)
	if err := scan(&p.ID, &p.Name, &p.Content, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) GetPrompt(ctx context.Context, id string) (*models.Prompt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, content, created_at, updated_at FROM prompts WHERE id = ?`, id)
	p, err := scanPrompt(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("querying prompt %s: %w", id, err)
	}
	return p, nil
}

// ListPrompts returns prompts in insertion order.
func (s *SQLiteStore) ListPrompts(ctx context.Context) ([]models.Prompt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, content, created_at, updated_at FROM prompts ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing prompts: %w", err)
	}
	defer rows.Close()

	items := []models.Prompt{}
	for rows.Next() {
		p, err := scanPrompt(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning prompt row: %w", err)
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) CreatePrompt(ctx context.Context, prompt *models.Prompt) error {
	now := s.now().UTC()
	if prompt.CreatedAt.IsZero() {
		prompt.CreatedAt = now
	}
	if prompt.UpdatedAt.IsZero() {
		prompt.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompts (id, name, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		prompt.ID, prompt.Name, prompt.Content, formatTime(prompt.CreatedAt), formatTime(prompt.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating prompt: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdatePrompt(ctx context.Context, arg store.UpdatePromptParams) (*models.Prompt, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE prompts
		SET name = COALESCE(?, name), content = COALESCE(?, content), updated_at = ?
		WHERE id = ?`,
		arg.Name, arg.Content, formatTime(s.now()), arg.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating prompt %s: %w", arg.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetPrompt(ctx, arg.ID)
}

func (s *SQLiteStore) DeletePrompt(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM prompts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting prompt %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
