// Package filestore keeps prompts and dialogs as JSON files under a data directory.
//
// Layout:
//
//	<dataDir>/prompts/prompts.json   {"prompts":[...]}
//	<dataDir>/prompts/active.json    {"activeId":"..."}
//	<dataDir>/dialogs/<userId>.json  one conversation per user
//
// With a sealer configured, dialog files are AES-GCM encrypted and use the
// ".json.enc" extension instead.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tutorbot-backend/internal/crypto"
	"tutorbot-backend/internal/models"
	"tutorbot-backend/internal/store"
)

// Compile-time check to ensure FileStore implements store.Store
var _ store.Store = (*FileStore)(nil)

var validUserID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type promptsFile struct {
	Prompts []models.Prompt `json:"prompts"`
}

type activeFile struct {
	ActiveID *string `json:"activeId"`
}

type FileStore struct {
	dialogsDir string
	promptsDir string
	sealer     *crypto.Sealer
	log        zerolog.Logger
	now        func() time.Time

	// mu serializes read-modify-write cycles on the prompt files.
	mu sync.Mutex
}

// New creates the directory layout under dataDir. sealer may be nil.
func New(dataDir string, sealer *crypto.Sealer, logger zerolog.Logger) (*FileStore, error) {
	s := &FileStore{
		dialogsDir: filepath.Join(dataDir, "dialogs"),
		promptsDir: filepath.Join(dataDir, "prompts"),
		sealer:     sealer,
		log:        logger.With().Str("component", "FileStore").Logger(),
		now:        time.Now,
	}
	for _, dir := range []string{s.dialogsDir, s.promptsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) dialogExt() string {
	if s.sealer != nil {
		return ".json.enc"
	}
	return ".json"
}

func (s *FileStore) dialogPath(userID string) (string, error) {
	if !validUserID.MatchString(userID) {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	return filepath.Join(s.dialogsDir, userID+s.dialogExt()), nil
}

// --- Dialogs ---

// LoadDialog reads the conversation file of one user.
// Returns store.ErrNotFound if the file does not exist.
func (s *FileStore) LoadDialog(ctx context.Context, userID string) (*models.Conversation, error) {
	path, err := s.dialogPath(userID)
	if err != nil {
		return nil, store.ErrNotFound
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, store.ErrNotFound
		}
		s.log.Error().Err(err).Str("userId", userID).Msg("LoadDialog: failed to read dialog file")
		return nil, fmt.Errorf("failed to read dialog for user %s: %w", userID, err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.Open(data); err != nil {
			return nil, fmt.Errorf("failed to decrypt dialog for user %s: %w", userID, err)
		}
	}

	var conv models.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		s.log.Error().Err(err).Str("userId", userID).Msg("LoadDialog: corrupt dialog file")
		return nil, fmt.Errorf("failed to parse dialog for user %s: %w", userID, err)
	}
	if conv.UserID == "" {
		conv.UserID = userID
	}
	return &conv, nil
}

// SaveDialog replaces the conversation file atomically.
func (s *FileStore) SaveDialog(ctx context.Context, conv *models.Conversation) error {
	path, err := s.dialogPath(conv.UserID)
	if err != nil {
		return err
	}
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dialog for user %s: %w", conv.UserID, err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.Seal(data); err != nil {
			return fmt.Errorf("failed to encrypt dialog for user %s: %w", conv.UserID, err)
		}
	}
	if err := writeFileAtomic(path, data); err != nil {
		s.log.Error().Err(err).Str("userId", conv.UserID).Msg("SaveDialog: write failed")
		return fmt.Errorf("failed to write dialog for user %s: %w", conv.UserID, err)
	}
	return nil
}

// ListDialogUserIDs returns the ids of all stored conversations, sorted.
func (s *FileStore) ListDialogUserIDs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dialogsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list dialogs: %w", err)
	}
	ext := s.dialogExt()
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		if id := strings.TrimSuffix(name, ext); validUserID.MatchString(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// --- Prompts ---

func (s *FileStore) readPrompts() ([]models.Prompt, error) {
	data, err := os.ReadFile(filepath.Join(s.promptsDir, "prompts.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.Prompt{}, nil
		}
		return nil, fmt.Errorf("failed to read prompts: %w", err)
	}
	var pf promptsFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}
	if pf.Prompts == nil {
		pf.Prompts = []models.Prompt{}
	}
	return pf.Prompts, nil
}

func (s *FileStore) writePrompts(prompts []models.Prompt) error {
	data, err := json.MarshalIndent(promptsFile{Prompts: prompts}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal prompts: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.promptsDir, "prompts.json"), data); err != nil {
		return fmt.Errorf("failed to write prompts: %w", err)
	}
	return nil
}

func (s *FileStore) GetActivePromptID(ctx context.Context) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.promptsDir, "active.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read active prompt: %w", err)
	}
	var af activeFile
	if err := json.Unmarshal(data, &af); err != nil {
		return "", fmt.Errorf("failed to parse active prompt: %w", err)
	}
	if af.ActiveID == nil {
		return "", nil
	}
	return *af.ActiveID, nil
}

func (s *FileStore) SetActivePromptID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	af := activeFile{}
	if id != "" {
		af.ActiveID = &id
	}
	data, err := json.MarshalIndent(af, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal active prompt: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.promptsDir, "active.json"), data); err != nil {
		return fmt.Errorf("failed to write active prompt: %w", err)
	}
	s.log.Info().Str("promptId", id).Msg("active prompt changed")
	return nil
}

func (s *FileStore) GetPrompt(ctx context.Context, id string) (*models.Prompt, error) {
	prompts, err := s.readPrompts()
	if err != nil {
		return nil, err
	}
	for i := range prompts {
		if prompts[i].ID == id {
			return &prompts[i], nil
		}
	}
	return nil, store.ErrNotFound
}

// ListPrompts returns prompts in creation order.
func (s *FileStore) ListPrompts(ctx context.Context) ([]models.Prompt, error) {
	return s.readPrompts()
}

func (s *FileStore) CreatePrompt(ctx context.Context, prompt *models.Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompts, err := s.readPrompts()
	if err != nil {
		return err
	}
	for _, p := range prompts {
		if p.ID == prompt.ID {
			return fmt.Errorf("prompt %s already exists", prompt.ID)
		}
	}
	now := s.now().UTC()
	if prompt.CreatedAt.IsZero() {
		prompt.CreatedAt = now
	}
	if prompt.UpdatedAt.IsZero() {
		prompt.UpdatedAt = now
	}
	return s.writePrompts(append(prompts, *prompt))
}

func (s *FileStore) UpdatePrompt(ctx context.Context, arg store.UpdatePromptParams) (*models.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompts, err := s.readPrompts()
	if err != nil {
		return nil, err
	}
	for i := range prompts {
		if prompts[i].ID != arg.ID {
			continue
		}
		if arg.Name != nil {
			prompts[i].Name = *arg.Name
		}
		if arg.Content != nil {
			prompts[i].Content = *arg.Content
		}
		prompts[i].UpdatedAt = s.now().UTC()
		if err := s.writePrompts(prompts); err != nil {
			return nil, err
		}
		updated := prompts[i]
		return &updated, nil
	}
	return nil, store.ErrNotFound
}

func (s *FileStore) DeletePrompt(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompts, err := s.readPrompts()
	if err != nil {
		return err
	}
	for i := range prompts {
		if prompts[i].ID == id {
			return s.writePrompts(append(prompts[:i], prompts[i+1:]...))
		}
	}
	return store.ErrNotFound
}

// writeFileAtomic writes data to a temp file in the same directory and renames
// it over path, so readers never observe a partially written file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
