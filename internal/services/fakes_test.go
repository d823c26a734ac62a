package services

import (
	"context"
	"errors"
	"slices"
	"sync"

	"tutorbot-backend/internal/models"
	"tutorbot-backend/internal/store"
)

// memStore is an in-memory store.Store with error injection.
type memStore struct {
	mu       sync.Mutex
	dialogs  map[string]*models.Conversation
	prompts  []models.Prompt
	activeID string
	saves    int

	loadErr error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{dialogs: map[string]*models.Conversation{}}
}

func cloneConv(c *models.Conversation) *models.Conversation {
	cp := *c
	cp.Messages = slices.Clone(c.Messages)
	return &cp
}

func (m *memStore) LoadDialog(_ context.Context, userID string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	c, ok := m.dialogs[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneConv(c), nil
}

func (m *memStore) SaveDialog(_ context.Context, conv *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.dialogs[conv.UserID] = cloneConv(conv)
	return nil
}

func (m *memStore) ListDialogUserIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.dialogs))
	for id := range m.dialogs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *memStore) GetActivePromptID(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID, nil
}

func (m *memStore) SetActivePromptID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeID = id
	return nil
}

func (m *memStore) GetPrompt(_ context.Context, id string) (*models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prompts {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListPrompts(context.Context) ([]models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.prompts), nil
}

func (m *memStore) CreatePrompt(_ context.Context, p *models.Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.prompts {
		if existing.ID == p.ID {
			return errors.New("duplicate id")
		}
	}
	m.prompts = append(m.prompts, *p)
	return nil
}

func (m *memStore) UpdatePrompt(_ context.Context, arg store.UpdatePromptParams) (*models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.prompts {
		if m.prompts[i].ID != arg.ID {
			continue
		}
		if arg.Name != nil {
			m.prompts[i].Name = *arg.Name
		}
		if arg.Content != nil {
			m.prompts[i].Content = *arg.Content
		}
		p := m.prompts[i]
		return &p, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) DeletePrompt(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.prompts {
		if p.ID == id {
			m.prompts = slices.Delete(m.prompts, i, i+1)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) Close() error { return nil }

// fakeGateway records calls and returns a canned reply.
type fakeGateway struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	history []models.Message
	system  string
	hook    func()
}

func (g *fakeGateway) Complete(_ context.Context, history []models.Message, systemPrompt string, _ models.GenerationOptions) (string, error) {
	g.mu.Lock()
	g.calls++
	g.history = history
	g.system = systemPrompt
	hook := g.hook
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	return g.reply, g.err
}

func (g *fakeGateway) Name() string { return "fake" }

type fakeTranscriber struct {
	text string
	err  error
	mime string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ []byte, mimeType string) (string, error) {
	f.mime = mimeType
	return f.text, f.err
}

// fakeOutbound records sent texts. failFrom makes the n-th send (1-based)
// and every later one fail.
type fakeOutbound struct {
	mu       sync.Mutex
	sent     []string
	typing   int
	failFrom int
	attempts int
}

func (o *fakeOutbound) Send(_ context.Context, _ string, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts++
	if o.failFrom > 0 && o.attempts >= o.failFrom {
		return errors.New("telegram unavailable")
	}
	o.sent = append(o.sent, text)
	return nil
}

func (o *fakeOutbound) SendTyping(context.Context, string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.typing++
	return nil
}

func (o *fakeOutbound) Sent() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.sent)
}
