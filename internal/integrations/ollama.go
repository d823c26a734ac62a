package integrations

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"tutorbot-backend/internal/config"
	"tutorbot-backend/internal/models"
)

const ProviderOllama = "ollama"

// OllamaProvider talks to a self-hosted Ollama server through /api/chat.
type OllamaProvider struct {
	client *api.Client
	model  string
}

// NewOllamaProvider is the ProviderFactory for "ollama".
func NewOllamaProvider(_ context.Context, cfg *config.Config) (ModelProvider, error) {
	base, err := url.Parse(cfg.OllamaHost)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST URL: %w", err)
	}
	// Deadlines come from the caller's context.
	return &OllamaProvider{client: api.NewClient(base, &http.Client{}), model: cfg.OllamaModel}, nil
}

func (p *OllamaProvider) Name() string { return ProviderOllama }

func (p *OllamaProvider) Complete(ctx context.Context, history []models.Message, systemPrompt string, opts models.GenerationOptions) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    p.model,
		Messages: toOllamaMessages(history, systemPrompt),
		Stream:   &stream,
		Options: map[string]any{
			"temperature": opts.Temperature,
			"num_predict": opts.MaxOutputTokens,
		},
	}

	var reply string
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return reply, nil
}

func toOllamaMessages(history []models.Message, systemPrompt string) []api.Message {
	msgs := make([]api.Message, 0, len(history)+1)
	if systemPrompt != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: systemPrompt})
	}
	for _, m := range history {
		role := "user"
		if m.Role == models.RoleModel {
			role = "assistant"
		}
		msgs = append(msgs, api.Message{Role: role, Content: m.Text})
	}
	return msgs
}
