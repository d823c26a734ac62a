package integrations

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"tutorbot-backend/internal/config"
	"tutorbot-backend/internal/models"
)

const ProviderGemini = "gemini"

// GeminiProvider calls the Gemini API generateContent endpoint.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider is the ProviderFactory for "gemini".
func NewGeminiProvider(ctx context.Context, cfg *config.Config) (ModelProvider, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: cfg.GeminiModel}, nil
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

func (p *GeminiProvider) Complete(ctx context.Context, history []models.Message, systemPrompt string, opts models.GenerationOptions) (string, error) {
	cfg := &genai.GenerateContentConfig{
		CandidateCount:  1,
		MaxOutputTokens: opts.MaxOutputTokens,
		Temperature:     genai.Ptr(opts.Temperature),
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, toGeminiContents(history), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generateContent: %w", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked the prompt: %s", resp.PromptFeedback.BlockReason)
	}
	return resp.Text(), nil
}

func toGeminiContents(history []models.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := genai.RoleUser
		if m.Role == models.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, genai.Role(role)))
	}
	return contents
}
