package integrations

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"tutorbot-backend/internal/config"
	"tutorbot-backend/internal/models"
)

var testHistory = []models.Message{
	{Role: models.RoleUser, Text: "How hot should wax be?"},
	{Role: models.RoleModel, Text: "Warm, not hot."},
	{Role: models.RoleUser, Text: "And sugar paste?"},
}

func TestToGeminiContents(t *testing.T) {
	contents := toGeminiContents(testHistory)
	if len(contents) != 3 {
		t.Fatalf("got %d contents", len(contents))
	}
	wantRoles := []string{string(genai.RoleUser), string(genai.RoleModel), string(genai.RoleUser)}
	for i, c := range contents {
		if c.Role != wantRoles[i] {
			t.Errorf("content %d role = %q, want %q", i, c.Role, wantRoles[i])
		}
		if len(c.Parts) != 1 || c.Parts[0].Text != testHistory[i].Text {
			t.Errorf("content %d parts = %+v", i, c.Parts)
		}
	}
}

func TestOllamaProviderComplete(t *testing.T) {
	var got api.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"model":"llama3.2","message":{"role":"assistant","content":"Use a roll-on cartridge."},"done":true}`)
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(context.Background(), &config.Config{OllamaHost: srv.URL, OllamaModel: "llama3.2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reply, err := p.Complete(context.Background(), testHistory, "You are a tutor.", models.GenerationOptions{MaxOutputTokens: 200, Temperature: 0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Use a roll-on cartridge." {
		t.Fatalf("reply = %q", reply)
	}

	if got.Model != "llama3.2" || got.Stream == nil || *got.Stream {
		t.Fatalf("unexpected request: model=%q stream=%v", got.Model, got.Stream)
	}
	roles := make([]string, len(got.Messages))
	for i, m := range got.Messages {
		roles[i] = m.Role
	}
	if strings.Join(roles, ",") != "system,user,assistant,user" {
		t.Fatalf("roles = %v", roles)
	}
	if got.Options["num_predict"] != float64(200) {
		t.Fatalf("options = %v", got.Options)
	}
}

func TestOllamaProviderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"model not loaded"}`)
	}))
	defer srv.Close()

	p, _ := NewOllamaProvider(context.Background(), &config.Config{OllamaHost: srv.URL, OllamaModel: "x"})
	if _, err := p.Complete(context.Background(), testHistory, "", models.GenerationOptions{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEncodingFor(t *testing.T) {
	tests := []struct {
		mime string
		want speechpb.RecognitionConfig_AudioEncoding
		rate int32
	}{
		{"audio/ogg", speechpb.RecognitionConfig_OGG_OPUS, 48000},
		{"audio/ogg; codecs=opus", speechpb.RecognitionConfig_OGG_OPUS, 48000},
		{"audio/mpeg", speechpb.RecognitionConfig_MP3, 0},
		{"audio/mp3", speechpb.RecognitionConfig_MP3, 0},
		{"audio/wav", speechpb.RecognitionConfig_LINEAR16, 0},
		{"audio/flac", speechpb.RecognitionConfig_FLAC, 0},
		{"video/mp4", speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, 0},
	}
	for _, tc := range tests {
		got := encodingFor(tc.mime)
		if got.encoding != tc.want || got.sampleRate != tc.rate {
			t.Errorf("encodingFor(%q) = %+v", tc.mime, got)
		}
	}
}

func TestJoinTranscripts(t *testing.T) {
	results := []*speechpb.SpeechRecognitionResult{
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "how long "}, {Transcript: "ignored"}}},
		{},
		{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "should hair be"}}},
	}
	if got := joinTranscripts(results); got != "how long should hair be" {
		t.Fatalf("got %q", got)
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(zerolog.Nop())
	if names := r.Names(); strings.Join(names, ",") != "gemini,ollama" {
		t.Fatalf("names = %v", names)
	}
	if _, err := r.Build(context.Background(), "gpt", &config.Config{}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	if _, err := r.Build(context.Background(), ProviderGemini, &config.Config{}); err == nil {
		t.Fatalf("expected error for missing api key")
	}
	p, err := r.Build(context.Background(), ProviderOllama, &config.Config{OllamaHost: "http://localhost:11434", OllamaModel: "m"})
	if err != nil || p.Name() != ProviderOllama {
		t.Fatalf("unexpected build result: %v, %v", p, err)
	}
}
