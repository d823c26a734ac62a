package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tutorbot-backend/internal/models"
)

type recordingHandler struct {
	mu       sync.Mutex
	messages []models.InboundMessage
	voices   []models.InboundVoice
	commands []string
}

func (h *recordingHandler) HandleInboundMessage(_ context.Context, msg models.InboundMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
}

func (h *recordingHandler) HandleInboundVoice(_ context.Context, v models.InboundVoice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.voices = append(h.voices, v)
}

func (h *recordingHandler) HandleCommand(_ context.Context, _ models.InboundMessage, command string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, command)
}

type stubFiles struct {
	data []byte
	err  error
}

func (s stubFiles) DownloadFile(context.Context, string) ([]byte, error) { return s.data, s.err }

func textUpdate(id int, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			MessageID: id,
			From:      &tgbotapi.User{ID: 42, FirstName: "Olga", UserName: "olga_w"},
			Chat:      &tgbotapi.Chat{ID: 4242, Type: "private"},
			Text:      text,
		},
	}
}

func commandUpdate(id int, cmd string) tgbotapi.Update {
	u := textUpdate(id, cmd)
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	return u
}

func dispatchAll(t *testing.T, d *Dispatcher, updates ...tgbotapi.Update) {
	t.Helper()
	for _, u := range updates {
		d.Dispatch(u)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Wait(ctx); err != nil {
		t.Fatalf("dispatcher did not drain: %v", err)
	}
}

func TestDispatchRoutesUpdates(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(context.Background(), h, stubFiles{data: []byte("OGG")}, zerolog.Nop())

	voice := textUpdate(3, "")
	voice.Message.Voice = &tgbotapi.Voice{FileID: "f1", MimeType: "audio/ogg"}

	dispatchAll(t, d,
		textUpdate(1, "how do I prepare skin?"),
		commandUpdate(2, "/start"),
		voice,
		commandUpdate(4, "/unknown"),
		tgbotapi.Update{UpdateID: 5},
	)

	if len(h.messages) != 2 {
		t.Fatalf("messages = %+v", h.messages)
	}
	var text models.InboundMessage
	for _, m := range h.messages {
		if m.MessageID == "1" {
			text = m
		}
	}
	want := models.InboundMessage{MessageID: "1", UserID: "42", ChatID: "4242", DisplayName: "Olga", Text: "how do I prepare skin?"}
	if text != want {
		t.Fatalf("inbound = %+v, want %+v", text, want)
	}
	if len(h.commands) != 1 || h.commands[0] != "start" {
		t.Fatalf("commands = %v", h.commands)
	}
	if len(h.voices) != 1 || string(h.voices[0].Audio) != "OGG" || h.voices[0].MimeType != "audio/ogg" {
		t.Fatalf("voices = %+v", h.voices)
	}
}

func TestDispatchVoiceDownloadFailure(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(context.Background(), h, stubFiles{err: errors.New("404")}, zerolog.Nop())

	voice := textUpdate(1, "")
	voice.Message.Voice = &tgbotapi.Voice{FileID: "f1"}
	dispatchAll(t, d, voice)

	if len(h.voices) != 1 || len(h.voices[0].Audio) != 0 || h.voices[0].MimeType != "audio/ogg" {
		t.Fatalf("voices = %+v", h.voices)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		user tgbotapi.User
		want string
	}{
		{tgbotapi.User{ID: 1, FirstName: "Anna", UserName: "anna"}, "Anna"},
		{tgbotapi.User{ID: 1, UserName: "anna"}, "anna"},
		{tgbotapi.User{ID: 7}, "7"},
	}
	for _, tc := range tests {
		if got := displayName(&tc.user); got != tc.want {
			t.Errorf("displayName(%+v) = %q, want %q", tc.user, got, tc.want)
		}
	}
}

type chanSource struct {
	ch      chan tgbotapi.Update
	deleted bool
	stopped bool
}

func (s *chanSource) DeleteWebhook() error { s.deleted = true; return nil }
func (s *chanSource) Updates(int) tgbotapi.UpdatesChannel { return s.ch }
func (s *chanSource) StopUpdates() { s.stopped = true }

func TestRunPolling(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(context.Background(), h, stubFiles{}, zerolog.Nop())
	src := &chanSource{ch: make(chan tgbotapi.Update, 1)}
	src.ch <- textUpdate(1, "hello")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.RunPolling(ctx, src) }()

	deadline := time.After(time.Second)
	for {
		h.mu.Lock()
		n := len(h.messages)
		h.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("update was not dispatched")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !src.deleted || !src.stopped {
		t.Fatalf("deleted=%v stopped=%v", src.deleted, src.stopped)
	}
}
