package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// SecretTokenHeader carries the secret_token registered with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateDispatcher starts asynchronous processing of one update.
type UpdateDispatcher interface {
	Dispatch(update tgbotapi.Update)
}

// TelegramWebhookHandler receives Bot API updates over HTTPS.
type TelegramWebhookHandler struct {
	dispatcher UpdateDispatcher
	secret     string
	log        zerolog.Logger
}

func NewTelegramWebhookHandler(d UpdateDispatcher, secret string, logger zerolog.Logger) *TelegramWebhookHandler {
	return &TelegramWebhookHandler{
		dispatcher: d,
		secret:     secret,
		log:        logger.With().Str("component", "TelegramWebhook").Logger(),
	}
}

// HandleUpdate acknowledges the update before processing it so Telegram
// never retries a slow model call.
func (h *TelegramWebhookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.log.Warn().Str("remote", r.RemoteAddr).Msg("webhook call with bad secret token")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	defer r.Body.Close()
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		// 200 so Telegram drops an update we can never parse.
		h.log.Error().Err(err).Msg("invalid update payload")
		w.WriteHeader(http.StatusOK)
		return
	}

	w.WriteHeader(http.StatusOK)
	h.dispatcher.Dispatch(update)
}
