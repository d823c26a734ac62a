// Package bot turns Telegram updates into calls on the tutor pipeline.
package bot

import (
	"context"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tutorbot-backend/internal/models"
)

// Handler is the pipeline entry point set.
type Handler interface {
	HandleInboundMessage(ctx context.Context, msg models.InboundMessage)
	HandleInboundVoice(ctx context.Context, voice models.InboundVoice)
	HandleCommand(ctx context.Context, msg models.InboundMessage, command string)
}

// FileDownloader fetches voice files.
type FileDownloader interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

var commands = map[string]bool{"start": true, "help": true, "clear": true}

// Dispatcher processes each update on its own goroutine.
type Dispatcher struct {
	ctx     context.Context
	handler Handler
	files   FileDownloader
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher binds update processing to ctx, which outlives any single
// webhook request.
func NewDispatcher(ctx context.Context, handler Handler, files FileDownloader, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		ctx:     ctx,
		handler: handler,
		files:   files,
		log:     logger.With().Str("component", "Dispatcher").Logger(),
	}
}

// Dispatch starts handling update and returns immediately.
func (d *Dispatcher) Dispatch(update tgbotapi.Update) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.handle(d.ctx, update)
	}()
}

// Wait blocks until every dispatched update finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// displayName prefers the first name, then the username, then the user id.
func displayName(u *tgbotapi.User) string {
	switch {
	case strings.TrimSpace(u.FirstName) != "":
		return u.FirstName
	case u.UserName != "":
		return u.UserName
	default:
		return strconv.FormatInt(u.ID, 10)
	}
}

func (d *Dispatcher) handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		d.log.Debug().Int("updateId", update.UpdateID).Msg("ignoring update without a user message")
		return
	}

	inbound := models.InboundMessage{
		MessageID:   strconv.Itoa(msg.MessageID),
		UserID:      strconv.FormatInt(msg.From.ID, 10),
		ChatID:      strconv.FormatInt(msg.Chat.ID, 10),
		DisplayName: displayName(msg.From),
		Text:        msg.Text,
	}

	switch {
	case msg.IsCommand() && commands[msg.Command()]:
		d.handler.HandleCommand(ctx, inbound, msg.Command())
	case msg.Voice != nil:
		d.handler.HandleInboundVoice(ctx, d.voice(ctx, inbound, msg.Voice))
	case msg.Text != "":
		d.handler.HandleInboundMessage(ctx, inbound)
	default:
		d.log.Debug().Str("chatId", inbound.ChatID).Msg("ignoring unsupported message type")
	}
}

// voice downloads the file. A failed download yields empty audio, which the
// pipeline answers with the transcription failure reply.
func (d *Dispatcher) voice(ctx context.Context, in models.InboundMessage, v *tgbotapi.Voice) models.InboundVoice {
	out := models.InboundVoice{
		MessageID:   in.MessageID,
		UserID:      in.UserID,
		ChatID:      in.ChatID,
		DisplayName: in.DisplayName,
		MimeType:    v.MimeType,
	}
	if out.MimeType == "" {
		out.MimeType = "audio/ogg"
	}
	audio, err := d.files.DownloadFile(ctx, v.FileID)
	if err != nil {
		d.log.Error().Err(err).Str("chatId", in.ChatID).Str("fileId", v.FileID).Msg("voice download failed")
		return out
	}
	out.Audio = audio
	return out
}
