// Package telegram wraps the Bot API client used to receive updates and
// deliver replies.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// MaxDownloadSize is the Bot API limit for getFile downloads.
const MaxDownloadSize = 20 << 20

// ErrFileTooLarge is returned when a download exceeds MaxDownloadSize.
var ErrFileTooLarge = errors.New("telegram file exceeds download limit")

// Client sends messages and typing indicators and downloads voice files.
type Client struct {
	bot          *tgbotapi.BotAPI
	http         *http.Client
	fileEndpoint string
	log          zerolog.Logger
}

// NewClient authenticates against the Bot API (getMe).
func NewClient(token string, logger zerolog.Logger) (*Client, error) {
	return NewClientWithEndpoint(token, tgbotapi.APIEndpoint, tgbotapi.FileEndpoint, &http.Client{Timeout: 60 * time.Second}, logger)
}

// NewClientWithEndpoint allows pointing the client at a local Bot API server.
// Both endpoints are format strings taking the token then the method or path.
func NewClientWithEndpoint(token, apiEndpoint, fileEndpoint string, httpClient *http.Client, logger zerolog.Logger) (*Client, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram bot api: %w", err)
	}
	c := &Client{
		bot:          bot,
		http:         httpClient,
		fileEndpoint: fileEndpoint,
		log:          logger.With().Str("component", "TelegramClient").Logger(),
	}
	c.log.Info().Str("bot", bot.Self.UserName).Msg("authorized on telegram")
	return c, nil
}

// Username is the bot's @handle without the at sign.
func (c *Client) Username() string { return c.bot.Self.UserName }

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	return id, nil
}

// Send delivers text with HTML formatting. Text that Telegram cannot parse
// as HTML is resent once as plain text.
func (c *Client) Send(ctx context.Context, chatID, text string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = tgbotapi.ModeHTML

	err = c.send(ctx, msg)
	if err != nil && strings.Contains(err.Error(), "can't parse entities") {
		c.log.Warn().Err(err).Str("chatId", chatID).Msg("html rejected, resending as plain text")
		msg.ParseMode = ""
		err = c.send(ctx, msg)
	}
	if err != nil {
		return fmt.Errorf("sending message to chat %s: %w", chatID, err)
	}
	return nil
}

// send honours one retry_after hint from a 429 response.
func (c *Client) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	_, err := c.bot.Send(msg)
	var tgErr *tgbotapi.Error
	if err == nil || !errors.As(err, &tgErr) || tgErr.RetryAfter <= 0 {
		return err
	}
	wait := time.Duration(tgErr.RetryAfter) * time.Second
	c.log.Warn().Dur("retryAfter", wait).Int64("chatId", msg.ChatID).Msg("rate limited by telegram")
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	_, err = c.bot.Send(msg)
	return err
}

// SendTyping shows the "typing…" chat action for about five seconds.
func (c *Client) SendTyping(_ context.Context, chatID string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	if _, err := c.bot.Request(tgbotapi.NewChatAction(id, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("sending chat action to %s: %w", chatID, err)
	}
	return nil
}

// DownloadFile fetches a file by id, refusing anything over MaxDownloadSize.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("getFile %s: %w", fileID, err)
	}
	if file.FileSize > MaxDownloadSize {
		return nil, ErrFileTooLarge
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(c.fileEndpoint, c.bot.Token, file.FilePath), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file %s: unexpected status %d", fileID, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", fileID, err)
	}
	if len(data) > MaxDownloadSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// SetWebhook registers url and drops updates queued while the bot was down.
func (c *Client) SetWebhook(url, secretToken string) error {
	params := tgbotapi.Params{"url": url}
	params.AddBool("drop_pending_updates", true)
	params.AddNonEmpty("secret_token", secretToken)
	if _, err := c.bot.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	c.log.Info().Str("url", url).Msg("webhook registered")
	return nil
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *Client) DeleteWebhook() error {
	if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("deleteWebhook: %w", err)
	}
	return nil
}

// Updates starts long polling.
func (c *Client) Updates(timeoutSeconds int) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSeconds
	return c.bot.GetUpdatesChan(u)
}

// StopUpdates ends long polling and closes the updates channel.
func (c *Client) StopUpdates() { c.bot.StopReceivingUpdates() }
