package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpdateSource delivers updates through getUpdates long polling.
type UpdateSource interface {
	DeleteWebhook() error
	Updates(timeoutSeconds int) tgbotapi.UpdatesChannel
	StopUpdates()
}

const pollTimeoutSeconds = 60

// RunPolling removes any webhook and dispatches polled updates until ctx is
// cancelled.
func (d *Dispatcher) RunPolling(ctx context.Context, src UpdateSource) error {
	if err := src.DeleteWebhook(); err != nil {
		return fmt.Errorf("switching to polling: %w", err)
	}
	updates := src.Updates(pollTimeoutSeconds)
	d.log.Info().Msg("polling for updates")

	for {
		select {
		case <-ctx.Done():
			src.StopUpdates()
			d.log.Info().Msg("polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			d.Dispatch(update)
		}
	}
}
