package conversation

import (
	"context"
	"time"
)

// Sequencer delivers fragments in order, pausing between consecutive sends
// to stay under the outbound channel's per-chat rate limit.
type Sequencer struct {
	Delay time.Duration
	// Sleep waits for d or until ctx is done. Replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewSequencer(delay time.Duration) *Sequencer {
	return &Sequencer{Delay: delay, Sleep: sleepContext}
}

// Deliver sends each fragment with send, waiting Delay between sends but not
// after the last one. The first error stops delivery; sent counts the
// fragments that went out before it.
func (s *Sequencer) Deliver(ctx context.Context, send func(ctx context.Context, text string) error, fragments []string) (sent int, err error) {
	for i, text := range fragments {
		if i > 0 && s.Delay > 0 {
			if err := s.Sleep(ctx, s.Delay); err != nil {
				return sent, err
			}
		}
		if err := send(ctx, text); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
