package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tutorbot-backend/internal/conversation"
	"tutorbot-backend/internal/metrics"
	"tutorbot-backend/internal/models"
	"tutorbot-backend/internal/store"
)

// ModelGateway produces one completion for a conversation window.
type ModelGateway interface {
	Complete(ctx context.Context, history []models.Message, systemPrompt string, opts models.GenerationOptions) (string, error)
	Name() string
}

// Transcriber turns a voice note into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// OutboundChannel delivers text to a chat.
type OutboundChannel interface {
	Send(ctx context.Context, chatID, text string) error
	SendTyping(ctx context.Context, chatID string) error
}

type TutorConfig struct {
	MaxContextMessages int
	MaxStoredMessages  int
	MaxFragmentSize    int
	FragmentDelay      time.Duration
	SingleReplyGuard   bool
	ModelTimeout       time.Duration
	TypingInterval     time.Duration
	Generation         models.GenerationOptions
}

// TutorService runs the inbound message pipeline.
type TutorService struct {
	prompts     store.PromptStore
	builder     *conversation.Builder
	guard       *conversation.Guard
	locks       *conversation.UserLocks
	sequencer   *conversation.Sequencer
	model       ModelGateway
	transcriber Transcriber
	out         OutboundChannel
	metrics     *metrics.Metrics
	cfg         TutorConfig
	log         zerolog.Logger
}

// NewTutorService wires the pipeline. transcriber may be nil, in which case
// every voice message gets the transcription failure reply.
func NewTutorService(
	dialogs store.DialogStore,
	prompts store.PromptStore,
	model ModelGateway,
	transcriber Transcriber,
	out OutboundChannel,
	m *metrics.Metrics,
	cfg TutorConfig,
	logger zerolog.Logger,
) *TutorService {
	return &TutorService{
		prompts:     prompts,
		builder:     conversation.NewBuilder(dialogs),
		guard:       conversation.NewGuard(),
		locks:       &conversation.UserLocks{},
		sequencer:   conversation.NewSequencer(cfg.FragmentDelay),
		model:       model,
		transcriber: transcriber,
		out:         out,
		metrics:     m,
		cfg:         cfg,
		log:         logger.With().Str("component", "TutorService").Logger(),
	}
}

// deliveryError records how far delivery got before a send failed.
type deliveryError struct {
	sent int
	err  error
}

func (e *deliveryError) Error() string {
	return fmt.Sprintf("%v after %d fragments: %v", ErrDeliveryFailure, e.sent, e.err)
}

func (e *deliveryError) Unwrap() []error { return []error{ErrDeliveryFailure, e.err} }

// HandleInboundMessage answers one text message.
func (s *TutorService) HandleInboundMessage(ctx context.Context, msg models.InboundMessage) {
	s.run(ctx, "text", msg.ChatID, msg.MessageID, func(ctx context.Context) error {
		prompt, err := s.activePrompt(ctx)
		if err != nil {
			return err
		}
		stopTyping := s.startTyping(ctx, msg.ChatID)
		defer stopTyping()
		return s.answer(ctx, msg.ChatID, msg.UserID, msg.DisplayName, msg.Text, prompt, stopTyping)
	})
}

// HandleInboundVoice transcribes a voice message and answers the transcript.
func (s *TutorService) HandleInboundVoice(ctx context.Context, voice models.InboundVoice) {
	s.run(ctx, "voice", voice.ChatID, voice.MessageID, func(ctx context.Context) error {
		prompt, err := s.activePrompt(ctx)
		if err != nil {
			return err
		}
		stopTyping := s.startTyping(ctx, voice.ChatID)
		defer stopTyping()

		text, err := s.transcribe(ctx, voice)
		s.metrics.RecordTranscription(err)
		if err != nil {
			return err
		}
		s.log.Info().Str("userId", voice.UserID).Int("chars", len(text)).Msg("voice transcribed")
		return s.answer(ctx, voice.ChatID, voice.UserID, voice.DisplayName, text, prompt, stopTyping)
	})
}

// HandleCommand answers /start, /help and /clear. command is given without
// the leading slash.
func (s *TutorService) HandleCommand(ctx context.Context, msg models.InboundMessage, command string) {
	s.run(ctx, "command", msg.ChatID, msg.MessageID, func(ctx context.Context) error {
		switch command {
		case "start":
			return s.send(ctx, msg.ChatID, greeting(msg.DisplayName))
		case "help":
			return s.send(ctx, msg.ChatID, replyHelp)
		case "clear":
			unlock := s.locks.Lock(msg.UserID)
			err := s.builder.Clear(ctx, msg.UserID)
			unlock()
			if err != nil {
				s.log.Error().Err(err).Str("userId", msg.UserID).Msg("failed to clear history")
				return s.send(ctx, msg.ChatID, replyClearFailed)
			}
			s.log.Info().Str("userId", msg.UserID).Msg("history cleared")
			return s.send(ctx, msg.ChatID, replyHistoryCleared)
		default:
			return s.send(ctx, msg.ChatID, replyUnknownCommand)
		}
	})
}

// run holds the dedup marker for the whole handling of one inbound message
// and turns the pipeline result into at most one user-facing reply.
func (s *TutorService) run(ctx context.Context, kind, chatID, messageID string, fn func(ctx context.Context) error) {
	key := chatID + ":" + messageID
	logger := s.log.With().Str("kind", kind).Str("chatId", chatID).Str("messageId", messageID).Logger()

	if !s.guard.Admit(key) {
		s.metrics.DuplicateDeliveries.Inc()
		s.metrics.RecordInbound(kind, metrics.OutcomeDuplicate)
		logger.Debug().Msg("duplicate delivery dropped")
		return
	}
	defer s.guard.Release(key)

	s.metrics.InflightMessages.Inc()
	defer s.metrics.InflightMessages.Dec()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			s.metrics.RecordInbound(kind, metrics.OutcomePanic)
			s.notify(ctx, logger, chatID, replyGenericFailure)
		}
	}()

	err := fn(ctx)
	s.metrics.RecordInbound(kind, outcomeFor(err))
	if err == nil {
		return
	}

	var de *deliveryError
	if errors.As(err, &de) {
		s.metrics.DeliveryFailuresTotal.Inc()
		if de.sent > 0 {
			logger.Warn().Err(err).Msg("reply delivered partially")
			return
		}
	}
	logger.Error().Err(err).Msg("failed to handle message")
	if text, ok := replyFor(err); ok {
		s.notify(ctx, logger, chatID, text)
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeReplied
	case errors.Is(err, ErrNoActivePrompt), errors.Is(err, ErrPromptNotFound):
		return metrics.OutcomeNoPrompt
	case errors.Is(err, ErrModelFailure):
		return metrics.OutcomeModelError
	case errors.Is(err, ErrTranscriptionFailure):
		return metrics.OutcomeTranscription
	case errors.Is(err, ErrDeliveryFailure):
		return metrics.OutcomeDeliveryError
	default:
		return metrics.OutcomeStorageError
	}
}

// notify sends a failure reply. Its own failure is only logged.
func (s *TutorService) notify(ctx context.Context, logger zerolog.Logger, chatID, text string) {
	if err := s.out.Send(ctx, chatID, text); err != nil {
		logger.Error().Err(err).Msg("failed to send error reply")
	}
}

func (s *TutorService) send(ctx context.Context, chatID, text string) error {
	if err := s.out.Send(ctx, chatID, text); err != nil {
		return &deliveryError{err: err}
	}
	return nil
}

func (s *TutorService) activePrompt(ctx context.Context) (string, error) {
	id, err := s.prompts.GetActivePromptID(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: reading active prompt id: %w", ErrStorageFailure, err)
	}
	if id == "" {
		return "", ErrNoActivePrompt
	}
	p, err := s.prompts.GetPrompt(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrPromptNotFound, id)
		}
		return "", fmt.Errorf("%w: reading prompt %s: %w", ErrStorageFailure, id, err)
	}
	return p.Content, nil
}

func (s *TutorService) transcribe(ctx context.Context, voice models.InboundVoice) (string, error) {
	if s.transcriber == nil {
		return "", fmt.Errorf("%w: voice transcription is not configured", ErrTranscriptionFailure)
	}
	if len(voice.Audio) == 0 {
		return "", fmt.Errorf("%w: empty audio", ErrTranscriptionFailure)
	}
	text, err := s.transcriber.Transcribe(ctx, voice.Audio, voice.MimeType)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscriptionFailure, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty transcript", ErrTranscriptionFailure)
	}
	return text, nil
}

// answer runs context build, model call, delivery and persistence while
// holding the user's lock.
func (s *TutorService) answer(ctx context.Context, chatID, userID, displayName, text, systemPrompt string, stopTyping func()) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	conv, err := s.builder.AppendUserTurn(ctx, userID, displayName, text)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	window := conversation.WindowForModel(conv, s.cfg.MaxContextMessages)
	reply, err := s.complete(ctx, window, systemPrompt)
	stopTyping()
	if err != nil {
		return err
	}
	conversation.AppendModelTurn(conv, reply)

	visible := reply
	if s.cfg.SingleReplyGuard {
		visible = conversation.FirstReply(reply)
	}
	fragments := conversation.Texts(conversation.Split(visible, s.cfg.MaxFragmentSize))
	sent, deliverErr := s.sequencer.Deliver(ctx, func(ctx context.Context, t string) error {
		return s.out.Send(ctx, chatID, t)
	}, fragments)
	s.metrics.FragmentsSentTotal.Add(float64(sent))
	if deliverErr != nil && sent == 0 {
		return &deliveryError{err: deliverErr}
	}

	if err := s.builder.TrimAndPersist(ctx, conv, s.cfg.MaxStoredMessages); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	if deliverErr != nil {
		return &deliveryError{sent: sent, err: deliverErr}
	}
	s.log.Info().Str("userId", userID).Int("fragments", sent).Int("stored", len(conv.Messages)).Msg("reply delivered")
	return nil
}

func (s *TutorService) complete(ctx context.Context, window []models.Message, systemPrompt string) (string, error) {
	if s.cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ModelTimeout)
		defer cancel()
	}
	start := time.Now()
	reply, err := s.model.Complete(ctx, window, systemPrompt, s.cfg.Generation)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty completion")
	}
	s.metrics.RecordModelRequest(s.model.Name(), time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrModelFailure, s.model.Name(), err)
	}
	return reply, nil
}

// startTyping sends the typing indicator and keeps refreshing it until the
// returned func is called. The returned func is safe to call more than once.
func (s *TutorService) startTyping(ctx context.Context, chatID string) func() {
	if err := s.out.SendTyping(ctx, chatID); err != nil {
		s.log.Debug().Err(err).Str("chatId", chatID).Msg("typing indicator failed")
	}
	if s.cfg.TypingInterval <= 0 {
		return func() {}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.TypingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.out.SendTyping(ctx, chatID); err != nil {
					s.log.Debug().Err(err).Str("chatId", chatID).Msg("typing indicator failed")
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
		})
	}
}
