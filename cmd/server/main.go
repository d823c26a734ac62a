package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tutorbot-backend/internal/api"
	"tutorbot-backend/internal/bot"
	"tutorbot-backend/internal/config"
	"tutorbot-backend/internal/crypto"
	"tutorbot-backend/internal/handlers"
	"tutorbot-backend/internal/integrations"
	"tutorbot-backend/internal/integrations/telegram"
	"tutorbot-backend/internal/logger"
	"tutorbot-backend/internal/metrics"
	"tutorbot-backend/internal/models"
	"tutorbot-backend/internal/services"
	"tutorbot-backend/internal/store"
	"tutorbot-backend/internal/store/filestore"
	"tutorbot-backend/internal/store/postgres"
	"tutorbot-backend/internal/store/sqlite"
)

const (
	shutdownTimeout = 10 * time.Second
	typingInterval  = 4 * time.Second
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		// Logger is not configured yet; the bootstrap logger is enough here.
		logger.New(logger.Config{Level: "info"}).Fatal().Err(err).Msg("failed to load configuration")
	}
	root := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	log := logger.Component(root, "main")
	log.Info().Str("environment", cfg.Environment).Msg("starting tutor bot")

	// 2. Initialize Storage
	initCtx, initCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer initCancel()

	st, err := openStore(initCtx, cfg, root)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to open storage")
	}
	defer st.Close()
	log.Info().Str("driver", cfg.StorageDriver).Msg("storage initialized")

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	// 4. External Integrations
	model, err := integrations.DefaultRegistry(root).Build(initCtx, cfg.ModelProvider, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize model provider")
	}
	log.Info().Str("provider", model.Name()).Msg("model provider initialized")

	var transcriber services.Transcriber
	if cfg.SpeechAPIKey != "" {
		speech, err := integrations.NewSpeechTranscriber(initCtx, cfg.SpeechAPIKey, cfg.SpeechLanguage)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize speech client")
		}
		defer speech.Close()
		transcriber = speech
		log.Info().Str("language", cfg.SpeechLanguage).Msg("voice transcription enabled")
	} else {
		log.Warn().Msg("SPEECH_API_KEY not set, voice messages will not be transcribed")
	}

	tg, err := telegram.NewClient(cfg.TelegramToken, root)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to telegram")
	}

	// 5. Initialize Services
	promptService := services.NewPromptService(st, root)
	if err := promptService.EnsureDefaultPrompt(initCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to seed default prompt")
	}
	dialogService := services.NewDialogService(st, cfg.ActivitySource, root)
	authService := services.NewAuthService(cfg, root)
	tutor := services.NewTutorService(st, st, model, transcriber, tg, m, services.TutorConfig{
		MaxContextMessages: cfg.MaxContextMessages,
		MaxStoredMessages:  cfg.MaxStoredMessages,
		MaxFragmentSize:    cfg.MaxFragmentSize,
		FragmentDelay:      cfg.FragmentDelay,
		SingleReplyGuard:   cfg.SingleReplyGuard,
		ModelTimeout:       cfg.ModelTimeout,
		TypingInterval:     typingInterval,
		Generation: models.GenerationOptions{
			MaxOutputTokens: int32(cfg.MaxOutputTokens),
			Temperature:     float32(cfg.Temperature),
		},
	}, root)

	// Update handling outlives webhook requests and the polling loop.
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()
	dispatcher := bot.NewDispatcher(dispatchCtx, tutor, tg, root)

	// 6. Setup Router
	routerDeps := api.RouterDependencies{
		AuthHandler:    handlers.NewAuthHandler(authService),
		PromptHandler:  handlers.NewPromptHandler(promptService),
		DialogHandler:  handlers.NewDialogHandler(dialogService),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Config:         cfg,
		Logger:         root,
	}
	if cfg.IsProduction() {
		routerDeps.WebhookHandler = handlers.NewTelegramWebhookHandler(dispatcher, cfg.WebhookSecret, root)
	}
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(routerDeps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      70 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 7. Start HTTP server and update delivery
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	pollDone := make(chan struct{})
	if cfg.IsProduction() {
		close(pollDone)
		if err := tg.SetWebhook(cfg.WebhookURL(), cfg.WebhookSecret); err != nil {
			log.Fatal().Err(err).Msg("failed to register webhook")
		}
	} else {
		go func() {
			defer close(pollDone)
			if err := dispatcher.RunPolling(ctx, tg); err != nil {
				log.Error().Err(err).Msg("polling stopped with error")
				stop()
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server graceful shutdown failed")
	}
	<-pollDone
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("in-flight updates did not finish before the deadline")
	}
	log.Info().Msg("shutdown complete")
}

// openStore builds the storage backend selected by STORAGE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, root zerolog.Logger) (store.Store, error) {
	switch cfg.StorageDriver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("creating connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("pinging database: %w", err)
		}
		pg := postgres.NewPostgresStore(pool, root)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pg, nil

	case "sqlite":
		return sqlite.Open(cfg.SQLitePath, root)

	default:
		var sealer *crypto.Sealer
		if cfg.DialogEncryptionKey != "" {
			key, err := crypto.ParseHexKey(cfg.DialogEncryptionKey)
			if err != nil {
				return nil, fmt.Errorf("DIALOG_ENCRYPTION_KEY: %w", err)
			}
			if sealer, err = crypto.NewSealer(key); err != nil {
				return nil, err
			}
		}
		return filestore.New(cfg.DataDir, sealer, root)
	}
}
