package api

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"tutorbot-backend/internal/config"
	"tutorbot-backend/internal/handlers"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	AuthHandler    *handlers.AuthHandler
	PromptHandler  *handlers.PromptHandler
	DialogHandler  *handlers.DialogHandler
	WebhookHandler *handlers.TelegramWebhookHandler
	MetricsHandler http.Handler
	Config         *config.Config
	Logger         zerolog.Logger
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()
	logger := deps.Logger.With().Str("component", "Router").Logger()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", handlers.HandleHealth)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// Telegram authenticates itself with the webhook secret token.
	if deps.WebhookHandler != nil {
		r.Post(config.WebhookPath, deps.WebhookHandler.HandleUpdate)
	}

	// --- Admin API ---
	if !deps.Config.AdminEnabled() {
		logger.Warn().Msg("admin credentials not configured, skipping /api routes")
	} else {
		r.Route("/api", func(r chi.Router) {
			r.Post("/auth/login", deps.AuthHandler.HandleLogin)

			r.Group(func(r chi.Router) {
				r.Use(JwtAuthMiddleware(deps.Config.JWTSecret, logger))

				r.Route("/prompts", func(r chi.Router) {
					r.Get("/", deps.PromptHandler.ListPrompts)
					r.Post("/", deps.PromptHandler.CreatePrompt)
					r.Get("/{id}", deps.PromptHandler.GetPrompt)
					r.Put("/{id}", deps.PromptHandler.UpdatePrompt)
					r.Delete("/{id}", deps.PromptHandler.DeletePrompt)
					r.Post("/{id}/activate", deps.PromptHandler.ActivatePrompt)
				})

				r.Route("/dialogs", func(r chi.Router) {
					r.Get("/users", deps.DialogHandler.ListUsers)
					r.Get("/stats", deps.DialogHandler.Stats)
					r.Get("/{userId}", deps.DialogHandler.GetDialog)
				})
			})
		})
	}

	// --- Dashboard ---
	if dir := deps.Config.StaticDir; dir != "" {
		r.NotFound(spaHandler(dir))
	}

	return r
}

// spaHandler serves files from dir and falls back to index.html for client routes.
func spaHandler(dir string) http.HandlerFunc {
	fs := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.NotFound(w, r)
			return
		}
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	}
}
