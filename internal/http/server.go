package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"go-fraud-score-dashboard/internal/config"
	"go-fraud-score-dashboard/internal/connectors/scoring"
	"go-fraud-score-dashboard/internal/session"
)

// Server wraps an HTTP server and route handlers.
type Server struct {
	httpServer *nethttp.Server
	scoring    *scoring.Client
	sessions   *session.Manager
	log        zerolog.Logger
}

// NewServer creates a configured HTTP server with v1 endpoints.
func NewServer(cfg config.Config, log zerolog.Logger) (*Server, error) {
	var store session.Store
	if cfg.SessionSQLitePath != "" {
		createdStore, err := session.NewSQLiteStore(cfg.SessionSQLitePath)
		if err != nil {
			return nil, err
		}
		store = createdStore
	} else {
		store = session.NewMemoryStore()
	}
	sessions := session.NewManager(store, cfg.HistoryLimit)
	client := scoring.NewClient(cfg.ScoringEndpoint, cfg.ScoringTimeout)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(loggingMiddleware(log))
	r.Use(observabilityMiddleware)

	r.Get("/", dashboardHandler)
	r.Get("/favicon.ico", faviconHandler)
	r.Method(nethttp.MethodGet, "/metrics", metricsHandler())
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", loginHandler(client, sessions, cfg))
		r.Post("/auth/register", registerHandler(client))
		r.Post("/auth/logout", logoutHandler(client, sessions, cfg))
		r.Get("/auth/session", sessionInfoHandler(sessions))

		r.Post("/score", scoreHandler(client, sessions))
		r.Post("/score/batch", scoreBatchHandler(client, sessions, cfg))
		r.Post("/score/upload", scoreUploadHandler(client, sessions, cfg))
		r.Get("/score/sample", sampleTransactionHandler)
		r.Get("/history", historyHandler(sessions))
		r.Post("/export/batch", exportBatchHandler(sessions))

		r.Get("/status/backend", backendStatusHandler(client))
		r.Post("/admin/reload", reloadHandler(client, sessions))
	})

	httpServer := &nethttp.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{httpServer: httpServer, scoring: client, sessions: sessions, log: log}, nil
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.sessions != nil {
		_ = s.sessions.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func readyHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"status": "ready",
	})
}

func loggingMiddleware(log zerolog.Logger) func(nethttp.Handler) nethttp.Handler {
	return func(next nethttp.Handler) nethttp.Handler {
		return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: nethttp.StatusOK}
			next.ServeHTTP(rec, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

func writeJSON(w nethttp.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w nethttp.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{"error": message})
}
