package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexboard/internal/api"
	"github.com/dgnsrekt/gexboard/internal/playback"
	"github.com/dgnsrekt/gexboard/internal/push"
	"github.com/dgnsrekt/gexboard/internal/refresh"
	"github.com/dgnsrekt/gexboard/internal/session"
)

// Server exposes the computed analytics and the playback controls to the
// rendering front end.
type Server struct {
	coordinator *refresh.Coordinator
	engine      *playback.Engine
	client      api.Client
	store       *session.Store
	hub         *push.Hub
	logger      *zap.Logger
}

func NewServer(
	coordinator *refresh.Coordinator,
	engine *playback.Engine,
	client api.Client,
	store *session.Store,
	hub *push.Hub,
	logger *zap.Logger,
) *Server {
	return &Server{
		coordinator: coordinator,
		engine:      engine,
		client:      client,
		store:       store,
		hub:         hub,
		logger:      logger,
	}
}

// NewRouter builds the chi router. metricsHandler serves the Prometheus
// registry and may be nil in tests.
func NewRouter(s *Server, metricsHandler http.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)
	r.Use(zapLoggerMiddleware(logger))

	r.Get("/healthz", s.handleHealth)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/analytics", s.handleAnalytics)
		r.Post("/symbol", s.handleSetSymbol)
		r.Get("/session", s.handleGetSession)
		r.Put("/session", s.handlePutSession)
		r.Get("/search", s.handleSearch)
		r.Put("/settings/refresh", s.handleRefreshPeriod)

		r.Route("/playback", func(r chi.Router) {
			r.Post("/enter", s.handlePlaybackEnter)
			r.Post("/load", s.handlePlaybackLoad)
			r.Post("/play", s.handlePlaybackPlay)
			r.Post("/pause", s.handlePlaybackPause)
			r.Post("/seek", s.handlePlaybackSeek)
			r.Post("/step", s.handlePlaybackStep)
			r.Post("/speed", s.handlePlaybackSpeed)
			r.Post("/exit", s.handlePlaybackExit)
			r.Get("/session", s.handlePlaybackSession)
		})
	})

	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func zapLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r)
		})
	}
}
