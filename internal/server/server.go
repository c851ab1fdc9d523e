package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/cardsavvy-be/internal/auth"
	"github.com/hongminglow/cardsavvy-be/internal/catalog"
	"github.com/hongminglow/cardsavvy-be/internal/config"
	"github.com/hongminglow/cardsavvy-be/internal/enrichment"
	"github.com/hongminglow/cardsavvy-be/internal/http/handlers"
	"github.com/hongminglow/cardsavvy-be/internal/metrics"
	"github.com/hongminglow/cardsavvy-be/internal/middleware"
	"github.com/hongminglow/cardsavvy-be/internal/storage"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, store storage.Store, m *metrics.Metrics, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}

	gemini := enrichment.NewGeminiClient(cfg.GeminiAPIKey,
		enrichment.WithBaseURL(cfg.GeminiBaseURL),
		enrichment.WithModel(cfg.GeminiModel),
		enrichment.WithTimeout(cfg.EnrichmentTimeout),
	)
	resolver := catalog.NewResolver(store, gemini,
		catalog.WithReplier(gemini),
		catalog.WithMetrics(m),
		catalog.WithLogger(log.Named("catalog")),
	)
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	requireUser := handlers.Middleware(middleware.RequireUser(tokenManager))

	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now()).Register(mux)
	handlers.NewAuthHandler(store, tokenManager, log).Register(mux, requireUser)
	handlers.NewCardsHandler(resolver, log).Register(mux, requireUser)
	handlers.NewAdvisorHandler(resolver, log, -1).Register(mux, requireUser)
	mux.Handle("/metrics", m.Handler())

	handler := middleware.CORS(cfg.CORSOrigins, middleware.Logging(log.Named("http"), m, mux))

	// Lookups wait on the enrichment provider, so writes get its budget plus headroom.
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.EnrichmentTimeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Handler exposes the fully wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.inner.Addr
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
