// Package server exposes the memory service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/outbrain/memoryd/internal/auth"
)

// HTTPServer wraps the chi router and its http.Server.
type HTTPServer struct {
	server *http.Server
	router *chi.Mux
	logger *slog.Logger
}

// HTTPServerConfig holds configuration for the HTTP server
type HTTPServerConfig struct {
	Port           int
	Logger         *slog.Logger
	AllowedOrigins []string // CORS allowed origins

	Questions QuestionService
	Records   RecordService
	Reader    RecordReader

	AuthMiddleware *auth.Middleware
	TokenIssuer    TokenIssuer
	AuthDisabled   bool
}

// NewHTTPServer creates the HTTP server and mounts all routes.
func NewHTTPServer(cfg HTTPServerConfig) (*HTTPServer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	router.Get("/healthz", healthCheckHandler())
	router.Get("/readyz", readinessCheckHandler())

	h := &handlers{
		questions:    cfg.Questions,
		records:      cfg.Records,
		reader:       cfg.Reader,
		tokens:       cfg.TokenIssuer,
		authDisabled: cfg.AuthDisabled,
		logger:       logger,
	}

	router.Route("/api/v1", func(r chi.Router) {
		if cfg.AuthMiddleware != nil && cfg.TokenIssuer != nil {
			r.With(cfg.AuthMiddleware.RequireAdmin).Post("/auth/token", h.issueToken)
		}

		r.Group(func(r chi.Router) {
			if !cfg.AuthDisabled && cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware.RequireUser)
			}

			r.Post("/question", h.answerQuestion)

			r.Route("/records", func(r chi.Router) {
				r.Post("/", h.createRecord)
				r.Get("/", h.listRecords)
				r.Get("/{id}", h.getRecord)
				r.Patch("/{id}", h.updateRecord)
				r.Delete("/{id}", h.deleteRecord)
			})
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // answer synthesis can be slow
		IdleTimeout:  120 * time.Second,
	}

	return &HTTPServer{
		server: server,
		router: router,
		logger: logger,
	}, nil
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying chi router. Exposed for tests.
func (s *HTTPServer) Router() *chi.Mux {
	return s.router
}

// requestLoggingMiddleware logs HTTP requests
func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// corsMiddleware handles CORS headers
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 {
				// If no origins specified, allow all in development
				allowed = true
				origin = "*"
			} else {
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID, X-Admin-API-Key")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// healthCheckHandler returns a handler for the /healthz endpoint
func healthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

// readinessCheckHandler returns a handler for the /readyz endpoint
func readinessCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ready",
		})
	}
}
