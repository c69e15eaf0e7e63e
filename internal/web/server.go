package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/detector"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/identity"
	"github.com/kozaktomas/face-auth/internal/logger"
	"github.com/kozaktomas/face-auth/internal/web/handlers"
	"github.com/kozaktomas/face-auth/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config      *config.Config
	router      *chi.Mux
	httpServer  *http.Server
	repo        *identity.Repository
	matcher     *facematch.Matcher
	detector    detector.Detector
	enrollments *handlers.EnrollmentManager
	log         *logger.Logger
}

// NewServer creates a new web server. det may be nil, in which case image
// uploads are rejected and only JSON descriptors are accepted.
func NewServer(cfg *config.Config, repo *identity.Repository, det detector.Detector, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	r := chi.NewRouter()

	s := &Server{
		config:      cfg,
		router:      r,
		repo:        repo,
		matcher:     facematch.NewMatcher(cfg.Matcher.Threshold),
		detector:    det,
		enrollments: handlers.NewEnrollmentManager(repo, log),
		log:         log.With("component", "web"),
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(time.Minute))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Web.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")

	s.enrollments.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
