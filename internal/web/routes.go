package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-auth/internal/authentication"
	"github.com/kozaktomas/face-auth/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	configHandler := handlers.NewConfigHandler(s.config)
	identitiesHandler := handlers.NewIdentitiesHandler(s.repo, s.matcher, s.log)
	enrollmentsHandler := handlers.NewEnrollmentsHandler(s.enrollments, s.detector, s.log)
	authenticateHandler := handlers.NewAuthenticateHandler(
		authentication.New(s.repo, s.matcher, s.log), s.detector, s.log,
	)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)
		r.Get("/config", configHandler.Get)

		// Identities
		r.Get("/identities", identitiesHandler.List)
		r.Delete("/identities", identitiesHandler.Reset)
		r.Delete("/identities/{name}", identitiesHandler.Delete)
		r.Post("/identities/nearest", identitiesHandler.Nearest)

		// Enrollment
		r.Post("/enrollments", enrollmentsHandler.Create)
		r.Get("/enrollments/{id}", enrollmentsHandler.Get)
		r.Delete("/enrollments/{id}", enrollmentsHandler.Delete)
		r.Put("/enrollments/{id}/name", enrollmentsHandler.SubmitName)
		r.Post("/enrollments/{id}/face", enrollmentsHandler.SubmitFace)
		r.Post("/enrollments/{id}/restart", enrollmentsHandler.Restart)

		// Authentication
		r.Post("/authenticate", authenticateHandler.Authenticate)
	})
}
