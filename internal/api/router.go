package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(apiHandler *APIHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(withLogging(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(withCORS)
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/", apiHandler.RootHandler)
	r.Get("/health", apiHandler.HealthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)

		r.Group(func(r chi.Router) {
			// Token checks only apply when a secret is configured.
			if apiHandler.jwtSecret != "" {
				r.Use(apiHandler.JWTAuthMiddleware)
			}

			r.Get("/assignments", apiHandler.ListAssignmentsHandler)
			r.Get("/assignments/{assignmentID}", apiHandler.GetAssignmentHandler)

			r.Post("/chat", apiHandler.AskHandler)
			r.Route("/chatbot", func(r chi.Router) {
				r.Post("/ask", apiHandler.AskHandler)
				r.Post("/clear", apiHandler.ClearHandler)
				r.Get("/history/{studentID}/{assignmentID}", apiHandler.HistoryHandler)
				r.Get("/videos/{studentID}/{assignmentID}", apiHandler.VideosHandler)
			})
		})
	})

	return r
}
