// internal/api/router.go
package api

import (
	"context"
	"net/http"
	"time"

	"loan-origination/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.logger))
	r.Use(s.recoverer)
	r.Use(cors(s.CORS.AllowedOrigins))
	if s.limiter != nil {
		r.Use(s.rateLimit)
	}

	r.Get("/health", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/login", s.login)
			r.Post("/refresh-tokens", s.refreshTokens)
			r.Post("/logout", s.logout)
		})

		if s.MCP != nil {
			r.Handle("/mcp", s.MCP)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Route("/users", func(r chi.Router) {
				r.With(s.requireRight(models.RightManageUsers, false)).Post("/", s.createUser)
				r.With(s.requireRight(models.RightGetUsers, false)).Get("/", s.listUsers)
				r.With(s.requireRight(models.RightGetUsers, true)).Get("/{userId}", s.getUser)
				r.With(s.requireRight(models.RightManageUsers, false)).Patch("/{userId}", s.updateUser)
				r.With(s.requireRight(models.RightManageUsers, false)).Delete("/{userId}", s.deleteUser)
			})

			r.Route("/applications", func(r chi.Router) {
				r.Post("/", s.createApplication)
				r.Get("/", s.listApplications)
				r.Get("/summary", s.applicationSummary)
				r.Get("/search", s.searchApplications)
				r.Get("/{id}", s.getApplication)
				r.Put("/{id}", s.updateApplication)
				r.Delete("/{id}", s.deleteApplication)
			})
			r.Get("/loan-products", s.loanProducts)

			r.Route("/upload", func(r chi.Router) {
				r.Post("/", s.uploadDocument)
				r.Post("/presign", s.presignUpload)
				r.Delete("/{documentId}", s.deleteDocument)
				r.Get("/{documentId}/url", s.documentURL)
				r.Get("/{documentId}/content", s.documentContent)
			})

			r.Route("/wizard", func(r chi.Router) {
				r.Get("/", s.wizardState)
				r.Delete("/", s.wizardAbandon)
				r.Post("/personal-info", s.wizardSection(sectionPersonal))
				r.Post("/employment", s.wizardSection(sectionEmployment))
				r.Post("/loan-details", s.wizardSection(sectionLoan))
				r.Post("/documents/complete", s.wizardCompleteDocuments)
				r.Post("/documents/{id}", s.wizardAttach)
				r.Delete("/documents/{id}", s.wizardRemove)
				r.Post("/back", s.wizardBack)
				r.Post("/edit/{step}", s.wizardEdit)
				r.Post("/submit", s.wizardSubmit)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"code": http.StatusNotFound, "message": "Not found"})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.Health))
	for name, check := range s.Health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}
	writeJSON(w, status, map[string]interface{}{
		"status":    overall,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
