// internal/api/application_handler.go
package api

import (
	"net/http"
	"strconv"

	"loan-origination/internal/models"

	"github.com/go-chi/chi/v5"
)

type createApplicationRequest struct {
	Data models.ApplicationData `json:"data"`
}

func (s *Server) createApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	app, err := s.Applications.Create(r.Context(), principal(r), req.Data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (s *Server) listApplications(w http.ResponseWriter, r *http.Request) {
	page, err := s.Applications.List(r.Context(), principal(r), queryOptions(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getApplication(w http.ResponseWriter, r *http.Request) {
	app, err := s.Applications.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) updateApplication(w http.ResponseWriter, r *http.Request) {
	var upd models.ApplicationUpdate
	if err := decodeJSON(r, &upd); err != nil {
		s.writeError(w, r, err)
		return
	}
	app, err := s.Applications.Update(r.Context(), principal(r), chi.URLParam(r, "id"), upd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) deleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := s.Applications.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) applicationSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Applications.Summary(r.Context(), principal(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) searchApplications(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := s.Applications.Search(r.Context(), principal(r), r.URL.Query().Get("q"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": hits, "total": len(hits)})
}

func (s *Server) loanProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.Applications.LoanProducts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}
