// internal/api/wizard_handler.go
package api

import (
	"context"
	"net/http"
	"strconv"

	apperrors "loan-origination/internal/common/errors"
	"loan-origination/internal/models"
	"loan-origination/internal/wizard"

	"github.com/go-chi/chi/v5"
)

type wizardSection int

const (
	sectionPersonal wizardSection = iota
	sectionEmployment
	sectionLoan
)

// Drafts are keyed by the numeric user id.
func owner(r *http.Request) string {
	return strconv.FormatInt(principal(r).UserID, 10)
}

func (s *Server) writeState(w http.ResponseWriter, r *http.Request, st *wizard.State, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) wizardState(w http.ResponseWriter, r *http.Request) {
	st, err := s.Wizard.State(r.Context(), owner(r))
	s.writeState(w, r, st, err)
}

func (s *Server) wizardSection(section wizardSection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := readBody(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var submit func(context.Context, string, []byte) (*wizard.State, error)
		switch section {
		case sectionPersonal:
			submit = s.Wizard.SubmitPersonalInfo
		case sectionEmployment:
			submit = s.Wizard.SubmitEmployment
		default:
			submit = s.Wizard.SubmitLoanDetails
		}
		st, err := submit(r.Context(), owner(r), raw)
		s.writeState(w, r, st, err)
	}
}

func (s *Server) wizardAttach(w http.ResponseWriter, r *http.Request) {
	// POST puts the category in the {id} slot shared with DELETE.
	category := models.DocumentType(chi.URLParam(r, "id"))
	if !category.Valid() {
		s.writeError(w, r, apperrors.NewUploadRejectedError("Unknown document category "+string(category)))
		return
	}
	up, cleanup, err := s.readUpload(w, r, category)
	if err != nil {
		s.writeError(w, r, s.Wizard.RejectDocument(r.Context(), owner(r), category, err))
		return
	}
	defer cleanup()

	doc, err := s.Wizard.AttachDocument(r.Context(), owner(r), up)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) wizardRemove(w http.ResponseWriter, r *http.Request) {
	st, err := s.Wizard.RemoveDocument(r.Context(), owner(r), chi.URLParam(r, "id"))
	s.writeState(w, r, st, err)
}

func (s *Server) wizardCompleteDocuments(w http.ResponseWriter, r *http.Request) {
	st, err := s.Wizard.CompleteDocuments(r.Context(), owner(r))
	s.writeState(w, r, st, err)
}

func (s *Server) wizardBack(w http.ResponseWriter, r *http.Request) {
	st, err := s.Wizard.Back(r.Context(), owner(r))
	s.writeState(w, r, st, err)
}

func (s *Server) wizardEdit(w http.ResponseWriter, r *http.Request) {
	step, err := wizard.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		s.writeError(w, r, apperrors.NewWizardStepError(err.Error()))
		return
	}
	st, err := s.Wizard.Edit(r.Context(), owner(r), step)
	s.writeState(w, r, st, err)
}

func (s *Server) wizardSubmit(w http.ResponseWriter, r *http.Request) {
	res, err := s.Wizard.Submit(r.Context(), owner(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) wizardAbandon(w http.ResponseWriter, r *http.Request) {
	if err := s.Wizard.Abandon(r.Context(), owner(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
