// internal/api/auth_handler.go
package api

import (
	"net/http"

	apperrors "loan-origination/internal/common/errors"
	"loan-origination/internal/models"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.Auth.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.Auth.Login(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) refreshTokens(w http.ResponseWriter, r *http.Request) {
	token, err := refreshTokenFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.Auth.Refresh(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token, err := refreshTokenFrom(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Auth.Logout(r.Context(), token); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func refreshTokenFrom(r *http.Request) (string, error) {
	var req models.RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", err
	}
	if req.RefreshToken == "" {
		return "", apperrors.NewValidationError("refreshToken is required", "")
	}
	return req.RefreshToken, nil
}
