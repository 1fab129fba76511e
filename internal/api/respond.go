// internal/api/respond.go
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "loan-origination/internal/common/errors"
	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"
)

const maxJSONBody = 1 << 20

// validationBody extends the error body with field-level failures.
type validationBody struct {
	apperrors.APIError
	Errors validation.Errors `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError renders err and returns the status it wrote. Field validation
// failures are 400 with every field listed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) int {
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		writeJSON(w, http.StatusBadRequest, validationBody{
			APIError: apperrors.APIError{Code: http.StatusBadRequest, Message: fieldErrs.Error()},
			Errors:   fieldErrs,
		})
		return http.StatusBadRequest
	}

	status := apperrors.WriteHTTPError(w, err, s.production)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": status,
			"error":  err.Error(),
		})
	}
	return status
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	raw, err := readBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperrors.NewValidationError("Malformed JSON body", err.Error())
	}
	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody+1))
	if err != nil {
		return nil, apperrors.NewValidationError("Could not read request body", err.Error())
	}
	if len(raw) > maxJSONBody {
		return nil, apperrors.NewValidationError("Request body too large", "")
	}
	return raw, nil
}

func queryOptions(r *http.Request) models.QueryOptions {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	page, _ := strconv.Atoi(q.Get("page"))
	return models.QueryOptions{SortBy: q.Get("sortBy"), Limit: limit, Page: page}.Normalize()
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
