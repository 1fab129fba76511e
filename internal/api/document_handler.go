// internal/api/document_handler.go
package api

import (
	"errors"
	"fmt"
	"mime"
	"net/http"

	apperrors "loan-origination/internal/common/errors"
	"loan-origination/internal/common/validation"
	"loan-origination/internal/document"
	"loan-origination/internal/models"

	"github.com/go-chi/chi/v5"
)

// multipartSlack covers form fields and boundaries around the file part.
const multipartSlack = 1 << 20

// readUpload pulls the "file" part out of a multipart request. The caller
// closes the returned function once the body has been consumed.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, t models.DocumentType) (models.DocumentUpload, func(), error) {
	max := s.MaxUpload
	if max <= 0 {
		max = validation.DefaultMaxUploadSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, max+multipartSlack)
	if err := r.ParseMultipartForm(multipartSlack); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return models.DocumentUpload{}, nil, validation.NewFileTooLargeError("", max)
		}
		return models.DocumentUpload{}, nil, apperrors.NewUploadRejectedError(fmt.Sprintf("Invalid multipart upload: %v", err))
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return models.DocumentUpload{}, nil, apperrors.NewUploadRejectedError("No file provided")
	}
	if t == "" {
		t = models.DocumentType(r.FormValue("type"))
	}

	up := models.DocumentUpload{
		Type:          t,
		FileName:      header.Filename,
		ContentType:   header.Header.Get("Content-Type"),
		Size:          header.Size,
		Body:          file,
		ApplicationID: r.FormValue("applicationId"),
	}
	cleanup := func() {
		_ = file.Close()
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}
	return up, cleanup, nil
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	up, cleanup, err := s.readUpload(w, r, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cleanup()

	res, err := s.Documents.Upload(r.Context(), principal(r).UserID, up)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) presignUpload(w http.ResponseWriter, r *http.Request) {
	var req document.PresignRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Documents.Presign(r.Context(), principal(r).UserID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.Documents.Delete(r.Context(), principal(r), chi.URLParam(r, "documentId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) documentURL(w http.ResponseWriter, r *http.Request) {
	url, err := s.Documents.DownloadURL(r.Context(), principal(r), chi.URLParam(r, "documentId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// documentContent streams the object. Range requests are answered by
// http.ServeContent seeking the storage reader.
func (s *Server) documentContent(w http.ResponseWriter, r *http.Request) {
	content, err := s.Documents.Open(r.Context(), principal(r), chi.URLParam(r, "documentId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer content.Body.Close()

	doc := content.Document
	if doc.ContentType != "" {
		w.Header().Set("Content-Type", doc.ContentType)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.Name}))
	http.ServeContent(w, r, doc.Name, doc.UploadedAt, content.Body)
}
