// internal/document/service.go
package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"loan-origination/internal/common/auth"
	apperrors "loan-origination/internal/common/errors"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"
	"loan-origination/internal/storage"

	"github.com/google/uuid"
)

// Providers hands out the configured storage backend. *storage.Registry
// satisfies it.
type Providers interface {
	Default(ctx context.Context) (storage.Provider, error)
}

// PresignRequest asks for a direct-to-storage upload target.
type PresignRequest struct {
	FileName      string              `json:"fileName"`
	ContentType   string              `json:"contentType"`
	Type          models.DocumentType `json:"type"`
	Size          int64               `json:"size"`
	ApplicationID string              `json:"applicationId,omitempty"`
}

type Service struct {
	repo      Repository
	providers Providers
	maxSize   int64
	logger    logger.Logger
	now       func() time.Time
}

func NewService(repo Repository, providers Providers, maxSize int64, log logger.Logger) *Service {
	if maxSize <= 0 {
		maxSize = validation.DefaultMaxUploadSize
	}
	return &Service{
		repo:      repo,
		providers: providers,
		maxSize:   maxSize,
		logger:    log.WithFields(map[string]interface{}{"component": "document"}),
		now:       time.Now,
	}
}

// MaxUploadSize is the per-file limit in bytes.
func (s *Service) MaxUploadSize() int64 { return s.maxSize }

// StorageKey is documents/<userId>/<uuid>-<filename>.
func StorageKey(userID int64, id, fileName string) string {
	return fmt.Sprintf("documents/%d/%s-%s", userID, id, safeName(fileName))
}

func safeName(fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" {
		return "file"
	}
	return name
}

// Upload validates the file, stores it and records it. The object is removed
// again when the record cannot be written.
func (s *Service) Upload(ctx context.Context, userID int64, up models.DocumentUpload) (*models.UploadResult, error) {
	if !up.Type.Valid() {
		return nil, apperrors.NewValidationError("Invalid document type", string(up.Type))
	}
	if up.ContentType == "" {
		up.ContentType = validation.ContentTypeFor(up.FileName)
	}
	if up.Size > 0 {
		if err := validation.CheckUpload(up.FileName, up.ContentType, up.Size, s.maxSize); err != nil {
			return nil, err
		}
	}

	data, err := io.ReadAll(io.LimitReader(up.Body, s.maxSize+1))
	if err != nil {
		return nil, apperrors.NewValidationError("Could not read uploaded file", err.Error())
	}
	if err := validation.CheckUpload(up.FileName, up.ContentType, int64(len(data)), s.maxSize); err != nil {
		return nil, err
	}

	provider, err := s.providers.Default(ctx)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("storage", err)
	}

	doc := s.newDocument(userID, up.Type, up.FileName, up.ContentType, int64(len(data)), up.ApplicationID)
	if err := provider.UploadData(ctx, data, doc.StorageKey, doc.ContentType); err != nil {
		return nil, apperrors.NewStorageOperationFailedError(string(provider.Name()), "upload", err)
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		if delErr := provider.DeleteFile(ctx, doc.StorageKey); delErr != nil {
			s.logger.Warn("orphaned object after failed insert", map[string]interface{}{
				"key":   doc.StorageKey,
				"error": delErr.Error(),
			})
		}
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	s.logger.Info("document uploaded", map[string]interface{}{
		"documentId": doc.ID,
		"userId":     userID,
		"type":       string(doc.Type),
		"size":       doc.Size,
	})
	return &models.UploadResult{Document: *doc}, nil
}

// Presign records the document and returns a signed URL the client uploads
// the bytes to directly.
func (s *Service) Presign(ctx context.Context, userID int64, req PresignRequest) (*models.UploadResult, error) {
	if !req.Type.Valid() {
		return nil, apperrors.NewValidationError("Invalid document type", string(req.Type))
	}
	if req.ContentType == "" {
		req.ContentType = validation.ContentTypeFor(req.FileName)
	}
	if err := validation.CheckUpload(req.FileName, req.ContentType, req.Size, s.maxSize); err != nil {
		return nil, err
	}

	provider, err := s.providers.Default(ctx)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("storage", err)
	}

	doc := s.newDocument(userID, req.Type, req.FileName, req.ContentType, req.Size, req.ApplicationID)
	signed, err := provider.UploadSignedURL(ctx, doc.StorageKey, doc.ContentType)
	if err != nil {
		return nil, apperrors.NewStorageOperationFailedError(string(provider.Name()), "presign_upload", err)
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}
	return &models.UploadResult{Document: *doc, UploadURL: signed.URL, Headers: signed.Headers}, nil
}

// Delete removes the object and the record. Documents attached to an
// application that reached a terminal status are kept.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id string) error {
	rec, err := s.owned(ctx, p, id, false)
	if err != nil {
		return err
	}
	if rec.ApplicationStatus.Terminal() {
		return apperrors.NewBusinessRuleError("Document belongs to a closed application", string(rec.ApplicationStatus))
	}

	provider, err := s.providers.Default(ctx)
	if err != nil {
		return apperrors.NewExternalServiceError("storage", err)
	}
	if err := provider.DeleteFile(ctx, rec.StorageKey); err != nil {
		return apperrors.NewStorageOperationFailedError(string(provider.Name()), "delete", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrDocumentNotFound) {
		return apperrors.NewQueryExecutionFailedError("delete_document", err)
	}
	s.logger.Info("document deleted", map[string]interface{}{"documentId": id, "userId": p.UserID})
	return nil
}

// DownloadURL returns a signed URL that downloads under the original name.
func (s *Service) DownloadURL(ctx context.Context, p auth.Principal, id string) (string, error) {
	rec, err := s.owned(ctx, p, id, true)
	if err != nil {
		return "", err
	}
	provider, err := s.providers.Default(ctx)
	if err != nil {
		return "", apperrors.NewExternalServiceError("storage", err)
	}
	url, err := provider.DownloadSignedURL(ctx, rec.StorageKey, rec.Name)
	if err != nil {
		return "", apperrors.NewStorageOperationFailedError(string(provider.Name()), "presign_download", err)
	}
	return url, nil
}

// Content is an open document body. Body supports seeking for range requests.
type Content struct {
	Document models.Document
	Body     io.ReadSeekCloser
}

func (s *Service) Open(ctx context.Context, p auth.Principal, id string) (*Content, error) {
	rec, err := s.owned(ctx, p, id, true)
	if err != nil {
		return nil, err
	}
	provider, err := s.providers.Default(ctx)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("storage", err)
	}
	raw, err := provider.RawFile(ctx, rec.StorageKey)
	if err != nil {
		return nil, apperrors.NewStorageOperationFailedError(string(provider.Name()), "open", err)
	}
	return &Content{Document: rec.Document, Body: newRangeReader(ctx, raw)}, nil
}

// UploadDocument stores a file for the principal carried by ctx.
func (s *Service) UploadDocument(ctx context.Context, up models.DocumentUpload) (*models.Document, error) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return nil, apperrors.NewUnauthorizedError("")
	}
	res, err := s.Upload(ctx, p.UserID, up)
	if err != nil {
		return nil, err
	}
	return &res.Document, nil
}

// DeleteDocument removes a document owned by the principal carried by ctx.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return apperrors.NewUnauthorizedError("")
	}
	return s.Delete(ctx, p, id)
}

func (s *Service) owned(ctx context.Context, p auth.Principal, id string, adminMayRead bool) (*Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, apperrors.NewResourceNotFoundError("Document", id)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get_document", err)
	}
	if rec.UserID != p.UserID && !(adminMayRead && p.IsAdmin()) {
		return nil, apperrors.NewResourceNotFoundError("Document", id)
	}
	return rec, nil
}

func (s *Service) newDocument(userID int64, t models.DocumentType, fileName, contentType string, size int64, applicationID string) *models.Document {
	id := uuid.New().String()
	return &models.Document{
		ID:            id,
		Name:          safeName(fileName),
		Type:          t,
		Size:          size,
		UploadedAt:    s.now().UTC(),
		ContentType:   contentType,
		UserID:        userID,
		ApplicationID: applicationID,
		StorageKey:    StorageKey(userID, id, fileName),
	}
}
