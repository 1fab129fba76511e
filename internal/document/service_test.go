// internal/document/service_test.go
package document

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"loan-origination/internal/common/auth"
	apperrors "loan-origination/internal/common/errors"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"
	"loan-origination/internal/storage"
	"loan-origination/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, d *models.Document) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockRepository) Get(ctx context.Context, id string) (*Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type staticProviders struct {
	p   storage.Provider
	err error
}

func (s staticProviders) Default(context.Context) (storage.Provider, error) { return s.p, s.err }

var (
	owner  = auth.Principal{UserID: 7, Role: models.RoleUser}
	other  = auth.Principal{UserID: 8, Role: models.RoleUser}
	admin  = auth.Principal{UserID: 1, Role: models.RoleAdmin}
	pdf    = []byte("%PDF-1.7 test document body")
	record = &Record{Document: models.Document{
		ID: "doc-1", Name: "paystub.pdf", Type: models.DocumentIncomeVerification,
		Size: int64(len(pdf)), ContentType: "application/pdf", UserID: 7,
		StorageKey: "documents/7/doc-1-paystub.pdf",
	}}
)

func newTestService(t *testing.T) (*Service, *MockRepository, *storagetest.Memory) {
	repo := new(MockRepository)
	mem := storagetest.NewMemory()
	return NewService(repo, staticProviders{p: mem}, 0, logger.NewTestLogger(t)), repo, mem
}

func upload(name, contentType string, body []byte) models.DocumentUpload {
	return models.DocumentUpload{
		Type:        models.DocumentIDVerification,
		FileName:    name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Body:        bytes.NewReader(body),
	}
}

// ==========================
// Upload
// ==========================

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "documents/7/abc-id.pdf", StorageKey(7, "abc", "id.pdf"))
	assert.Equal(t, "documents/7/abc-passwd", StorageKey(7, "abc", "../../etc/passwd"))
	assert.Equal(t, "documents/7/abc-scan.png", StorageKey(7, "abc", `C:\Users\me\scan.png`))
}

func TestUpload_StoresObjectAndRecord(t *testing.T) {
	svc, repo, mem := newTestService(t)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Document")).Return(nil)

	res, err := svc.Upload(context.Background(), 7, upload("license.pdf", "application/pdf", pdf))
	require.NoError(t, err)

	doc := res.Document
	assert.Equal(t, "license.pdf", doc.Name)
	assert.Equal(t, int64(len(pdf)), doc.Size)
	assert.True(t, strings.HasPrefix(doc.StorageKey, "documents/7/"))
	assert.True(t, strings.HasSuffix(doc.StorageKey, "-license.pdf"))

	stored, ok := mem.Object(doc.StorageKey)
	require.True(t, ok)
	assert.Equal(t, pdf, stored)
}

func TestUpload_InfersContentType(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	res, err := svc.Upload(context.Background(), 7, upload("scan.PNG", "", []byte("png-bytes")))
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.Document.ContentType)
}

func TestUpload_Rejections(t *testing.T) {
	big := make([]byte, 5*1024*1024+1)
	tests := []struct {
		name string
		up   models.DocumentUpload
	}{
		{"bad extension", upload("run.exe", "application/octet-stream", pdf)},
		{"mime mismatch", upload("id.pdf", "image/png", pdf)},
		{"too large", upload("id.pdf", "application/pdf", big)},
		{"empty", upload("id.pdf", "application/pdf", nil)},
		{"understated size", models.DocumentUpload{
			Type: models.DocumentIDVerification, FileName: "id.pdf", ContentType: "application/pdf",
			Size: 10, Body: bytes.NewReader(big),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, mem := newTestService(t)
			_, err := svc.Upload(context.Background(), 7, tt.up)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUploadRejected), "got %v", err)
			assert.Empty(t, mem.Calls)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestUpload_InvalidType(t *testing.T) {
	svc, _, _ := newTestService(t)
	up := upload("id.pdf", "application/pdf", pdf)
	up.Type = "selfie"
	_, err := svc.Upload(context.Background(), 7, up)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
}

func TestUpload_StorageFailure(t *testing.T) {
	svc, repo, mem := newTestService(t)
	mem.FailOn["UploadData"] = errors.New("AccessDenied")

	_, err := svc.Upload(context.Background(), 7, upload("id.pdf", "application/pdf", pdf))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStorageOperationFailed))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpload_RecordFailureRemovesObject(t *testing.T) {
	svc, repo, mem := newTestService(t)
	var key string
	repo.On("Create", mock.Anything, mock.MatchedBy(func(d *models.Document) bool {
		key = d.StorageKey
		return true
	})).Return(errors.New("insert failed"))

	_, err := svc.Upload(context.Background(), 7, upload("id.pdf", "application/pdf", pdf))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseInsertFailed))
	_, ok := mem.Object(key)
	assert.False(t, ok)
}

func TestUploadDocument_RequiresPrincipal(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.UploadDocument(context.Background(), upload("id.pdf", "application/pdf", pdf))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))

	doc, err := svc.UploadDocument(auth.WithPrincipal(context.Background(), owner), upload("id.pdf", "application/pdf", pdf))
	require.NoError(t, err)
	assert.Equal(t, int64(7), doc.UserID)
}

// ==========================
// Presign
// ==========================

func TestPresign(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	res, err := svc.Presign(context.Background(), 7, PresignRequest{
		FileName: "w2.pdf", ContentType: "application/pdf", Type: models.DocumentTaxReturns, Size: 2048,
	})
	require.NoError(t, err)
	assert.Equal(t, "memory://"+res.Document.StorageKey, res.UploadURL)
	assert.Equal(t, "application/pdf", res.Headers["Content-Type"])
}

func TestPresign_ChecksDeclaredSize(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Presign(context.Background(), 7, PresignRequest{
		FileName: "w2.pdf", ContentType: "application/pdf", Type: models.DocumentTaxReturns, Size: 6 * 1024 * 1024,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUploadRejected))
}

// ==========================
// Delete / URL / Open
// ==========================

func TestDelete(t *testing.T) {
	closed := *record
	closed.ApplicationStatus = models.StatusCompleted

	tests := []struct {
		name     string
		who      auth.Principal
		rec      *Record
		wantCode apperrors.ErrorCode
	}{
		{"owner", owner, record, ""},
		{"other user", other, record, apperrors.ErrCodeResourceNotFound},
		{"admin cannot delete for user", admin, record, apperrors.ErrCodeResourceNotFound},
		{"closed application", owner, &closed, apperrors.ErrCodeBusinessRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, mem := newTestService(t)
			require.NoError(t, mem.UploadData(context.Background(), pdf, record.StorageKey, "application/pdf"))
			repo.On("Get", mock.Anything, "doc-1").Return(tt.rec, nil)
			repo.On("Delete", mock.Anything, "doc-1").Return(nil).Maybe()

			err := svc.Delete(context.Background(), tt.who, "doc-1")
			_, exists := mem.Object(record.StorageKey)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.False(t, exists)
				return
			}
			assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
			assert.True(t, exists)
		})
	}
}

func TestDownloadURL(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.On("Get", mock.Anything, "doc-1").Return(record, nil)

	url, err := svc.DownloadURL(context.Background(), admin, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "memory://documents/7/doc-1-paystub.pdf?filename=paystub.pdf", url)
}

func TestDownloadURL_Missing(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.On("Get", mock.Anything, "nope").Return(nil, ErrDocumentNotFound)

	_, err := svc.DownloadURL(context.Background(), owner, "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeResourceNotFound))
}

func TestOpen_ReadsRanges(t *testing.T) {
	svc, repo, mem := newTestService(t)
	require.NoError(t, mem.UploadData(context.Background(), pdf, record.StorageKey, "application/pdf"))
	repo.On("Get", mock.Anything, "doc-1").Return(record, nil)

	content, err := svc.Open(context.Background(), owner, "doc-1")
	require.NoError(t, err)
	defer content.Body.Close()

	_, err = content.Body.Seek(4, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, err = io.ReadFull(content.Body, buf)
	require.NoError(t, err)
	assert.Equal(t, "1.7", string(buf))

	end, err := content.Body.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(len(pdf)), end)

	_, err = content.Body.Seek(0, io.SeekStart)
	require.NoError(t, err)
	all, err := io.ReadAll(content.Body)
	require.NoError(t, err)
	assert.Equal(t, pdf, all)
}

func TestNewService_MaxUploadSize(t *testing.T) {
	assert.Equal(t, validation.DefaultMaxUploadSize, NewService(nil, nil, 0, logger.NewNoOpLogger()).MaxUploadSize())
	assert.Equal(t, int64(1024), NewService(nil, nil, 1024, logger.NewNoOpLogger()).MaxUploadSize())
}
