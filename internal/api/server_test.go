// internal/api/server_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"loan-origination/internal/application"
	"loan-origination/internal/common/auth"
	"loan-origination/internal/common/config"
	apperrors "loan-origination/internal/common/errors"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/validation"
	"loan-origination/internal/document"
	"loan-origination/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockAuth struct{ mock.Mock }

func (m *MockAuth) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthResponse), args.Error(1)
}

func (m *MockAuth) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthResponse), args.Error(1)
}

func (m *MockAuth) Refresh(ctx context.Context, token string) (*models.AuthResponse, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthResponse), args.Error(1)
}

func (m *MockAuth) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockAuth) Authenticate(token string) (auth.Principal, error) {
	args := m.Called(token)
	return args.Get(0).(auth.Principal), args.Error(1)
}

type MockUsers struct{ mock.Mock }

func (m *MockUsers) CreateUser(ctx context.Context, in models.CreateUserInput) (*models.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUsers) QueryUsers(ctx context.Context, f models.UserFilter, o models.QueryOptions) (models.PaginatedResponse[models.User], error) {
	args := m.Called(ctx, f, o)
	return args.Get(0).(models.PaginatedResponse[models.User]), args.Error(1)
}

func (m *MockUsers) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUsers) UpdateUserByID(ctx context.Context, id int64, in models.UpdateUserInput) (*models.User, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUsers) DeleteUserByID(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type MockApplications struct{ mock.Mock }

func (m *MockApplications) Create(ctx context.Context, p auth.Principal, d models.ApplicationData) (*models.LoanApplication, error) {
	args := m.Called(ctx, p, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoanApplication), args.Error(1)
}

func (m *MockApplications) List(ctx context.Context, p auth.Principal, o models.QueryOptions) (models.PaginatedResponse[models.LoanApplication], error) {
	args := m.Called(ctx, p, o)
	return args.Get(0).(models.PaginatedResponse[models.LoanApplication]), args.Error(1)
}

func (m *MockApplications) Get(ctx context.Context, p auth.Principal, id string) (*models.LoanApplication, error) {
	args := m.Called(ctx, p, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoanApplication), args.Error(1)
}

func (m *MockApplications) Update(ctx context.Context, p auth.Principal, id string, u models.ApplicationUpdate) (*models.LoanApplication, error) {
	args := m.Called(ctx, p, id, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoanApplication), args.Error(1)
}

func (m *MockApplications) Delete(ctx context.Context, p auth.Principal, id string) error {
	return m.Called(ctx, p, id).Error(0)
}

func (m *MockApplications) Summary(ctx context.Context, p auth.Principal) (*models.ApplicationSummary, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ApplicationSummary), args.Error(1)
}

func (m *MockApplications) Search(ctx context.Context, p auth.Principal, q string, limit int) ([]application.SearchHit, error) {
	args := m.Called(ctx, p, q, limit)
	return args.Get(0).([]application.SearchHit), args.Error(1)
}

func (m *MockApplications) LoanProducts(ctx context.Context) ([]models.LoanProduct, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.LoanProduct), args.Error(1)
}

// MockWizard implements only the document calls; any other wizard call panics.
type MockWizard struct {
	WizardService
	mock.Mock
}

func (m *MockWizard) AttachDocument(ctx context.Context, owner string, up models.DocumentUpload) (*models.Document, error) {
	args := m.Called(ctx, owner, up)
	doc, _ := args.Get(0).(*models.Document)
	return doc, args.Error(1)
}

func (m *MockWizard) RejectDocument(ctx context.Context, owner string, category models.DocumentType, cause error) error {
	m.Called(ctx, owner, category, cause)
	return cause
}

type fakeDocuments struct {
	uploaded models.DocumentUpload
	body     string
}

func (f *fakeDocuments) Upload(_ context.Context, userID int64, up models.DocumentUpload) (*models.UploadResult, error) {
	raw, _ := io.ReadAll(up.Body)
	f.uploaded = up
	f.body = string(raw)
	return &models.UploadResult{Document: models.Document{ID: "doc-1", Name: up.FileName, Type: up.Type, Size: int64(len(raw)), UserID: userID}}, nil
}

func (f *fakeDocuments) Presign(context.Context, int64, document.PresignRequest) (*models.UploadResult, error) {
	return &models.UploadResult{UploadURL: "memory://documents/1/doc-1-a.pdf"}, nil
}

func (f *fakeDocuments) Delete(context.Context, auth.Principal, string) error { return nil }

func (f *fakeDocuments) DownloadURL(_ context.Context, _ auth.Principal, id string) (string, error) {
	if id != "doc-1" {
		return "", apperrors.NewResourceNotFoundError("Document", id)
	}
	return "memory://documents/1/doc-1-a.pdf?filename=a.pdf", nil
}

type seekNopCloser struct{ io.ReadSeeker }

func (seekNopCloser) Close() error { return nil }

func (f *fakeDocuments) Open(context.Context, auth.Principal, string) (*document.Content, error) {
	return &document.Content{
		Document: models.Document{ID: "doc-1", Name: "statement.pdf", ContentType: "application/pdf", UploadedAt: time.Unix(1700000000, 0)},
		Body:     seekNopCloser{strings.NewReader("hello world")},
	}, nil
}

// ==========================
// Helpers
// ==========================

var (
	userPrincipal  = auth.Principal{UserID: 7, Role: models.RoleUser}
	adminPrincipal = auth.Principal{UserID: 1, Role: models.RoleAdmin}
)

type fixture struct {
	server *Server
	auth   *MockAuth
	users  *MockUsers
	apps   *MockApplications
	docs   *fakeDocuments
}

func newFixture(t *testing.T, mutate ...func(*Deps)) *fixture {
	f := &fixture{auth: new(MockAuth), users: new(MockUsers), apps: new(MockApplications), docs: &fakeDocuments{}}
	f.auth.On("Authenticate", "user-token").Return(userPrincipal, nil).Maybe()
	f.auth.On("Authenticate", "admin-token").Return(adminPrincipal, nil).Maybe()
	f.auth.On("Authenticate", "bad-token").Return(auth.Principal{}, apperrors.NewUnauthorizedError("")).Maybe()

	deps := Deps{
		Auth:         f.auth,
		Users:        f.users,
		Applications: f.apps,
		Documents:    f.docs,
		Logger:       logger.NewTestLogger(t),
		CORS:         config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	f.server = NewServer(deps)
	return f
}

func (f *fixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// ==========================
// Auth routes
// ==========================

func TestRegister_Created(t *testing.T) {
	f := newFixture(t)
	req := models.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "password1"}
	f.auth.On("Register", mock.Anything, req).Return(&models.AuthResponse{User: models.User{ID: 3, Email: "ana@example.com"}}, nil)

	rec := f.do(http.MethodPost, "/v1/auth/register", "", req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ana@example.com", body["user"].(map[string]interface{})["email"])
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newFixture(t)
	f.auth.On("Login", mock.Anything, mock.Anything).Return(nil, apperrors.NewAuthenticationError(""))

	rec := f.do(http.MethodPost, "/v1/auth/login", "", models.LoginRequest{Email: "a@b.co", Password: "nope"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect email or password", decodeBody(t, rec)["message"])
}

func TestLogout_RequiresToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/v1/auth/logout", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.auth.On("Logout", mock.Anything, "r1").Return(nil)
	rec = f.do(http.MethodPost, "/v1/auth/logout", "", models.RefreshRequest{RefreshToken: "r1"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMalformedJSON(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader("{"))
	rec := httptest.NewRecorder()

	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ==========================
// Authentication and rights
// ==========================

func TestProtectedRoutes_RequireBearer(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"rejected token", "bad-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, "/v1/applications", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Please authenticate", decodeBody(t, rec)["message"])
		})
	}
}

func TestUsers_Rights(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetUserByID", mock.Anything, int64(7)).Return(&models.User{ID: 7}, nil)
	f.users.On("QueryUsers", mock.Anything, models.UserFilter{Role: models.RoleUser}, mock.Anything).
		Return(models.PaginatedResponse[models.User]{Results: []models.User{}, Page: 1, Limit: 10}, nil)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"user lists users", http.MethodGet, "/v1/users", "user-token", http.StatusForbidden},
		{"admin lists users", http.MethodGet, "/v1/users?role=USER", "admin-token", http.StatusOK},
		{"user reads self", http.MethodGet, "/v1/users/7", "user-token", http.StatusOK},
		{"user reads other", http.MethodGet, "/v1/users/8", "user-token", http.StatusForbidden},
		{"user deletes self", http.MethodDelete, "/v1/users/7", "user-token", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestUsers_InvalidID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/v1/users/abc", "admin-token", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ==========================
// Applications
// ==========================

func TestCreateApplication_ValidationErrors(t *testing.T) {
	f := newFixture(t)
	errs := validation.Errors{
		{Field: "personalInfo.email", Code: validation.CodeInvalidFormat, Message: "Please enter a valid email address"},
		{Field: "loanDetails.requestedAmount", Code: validation.CodeOutOfRange, Message: "Minimum loan amount is $1,000"},
	}
	f.apps.On("Create", mock.Anything, userPrincipal, mock.Anything).Return(nil, errs)

	rec := f.do(http.MethodPost, "/v1/applications", "user-token", map[string]interface{}{"data": map[string]interface{}{}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["errors"], 2)
}

func TestUpdateApplication_TransitionConflict(t *testing.T) {
	f := newFixture(t)
	f.apps.On("Update", mock.Anything, adminPrincipal, "app-1", mock.Anything).
		Return(nil, apperrors.NewInvalidStatusTransitionError("rejected", "approved"))

	rec := f.do(http.MethodPut, "/v1/applications/app-1", "admin-token", map[string]string{"status": "approved"})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestApplicationSummary_RoutesBeforeID(t *testing.T) {
	f := newFixture(t)
	f.apps.On("Summary", mock.Anything, userPrincipal).Return(&models.ApplicationSummary{TotalApplications: 3, PendingApplications: 2}, nil)

	rec := f.do(http.MethodGet, "/v1/applications/summary", "user-token", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decodeBody(t, rec)["totalApplications"])
	f.apps.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

// ==========================
// Documents
// ==========================

func TestUploadDocument_Multipart(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("type", "bank_statements"))
	part, err := mw.CreateFormFile("file", "statement.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4 body"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.DocumentBankStatements, f.docs.uploaded.Type)
	assert.Equal(t, "statement.pdf", f.docs.uploaded.FileName)
	assert.Equal(t, "%PDF-1.4 body", f.docs.body)
}

func TestUploadDocument_MissingFile(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("type", "other"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", decodeBody(t, rec)["message"])
}

func oversizedMultipart(t *testing.T, size int) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "statement.pdf")
	require.NoError(t, err)
	_, _ = part.Write(bytes.Repeat([]byte("a"), size))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadDocument_BodyOverLimit(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.MaxUpload = 1 << 20 })

	body, contentType := oversizedMultipart(t, 2<<20+1024)
	req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File size exceeds 1MB limit", decodeBody(t, rec)["message"])
}

func TestWizardAttach_BodyOverLimitRecordedAgainstCategory(t *testing.T) {
	wz := new(MockWizard)
	f := newFixture(t, func(d *Deps) {
		d.MaxUpload = 1 << 20
		d.Wizard = wz
	})
	wz.On("RejectDocument", mock.Anything, "7", models.DocumentBankStatements, mock.MatchedBy(func(err error) bool {
		return apperrors.HasCode(err, apperrors.ErrCodeUploadRejected) && strings.Contains(err.Error(), "File size exceeds 1MB limit")
	})).Once()

	body, contentType := oversizedMultipart(t, 2<<20+1024)
	req := httptest.NewRequest(http.MethodPost, "/v1/wizard/documents/bank_statements", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File size exceeds 1MB limit", decodeBody(t, rec)["message"])
	wz.AssertExpectations(t)
	wz.AssertNotCalled(t, "AttachDocument", mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentURL(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/v1/upload/doc-1/url", "user-token", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["url"], "filename=a.pdf")

	rec = f.do(http.MethodGet, "/v1/upload/missing/url", "user-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentContent_Range(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/upload/doc-1/content", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	req.Header.Set("Range", "bytes=6-10")
	rec := httptest.NewRecorder()

	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "world", rec.Body.String())
	assert.Equal(t, "bytes 6-10/11", rec.Header().Get("Content-Range"))
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "statement.pdf")
}

// ==========================
// Cross-cutting middleware
// ==========================

func TestRateLimit(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2}
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, f.do(http.MethodGet, "/health", "", nil).Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 0, f.server.SweepClients(time.Hour))
	assert.Equal(t, 1, f.server.SweepClients(0))
}

func TestRecoverer(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.MCP = http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	})

	rec := f.do(http.MethodPost, "/v1/mcp", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/applications", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()

	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Health = map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return assert.AnError },
		}
	})

	rec := f.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "ok", body["checks"].(map[string]interface{})["postgres"])
}
