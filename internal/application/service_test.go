// internal/application/service_test.go
package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"loan-origination/internal/common/auth"
	apperrors "loan-origination/internal/common/errors"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, app *models.LoanApplication) error {
	return m.Called(ctx, app).Error(0)
}

func (m *MockRepository) Get(ctx context.Context, id string) (*models.LoanApplication, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoanApplication), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, scope Scope, limit, offset int) ([]models.LoanApplication, int, error) {
	args := m.Called(ctx, scope, limit, offset)
	apps, _ := args.Get(0).([]models.LoanApplication)
	return apps, args.Int(1), args.Error(2)
}

func (m *MockRepository) Update(ctx context.Context, app *models.LoanApplication) error {
	return m.Called(ctx, app).Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) Summary(ctx context.Context, scope Scope) (*models.ApplicationSummary, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ApplicationSummary), args.Error(1)
}

func (m *MockRepository) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[models.ApplicationStatus]int)
	return counts, args.Error(1)
}

func (m *MockRepository) LoanProducts(ctx context.Context) ([]models.LoanProduct, error) {
	args := m.Called(ctx)
	products, _ := args.Get(0).([]models.LoanProduct)
	return products, args.Error(1)
}

func (m *MockRepository) Audit(ctx context.Context, eventType, applicationID string, details map[string]interface{}) error {
	return m.Called(ctx, eventType, applicationID, details).Error(0)
}

func (m *MockRepository) OwnedDocuments(ctx context.Context, userID int64, ids []string) ([]models.Document, error) {
	args := m.Called(ctx, userID, ids)
	docs, _ := args.Get(0).([]models.Document)
	return docs, args.Error(1)
}

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) Index(ctx context.Context, app *models.LoanApplication) error {
	return m.Called(ctx, app).Error(0)
}

func (m *MockIndexer) Remove(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockIndexer) IndexName() string { return IndexName }

func (m *MockIndexer) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	args := m.Called(ctx, query, limit)
	hits, _ := args.Get(0).([]SearchHit)
	return hits, args.Error(1)
}

type MockStarter struct {
	mock.Mock
}

func (m *MockStarter) StartProcess(ctx context.Context, id string, vars map[string]interface{}) (int64, error) {
	args := m.Called(ctx, id, vars)
	return args.Get(0).(int64), args.Error(1)
}

// ==========================
// Fixtures
// ==========================

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

var (
	applicant = auth.Principal{UserID: 7, Role: models.RoleUser}
	stranger  = auth.Principal{UserID: 8, Role: models.RoleUser}
	admin     = auth.Principal{UserID: 1, Role: models.RoleAdmin}
)

func validData() models.ApplicationData {
	return models.ApplicationData{
		PersonalInfo: &models.PersonalInfo{
			FirstName: "Jane", LastName: "Doe", Email: "jane@example.com",
			Phone: "5551234567", DateOfBirth: "1990-01-01", SSN: "123456789",
			Address: models.Address{Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701"},
		},
		EmploymentInfo: &models.EmploymentInfo{
			EmploymentType: models.EmploymentFullTime, EmployerName: "Acme", JobTitle: "Engineer", MonthlyIncome: 8000,
		},
		LoanDetails: &models.LoanDetails{
			LoanType: models.LoanTypeAuto, RequestedAmount: 25000, LoanPurpose: "A reliable family car", PreferredTerm: 60,
		},
		Documents: []models.Document{{ID: "doc-1", Type: models.DocumentIDVerification}},
	}
}

// ownedDoc is the row behind validData's single document.
func ownedDoc() models.Document {
	return models.Document{
		ID: "doc-1", Name: "license.pdf", Type: models.DocumentIDVerification, Size: 2048,
		ContentType: "application/pdf", UserID: 7, StorageKey: "documents/7/doc-1-license.pdf",
	}
}

func ownsDocuments(repo *MockRepository) {
	repo.On("OwnedDocuments", mock.Anything, int64(7), []string{"doc-1"}).Return([]models.Document{ownedDoc()}, nil).Maybe()
}

type fixture struct {
	svc     *Service
	repo    *MockRepository
	index   *MockIndexer
	starter *MockStarter
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{repo: new(MockRepository), index: new(MockIndexer), starter: new(MockStarter)}
	f.svc = NewService(f.repo, logger.NewTestLogger(t),
		WithIndexer(f.index),
		WithWorkflow(f.starter),
		WithClock(func() time.Time { return testNow }))
	f.repo.On("Audit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.index.On("Index", mock.Anything, mock.Anything).Return(nil).Maybe()
	ownsDocuments(f.repo)
	return f
}

func stored(owner int64, status models.ApplicationStatus) *models.LoanApplication {
	return &models.LoanApplication{ID: "app-1", UserID: owner, Status: status, Data: validData()}
}

// ==========================
// Create
// ==========================

func TestCreate_Success(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(a *models.LoanApplication) bool {
		return a.UserID == 7 && a.Status == models.StatusSubmitted && a.ID != ""
	})).Return(nil)
	f.starter.On("StartProcess", mock.Anything, ReviewProcessID, mock.Anything).Return(int64(2251799813685249), nil)

	app, err := f.svc.Create(context.Background(), applicant, validData())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, app.Status)
	assert.Equal(t, testNow, app.CreatedAt)

	f.repo.AssertCalled(t, "Audit", mock.Anything, "application_created", app.ID, mock.Anything)
	f.index.AssertCalled(t, "Index", mock.Anything, app)
	f.starter.AssertExpectations(t)
}

func TestCreate_SideEffectFailuresAreNotFatal(t *testing.T) {
	repo, index, starter := new(MockRepository), new(MockIndexer), new(MockStarter)
	svc := NewService(repo, logger.NewTestLogger(t), WithIndexer(index), WithWorkflow(starter))
	ownsDocuments(repo)

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("Audit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("audit down"))
	index.On("Index", mock.Anything, mock.Anything).Return(errors.New("es down"))
	starter.On("StartProcess", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), errors.New("zeebe down"))

	app, err := svc.Create(context.Background(), applicant, validData())
	require.NoError(t, err)
	assert.NotEmpty(t, app.ID)
}

func TestCreate_CustomReviewProcess(t *testing.T) {
	repo, starter := new(MockRepository), new(MockStarter)
	svc := NewService(repo, logger.NewTestLogger(t), WithWorkflow(starter), WithReviewProcess("loan-review-v2"))
	ownsDocuments(repo)

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("Audit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	starter.On("StartProcess", mock.Anything, "loan-review-v2", mock.MatchedBy(func(vars map[string]interface{}) bool {
		return vars["userId"] == int64(7) && vars["applicationId"] != ""
	})).Return(int64(1), nil)

	_, err := svc.Create(context.Background(), applicant, validData())
	require.NoError(t, err)
	starter.AssertExpectations(t)
}

func TestCreate_DocumentsComeFromStoredRows(t *testing.T) {
	f := newFixture(t)
	var saved *models.LoanApplication
	f.repo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).(*models.LoanApplication)
	}).Return(nil)
	f.starter.On("StartProcess", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)

	data := validData()
	data.Documents = []models.Document{{ID: "doc-1", Name: "forged.pdf", Type: models.DocumentTaxReturns, Verified: true}}

	_, err := f.svc.Create(context.Background(), applicant, data)
	require.NoError(t, err)
	require.Len(t, saved.Data.Documents, 1)
	doc := saved.Data.Documents[0]
	assert.False(t, doc.Verified)
	assert.Equal(t, "license.pdf", doc.Name)
	assert.Equal(t, models.DocumentIDVerification, doc.Type)
}

func TestCreate_RejectsForeignDocuments(t *testing.T) {
	tests := []struct {
		name  string
		owned []models.Document
	}{
		{"unknown or owned by another user", []models.Document{}},
		{"attached to another application", []models.Document{func() models.Document {
			d := ownedDoc()
			d.ApplicationID = "app-other"
			return d
		}()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			svc := NewService(repo, logger.NewTestLogger(t), WithClock(func() time.Time { return testNow }))
			repo.On("OwnedDocuments", mock.Anything, int64(7), []string{"doc-1"}).Return(tt.owned, nil)

			_, err := svc.Create(context.Background(), applicant, validData())
			var errs validation.Errors
			require.ErrorAs(t, err, &errs)
			assert.Equal(t, "Unknown document: doc-1", errs.ByField()["documents[0].id"])
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreate_InvalidData(t *testing.T) {
	f := newFixture(t)
	data := validData()
	data.LoanDetails.RequestedAmount = 10
	data.EmploymentInfo = nil

	_, err := f.svc.Create(context.Background(), applicant, data)
	var errs validation.Errors
	require.ErrorAs(t, err, &errs)
	fields := errs.ByField()
	assert.Contains(t, fields, "employmentInfo")
	assert.Equal(t, "Minimum loan amount is $1,000", fields["loanDetails.requestedAmount"])
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreate_DatabaseFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

	_, err := f.svc.Create(context.Background(), applicant, validData())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseInsertFailed))
	f.starter.AssertNotCalled(t, "StartProcess", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(ErrDuplicateApplication)

	_, err := f.svc.Create(context.Background(), applicant, validData())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDuplicateApplication))
}

// ==========================
// Get / List / Summary
// ==========================

func TestGet_Access(t *testing.T) {
	tests := []struct {
		name     string
		who      auth.Principal
		wantCode apperrors.ErrorCode
	}{
		{"owner", applicant, ""},
		{"admin", admin, ""},
		{"other user", stranger, apperrors.ErrCodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.repo.On("Get", mock.Anything, "app-1").Return(stored(7, models.StatusSubmitted), nil)

			_, err := f.svc.Get(context.Background(), tt.who, "app-1")
			if tt.wantCode == "" {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.HasCode(err, tt.wantCode))
			}
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Get", mock.Anything, "nope").Return(nil, ErrApplicationNotFound)

	_, err := f.svc.Get(context.Background(), applicant, "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeResourceNotFound))
}

func TestGet_Timeout(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Get", mock.Anything, "slow").Return(nil, fmt.Errorf("query: %w", context.DeadlineExceeded))

	_, err := f.svc.Get(context.Background(), applicant, "slow")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryTimeout))
}

func TestList_ScopesByRole(t *testing.T) {
	f := newFixture(t)
	f.repo.On("List", mock.Anything, Scope{UserID: 7}, 10, 10).Return([]models.LoanApplication{{ID: "a"}}, 11, nil)
	f.repo.On("List", mock.Anything, Scope{}, 10, 0).Return([]models.LoanApplication{}, 0, nil)

	page, err := f.svc.List(context.Background(), applicant, models.QueryOptions{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPages)

	_, err = f.svc.List(context.Background(), admin, models.QueryOptions{})
	require.NoError(t, err)
	f.repo.AssertExpectations(t)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	want := &models.ApplicationSummary{TotalApplications: 3, PendingApplications: 1, ApprovedApplications: 1, RejectedApplications: 1}
	f.repo.On("Summary", mock.Anything, Scope{UserID: 7}).Return(want, nil)

	got, err := f.svc.Summary(context.Background(), applicant)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// ==========================
// Update
// ==========================

func TestUpdate_StatusTransitions(t *testing.T) {
	tests := []struct {
		name     string
		who      auth.Principal
		from     models.ApplicationStatus
		to       models.ApplicationStatus
		wantCode apperrors.ErrorCode
	}{
		{"admin starts review", admin, models.StatusSubmitted, models.StatusUnderReview, ""},
		{"admin approves", admin, models.StatusUnderReview, models.StatusApproved, ""},
		{"admin completes", admin, models.StatusApproved, models.StatusCompleted, ""},
		{"owner submits draft", applicant, models.StatusDraft, models.StatusSubmitted, ""},
		{"skip review", admin, models.StatusSubmitted, models.StatusApproved, apperrors.ErrCodeInvalidStatusTransition},
		{"owner approves self", applicant, models.StatusUnderReview, models.StatusApproved, apperrors.ErrCodeForbidden},
		{"terminal", admin, models.StatusRejected, models.StatusUnderReview, apperrors.ErrCodeBusinessRule},
		{"unknown status", admin, models.StatusSubmitted, "lost", apperrors.ErrCodeInvalidStatusTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.repo.On("Get", mock.Anything, "app-1").Return(stored(7, tt.from), nil)
			f.repo.On("Update", mock.Anything, mock.Anything).Return(nil).Maybe()

			to := tt.to
			app, err := f.svc.Update(context.Background(), tt.who, "app-1", models.ApplicationUpdate{Status: &to})
			if tt.wantCode != "" {
				assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
				f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, app.Status)
			if tt.who.IsAdmin() {
				require.NotNil(t, app.ReviewedAt)
				assert.Equal(t, "user:1", app.ReviewedBy)
			}
		})
	}
}

func TestUpdate_TerminalAcceptsNotes(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Get", mock.Anything, "app-1").Return(stored(7, models.StatusCompleted), nil)
	f.repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	notes := "Funds disbursed"
	app, err := f.svc.Update(context.Background(), admin, "app-1", models.ApplicationUpdate{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "Funds disbursed", app.Notes)
}

func TestUpdate_MergesPartialData(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Get", mock.Anything, "app-1").Return(stored(7, models.StatusSubmitted), nil)
	f.repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	patch := models.ApplicationData{LoanDetails: &models.LoanDetails{
		LoanType: models.LoanTypeHome, RequestedAmount: 300000, LoanPurpose: "Buying our first home", PreferredTerm: 360,
	}}
	app, err := f.svc.Update(context.Background(), applicant, "app-1", models.ApplicationUpdate{Data: &patch})
	require.NoError(t, err)
	assert.Equal(t, models.LoanTypeHome, app.Data.LoanDetails.LoanType)
	assert.Equal(t, "Jane", app.Data.PersonalInfo.FirstName)
	assert.Len(t, app.Data.Documents, 1)
}

func TestUpdate_InvalidPatchRejected(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Get", mock.Anything, "app-1").Return(stored(7, models.StatusSubmitted), nil)

	patch := models.ApplicationData{EmploymentInfo: &models.EmploymentInfo{EmploymentType: models.EmploymentContract, MonthlyIncome: 100}}
	_, err := f.svc.Update(context.Background(), applicant, "app-1", models.ApplicationUpdate{Data: &patch})
	var errs validation.Errors
	require.ErrorAs(t, err, &errs)
	assert.Contains(t, errs.ByField(), "employmentInfo.employerName")
}

func TestUpdate_DocumentsComeFromStoredRows(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Get", mock.Anything, "app-1").Return(stored(7, models.StatusSubmitted), nil)
	f.repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	patch := models.ApplicationData{Documents: []models.Document{{ID: "doc-1", Verified: true}, {ID: "doc-1"}}}
	app, err := f.svc.Update(context.Background(), applicant, "app-1", models.ApplicationUpdate{Data: &patch})
	require.NoError(t, err)
	require.Len(t, app.Data.Documents, 1)
	assert.False(t, app.Data.Documents[0].Verified)
	assert.Equal(t, "license.pdf", app.Data.Documents[0].Name)
}

func TestUpdate_RejectsUnknownDocuments(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Get", mock.Anything, "app-1").Return(stored(7, models.StatusSubmitted), nil)
	f.repo.On("OwnedDocuments", mock.Anything, int64(7), []string{"doc-9"}).Return([]models.Document{}, nil)

	patch := models.ApplicationData{Documents: []models.Document{{ID: "doc-9", Verified: true}}}
	_, err := f.svc.Update(context.Background(), admin, "app-1", models.ApplicationUpdate{Data: &patch})
	var errs validation.Errors
	require.ErrorAs(t, err, &errs)
	assert.Contains(t, errs.ByField(), "documents[0].id")
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// ==========================
// Decision / Delete / Search
// ==========================

func TestRecordDecision(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Get", mock.Anything, "app-1").Return(stored(7, models.StatusUnderReview), nil)
	f.repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	app, err := f.svc.RecordDecision(context.Background(), "app-1", models.StatusRejected, "reviewer-9", "Insufficient income")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, app.Status)
	assert.Equal(t, "reviewer-9", app.ReviewedBy)
	assert.Equal(t, testNow, *app.ReviewedAt)
	f.repo.AssertCalled(t, "Audit", mock.Anything, "application_reviewed", "app-1", mock.Anything)
}

func TestRecordDecision_InvalidTransition(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Get", mock.Anything, "app-1").Return(stored(7, models.StatusSubmitted), nil)

	_, err := f.svc.RecordDecision(context.Background(), "app-1", models.StatusCompleted, "r", "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidStatusTransition))
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name     string
		who      auth.Principal
		status   models.ApplicationStatus
		wantCode apperrors.ErrorCode
	}{
		{"owner withdraws submitted", applicant, models.StatusSubmitted, ""},
		{"owner after review", applicant, models.StatusUnderReview, apperrors.ErrCodeBusinessRule},
		{"admin any status", admin, models.StatusApproved, ""},
		{"stranger", stranger, models.StatusDraft, apperrors.ErrCodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.repo.On("Get", mock.Anything, "app-1").Return(stored(7, tt.status), nil)
			f.repo.On("Delete", mock.Anything, "app-1").Return(nil).Maybe()
			f.index.On("Remove", mock.Anything, "app-1").Return(nil).Maybe()

			err := f.svc.Delete(context.Background(), tt.who, "app-1")
			if tt.wantCode == "" {
				require.NoError(t, err)
				f.index.AssertCalled(t, "Remove", mock.Anything, "app-1")
				return
			}
			assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
			f.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
		})
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	f.index.On("Search", mock.Anything, "doe", 20).Return([]SearchHit{{ID: "app-1"}}, nil)

	_, err := f.svc.Search(context.Background(), applicant, "doe", 0)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	hits, err := f.svc.Search(context.Background(), admin, "doe", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearch_IndexMissing(t *testing.T) {
	f := newFixture(t)
	f.index.On("Search", mock.Anything, "doe", 5).Return(nil, fmt.Errorf("%w: %s", ErrIndexNotFound, IndexName))

	_, err := f.svc.Search(context.Background(), admin, "doe", 5)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeIndexNotFound))
}

func TestSearch_NotConfigured(t *testing.T) {
	svc := NewService(new(MockRepository), logger.NewTestLogger(t))
	_, err := svc.Search(context.Background(), admin, "doe", 5)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeExternalService))
}

func TestRefreshStatusGauge(t *testing.T) {
	f := newFixture(t)
	f.repo.On("CountByStatus", mock.Anything).Return(map[models.ApplicationStatus]int{models.StatusSubmitted: 4}, nil)
	assert.NoError(t, f.svc.RefreshStatusGauge(context.Background()))
}

func TestCreateApplication_UsesContextPrincipal(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(a *models.LoanApplication) bool { return a.UserID == 7 })).Return(nil)
	f.starter.On("StartProcess", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)

	_, err := f.svc.CreateApplication(context.Background(), validData())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))

	app, err := f.svc.CreateApplication(auth.WithPrincipal(context.Background(), applicant), validData())
	require.NoError(t, err)
	assert.Equal(t, int64(7), app.UserID)
}
