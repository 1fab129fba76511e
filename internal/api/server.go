// internal/api/server.go
package api

import (
	"context"
	"net/http"
	"time"

	"loan-origination/internal/account"
	"loan-origination/internal/application"
	"loan-origination/internal/common/auth"
	"loan-origination/internal/common/config"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/document"
	"loan-origination/internal/models"
	"loan-origination/internal/user"
	"loan-origination/internal/wizard"
)

type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(token string) (auth.Principal, error)
}

type UserService interface {
	CreateUser(ctx context.Context, in models.CreateUserInput) (*models.User, error)
	QueryUsers(ctx context.Context, filter models.UserFilter, opts models.QueryOptions) (models.PaginatedResponse[models.User], error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateUserByID(ctx context.Context, id int64, in models.UpdateUserInput) (*models.User, error)
	DeleteUserByID(ctx context.Context, id int64) error
}

type ApplicationService interface {
	Create(ctx context.Context, p auth.Principal, data models.ApplicationData) (*models.LoanApplication, error)
	List(ctx context.Context, p auth.Principal, opts models.QueryOptions) (models.PaginatedResponse[models.LoanApplication], error)
	Get(ctx context.Context, p auth.Principal, id string) (*models.LoanApplication, error)
	Update(ctx context.Context, p auth.Principal, id string, upd models.ApplicationUpdate) (*models.LoanApplication, error)
	Delete(ctx context.Context, p auth.Principal, id string) error
	Summary(ctx context.Context, p auth.Principal) (*models.ApplicationSummary, error)
	Search(ctx context.Context, p auth.Principal, query string, limit int) ([]application.SearchHit, error)
	LoanProducts(ctx context.Context) ([]models.LoanProduct, error)
}

type DocumentService interface {
	Upload(ctx context.Context, userID int64, up models.DocumentUpload) (*models.UploadResult, error)
	Presign(ctx context.Context, userID int64, req document.PresignRequest) (*models.UploadResult, error)
	Delete(ctx context.Context, p auth.Principal, id string) error
	DownloadURL(ctx context.Context, p auth.Principal, id string) (string, error)
	Open(ctx context.Context, p auth.Principal, id string) (*document.Content, error)
}

type WizardService interface {
	State(ctx context.Context, owner string) (*wizard.State, error)
	SubmitPersonalInfo(ctx context.Context, owner string, raw []byte) (*wizard.State, error)
	SubmitEmployment(ctx context.Context, owner string, raw []byte) (*wizard.State, error)
	SubmitLoanDetails(ctx context.Context, owner string, raw []byte) (*wizard.State, error)
	AttachDocument(ctx context.Context, owner string, upload models.DocumentUpload) (*models.Document, error)
	RejectDocument(ctx context.Context, owner string, category models.DocumentType, cause error) error
	RemoveDocument(ctx context.Context, owner, documentID string) (*wizard.State, error)
	CompleteDocuments(ctx context.Context, owner string) (*wizard.State, error)
	Back(ctx context.Context, owner string) (*wizard.State, error)
	Edit(ctx context.Context, owner string, target wizard.Step) (*wizard.State, error)
	Submit(ctx context.Context, owner string) (*wizard.SubmitResult, error)
	Abandon(ctx context.Context, owner string) error
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

var (
	_ AuthService        = (*account.Service)(nil)
	_ UserService        = (*user.Service)(nil)
	_ ApplicationService = (*application.Service)(nil)
	_ DocumentService    = (*document.Service)(nil)
	_ WizardService      = (*wizard.Manager)(nil)
)

// Deps is everything the router needs. MCP and Health are optional.
type Deps struct {
	Auth         AuthService
	Users        UserService
	Applications ApplicationService
	Documents    DocumentService
	Wizard       WizardService
	MCP          http.Handler
	Health       map[string]HealthCheck
	Logger       logger.Logger

	Production bool
	CORS       config.CORSConfig
	RateLimit  config.RateLimitConfig
	MaxUpload  int64
}

type Server struct {
	Deps
	logger     logger.Logger
	auth       AuthService
	production bool
	limiter    *rateLimiter
	handler    http.Handler
}

func NewServer(deps Deps) *Server {
	s := &Server{
		Deps:       deps,
		logger:     deps.Logger,
		auth:       deps.Auth,
		production: deps.Production,
	}
	if s.logger == nil {
		s.logger = logger.NewNoOpLogger()
	}
	if deps.RateLimit.Enabled {
		s.limiter = newRateLimiter(deps.RateLimit.RequestsPerSecond, deps.RateLimit.Burst)
	}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// SweepClients drops rate-limit buckets idle for longer than idle.
func (s *Server) SweepClients(idle time.Duration) int {
	if s.limiter == nil {
		return 0
	}
	return s.limiter.sweep(idle, time.Now())
}
