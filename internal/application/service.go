// internal/application/service.go
package application

import (
	"context"
	"errors"
	"strconv"
	"time"

	"loan-origination/internal/common/auth"
	apperrors "loan-origination/internal/common/errors"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/metrics"
	"loan-origination/internal/common/observability"
	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ReviewProcessID is the BPMN process started for every submitted application.
const ReviewProcessID = "loan-application-review"

// ProcessStarter starts a workflow instance.
type ProcessStarter interface {
	StartProcess(ctx context.Context, bpmnProcessID string, variables map[string]interface{}) (int64, error)
}

type Service struct {
	repo     Repository
	index    Indexer
	workflow ProcessStarter
	process  string
	obs      *observability.Observability
	logger   logger.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithIndexer enables search indexing. Without it search is unavailable.
func WithIndexer(i Indexer) Option { return func(s *Service) { s.index = i } }

// WithWorkflow starts the review process on submission.
func WithWorkflow(w ProcessStarter) Option { return func(s *Service) { s.workflow = w } }

// WithReviewProcess overrides the BPMN process id started on submission.
func WithReviewProcess(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.process = id
		}
	}
}

func WithObservability(o *observability.Observability) Option { return func(s *Service) { s.obs = o } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(repo Repository, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		process: ReviewProcessID,
		logger:  log.WithFields(map[string]interface{}{"component": "application"}),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create validates a full submission and stores it as submitted. Indexing and
// starting the review process are best effort.
func (s *Service) Create(ctx context.Context, p auth.Principal, data models.ApplicationData) (*models.LoanApplication, error) {
	ctx, span := s.obs.StartSpan(ctx, "application.create", attribute.Int64("user.id", p.UserID))
	defer span.End()
	start := s.now()

	if errs := validation.ValidateApplicationData(data, s.now()); len(errs) > 0 {
		s.obs.RecordOperation(ctx, "application", "create", "invalid", time.Since(start))
		return nil, errs
	}

	now := s.now().UTC()
	app := &models.LoanApplication{
		ID:        uuid.New().String(),
		UserID:    p.UserID,
		Status:    models.StatusSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	docs, err := s.resolveDocuments(ctx, p.UserID, app.ID, data.Documents)
	if err != nil {
		s.obs.RecordOperation(ctx, "application", "create", "invalid", time.Since(start))
		return nil, err
	}
	data.Documents = docs
	app.Data = data
	if err := s.repo.Create(ctx, app); err != nil {
		span.RecordError(err)
		s.obs.RecordOperation(ctx, "application", "create", "error", time.Since(start))
		if errors.Is(err, ErrDuplicateApplication) {
			return nil, apperrors.NewDuplicateApplicationError(app.ID)
		}
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}
	span.SetAttributes(attribute.String("application.id", app.ID))

	s.audit(ctx, "application_created", app.ID, map[string]interface{}{
		"userId":    p.UserID,
		"documents": len(data.Documents),
	})
	s.reindex(ctx, app)

	if s.workflow != nil {
		key, err := s.workflow.StartProcess(ctx, s.process, map[string]interface{}{
			"applicationId":   app.ID,
			"userId":          app.UserID,
			"applicationData": app.Data,
		})
		if err != nil {
			s.logger.Warn("review process not started", map[string]interface{}{
				"applicationId": app.ID,
				"error":         err.Error(),
			})
		} else {
			s.logger.Debug("review process started", map[string]interface{}{
				"applicationId":      app.ID,
				"processInstanceKey": key,
			})
		}
	}

	s.logger.Info("application submitted", map[string]interface{}{"applicationId": app.ID, "userId": p.UserID})
	s.obs.RecordOperation(ctx, "application", "create", "success", time.Since(start))
	return app, nil
}

// CreateApplication submits on behalf of the principal carried by ctx.
func (s *Service) CreateApplication(ctx context.Context, data models.ApplicationData) (*models.LoanApplication, error) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return nil, apperrors.NewUnauthorizedError("")
	}
	return s.Create(ctx, p, data)
}

func (s *Service) List(ctx context.Context, p auth.Principal, opts models.QueryOptions) (models.PaginatedResponse[models.LoanApplication], error) {
	opts = opts.Normalize()
	apps, total, err := s.repo.List(ctx, scopeFor(p), opts.Limit, (opts.Page-1)*opts.Limit)
	if err != nil {
		return models.PaginatedResponse[models.LoanApplication]{}, apperrors.NewQueryExecutionFailedError("list_applications", err)
	}
	return models.NewPage(apps, opts, total), nil
}

func (s *Service) Get(ctx context.Context, p auth.Principal, id string) (*models.LoanApplication, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && app.UserID != p.UserID {
		return nil, apperrors.NewForbiddenError()
	}
	return app, nil
}

// Update merges provided sections, applies a status change under the
// transition rules and sets notes. Terminal applications only accept notes.
func (s *Service) Update(ctx context.Context, p auth.Principal, id string, upd models.ApplicationUpdate) (*models.LoanApplication, error) {
	app, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if app.Status.Terminal() && (upd.Data != nil || upd.Status != nil) {
		return nil, apperrors.NewBusinessRuleError("Application can no longer be modified", string(app.Status))
	}

	if upd.Data != nil {
		if p.UserID != app.UserID && !p.IsAdmin() {
			return nil, apperrors.NewForbiddenError()
		}
		patch := *upd.Data
		if patch.Documents != nil {
			docs, err := s.resolveDocuments(ctx, app.UserID, app.ID, patch.Documents)
			if err != nil {
				return nil, err
			}
			patch.Documents = docs
		}
		merged, errs := mergeData(app.Data, patch, s.now())
		if len(errs) > 0 {
			return nil, errs
		}
		app.Data = merged
	}

	from := app.Status
	if upd.Status != nil && *upd.Status != app.Status {
		next := *upd.Status
		if !next.Valid() || !app.Status.CanTransitionTo(next) {
			return nil, apperrors.NewInvalidStatusTransitionError(string(app.Status), string(next))
		}
		// applicants may only submit their own drafts
		if !p.IsAdmin() && next != models.StatusSubmitted {
			return nil, apperrors.NewForbiddenError()
		}
		app.Status = next
		if p.IsAdmin() {
			now := s.now().UTC()
			app.ReviewedAt = &now
			app.ReviewedBy = principalName(p)
		}
	}

	if upd.Notes != nil {
		app.Notes = *upd.Notes
	}

	app.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, app); err != nil {
		return nil, s.lookupError(err, "update_application")
	}

	details := map[string]interface{}{"by": p.UserID}
	if from != app.Status {
		details["from"] = string(from)
		details["to"] = string(app.Status)
	}
	s.audit(ctx, "application_updated", app.ID, details)
	s.reindex(ctx, app)
	return app, nil
}

// RecordDecision applies a reviewer decision coming from the review workflow.
func (s *Service) RecordDecision(ctx context.Context, id string, decision models.ApplicationStatus, reviewerID, notes string) (*models.LoanApplication, error) {
	app, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !app.Status.CanTransitionTo(decision) {
		return nil, apperrors.NewInvalidStatusTransitionError(string(app.Status), string(decision))
	}

	from := app.Status
	now := s.now().UTC()
	app.Status = decision
	app.ReviewedAt = &now
	app.ReviewedBy = reviewerID
	if notes != "" {
		app.Notes = notes
	}
	app.UpdatedAt = now

	if err := s.repo.Update(ctx, app); err != nil {
		return nil, s.lookupError(err, "record_decision")
	}
	s.audit(ctx, "application_reviewed", app.ID, map[string]interface{}{
		"from":       string(from),
		"to":         string(decision),
		"reviewerId": reviewerID,
	})
	s.reindex(ctx, app)
	return app, nil
}

func (s *Service) Delete(ctx context.Context, p auth.Principal, id string) error {
	app, err := s.Get(ctx, p, id)
	if err != nil {
		return err
	}
	if !p.IsAdmin() && app.Status != models.StatusDraft && app.Status != models.StatusSubmitted {
		return apperrors.NewBusinessRuleError("Application can no longer be withdrawn", string(app.Status))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.lookupError(err, "delete_application")
	}
	s.audit(ctx, "application_deleted", id, map[string]interface{}{"by": p.UserID})
	if s.index != nil {
		if err := s.index.Remove(ctx, id); err != nil {
			s.logger.Warn("search index removal failed", map[string]interface{}{"applicationId": id, "error": err.Error()})
		}
	}
	return nil
}

func (s *Service) Summary(ctx context.Context, p auth.Principal) (*models.ApplicationSummary, error) {
	sum, err := s.repo.Summary(ctx, scopeFor(p))
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("summary", err)
	}
	return sum, nil
}

func (s *Service) Search(ctx context.Context, p auth.Principal, query string, limit int) ([]SearchHit, error) {
	if !p.IsAdmin() {
		return nil, apperrors.NewForbiddenError()
	}
	if s.index == nil {
		return nil, apperrors.NewExternalServiceError("elasticsearch", errors.New("search is not configured"))
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	hits, err := s.index.Search(ctx, query, limit)
	if err != nil {
		if errors.Is(err, ErrIndexNotFound) {
			return nil, apperrors.NewIndexNotFoundError(s.index.IndexName())
		}
		return nil, apperrors.NewSearchQueryFailedError("applications", err)
	}
	return hits, nil
}

func (s *Service) LoanProducts(ctx context.Context) ([]models.LoanProduct, error) {
	products, err := s.repo.LoanProducts(ctx)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("loan_products", err)
	}
	return products, nil
}

// RefreshStatusGauge publishes the per-status application counts.
func (s *Service) RefreshStatusGauge(ctx context.Context) error {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return err
	}
	for _, st := range []models.ApplicationStatus{
		models.StatusDraft, models.StatusSubmitted, models.StatusUnderReview,
		models.StatusApproved, models.StatusRejected, models.StatusCompleted,
	} {
		metrics.ApplicationsByStatus.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
	return nil
}

func (s *Service) load(ctx context.Context, id string) (*models.LoanApplication, error) {
	app, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.lookupError(err, "get_application")
	}
	return app, nil
}

func (s *Service) lookupError(err error, op string) error {
	switch {
	case errors.Is(err, ErrApplicationNotFound):
		return apperrors.NewResourceNotFoundError("Application", "")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewQueryTimeoutError(op)
	}
	return apperrors.NewQueryExecutionFailedError(op, err)
}

// audit is non-critical: failures are logged and swallowed.
func (s *Service) audit(ctx context.Context, event, id string, details map[string]interface{}) {
	if err := s.repo.Audit(ctx, event, id, details); err != nil {
		s.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":         err.Error(),
			"applicationId": id,
		})
	}
}

func (s *Service) reindex(ctx context.Context, app *models.LoanApplication) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, app); err != nil {
		s.logger.Warn("search indexing failed", map[string]interface{}{
			"error":         err.Error(),
			"applicationId": app.ID,
		})
	}
}

func scopeFor(p auth.Principal) Scope {
	if p.IsAdmin() {
		return Scope{}
	}
	return Scope{UserID: p.UserID}
}

func principalName(p auth.Principal) string {
	return "user:" + strconv.FormatInt(p.UserID, 10)
}
