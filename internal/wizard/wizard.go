// internal/wizard/wizard.go
package wizard

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "loan-origination/internal/common/errors"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/metrics"
	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"
)

// Submitter hands a completed application to the application service.
type Submitter interface {
	CreateApplication(ctx context.Context, data models.ApplicationData) (*models.LoanApplication, error)
}

// Uploader stores documents for the documents step.
type Uploader interface {
	UploadDocument(ctx context.Context, upload models.DocumentUpload) (*models.Document, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// State is the draft plus what the client needs to render the current step.
type State struct {
	Step             Step                           `json:"step"`
	StepName         string                         `json:"stepName"`
	CompletedSteps   []Step                         `json:"completedSteps"`
	Data             models.ApplicationData         `json:"data"`
	DocumentErrors   map[models.DocumentType]string `json:"documentErrors,omitempty"`
	MissingDocuments []models.DocumentType          `json:"missingDocuments,omitempty"`
	CanSubmit        bool                           `json:"canSubmit"`
}

// SubmitResult carries the created application and the status view to open.
type SubmitResult struct {
	Application *models.LoanApplication `json:"application"`
	RedirectTo  string                  `json:"redirectTo"`
}

// Manager drives the application wizard for many owners. Every change is
// written through to the DraftStore.
type Manager struct {
	store         DraftStore
	submitter     Submitter
	uploader      Uploader
	logger        logger.Logger
	now           func() time.Time
	maxUploadSize int64

	locks    *ownerLocks
	inflight *inflight
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithMaxUploadSize overrides the 5 MB default.
func WithMaxUploadSize(n int64) Option {
	return func(m *Manager) { m.maxUploadSize = n }
}

func NewManager(store DraftStore, submitter Submitter, uploader Uploader, log logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		submitter:     submitter,
		uploader:      uploader,
		logger:        log.WithFields(map[string]interface{}{"component": "wizard"}),
		now:           time.Now,
		maxUploadSize: validation.DefaultMaxUploadSize,
		locks:         newOwnerLocks(),
		inflight:      newInflight(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State restores the owner's draft. Without one the wizard starts at step 0.
func (m *Manager) State(ctx context.Context, owner string) (*State, error) {
	d, err := m.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	return stateOf(d), nil
}

func stateOf(d *Draft) *State {
	return &State{
		Step:             d.Step,
		StepName:         d.Step.String(),
		CompletedSteps:   d.CompletedSteps,
		Data:             d.Data,
		DocumentErrors:   d.DocumentErrors,
		MissingDocuments: MissingRequired(d.Data.Documents),
		CanSubmit:        d.Data.Complete(),
	}
}

func (m *Manager) load(ctx context.Context, owner string) (*Draft, error) {
	d, err := m.store.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return newDraft(), nil
	}
	return d, nil
}

// mutate runs fn against the current draft under the owner lock and saves
// the draft when fn asks for it.
func (m *Manager) mutate(ctx context.Context, owner string, fn func(d *Draft) (bool, error)) (*Draft, error) {
	unlock := m.locks.lock(owner)
	defer unlock()

	d, err := m.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	persist, fnErr := fn(d)
	if persist {
		if err := m.store.Save(ctx, owner, d); err != nil {
			return nil, err
		}
	}
	if fnErr != nil {
		return nil, fnErr
	}
	return d, nil
}

func requireStep(d *Draft, want Step, action string) error {
	if d.Step != want {
		return apperrors.NewWizardStepError(fmt.Sprintf("Cannot %s while on the %s step", action, d.Step))
	}
	return nil
}

func (m *Manager) advance(ctx context.Context, owner string, from Step, apply func(d *Draft)) (*State, error) {
	d, err := m.mutate(ctx, owner, func(d *Draft) (bool, error) {
		if err := requireStep(d, from, "submit "+from.String()); err != nil {
			return false, err
		}
		apply(d)
		d.markCompleted(from)
		d.Step = from + 1
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.WizardTransitionsTotal.WithLabelValues("next", from.String()).Inc()
	return stateOf(d), nil
}

// SubmitPersonalInfo validates step 0 and advances. Invalid data is never
// merged into the draft.
func (m *Manager) SubmitPersonalInfo(ctx context.Context, owner string, raw []byte) (*State, error) {
	info, err := validation.DecodePersonalInfo(raw, m.now())
	if err != nil {
		metrics.WizardTransitionsTotal.WithLabelValues("rejected", StepPersonalInfo.String()).Inc()
		return nil, err
	}
	return m.advance(ctx, owner, StepPersonalInfo, func(d *Draft) { d.Data.PersonalInfo = info })
}

// SubmitEmployment validates step 1 and advances.
func (m *Manager) SubmitEmployment(ctx context.Context, owner string, raw []byte) (*State, error) {
	info, err := validation.DecodeEmploymentInfo(raw)
	if err != nil {
		metrics.WizardTransitionsTotal.WithLabelValues("rejected", StepEmployment.String()).Inc()
		return nil, err
	}
	return m.advance(ctx, owner, StepEmployment, func(d *Draft) { d.Data.EmploymentInfo = info })
}

// SubmitLoanDetails validates step 2 and advances.
func (m *Manager) SubmitLoanDetails(ctx context.Context, owner string, raw []byte) (*State, error) {
	details, err := validation.DecodeLoanDetails(raw)
	if err != nil {
		metrics.WizardTransitionsTotal.WithLabelValues("rejected", StepLoanDetails.String()).Inc()
		return nil, err
	}
	return m.advance(ctx, owner, StepLoanDetails, func(d *Draft) { d.Data.LoanDetails = details })
}

// AttachDocument validates the file locally, uploads it and appends the
// resulting record. A category holds at most one document and at most one
// upload in flight. Failures are recorded against the category and nothing
// is appended.
func (m *Manager) AttachDocument(ctx context.Context, owner string, upload models.DocumentUpload) (*models.Document, error) {
	if _, ok := categoryFor(upload.Type); !ok {
		return nil, apperrors.NewValidationError("Unknown document category", string(upload.Type))
	}
	guardKey := owner + "/" + string(upload.Type)

	_, err := m.mutate(ctx, owner, func(d *Draft) (bool, error) {
		if err := requireStep(d, StepDocuments, "upload documents"); err != nil {
			return false, err
		}
		if existing := documentFor(d.Data.Documents, upload.Type); existing != nil {
			return false, apperrors.NewConflictError("A document has already been uploaded for this category",
				fmt.Sprintf("category: %s, documentId: %s", upload.Type, existing.ID))
		}
		if err := validation.CheckUpload(upload.FileName, upload.ContentType, upload.Size, m.maxUploadSize); err != nil {
			d.setDocumentError(upload.Type, errorMessage(err))
			return true, err
		}
		if !m.inflight.acquire(guardKey) {
			return false, apperrors.NewConflictError("An upload for this category is already in progress", string(upload.Type))
		}
		return false, nil
	})
	if err != nil {
		metrics.DocumentUploadsTotal.WithLabelValues(string(upload.Type), "rejected").Inc()
		return nil, err
	}
	defer m.inflight.release(guardKey)

	if upload.ContentType == "" {
		upload.ContentType = validation.ContentTypeFor(upload.FileName)
	}
	doc, uploadErr := m.uploader.UploadDocument(ctx, upload)

	_, err = m.mutate(ctx, owner, func(d *Draft) (bool, error) {
		if uploadErr != nil {
			d.setDocumentError(upload.Type, errorMessage(uploadErr))
			return true, uploadErr
		}
		d.Data.Documents = append(d.Data.Documents, *doc)
		delete(d.DocumentErrors, upload.Type)
		return true, nil
	})
	if uploadErr != nil {
		metrics.DocumentUploadsTotal.WithLabelValues(string(upload.Type), "failed").Inc()
		m.logger.Warn("document upload failed", map[string]interface{}{
			"owner":    owner,
			"category": string(upload.Type),
			"error":    uploadErr.Error(),
		})
		return nil, uploadErr
	}
	if err != nil {
		return nil, err
	}
	metrics.DocumentUploadsTotal.WithLabelValues(string(upload.Type), "success").Inc()
	return doc, nil
}

// RejectDocument records cause against category when a file never reached
// AttachDocument, such as a request body cut off at the size limit. cause is
// returned unchanged; a draft that is not on the documents step is left alone.
func (m *Manager) RejectDocument(ctx context.Context, owner string, category models.DocumentType, cause error) error {
	if _, ok := categoryFor(category); !ok {
		return cause
	}
	_, err := m.mutate(ctx, owner, func(d *Draft) (bool, error) {
		if d.Step != StepDocuments {
			return false, nil
		}
		d.setDocumentError(category, errorMessage(cause))
		return true, nil
	})
	metrics.DocumentUploadsTotal.WithLabelValues(string(category), "rejected").Inc()
	if err != nil {
		m.logger.Warn("document rejection not recorded", map[string]interface{}{
			"owner":    owner,
			"category": string(category),
			"error":    err.Error(),
		})
	}
	return cause
}

func errorMessage(err error) string {
	if stdErr, ok := apperrors.AsStandard(err); ok {
		return stdErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Upload failed"
}

// RemoveDocument deletes an attached document before submission.
func (m *Manager) RemoveDocument(ctx context.Context, owner, documentID string) (*State, error) {
	d, err := m.mutate(ctx, owner, func(d *Draft) (bool, error) {
		if err := requireStep(d, StepDocuments, "remove documents"); err != nil {
			return false, err
		}
		idx := -1
		for i, doc := range d.Data.Documents {
			if doc.ID == documentID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false, apperrors.NewResourceNotFoundError("Document", documentID)
		}
		if err := m.uploader.DeleteDocument(ctx, documentID); err != nil && !apperrors.HasCode(err, apperrors.ErrCodeResourceNotFound) {
			return false, err
		}
		d.Data.Documents = append(d.Data.Documents[:idx:idx], d.Data.Documents[idx+1:]...)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.WizardTransitionsTotal.WithLabelValues("remove_document", StepDocuments.String()).Inc()
	return stateOf(d), nil
}

// CompleteDocuments advances from step 3 once every mandatory category has
// a document.
func (m *Manager) CompleteDocuments(ctx context.Context, owner string) (*State, error) {
	d, err := m.mutate(ctx, owner, func(d *Draft) (bool, error) {
		if err := requireStep(d, StepDocuments, "complete documents"); err != nil {
			return false, err
		}
		if missing := MissingRequired(d.Data.Documents); len(missing) > 0 {
			names := make([]string, len(missing))
			for i, t := range missing {
				names[i] = string(t)
			}
			return false, apperrors.NewWizardStepError("Please upload all required documents").
				WithMetadata("missing", names)
		}
		if d.Data.Documents == nil {
			d.Data.Documents = []models.Document{}
		}
		d.markCompleted(StepDocuments)
		d.Step = StepReview
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.WizardTransitionsTotal.WithLabelValues("next", StepDocuments.String()).Inc()
	return stateOf(d), nil
}

// Back moves one step back without validation. It is a no-op on step 0.
func (m *Manager) Back(ctx context.Context, owner string) (*State, error) {
	var from Step
	d, err := m.mutate(ctx, owner, func(d *Draft) (bool, error) {
		from = d.Step
		if d.Step > StepPersonalInfo {
			d.Step--
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.WizardTransitionsTotal.WithLabelValues("back", from.String()).Inc()
	return stateOf(d), nil
}

// Edit jumps from the review step to an earlier step. Data of every section
// is kept.
func (m *Manager) Edit(ctx context.Context, owner string, target Step) (*State, error) {
	d, err := m.mutate(ctx, owner, func(d *Draft) (bool, error) {
		if err := requireStep(d, StepReview, "edit"); err != nil {
			return false, err
		}
		if !target.Valid() || target == StepReview {
			return false, apperrors.NewWizardStepError(fmt.Sprintf("Cannot edit %s", target))
		}
		d.Step = target
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.WizardTransitionsTotal.WithLabelValues("edit", target.String()).Inc()
	return stateOf(d), nil
}

// Submit creates the application from the review step. On success the draft
// is cleared. On failure the draft and the step are left untouched.
func (m *Manager) Submit(ctx context.Context, owner string) (*SubmitResult, error) {
	guardKey := owner + "/submit"
	if !m.inflight.acquire(guardKey) {
		return nil, apperrors.NewConflictError("Application submission already in progress", "")
	}
	defer m.inflight.release(guardKey)

	d, err := m.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := requireStep(d, StepReview, "submit the application"); err != nil {
		return nil, err
	}
	if !d.Data.Complete() {
		return nil, apperrors.NewValidationError("Please complete all required steps before submitting.",
			strings.Join(missingSections(d.Data), ", "))
	}

	app, err := m.submitter.CreateApplication(ctx, d.Data)
	if err != nil {
		metrics.WizardTransitionsTotal.WithLabelValues("submit_failed", StepReview.String()).Inc()
		m.logger.Error("application submission failed", map[string]interface{}{
			"owner": owner,
			"error": err.Error(),
		})
		if stdErr, ok := apperrors.AsStandard(err); ok && !stdErr.Retryable {
			return nil, stdErr
		}
		return nil, apperrors.NewSubmissionFailedError(err)
	}

	if err := m.store.Clear(ctx, owner); err != nil {
		m.logger.Warn("failed to clear draft after submission", map[string]interface{}{
			"owner":         owner,
			"applicationId": app.ID,
			"error":         err.Error(),
		})
	}
	metrics.WizardTransitionsTotal.WithLabelValues("submit", StepReview.String()).Inc()
	m.logger.Info("application submitted", map[string]interface{}{"owner": owner, "applicationId": app.ID})

	return &SubmitResult{Application: app, RedirectTo: "/status/" + app.ID}, nil
}

func missingSections(data models.ApplicationData) []string {
	var missing []string
	if data.PersonalInfo == nil {
		missing = append(missing, validation.SectionPersonalInfo)
	}
	if data.EmploymentInfo == nil {
		missing = append(missing, validation.SectionEmploymentInfo)
	}
	if data.LoanDetails == nil {
		missing = append(missing, validation.SectionLoanDetails)
	}
	if data.Documents == nil {
		missing = append(missing, "documents")
	}
	return missing
}

// Abandon discards the draft.
func (m *Manager) Abandon(ctx context.Context, owner string) error {
	unlock := m.locks.lock(owner)
	defer unlock()
	if err := m.store.Clear(ctx, owner); err != nil {
		return err
	}
	metrics.WizardTransitionsTotal.WithLabelValues("abandon", "").Inc()
	return nil
}
