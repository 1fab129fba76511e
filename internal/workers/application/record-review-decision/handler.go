// internal/workers/application/record-review-decision/handler.go
package recordreviewdecision

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"loan-origination/internal/common/camunda"
	"loan-origination/internal/common/errors"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "record-review-decision"
)

// DecisionRecorder applies a review decision with the status transition rules
// and writes the audit entry.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, id string, decision models.ApplicationStatus, reviewerID, notes string) (*models.LoanApplication, error)
}

type Handler struct {
	config   *Config
	recorder DecisionRecorder
	logger   logger.Logger
}

func NewHandler(config *Config, recorder DecisionRecorder, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		recorder: recorder,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return camunda.RejectJob(client, job, errors.NewValidationError("Invalid job variables", err.Error()), h.logger)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		return camunda.RejectJob(client, job, err, h.logger)
	}
	return camunda.CompleteJob(client, job, output, h.logger)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	app, err := h.recorder.RecordDecision(ctx, input.ApplicationID, input.Decision, input.ReviewerID, input.Notes)
	if err != nil {
		return nil, err
	}

	reviewedAt := ""
	if app.ReviewedAt != nil {
		reviewedAt = app.ReviewedAt.UTC().Format(time.RFC3339)
	}

	h.logger.Info("review decision recorded", map[string]interface{}{
		"applicationId": app.ID,
		"status":        string(app.Status),
		"reviewerId":    app.ReviewedBy,
	})

	return &Output{
		ApplicationID:     app.ID,
		ApplicationStatus: string(app.Status),
		ReviewedBy:        app.ReviewedBy,
		ReviewedAt:        reviewedAt,
	}, nil
}

func validateInput(input *Input) error {
	switch {
	case input.ApplicationID == "":
		return errors.NewValidationError("applicationId is required", "")
	case input.ReviewerID == "":
		return errors.NewValidationError("reviewerId is required", input.ApplicationID)
	case !allowedDecisions[input.Decision]:
		return errors.NewValidationError(
			fmt.Sprintf("decision %q is not a review outcome", input.Decision),
			input.ApplicationID,
		)
	}
	return nil
}
