// internal/workers/application/validate-application-data/handler.go
package validateapplicationdata

import (
	"context"
	"encoding/json"
	"time"

	"loan-origination/internal/common/camunda"
	"loan-origination/internal/common/errors"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "validate-application-data"
)

// Handler re-runs the section validators on a submitted application. An
// invalid application is a normal outcome and completes the job with
// isValid=false so the process can route it.
type Handler struct {
	config *Config
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:    time.Now,
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

func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	if len(input.ApplicationData) == 0 || string(input.ApplicationData) == "null" {
		return nil, errors.NewValidationError("applicationData is required", input.ApplicationID)
	}

	var data models.ApplicationData
	if err := json.Unmarshal(input.ApplicationData, &data); err != nil {
		return h.result(input, validation.Errors{{
			Field:   "applicationData",
			Code:    validation.CodeInvalidType,
			Message: "applicationData is malformed",
		}}), nil
	}

	return h.result(input, validation.ValidateApplicationData(data, h.now())), nil
}

func (h *Handler) result(input *Input, errs validation.Errors) *Output {
	h.logger.Info("validation completed", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"isValid":       len(errs) == 0,
		"errorCount":    len(errs),
	})

	if errs == nil {
		errs = validation.Errors{}
	}
	return &Output{
		IsValid:          len(errs) == 0,
		ValidationErrors: errs,
	}
}
