// internal/workers/application/send-notification/handler.go
package sendnotification

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	awsclients "loan-origination/internal/common/aws"
	"loan-origination/internal/common/camunda"
	"loan-origination/internal/common/errors"
	"loan-origination/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-notification"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Handler struct {
	config    *Config
	db        *sql.DB
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
	now       func() time.Time
}

// NewHandler wires the worker. Either AWS client may be nil when its channel
// is disabled.
func NewHandler(config *Config, db *sql.DB, sesClient SESService, snsClient SNSService, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		db:        db,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
		sesClient: sesClient,
		snsClient: snsClient,
		now:       time.Now,
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

// Execute sends the template for the new status. A missing recipient or a
// fully disabled channel set completes as "disabled". An email failure is
// returned so the engine retries; an SMS failure only downgrades the result.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	tmpl, ok := templates[input.Status]
	if !ok {
		return nil, errors.NewValidationError(fmt.Sprintf("no notification template for status %q", input.Status), input.ApplicationID)
	}

	output := &Output{
		NotificationID: uuid.New().String(),
		Status:         StatusDisabled,
		Channels:       []string{},
		SentAt:         h.now().UTC().Format(time.RFC3339),
	}

	rcpt, err := h.getRecipient(ctx, input.ApplicationID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			h.logger.Warn("recipient not found", map[string]interface{}{"applicationId": input.ApplicationID})
			return output, nil
		}
		return nil, errors.NewQueryExecutionFailedError("recipient_lookup", err)
	}

	data := map[string]interface{}{
		"applicationId": input.ApplicationID,
		"status":        string(input.Status),
		"firstName":     rcpt.FirstName,
		"name":          rcpt.Name,
		"notes":         input.Notes,
	}
	if rcpt.FirstName == "" {
		data["firstName"] = rcpt.Name
	}

	if h.config.EmailEnabled && h.sesClient != nil && rcpt.Email != "" {
		email := awsclients.EmailInput(
			h.config.FromEmail,
			rcpt.Email,
			renderTemplate(tmpl.Subject, data),
			renderTemplate(tmpl.Body, data),
			renderTemplate(tmpl.HTMLBody, data),
		)
		if _, err := h.sesClient.SendEmail(ctx, email); err != nil {
			return nil, errors.NewNotificationSendFailedError(tmpl.Type, err)
		}
		output.Channels = append(output.Channels, ChannelEmail)
	}

	if phone := toE164(rcpt.Phone); h.config.SMSEnabled && h.snsClient != nil && phone != "" && tmpl.SMSBody != "" {
		if _, err := h.snsClient.Publish(ctx, awsclients.SMSInput(phone, renderTemplate(tmpl.SMSBody, data))); err != nil {
			h.logger.Error("SMS send failed", map[string]interface{}{
				"applicationId": input.ApplicationID,
				"error":         err.Error(),
			})
			output.Status = StatusFailed
		} else {
			output.Channels = append(output.Channels, ChannelSMS)
		}
	}

	if len(output.Channels) > 0 && output.Status != StatusFailed {
		output.Status = StatusSent
	}

	h.recordAudit(ctx, input, tmpl.Type, output)
	return output, nil
}

func (h *Handler) getRecipient(ctx context.Context, applicationID string) (*recipient, error) {
	var r recipient
	err := h.db.QueryRowContext(ctx, `
		SELECT u.email,
		       COALESCE(u.name, ''),
		       COALESCE(a.data->'personalInfo'->>'firstName', ''),
		       COALESCE(a.data->'personalInfo'->>'phone', '')
		FROM applications a
		JOIN users u ON u.id = a.user_id
		WHERE a.id = $1`, applicationID).Scan(&r.Email, &r.Name, &r.FirstName, &r.Phone)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// recordAudit is best effort: the message has already gone out.
func (h *Handler) recordAudit(ctx context.Context, input *Input, notificationType string, output *Output) {
	details, err := json.Marshal(map[string]interface{}{
		"notificationId": output.NotificationID,
		"type":           notificationType,
		"status":         output.Status,
		"channels":       output.Channels,
	})
	if err != nil {
		details = []byte("{}")
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		"notification_sent",
		"application",
		input.ApplicationID,
		details,
		output.SentAt,
	)
	if err != nil {
		h.logger.Warn("failed to write audit log", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"error":         err.Error(),
		})
	}
}
