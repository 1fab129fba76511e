// internal/workers/application/send-notification/models.go
package sendnotification

import "loan-origination/internal/models"

type Input struct {
	ApplicationID string                   `json:"applicationId"`
	Status        models.ApplicationStatus `json:"status"`
	Notes         string                   `json:"notes,omitempty"`
}

type Output struct {
	NotificationID string   `json:"notificationId"`
	Status         string   `json:"status"` // "sent", "failed", "disabled"
	Channels       []string `json:"channels"`
	SentAt         string   `json:"sentAt"` // ISO 8601
}

// Statuses
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

// Channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// recipient is the applicant behind an application.
type recipient struct {
	Email     string
	Name      string
	FirstName string
	Phone     string
}
