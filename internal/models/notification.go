// internal/models/notification.go
package models

// NotificationTemplate is the message sent to an applicant when their
// application changes status. {{name}} placeholders are filled at send time.
type NotificationTemplate struct {
	Type     string
	Subject  string
	Body     string
	SMSBody  string
	HTMLBody string
}
