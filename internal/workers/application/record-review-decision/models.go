// internal/workers/application/record-review-decision/models.go
package recordreviewdecision

import "loan-origination/internal/models"

type Input struct {
	ApplicationID string                   `json:"applicationId"`
	Decision      models.ApplicationStatus `json:"decision"`
	ReviewerID    string                   `json:"reviewerId"`
	Notes         string                   `json:"notes,omitempty"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	ReviewedBy        string `json:"reviewedBy"`
	ReviewedAt        string `json:"reviewedAt"` // ISO 8601
}

// Decisions a reviewer may record. Draft and submitted are set by the
// applicant only.
var allowedDecisions = map[models.ApplicationStatus]bool{
	models.StatusUnderReview: true,
	models.StatusApproved:    true,
	models.StatusRejected:    true,
	models.StatusCompleted:   true,
}
