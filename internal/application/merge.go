// internal/application/merge.go
package application

import (
	"time"

	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"
)

// mergeData overlays the provided sections of patch onto current. Each
// provided section is validated on its own.
func mergeData(current, patch models.ApplicationData, now time.Time) (models.ApplicationData, validation.Errors) {
	var errs validation.Errors

	if patch.PersonalInfo != nil {
		errs = append(errs, validation.ValidatePersonalInfo(*patch.PersonalInfo, now).Prefixed(validation.SectionPersonalInfo)...)
		current.PersonalInfo = patch.PersonalInfo
	}
	if patch.EmploymentInfo != nil {
		errs = append(errs, validation.ValidateEmploymentInfo(*patch.EmploymentInfo).Prefixed(validation.SectionEmploymentInfo)...)
		current.EmploymentInfo = patch.EmploymentInfo
	}
	if patch.LoanDetails != nil {
		errs = append(errs, validation.ValidateLoanDetails(*patch.LoanDetails).Prefixed(validation.SectionLoanDetails)...)
		current.LoanDetails = patch.LoanDetails
	}
	if patch.Documents != nil {
		current.Documents = patch.Documents
	}
	return current, errs
}
