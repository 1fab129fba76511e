// internal/workers/application/validate-application-data/models.go
package validateapplicationdata

import (
	"encoding/json"

	"loan-origination/internal/common/validation"
)

type Input struct {
	ApplicationID   string          `json:"applicationId"`
	ApplicationData json.RawMessage `json:"applicationData"`
}

type Output struct {
	IsValid          bool                    `json:"isValid"`
	ValidationErrors []validation.FieldError `json:"validationErrors"`
}
