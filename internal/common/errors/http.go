// internal/common/errors/http.go
package errors

import (
	"encoding/json"
	"net/http"
)

// APIError is the body every failed REST call returns.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

var statusByCode = map[ErrorCode]int{
	ErrCodeValidationFailed:        http.StatusBadRequest,
	ErrCodeUploadRejected:          http.StatusBadRequest,
	ErrCodeWizardStepInvalid:       http.StatusBadRequest,
	ErrCodeEmailTaken:              http.StatusBadRequest,
	ErrCodeInvalidStatusTransition: http.StatusConflict,
	ErrCodeDuplicateApplication:    http.StatusConflict,
	ErrCodeConflict:                http.StatusConflict,
	ErrCodeBusinessRule:            http.StatusUnprocessableEntity,
	ErrCodeUnauthorized:            http.StatusUnauthorized,
	ErrCodeInvalidToken:            http.StatusUnauthorized,
	ErrCodeForbidden:               http.StatusForbidden,
	ErrCodeResourceNotFound:        http.StatusNotFound,
	ErrCodeIndexNotFound:           http.StatusNotFound,
	ErrCodeRateLimited:             http.StatusTooManyRequests,
	ErrCodeTimeout:                 http.StatusGatewayTimeout,
	ErrCodeQueryTimeout:            http.StatusGatewayTimeout,
	ErrCodeExternalService:         http.StatusBadGateway,
	ErrCodeStorageOperationFailed:  http.StatusBadGateway,
	ErrCodeNotificationSendFailed:  http.StatusBadGateway,
}

// HTTPStatus maps an error code to the response status. Unknown codes are 500.
func HTTPStatus(code ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ToAPIError converts any error into the response body. In production a
// non-operational error is reported as a bare 500 and no stack is included.
func ToAPIError(err error, production bool) APIError {
	stdErr, ok := AsStandard(err)
	if !ok {
		apiErr := APIError{Code: http.StatusInternalServerError, Message: http.StatusText(http.StatusInternalServerError)}
		if !production {
			apiErr.Message = err.Error()
			apiErr.Stack = captureStack(3)
		}
		return apiErr
	}

	status := HTTPStatus(stdErr.Code)
	apiErr := APIError{Code: status, Message: stdErr.Message}
	if production && status == http.StatusInternalServerError {
		apiErr.Message = http.StatusText(http.StatusInternalServerError)
	}
	if !production {
		apiErr.Stack = stdErr.Stack()
	}
	return apiErr
}

// WriteHTTPError renders err as JSON and returns the status written.
func WriteHTTPError(w http.ResponseWriter, err error, production bool) int {
	apiErr := ToAPIError(err, production)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Code)
	_ = json.NewEncoder(w).Encode(apiErr)
	return apiErr.Code
}
