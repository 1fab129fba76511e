// internal/common/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode is the machine-readable classification carried by StandardError.
type ErrorCode string

const (
	// Request and domain validation
	ErrCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrCodeUploadRejected          ErrorCode = "UPLOAD_REJECTED"
	ErrCodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeWizardStepInvalid       ErrorCode = "WIZARD_STEP_INVALID"

	// Identity
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeInvalidToken     ErrorCode = "INVALID_TOKEN"
	ErrCodeEmailTaken       ErrorCode = "EMAIL_TAKEN"
	ErrCodeRateLimited      ErrorCode = "RATE_LIMITED"
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeConflict         ErrorCode = "CONFLICT"

	// Persistence
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDuplicateApplication     ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeCacheOperationFailed     ErrorCode = "CACHE_OPERATION_FAILED"

	// Search
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeIndexNotFound                 ErrorCode = "INDEX_NOT_FOUND"

	// Object storage
	ErrCodeStorageOperationFailed ErrorCode = "STORAGE_OPERATION_FAILED"

	// Messaging and external services
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeExternalService        ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                ErrorCode = "TIMEOUT_ERROR"
	ErrCodeBusinessRule           ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// StandardError is an operational error: its message is safe to show a client.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
	stack string
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// Stack returns the call frames captured when the error was built.
func (e *StandardError) Stack() string { return e.stack }

// WithMetadata attaches a key/value pair and returns the receiver.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
		stack:     captureStack(3),
	}
}

func captureStack(skip int) string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return b.String()
}

// AsStandard returns the first StandardError in err's chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

func NewValidationError(message, details string) *StandardError {
	return newError(ErrCodeValidationFailed, message, details, false, nil)
}

func NewUploadRejectedError(message string) *StandardError {
	return newError(ErrCodeUploadRejected, message, "", false, nil)
}

func NewInvalidStatusTransitionError(from, to string) *StandardError {
	return newError(ErrCodeInvalidStatusTransition,
		fmt.Sprintf("Cannot change application status from %s to %s", from, to),
		fmt.Sprintf("from: %s, to: %s", from, to), false, nil)
}

func NewWizardStepError(message string) *StandardError {
	return newError(ErrCodeWizardStepInvalid, message, "", false, nil)
}

func NewUnauthorizedError(message string) *StandardError {
	if message == "" {
		message = "Please authenticate"
	}
	return newError(ErrCodeUnauthorized, message, "", false, nil)
}

func NewForbiddenError() *StandardError {
	return newError(ErrCodeForbidden, "Forbidden", "", false, nil)
}

func NewInvalidTokenError(err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return newError(ErrCodeInvalidToken, "Invalid or expired token", details, false, err)
}

func NewEmailTakenError(email string) *StandardError {
	return newError(ErrCodeEmailTaken, "Email already taken", fmt.Sprintf("email: %s", email), false, nil)
}

func NewRateLimitedError() *StandardError {
	return newError(ErrCodeRateLimited, "Too many requests", "", true, nil)
}

func NewResourceNotFoundError(resource, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("%s not found", resource), details, false, nil)
}

func NewConflictError(message, details string) *StandardError {
	return newError(ErrCodeConflict, message, details, false, nil)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true, err)
}

func NewQueryTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout", fmt.Sprintf("queryType: %s", queryType), true, nil)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true, err)
}

func NewDuplicateApplicationError(applicationID string) *StandardError {
	return newError(ErrCodeDuplicateApplication, "Application already exists",
		fmt.Sprintf("applicationId: %s", applicationID), false, nil)
}

func NewCacheOperationFailedError(op string, err error) *StandardError {
	return newError(ErrCodeCacheOperationFailed, "Cache operation failed",
		fmt.Sprintf("op: %s, error: %s", op, err.Error()), true, err)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err.Error(), true, err)
}

func NewSearchQueryFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true, err)
}

func NewIndexNotFoundError(indexName string) *StandardError {
	return newError(ErrCodeIndexNotFound, "Elasticsearch index not found",
		fmt.Sprintf("indexName: %s", indexName), false, nil)
}

func NewStorageOperationFailedError(provider, op string, err error) *StandardError {
	return newError(ErrCodeStorageOperationFailed, "Storage operation failed",
		fmt.Sprintf("provider: %s, op: %s, error: %s", provider, op, err.Error()), true, err)
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()), true, err)
}

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false, nil)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true, err)
}

// NewSubmissionFailedError is the transient failure shown when an application
// could not be handed to the application service.
func NewSubmissionFailedError(err error) *StandardError {
	return newError(ErrCodeExternalService, "Failed to submit application. Please try again.", err.Error(), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true, err)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeUnauthorized, "Incorrect email or password", details, false, nil)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Internal Server Error", err.Error(), false, err)
}

// BPMNErrorMapping holds the codes that cross into the workflow engine under a different name.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidStatusTransition: "DECISION_REJECTED",
	ErrCodeResourceNotFound:        "APPLICATION_NOT_FOUND",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeStorageOperationFailed,
		ErrCodeCacheOperationFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeQueryTimeout, ErrCodeTimeout:
		return 2

	default:
		return 0
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TOKEN") || code == ErrCodeUnauthorized || code == ErrCodeForbidden:
		return "AUTH"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "CACHE"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "STORAGE") || strings.Contains(codeStr, "UPLOAD"):
		return "STORAGE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// BPMNError is the shape thrown back to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}
