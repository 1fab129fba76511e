// internal/common/validation/upload.go
package validation

import (
	"fmt"
	"path/filepath"
	"strings"

	apperrors "loan-origination/internal/common/errors"
)

// DefaultMaxUploadSize is 5 MB.
const DefaultMaxUploadSize int64 = 5 * 1024 * 1024

// AllowedExtensions is also the accept list shown to users.
var AllowedExtensions = []string{".pdf", ".doc", ".docx", ".jpg", ".jpeg", ".png"}

var mimeByExtension = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// ContentTypeFor returns the MIME type implied by the file extension, or "".
func ContentTypeFor(fileName string) string {
	return mimeByExtension[strings.ToLower(filepath.Ext(fileName))]
}

// CheckUpload rejects a file whose extension, MIME type or size is not
// allowed. An empty contentType is inferred from the extension. A maxSize of
// zero or less applies DefaultMaxUploadSize.
func CheckUpload(fileName, contentType string, size, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	accept := strings.Join(AllowedExtensions, ",")

	expected := ContentTypeFor(fileName)
	if expected == "" {
		return apperrors.NewUploadRejectedError(fmt.Sprintf("%s: Invalid file type. Allowed types: %s", fileName, accept))
	}
	if contentType != "" && !mimeMatches(contentType, expected) {
		return apperrors.NewUploadRejectedError(fmt.Sprintf("%s: Invalid file type. Allowed types: %s", fileName, accept))
	}
	if size > maxSize {
		return NewFileTooLargeError(fileName, maxSize)
	}
	if size <= 0 {
		return apperrors.NewUploadRejectedError(fmt.Sprintf("%s: File is empty", fileName))
	}
	return nil
}

// NewFileTooLargeError reports a file over maxSize. fileName may be empty when
// the request body was cut off before the file header was read.
func NewFileTooLargeError(fileName string, maxSize int64) error {
	msg := fmt.Sprintf("File size exceeds %dMB limit", maxSize/(1024*1024))
	if fileName != "" {
		msg = fileName + ": " + msg
	}
	return apperrors.NewUploadRejectedError(msg)
}

// mimeMatches ignores parameters such as "; charset=binary".
func mimeMatches(contentType, expected string) bool {
	base, _, _ := strings.Cut(contentType, ";")
	return strings.EqualFold(strings.TrimSpace(base), expected)
}
