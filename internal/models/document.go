// internal/models/document.go
package models

import (
	"io"
	"time"
)

type DocumentType string

const (
	DocumentIDVerification         DocumentType = "id_verification"
	DocumentIncomeVerification     DocumentType = "income_verification"
	DocumentEmploymentVerification DocumentType = "employment_verification"
	DocumentBankStatements         DocumentType = "bank_statements"
	DocumentTaxReturns             DocumentType = "tax_returns"
	DocumentOther                  DocumentType = "other"
)

func (t DocumentType) Valid() bool {
	switch t {
	case DocumentIDVerification, DocumentIncomeVerification, DocumentEmploymentVerification,
		DocumentBankStatements, DocumentTaxReturns, DocumentOther:
		return true
	}
	return false
}

type Document struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        DocumentType `json:"type"`
	Size        int64        `json:"size"`
	UploadedAt  time.Time    `json:"uploadedAt"`
	URL         string       `json:"url,omitempty"`
	Verified    bool         `json:"verified"`
	ContentType string       `json:"contentType,omitempty"`

	// storage bookkeeping, never serialized to clients
	UserID        int64  `json:"-"`
	ApplicationID string `json:"-"`
	StorageKey    string `json:"-"`
}

// UploadResult is returned by the upload endpoint.
type UploadResult struct {
	Document  Document          `json:"document"`
	UploadURL string            `json:"uploadUrl,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// DocumentUpload is a file on its way to storage. Size is the declared
// length of Body.
type DocumentUpload struct {
	Type          DocumentType
	FileName      string
	ContentType   string
	Size          int64
	Body          io.Reader
	ApplicationID string
}
