// internal/application/documents.go
package application

import (
	"context"
	"fmt"

	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"
)

// resolveDocuments replaces client-sent document entries with the owner's
// stored rows. Entries that are unknown, owned by someone else or attached to
// another application are rejected. Verification is never taken from input.
func (s *Service) resolveDocuments(ctx context.Context, ownerID int64, appID string, docs []models.Document) ([]models.Document, error) {
	if docs == nil {
		return nil, nil
	}

	ids := make([]string, 0, len(docs))
	queued := make(map[string]bool, len(docs))
	for _, d := range docs {
		if d.ID != "" && !queued[d.ID] {
			queued[d.ID] = true
			ids = append(ids, d.ID)
		}
	}

	owned := map[string]models.Document{}
	if len(ids) > 0 {
		rows, err := s.repo.OwnedDocuments(ctx, ownerID, ids)
		if err != nil {
			return nil, s.lookupError(err, "resolve_documents")
		}
		for _, d := range rows {
			owned[d.ID] = d
		}
	}

	var errs validation.Errors
	resolved := make([]models.Document, 0, len(docs))
	added := make(map[string]bool, len(docs))
	for i, d := range docs {
		field := fmt.Sprintf("documents[%d].id", i)
		if d.ID == "" {
			errs = append(errs, validation.FieldError{Field: field, Code: validation.CodeMissingRequired, Message: "Document id is required"})
			continue
		}
		row, ok := owned[d.ID]
		if !ok || (row.ApplicationID != "" && row.ApplicationID != appID) {
			errs = append(errs, validation.FieldError{Field: field, Code: validation.CodeInvalidValue, Message: "Unknown document: " + d.ID})
			continue
		}
		if added[d.ID] {
			continue
		}
		added[d.ID] = true
		row.Verified = false
		row.URL = ""
		resolved = append(resolved, row)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return resolved, nil
}
