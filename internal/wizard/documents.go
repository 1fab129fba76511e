// internal/wizard/documents.go
package wizard

import (
	"sync"

	"loan-origination/internal/models"
)

// Category is one upload slot of the documents step.
type Category struct {
	Type        models.DocumentType `json:"type"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Required    bool                `json:"required"`
}

// Categories lists the upload slots in display order.
var Categories = []Category{
	{Type: models.DocumentIDVerification, Title: "ID Verification", Description: "Driver's license, passport, or state ID", Required: true},
	{Type: models.DocumentIncomeVerification, Title: "Income Verification", Description: "Recent pay stubs or income statements", Required: true},
	{Type: models.DocumentBankStatements, Title: "Bank Statements", Description: "Last 3 months of bank statements"},
	{Type: models.DocumentEmploymentVerification, Title: "Employment Verification", Description: "Employment letter or contact information"},
	{Type: models.DocumentTaxReturns, Title: "Tax Returns", Description: "Last 2 years of tax returns (if self-employed)"},
}

func categoryFor(t models.DocumentType) (Category, bool) {
	for _, c := range Categories {
		if c.Type == t {
			return c, true
		}
	}
	return Category{}, false
}

// MissingRequired returns the mandatory categories without a document.
func MissingRequired(docs []models.Document) []models.DocumentType {
	var missing []models.DocumentType
	for _, c := range Categories {
		if c.Required && documentFor(docs, c.Type) == nil {
			missing = append(missing, c.Type)
		}
	}
	return missing
}

func documentFor(docs []models.Document, t models.DocumentType) *models.Document {
	for i := range docs {
		if docs[i].Type == t {
			return &docs[i]
		}
	}
	return nil
}

// inflight tracks uploads that have been dispatched but not resolved, keyed
// by owner and category. It is per process.
type inflight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{keys: make(map[string]struct{})}
}

// acquire reports false when key is already held.
func (f *inflight) acquire(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.keys[key]; busy {
		return false
	}
	f.keys[key] = struct{}{}
	return true
}

func (f *inflight) release(key string) {
	f.mu.Lock()
	delete(f.keys, key)
	f.mu.Unlock()
}

// ownerLocks serializes load-modify-save cycles per owner.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[string]*ownerLock
}

type ownerLock struct {
	sync.Mutex
	refs int
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{locks: make(map[string]*ownerLock)}
}

func (o *ownerLocks) lock(owner string) func() {
	o.mu.Lock()
	l, ok := o.locks[owner]
	if !ok {
		l = &ownerLock{}
		o.locks[owner] = l
	}
	l.refs++
	o.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		o.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, owner)
		}
		o.mu.Unlock()
	}
}
