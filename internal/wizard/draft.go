// internal/wizard/draft.go
package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	apperrors "loan-origination/internal/common/errors"
	"loan-origination/internal/models"

	"github.com/redis/go-redis/v9"
)

// Key prefixes; each is suffixed with the owner id.
const (
	KeyApplicationDraft = "loanlink_application_draft"
	KeyApplicationStep  = "loanlink_application_step"
	KeyFormData         = "loanlink_form_data"
)

// Draft is the resumable wizard state for one owner. It is a cache, not a
// record: the last write wins.
type Draft struct {
	Step           Step                           `json:"step"`
	CompletedSteps []Step                         `json:"completedSteps"`
	Data           models.ApplicationData         `json:"data"`
	DocumentErrors map[models.DocumentType]string `json:"documentErrors,omitempty"`
}

func newDraft() *Draft {
	return &Draft{Step: StepPersonalInfo, CompletedSteps: []Step{}}
}

func (d *Draft) markCompleted(s Step) {
	kept := d.CompletedSteps[:0]
	for _, c := range d.CompletedSteps {
		if c != s {
			kept = append(kept, c)
		}
	}
	d.CompletedSteps = append(kept, s)
}

func (d *Draft) setDocumentError(t models.DocumentType, msg string) {
	if d.DocumentErrors == nil {
		d.DocumentErrors = make(map[models.DocumentType]string)
	}
	d.DocumentErrors[t] = msg
}

// DraftStore persists drafts. Load returns (nil, nil) when nothing is stored.
type DraftStore interface {
	Load(ctx context.Context, owner string) (*Draft, error)
	Save(ctx context.Context, owner string, d *Draft) error
	Clear(ctx context.Context, owner string) error
}

// formData is the generic form cache kept beside the draft and the step.
type formData struct {
	CompletedSteps []Step                         `json:"completedSteps"`
	DocumentErrors map[models.DocumentType]string `json:"documentErrors,omitempty"`
}

// RedisDraftStore keeps each draft in three keys so the step can be read
// without decoding the application data.
type RedisDraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDraftStore returns a store whose keys expire after ttl. Zero keeps
// drafts until they are cleared.
func NewRedisDraftStore(client *redis.Client, ttl time.Duration) *RedisDraftStore {
	return &RedisDraftStore{client: client, ttl: ttl}
}

func draftKeys(owner string) (data, step, form string) {
	return KeyApplicationDraft + ":" + owner, KeyApplicationStep + ":" + owner, KeyFormData + ":" + owner
}

func (s *RedisDraftStore) Load(ctx context.Context, owner string) (*Draft, error) {
	dataKey, stepKey, formKey := draftKeys(owner)

	vals, err := s.client.MGet(ctx, dataKey, stepKey, formKey).Result()
	if err != nil {
		return nil, apperrors.NewCacheOperationFailedError("load_draft", err)
	}
	if vals[0] == nil && vals[1] == nil && vals[2] == nil {
		return nil, nil
	}

	d := newDraft()
	if raw, ok := vals[0].(string); ok {
		if err := json.Unmarshal([]byte(raw), &d.Data); err != nil {
			return nil, apperrors.NewCacheOperationFailedError("decode_draft", err)
		}
	}
	if raw, ok := vals[1].(string); ok {
		if n, err := strconv.Atoi(raw); err == nil && Step(n).Valid() {
			d.Step = Step(n)
		}
	}
	if raw, ok := vals[2].(string); ok {
		var fd formData
		if err := json.Unmarshal([]byte(raw), &fd); err == nil {
			if fd.CompletedSteps != nil {
				d.CompletedSteps = fd.CompletedSteps
			}
			d.DocumentErrors = fd.DocumentErrors
		}
	}
	return d, nil
}

// Save overwrites all three keys.
func (s *RedisDraftStore) Save(ctx context.Context, owner string, d *Draft) error {
	dataKey, stepKey, formKey := draftKeys(owner)

	data, err := json.Marshal(d.Data)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	form, err := json.Marshal(formData{CompletedSteps: d.CompletedSteps, DocumentErrors: d.DocumentErrors})
	if err != nil {
		return fmt.Errorf("encode form data: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, dataKey, data, s.ttl)
		pipe.Set(ctx, stepKey, int(d.Step), s.ttl)
		pipe.Set(ctx, formKey, form, s.ttl)
		return nil
	})
	if err != nil {
		return apperrors.NewCacheOperationFailedError("save_draft", err)
	}
	return nil
}

func (s *RedisDraftStore) Clear(ctx context.Context, owner string) error {
	dataKey, stepKey, formKey := draftKeys(owner)
	if err := s.client.Del(ctx, dataKey, stepKey, formKey).Err(); err != nil {
		return apperrors.NewCacheOperationFailedError("clear_draft", err)
	}
	return nil
}
