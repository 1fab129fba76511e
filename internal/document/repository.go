// internal/document/repository.go
package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"loan-origination/internal/models"

	"github.com/jmoiron/sqlx"
)

var ErrDocumentNotFound = errors.New("DOCUMENT_NOT_FOUND")

type Repository interface {
	Create(ctx context.Context, d *models.Document) error
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
}

// Record is a stored document plus the status of the application it is
// attached to, if any.
type Record struct {
	models.Document
	ApplicationStatus models.ApplicationStatus
}

type row struct {
	ID                string         `db:"id"`
	UserID            int64          `db:"user_id"`
	ApplicationID     sql.NullString `db:"application_id"`
	Name              string         `db:"name"`
	Type              string         `db:"type"`
	Size              int64          `db:"size"`
	ContentType       string         `db:"content_type"`
	StorageKey        string         `db:"storage_key"`
	Verified          bool           `db:"verified"`
	UploadedAt        time.Time      `db:"uploaded_at"`
	ApplicationStatus sql.NullString `db:"application_status"`
}

func (r row) record() *Record {
	return &Record{
		Document: models.Document{
			ID:            r.ID,
			Name:          r.Name,
			Type:          models.DocumentType(r.Type),
			Size:          r.Size,
			UploadedAt:    r.UploadedAt,
			Verified:      r.Verified,
			ContentType:   r.ContentType,
			UserID:        r.UserID,
			ApplicationID: r.ApplicationID.String,
			StorageKey:    r.StorageKey,
		},
		ApplicationStatus: models.ApplicationStatus(r.ApplicationStatus.String),
	}
}

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, d *models.Document) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, application_id, name, type, size, content_type, storage_key, verified, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.UserID, sql.NullString{String: d.ApplicationID, Valid: d.ApplicationID != ""},
		d.Name, d.Type, d.Size, d.ContentType, d.StorageKey, d.Verified, d.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Record, error) {
	var dr row
	err := r.db.GetContext(ctx, &dr, `
		SELECT d.id, d.user_id, d.application_id, d.name, d.type, d.size, d.content_type,
			d.storage_key, d.verified, d.uploaded_at, a.status AS application_status
		FROM documents d
		LEFT JOIN applications a ON a.id = d.application_id
		WHERE d.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return dr.record(), nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
