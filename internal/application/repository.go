// internal/application/repository.go
package application

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"loan-origination/internal/common/database"
	"loan-origination/internal/models"

	"github.com/lib/pq"
)

var (
	ErrApplicationNotFound  = errors.New("APPLICATION_NOT_FOUND")
	ErrDatabaseInsertFailed = errors.New("DATABASE_INSERT_FAILED")
	ErrDuplicateApplication = errors.New("DUPLICATE_APPLICATION")
)

const uniqueViolation = "23505"

// Repository persists applications, their audit trail and the product catalog.
type Repository interface {
	Create(ctx context.Context, app *models.LoanApplication) error
	Get(ctx context.Context, id string) (*models.LoanApplication, error)
	List(ctx context.Context, scope Scope, limit, offset int) ([]models.LoanApplication, int, error)
	Update(ctx context.Context, app *models.LoanApplication) error
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context, scope Scope) (*models.ApplicationSummary, error)
	CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int, error)
	LoanProducts(ctx context.Context) ([]models.LoanProduct, error)
	Audit(ctx context.Context, eventType, applicationID string, details map[string]interface{}) error
	OwnedDocuments(ctx context.Context, userID int64, ids []string) ([]models.Document, error)
}

// Scope restricts a query to one owner. The zero value means every owner.
type Scope struct {
	UserID int64
}

func (s Scope) all() bool { return s.UserID == 0 }

type PostgresRepository struct {
	pg *database.PostgresClient
}

func NewPostgresRepository(pg *database.PostgresClient) *PostgresRepository {
	return &PostgresRepository{pg: pg}
}

const applicationColumns = `id, user_id, status, data, created_at, updated_at, reviewed_at, reviewed_by, notes`

// Create inserts the application and claims its documents in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, app *models.LoanApplication) error {
	data, err := json.Marshal(app.Data)
	if err != nil {
		return fmt.Errorf("%w: marshal application data: %v", ErrDatabaseInsertFailed, err)
	}

	return r.pg.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO applications (id, user_id, status, data, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)`,
			app.ID, app.UserID, app.Status, data, app.CreatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return ErrDuplicateApplication
			}
			return fmt.Errorf("%w: insert failed: %v", ErrDatabaseInsertFailed, err)
		}

		if err := claimDocuments(ctx, tx, app); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabaseInsertFailed, err)
		}
		return nil
	})
}

// claimDocuments links the application's documents to it. Only rows owned by
// the applicant are touched.
func claimDocuments(ctx context.Context, tx *sql.Tx, app *models.LoanApplication) error {
	if len(app.Data.Documents) == 0 {
		return nil
	}
	ids := make([]string, 0, len(app.Data.Documents))
	for _, d := range app.Data.Documents {
		ids = append(ids, d.ID)
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE documents SET application_id = $1
		WHERE id = ANY($2) AND user_id = $3`,
		app.ID, pq.Array(ids), app.UserID)
	if err != nil {
		return fmt.Errorf("attach documents: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.LoanApplication, error) {
	row := r.pg.DB.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApplicationNotFound
	}
	return app, err
}

func (r *PostgresRepository) List(ctx context.Context, scope Scope, limit, offset int) ([]models.LoanApplication, int, error) {
	where, args := "", []interface{}{}
	if !scope.all() {
		where = " WHERE user_id = $1"
		args = append(args, scope.UserID)
	}

	var total int
	if err := r.pg.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM applications%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		applicationColumns, where, limit, offset)
	rows, err := r.pg.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	apps := []models.LoanApplication{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, 0, err
		}
		apps = append(apps, *app)
	}
	return apps, total, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, app *models.LoanApplication) error {
	data, err := json.Marshal(app.Data)
	if err != nil {
		return fmt.Errorf("marshal application data: %w", err)
	}

	return r.pg.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE applications
			SET status = $2, data = $3, updated_at = $4, reviewed_at = $5, reviewed_by = $6, notes = $7
			WHERE id = $1`,
			app.ID, app.Status, data, app.UpdatedAt, app.ReviewedAt,
			nullString(app.ReviewedBy), nullString(app.Notes))
		if err != nil {
			return fmt.Errorf("update application: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrApplicationNotFound
		}
		return claimDocuments(ctx, tx, app)
	})
}

// OwnedDocuments returns the documents among ids that belong to userID.
func (r *PostgresRepository) OwnedDocuments(ctx context.Context, userID int64, ids []string) ([]models.Document, error) {
	rows, err := r.pg.DB.QueryContext(ctx, `
		SELECT id, name, type, size, content_type, storage_key, uploaded_at, COALESCE(application_id, '')
		FROM documents
		WHERE user_id = $1 AND id = ANY($2)`,
		userID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("owned documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		d := models.Document{UserID: userID}
		if err := rows.Scan(&d.ID, &d.Name, &d.Type, &d.Size, &d.ContentType, &d.StorageKey,
			&d.UploadedAt, &d.ApplicationID); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.pg.DB.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

func (r *PostgresRepository) Summary(ctx context.Context, scope Scope) (*models.ApplicationSummary, error) {
	where, args := "", []interface{}{}
	if !scope.all() {
		where = " WHERE user_id = $1"
		args = append(args, scope.UserID)
	}

	var s models.ApplicationSummary
	err := r.pg.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status IN ('submitted', 'under_review')),
			COUNT(*) FILTER (WHERE status IN ('approved', 'completed')),
			COUNT(*) FILTER (WHERE status = 'rejected')
		FROM applications`+where, args...).
		Scan(&s.TotalApplications, &s.PendingApplications, &s.ApprovedApplications, &s.RejectedApplications)
	if err != nil {
		return nil, fmt.Errorf("summarize applications: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int, error) {
	rows, err := r.pg.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM applications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ApplicationStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.ApplicationStatus(status)] = n
	}
	return counts, rows.Err()
}

func (r *PostgresRepository) LoanProducts(ctx context.Context) ([]models.LoanProduct, error) {
	rows, err := r.pg.DB.QueryContext(ctx, `
		SELECT id, type, name, description, min_amount, max_amount, min_term, max_term,
			min_interest_rate, max_interest_rate, requirements, features, is_active
		FROM loan_products
		WHERE is_active
		ORDER BY type, id`)
	if err != nil {
		return nil, fmt.Errorf("list loan products: %w", err)
	}
	defer rows.Close()

	products := []models.LoanProduct{}
	for rows.Next() {
		var (
			p                      models.LoanProduct
			requirements, features []byte
		)
		if err := rows.Scan(&p.ID, &p.Type, &p.Name, &p.Description, &p.MinAmount, &p.MaxAmount,
			&p.MinTerm, &p.MaxTerm, &p.InterestRate.Min, &p.InterestRate.Max,
			&requirements, &features, &p.IsActive); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(requirements, &p.Requirements); err != nil {
			return nil, fmt.Errorf("decode requirements of %s: %w", p.ID, err)
		}
		if err := json.Unmarshal(features, &p.Features); err != nil {
			return nil, fmt.Errorf("decode features of %s: %w", p.ID, err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *PostgresRepository) Audit(ctx context.Context, eventType, applicationID string, details map[string]interface{}) error {
	raw, err := json.Marshal(details)
	if err != nil {
		raw = []byte("{}")
	}
	_, err = r.pg.DB.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		eventType, "application", applicationID, raw, time.Now().UTC())
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*models.LoanApplication, error) {
	var (
		app        models.LoanApplication
		status     string
		data       []byte
		reviewedAt sql.NullTime
		reviewedBy sql.NullString
		notes      sql.NullString
	)
	if err := row.Scan(&app.ID, &app.UserID, &status, &data, &app.CreatedAt, &app.UpdatedAt,
		&reviewedAt, &reviewedBy, &notes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &app.Data); err != nil {
		return nil, fmt.Errorf("decode application %s: %w", app.ID, err)
	}
	app.Status = models.ApplicationStatus(status)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		app.ReviewedAt = &t
	}
	app.ReviewedBy = reviewedBy.String
	app.Notes = notes.String
	return &app, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
