// internal/user/repository.go
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"loan-origination/internal/models"

	"github.com/jmoiron/sqlx"
)

var ErrUserNotFound = errors.New("USER_NOT_FOUND")

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	List(ctx context.Context, filter models.UserFilter, opts models.QueryOptions) ([]models.User, int, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id int64) error
}

const userColumns = `id, email, name, password, role, is_email_verified, created_at, updated_at`

// sortColumns maps API sort fields to columns. Unknown fields are ignored.
var sortColumns = map[string]string{
	"id":              "id",
	"email":           "email",
	"name":            "name",
	"role":            "role",
	"isEmailVerified": "is_email_verified",
	"createdAt":       "created_at",
	"updatedAt":       "updated_at",
}

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, u *models.User) error {
	row := r.db.QueryRowxContext(ctx, `
		INSERT INTO users (email, name, password, role, is_email_verified)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		u.Email, u.Name, u.Password, u.Role, u.IsEmailVerified)
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var u models.User
	if err := r.db.GetContext(ctx, &u, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *PostgresRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var taken bool
	err := r.db.QueryRowxContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND id <> $2)`, email, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return taken, nil
}

// List filters by exact name and role, orders by sortBy and pages with
// limit and page. It also returns the unpaged total.
func (r *PostgresRepository) List(ctx context.Context, filter models.UserFilter, opts models.QueryOptions) ([]models.User, int, error) {
	opts = opts.Normalize()

	var (
		conds []string
		args  []interface{}
	)
	if filter.Name != "" {
		args = append(args, filter.Name)
		conds = append(conds, fmt.Sprintf("name = $%d", len(args)))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY %s LIMIT %d OFFSET %d`,
		userColumns, where, OrderBy(opts.SortBy), opts.Limit, (opts.Page-1)*opts.Limit)

	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// OrderBy turns "field:dir[,field:dir]" into an ORDER BY list over known
// columns. The default is id ascending.
func OrderBy(sortBy string) string {
	var parts []string
	for _, item := range strings.Split(sortBy, ",") {
		field, dir, _ := strings.Cut(strings.TrimSpace(item), ":")
		col, ok := sortColumns[field]
		if !ok {
			continue
		}
		if strings.EqualFold(dir, "desc") {
			parts = append(parts, col+" DESC")
		} else {
			parts = append(parts, col+" ASC")
		}
	}
	if len(parts) == 0 {
		return "id ASC"
	}
	return strings.Join(parts, ", ")
}

func (r *PostgresRepository) Update(ctx context.Context, u *models.User) error {
	row := r.db.QueryRowxContext(ctx, `
		UPDATE users SET email = $2, name = $3, password = $4, role = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.Email, u.Name, u.Password, u.Role)
	if err := row.Scan(&u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}
