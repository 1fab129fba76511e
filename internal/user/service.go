// internal/user/service.go
package user

import (
	"context"
	"errors"
	"strings"

	"loan-origination/internal/common/auth"
	apperrors "loan-origination/internal/common/errors"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/validation"
	"loan-origination/internal/models"
)

// Service holds the user rules shared by the REST handlers, the auth flow
// and the tool endpoint.
type Service struct {
	repo       Repository
	bcryptCost int
	logger     logger.Logger
}

func NewService(repo Repository, bcryptCost int, log logger.Logger) *Service {
	return &Service{
		repo:       repo,
		bcryptCost: bcryptCost,
		logger:     log.WithFields(map[string]interface{}{"component": "user"}),
	}
}

func (s *Service) CreateUser(ctx context.Context, in models.CreateUserInput) (*models.User, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if !validation.IsValidEmail(email) {
		return nil, apperrors.NewValidationError("\"email\" must be a valid email", email)
	}
	if err := auth.CheckPasswordStrength(in.Password); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), "password")
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("\"role\" must be one of [USER, ADMIN]", string(role))
	}

	taken, err := s.repo.EmailTaken(ctx, email, 0)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("email_taken", err)
	}
	if taken {
		return nil, apperrors.NewEmailTakenError(email)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	u := &models.User{Email: email, Password: hash, Role: role}
	if in.Name != "" {
		name := in.Name
		u.Name = &name
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	s.logger.Info("user created", map[string]interface{}{"userId": u.ID, "role": string(u.Role)})
	return u, nil
}

func (s *Service) QueryUsers(ctx context.Context, filter models.UserFilter, opts models.QueryOptions) (models.PaginatedResponse[models.User], error) {
	opts = opts.Normalize()
	users, total, err := s.repo.List(ctx, filter, opts)
	if err != nil {
		return models.PaginatedResponse[models.User]{}, apperrors.NewQueryExecutionFailedError("list_users", err)
	}
	return models.NewPage(users, opts, total), nil
}

func (s *Service) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	return u, s.lookupError(err, "get_user")
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	return u, s.lookupError(err, "get_user_by_email")
}

func (s *Service) lookupError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUserNotFound):
		return apperrors.NewResourceNotFoundError("User", "")
	default:
		return apperrors.NewQueryExecutionFailedError(op, err)
	}
}

func (s *Service) UpdateUserByID(ctx context.Context, id int64, in models.UpdateUserInput) (*models.User, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*in.Email))
		if !validation.IsValidEmail(email) {
			return nil, apperrors.NewValidationError("\"email\" must be a valid email", email)
		}
		taken, err := s.repo.EmailTaken(ctx, email, id)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("email_taken", err)
		}
		if taken {
			return nil, apperrors.NewEmailTakenError(email)
		}
		u.Email = email
	}
	if in.Password != nil {
		if err := auth.CheckPasswordStrength(*in.Password); err != nil {
			return nil, apperrors.NewValidationError(err.Error(), "password")
		}
		hash, err := auth.HashPassword(*in.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		u.Password = hash
	}
	if in.Name != nil {
		name := *in.Name
		u.Name = &name
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, apperrors.NewValidationError("\"role\" must be one of [USER, ADMIN]", string(*in.Role))
		}
		u.Role = *in.Role
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, s.lookupError(err, "update_user")
	}
	return u, nil
}

func (s *Service) DeleteUserByID(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.lookupError(err, "delete_user")
	}
	s.logger.Info("user deleted", map[string]interface{}{"userId": id})
	return nil
}
