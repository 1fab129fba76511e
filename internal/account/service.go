// internal/account/service.go
package account

import (
	"context"
	"errors"
	"time"

	"loan-origination/internal/common/auth"
	apperrors "loan-origination/internal/common/errors"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/metrics"
	"loan-origination/internal/models"
)

// Users is the part of the user service the auth flow needs.
type Users interface {
	CreateUser(ctx context.Context, in models.CreateUserInput) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Service issues, rotates and revokes token pairs.
type Service struct {
	users  Users
	tokens *auth.TokenManager
	store  RefreshTokenStore
	logger logger.Logger
}

func NewService(users Users, tokens *auth.TokenManager, store RefreshTokenStore, log logger.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "auth"}),
	}
}

func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (resp *models.AuthResponse, err error) {
	defer func() { observe("register", err) }()

	u, err := s.users.CreateUser(ctx, models.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     models.RoleUser,
	})
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, u)
}

func (s *Service) Login(ctx context.Context, req models.LoginRequest) (resp *models.AuthResponse, err error) {
	defer func() { observe("login", err) }()

	u, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeResourceNotFound) {
			return nil, apperrors.NewAuthenticationError("unknown email")
		}
		return nil, err
	}
	if !auth.PasswordMatches(u.Password, req.Password) {
		s.logger.Warn("login rejected", map[string]interface{}{"userId": u.ID})
		return nil, apperrors.NewAuthenticationError("password mismatch")
	}
	return s.respond(ctx, u)
}

// Refresh rotates a refresh token: the presented one is consumed and a new
// pair is issued. A token that was already used or revoked is rejected.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (resp *models.AuthResponse, err error) {
	defer func() { observe("refresh", err) }()

	claims, err := s.tokens.Verify(refreshToken, auth.TokenRefresh)
	if err != nil {
		return nil, apperrors.NewInvalidTokenError(err)
	}

	owner, err := s.store.Consume(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			s.logger.Warn("refresh token reused or revoked", map[string]interface{}{"jti": claims.ID})
			return nil, apperrors.NewUnauthorizedError("")
		}
		return nil, apperrors.NewCacheOperationFailedError("consume_refresh_token", err)
	}

	userID, _ := claims.UserID()
	if owner != userID {
		return nil, apperrors.NewUnauthorizedError("")
	}

	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeResourceNotFound) {
			return nil, apperrors.NewUnauthorizedError("")
		}
		return nil, err
	}
	return s.respond(ctx, u)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) (err error) {
	defer func() { observe("logout", err) }()

	claims, err := s.tokens.Verify(refreshToken, auth.TokenRefresh)
	if err != nil {
		return apperrors.NewResourceNotFoundError("Refresh token", "")
	}
	if _, err := s.store.Consume(ctx, claims.ID); err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			return apperrors.NewResourceNotFoundError("Refresh token", "")
		}
		return apperrors.NewCacheOperationFailedError("revoke_refresh_token", err)
	}
	return nil
}

// Authenticate resolves an access token to the principal it was issued for.
func (s *Service) Authenticate(token string) (auth.Principal, error) {
	claims, err := s.tokens.Verify(token, auth.TokenAccess)
	if err != nil {
		return auth.Principal{}, apperrors.NewInvalidTokenError(err)
	}
	id, _ := claims.UserID()
	return auth.Principal{UserID: id, Role: claims.Role}, nil
}

func (s *Service) respond(ctx context.Context, u *models.User) (*models.AuthResponse, error) {
	tokens, refreshClaims, err := s.tokens.IssuePair(u.ID, u.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	ttl := time.Until(refreshClaims.ExpiresAt.Time)
	if ttl <= 0 {
		ttl = s.tokens.RefreshTTL()
	}
	if err := s.store.Save(ctx, refreshClaims.ID, u.ID, ttl); err != nil {
		return nil, apperrors.NewCacheOperationFailedError("save_refresh_token", err)
	}
	return &models.AuthResponse{User: *u, Tokens: *tokens}, nil
}

func observe(event string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.AuthEventsTotal.WithLabelValues(event, outcome).Inc()
}
