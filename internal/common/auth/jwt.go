// internal/common/auth/jwt.go
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"loan-origination/internal/common/config"
	"loan-origination/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

var (
	ErrWrongTokenType = errors.New("WRONG_TOKEN_TYPE")
	ErrMalformedToken = errors.New("MALFORMED_TOKEN")
)

// Claims identify the user by Subject. ID is unique per token so refresh
// tokens can be revoked individually.
type Claims struct {
	Role models.Role `json:"role"`
	Type TokenType   `json:"type"`
	jwt.RegisteredClaims
}

// UserID parses the numeric subject.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: subject %q", ErrMalformedToken, c.Subject)
	}
	return id, nil
}

// TokenManager signs and verifies HS256 tokens.
type TokenManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		secret:     []byte(cfg.JWT.Secret),
		issuer:     cfg.JWT.Issuer,
		accessTTL:  cfg.AccessTTL(),
		refreshTTL: cfg.RefreshTTL(),
		now:        time.Now,
	}
}

func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

// Issue signs one token of the given type.
func (m *TokenManager) Issue(userID int64, role models.Role, typ TokenType) (string, *Claims, error) {
	ttl := m.accessTTL
	if typ == TokenRefresh {
		ttl = m.refreshTTL
	}
	now := m.now()
	claims := &Claims{
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, claims, nil
}

// IssuePair returns an access and a refresh token. The refresh claims are
// returned so the caller can register the token id.
func (m *TokenManager) IssuePair(userID int64, role models.Role) (*models.AuthTokens, *Claims, error) {
	access, accessClaims, err := m.Issue(userID, role, TokenAccess)
	if err != nil {
		return nil, nil, err
	}
	refresh, refreshClaims, err := m.Issue(userID, role, TokenRefresh)
	if err != nil {
		return nil, nil, err
	}
	return &models.AuthTokens{
		Access:  models.Token{Token: access, Expires: accessClaims.ExpiresAt.Time},
		Refresh: models.Token{Token: refresh, Expires: refreshClaims.ExpiresAt.Time},
	}, refreshClaims, nil
}

// Verify checks signature, expiry and type.
func (m *TokenManager) Verify(token string, typ TokenType) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrWrongTokenType, typ, claims.Type)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}
