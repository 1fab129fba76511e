// internal/account/tokenstore.go
package account

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const refreshKeyPrefix = "refresh_token:"

var ErrTokenRevoked = errors.New("TOKEN_REVOKED")

// RefreshTokenStore is the allowlist of live refresh token ids.
type RefreshTokenStore interface {
	Save(ctx context.Context, jti string, userID int64, ttl time.Duration) error
	// Consume removes the entry and returns its owner. A missing entry gives ErrTokenRevoked.
	Consume(ctx context.Context, jti string) (int64, error)
}

type RedisTokenStore struct {
	client redis.Cmdable
}

func NewRedisTokenStore(client redis.Cmdable) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) Save(ctx context.Context, jti string, userID int64, ttl time.Duration) error {
	return s.client.Set(ctx, refreshKeyPrefix+jti, strconv.FormatInt(userID, 10), ttl).Err()
}

func (s *RedisTokenStore) Consume(ctx context.Context, jti string) (int64, error) {
	val, err := s.client.GetDel(ctx, refreshKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTokenRevoked
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}
