package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/loandesk/loandesk/internal/apperr"
	"github.com/loandesk/loandesk/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisSessionStore keeps two indexes per session: the user's current
// record under session:user:<id> and a reverse lookup under
// session:token:<token>. Both carry a TTL matching the refresh token's
// expiry; blacklist entries expire with the access token they revoke.
type RedisSessionStore struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisSessionStore(client *redis.Client, logger *logrus.Logger) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		logger: logger,
	}
}

func userKey(userID string) string {
	return fmt.Sprintf("session:user:%s", userID)
}

func tokenKey(token string) string {
	return fmt.Sprintf("session:token:%s", token)
}

func blacklistKey(token string) string {
	return fmt.Sprintf("blacklist:%s", token)
}

func (s *RedisSessionStore) PutRefreshToken(ctx context.Context, data models.RefreshTokenData) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	ttl := time.Until(data.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token already expired")
	}

	// Drop the reverse index of any previously issued token so the old
	// cookie stops matching immediately.
	var oldToken string
	if existing, err := s.client.Get(ctx, userKey(data.UserID)).Result(); err == nil {
		var old models.RefreshTokenData
		if json.Unmarshal([]byte(existing), &old) == nil {
			oldToken = old.Token
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if oldToken != "" {
			pipe.Del(ctx, tokenKey(oldToken))
		}
		pipe.Set(ctx, userKey(data.UserID), dataJSON, ttl)
		pipe.Set(ctx, tokenKey(data.Token), data.UserID, ttl)
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to store refresh token")
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	return nil
}

func (s *RedisSessionStore) RotateRefreshToken(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (*models.RefreshTokenData, error) {
	var rotated *models.RefreshTokenData

	// Watch the old token's reverse index: any concurrent rotation or
	// logout touches it, failing this transaction instead of silently
	// desynchronizing the cookie from the stored value.
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		userID, err := tx.Get(ctx, tokenKey(oldToken)).Result()
		if err == redis.Nil {
			return apperr.ErrInvalidRefreshToken
		}
		if err != nil {
			return fmt.Errorf("failed to look up refresh token: %w", err)
		}

		dataJSON, err := tx.Get(ctx, userKey(userID)).Result()
		if err == redis.Nil {
			return apperr.ErrInvalidRefreshToken
		}
		if err != nil {
			return fmt.Errorf("failed to load session record: %w", err)
		}

		var current models.RefreshTokenData
		if err := json.Unmarshal([]byte(dataJSON), &current); err != nil {
			return fmt.Errorf("failed to unmarshal session record: %w", err)
		}

		// The stored value must match the presented cookie exactly.
		if current.Token != oldToken {
			return apperr.ErrInvalidRefreshToken
		}

		next := models.RefreshTokenData{
			Token:     newToken,
			UserID:    current.UserID,
			Email:     current.Email,
			CreatedAt: time.Now(),
			ExpiresAt: expiresAt,
		}
		nextJSON, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal session record: %w", err)
		}

		ttl := time.Until(expiresAt)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, tokenKey(oldToken))
			pipe.Set(ctx, userKey(next.UserID), nextJSON, ttl)
			pipe.Set(ctx, tokenKey(newToken), next.UserID, ttl)
			return nil
		})
		if err != nil {
			return err
		}

		rotated = &next
		return nil
	}, tokenKey(oldToken))

	if errors.Is(err, redis.TxFailedErr) {
		// Lost the race against a concurrent rotation for the same user.
		return nil, apperr.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}

	return rotated, nil
}

func (s *RedisSessionStore) DeleteRefreshToken(ctx context.Context, token string) error {
	userID, err := s.client.Get(ctx, tokenKey(token)).Result()
	if err == redis.Nil {
		return nil // Already gone, logout stays idempotent.
	}
	if err != nil {
		return fmt.Errorf("failed to look up refresh token: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, tokenKey(token))
		pipe.Del(ctx, userKey(userID))
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to delete refresh token")
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}

	return nil
}

func (s *RedisSessionStore) BlacklistAccessToken(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // Token already expired on its own.
	}

	if err := s.client.Set(ctx, blacklistKey(token), "1", ttl).Err(); err != nil {
		s.logger.WithError(err).Error("Failed to blacklist access token")
		return fmt.Errorf("failed to blacklist access token: %w", err)
	}

	return nil
}

func (s *RedisSessionStore) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	exists, err := s.client.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists > 0, nil
}
