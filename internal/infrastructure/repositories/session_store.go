package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const sessionTokenKey = "folio:session_token"

// SessionTokenStore persists the brokerage session token in redis so
// restarts can reuse a live session instead of logging in again.
type SessionTokenStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewSessionTokenStore connects to redis and verifies the connection. The
// token is kept for ttl, matching the upstream session lifetime.
func NewSessionTokenStore(addr, password string, db int, ttl time.Duration, logger *zap.Logger) (*SessionTokenStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &SessionTokenStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}, nil
}

// Load returns the persisted token, empty when none is stored
func (s *SessionTokenStore) Load(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, sessionTokenKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session token: %w", err)
	}
	return token, nil
}

// Save persists the token
func (s *SessionTokenStore) Save(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, sessionTokenKey, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session token: %w", err)
	}
	s.logger.Debug("session token persisted")
	return nil
}

// Close releases the redis connection
func (s *SessionTokenStore) Close() error {
	return s.client.Close()
}
