package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
)

const keyPrefix = "era:session:"

type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store keeps editor sessions as plain string keys holding the subject.
type Store struct {
	client *goredis.Client
}

func New(cfg Config) (*Store, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "localhost:6379"
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Create(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	sessionID := uuid.NewString()
	if err := s.client.Set(ctx, sessionKey(sessionID), subject, ttl).Err(); err != nil {
		return "", domain.WrapError(domain.ErrTemporary, "create session", err)
	}
	return sessionID, nil
}

// Touch returns the session subject and resets its TTL in one round trip.
func (s *Store) Touch(ctx context.Context, sessionID string, ttl time.Duration) (string, error) {
	subject, err := s.client.GetEx(ctx, sessionKey(sessionID), ttl).Result()
	if errors.Is(err, goredis.Nil) {
		return "", domain.WrapError(domain.ErrUnauthorized, "touch session", errors.New("session expired or unknown"))
	}
	if err != nil {
		return "", domain.WrapError(domain.ErrTemporary, "touch session", err)
	}
	return subject, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "delete session", err)
	}
	return nil
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}
