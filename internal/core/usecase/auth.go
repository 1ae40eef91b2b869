package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
	"github.com/kirillkom/error-review-admin/internal/core/ports"
)

// ErrAuthNotConfigured is returned when admin credentials are missing.
var ErrAuthNotConfigured = errors.New("server misconfiguration")

var errInvalidCredentials = errors.New("invalid credentials")

type AuthConfig struct {
	AdminEmail        string
	AdminPasswordHash string
	SessionTTL        time.Duration
}

type AuthUseCase struct {
	cfg      AuthConfig
	sessions ports.SessionStore
}

func NewAuthUseCase(cfg AuthConfig, sessions ports.SessionStore) *AuthUseCase {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &AuthUseCase{cfg: cfg, sessions: sessions}
}

func (uc *AuthUseCase) SessionTTL() time.Duration {
	return uc.cfg.SessionTTL
}

func (uc *AuthUseCase) Login(ctx context.Context, email, password string) (string, error) {
	adminEmail := strings.TrimSpace(uc.cfg.AdminEmail)
	if adminEmail == "" || uc.cfg.AdminPasswordHash == "" {
		return "", ErrAuthNotConfigured
	}

	// Email must match exactly. The hash is compared on every attempt.
	hashErr := bcrypt.CompareHashAndPassword([]byte(uc.cfg.AdminPasswordHash), []byte(password))
	if email != adminEmail || hashErr != nil {
		return "", domain.WrapError(domain.ErrUnauthorized, "login", errInvalidCredentials)
	}

	sessionID, err := uc.sessions.Create(ctx, adminEmail, uc.cfg.SessionTTL)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sessionID, nil
}

func (uc *AuthUseCase) Logout(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	if err := uc.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Authenticate resolves a session to its subject and extends its lifetime.
func (uc *AuthUseCase) Authenticate(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", domain.WrapError(domain.ErrUnauthorized, "authenticate", errors.New("missing session"))
	}
	subject, err := uc.sessions.Touch(ctx, sessionID, uc.cfg.SessionTTL)
	if err != nil {
		return "", fmt.Errorf("touch session: %w", err)
	}
	return subject, nil
}
