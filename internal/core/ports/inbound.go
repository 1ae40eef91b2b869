package ports

import (
	"context"
	"io"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
)

// ErrorSubmitter is the inbound contract for new error reports.
type ErrorSubmitter interface {
	Submit(ctx context.Context, rawError, language string) (*domain.ErrorRecord, error)
}

// DuplicateFinder reports the best near-identical recent error, if any.
// It never fails: lookup problems surface as "no match".
type DuplicateFinder interface {
	FindDuplicate(ctx context.Context, target domain.DuplicateTarget) (domain.MatchResult, bool)
}

// ReviewService is the inbound contract for the editor workflow.
type ReviewService interface {
	Queue(ctx context.Context, status string) ([]domain.ErrorRecord, error)
	Review(ctx context.Context, id string) (*domain.ReviewPage, error)
	Save(ctx context.Context, cmd domain.ReviewCommand) (*domain.ErrorRecord, error)
	Dashboard(ctx context.Context) (*domain.DashboardStats, error)
	Export(ctx context.Context, status string, w io.Writer) error
	ExportContentType() string
}

// Authenticator handles editor login and session checks.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, sessionID string) error
	Authenticate(ctx context.Context, sessionID string) (string, error)
}
