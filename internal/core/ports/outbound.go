package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
)

// ErrorRepository persists and reads error records.
type ErrorRepository interface {
	Create(ctx context.Context, record *domain.ErrorRecord) error
	GetByID(ctx context.Context, id string) (*domain.ErrorRecord, error)
	FindByHash(ctx context.Context, hash string) (*domain.ErrorRecord, error)
	ListByStatus(ctx context.Context, status domain.ErrorStatus, limit int) ([]domain.ErrorRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ErrorRecord, error)
	SaveReview(ctx context.Context, id string, update domain.ReviewUpdate) (*domain.ErrorRecord, error)
	SaveSolution(ctx context.Context, id string, solution domain.Solution) error
	CountStats(ctx context.Context, since time.Time) (domain.StatusCounts, error)
}

// CandidateSource supplies the duplicate comparison pool: at most limit
// records newest first, excluding excludeID, in a single read.
type CandidateSource interface {
	RecentCandidates(ctx context.Context, excludeID string, limit int) ([]domain.CandidateProjection, error)
}

// TextSimilarity scores two texts on a 0..100 scale. Implementations must be
// symmetric and deterministic.
type TextSimilarity interface {
	Score(a, b string) float64
}

// SimilarityFunc adapts a plain function to TextSimilarity.
type SimilarityFunc func(a, b string) float64

func (f SimilarityFunc) Score(a, b string) float64 {
	return f(a, b)
}

// DuplicateObserver records duplicate lookup outcomes.
type DuplicateObserver interface {
	ObserveDuplicateCheck(outcome string, score float64, duration time.Duration)
}

// MessageQueue publishes/consumes submission events.
type MessageQueue interface {
	PublishErrorSubmitted(ctx context.Context, errorID string) error
	SubscribeErrorSubmitted(ctx context.Context, handler func(context.Context, string) error) error
}

// SolutionDrafter produces a first-pass fix for a raw error.
type SolutionDrafter interface {
	DraftSolution(ctx context.Context, rawError, language string) (domain.Solution, error)
}

// SessionStore keeps editor sessions with sliding expiry.
type SessionStore interface {
	Create(ctx context.Context, subject string, ttl time.Duration) (string, error)
	Touch(ctx context.Context, sessionID string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, sessionID string) error
}

// Slugifier turns a published title into a URL slug.
type Slugifier interface {
	Slug(title string) string
}

// RecordExporter writes records in a downloadable format.
type RecordExporter interface {
	ContentType() string
	Export(w io.Writer, records []domain.ErrorRecord) error
}
