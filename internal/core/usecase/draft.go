package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
	"github.com/kirillkom/error-review-admin/internal/core/ports"
)

// DraftOutcome describes what Draft did with a record.
type DraftOutcome string

const (
	DraftOutcomeDrafted DraftOutcome = "drafted"
	DraftOutcomeSkipped DraftOutcome = "skipped"
	DraftOutcomeFailed  DraftOutcome = "failed"
)

type DraftSolutionUseCase struct {
	repo    ports.ErrorRepository
	drafter ports.SolutionDrafter
	onLag   func(time.Duration)
}

func NewDraftSolutionUseCase(repo ports.ErrorRepository, drafter ports.SolutionDrafter) *DraftSolutionUseCase {
	return &DraftSolutionUseCase{
		repo:    repo,
		drafter: drafter,
	}
}

// WithLagObserver reports the age of each record picked up for drafting.
func (uc *DraftSolutionUseCase) WithLagObserver(observe func(time.Duration)) *DraftSolutionUseCase {
	uc.onLag = observe
	return uc
}

// Draft attaches a generated solution to an unpublished record that has none.
// Records already reviewed or drafted are left untouched.
func (uc *DraftSolutionUseCase) Draft(ctx context.Context, errorID string) (DraftOutcome, error) {
	record, err := uc.repo.GetByID(ctx, errorID)
	if err != nil {
		return DraftOutcomeFailed, fmt.Errorf("fetch error record: %w", err)
	}
	if uc.onLag != nil && !record.CreatedAt.IsZero() {
		uc.onLag(time.Since(record.CreatedAt))
	}
	if record.Status != domain.StatusUnpublished || record.Solution.IsDrafted() {
		slog.Info("draft_skipped", "error_id", errorID, "status", record.Status)
		return DraftOutcomeSkipped, nil
	}

	solution, err := uc.drafter.DraftSolution(ctx, record.RawError, record.Language)
	if err != nil {
		return DraftOutcomeFailed, fmt.Errorf("draft solution: %w", err)
	}
	if err := uc.repo.SaveSolution(ctx, errorID, solution); err != nil {
		return DraftOutcomeFailed, fmt.Errorf("save solution: %w", err)
	}
	return DraftOutcomeDrafted, nil
}
