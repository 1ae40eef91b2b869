package usecase

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
	"github.com/kirillkom/error-review-admin/internal/core/ports"
)

const (
	// DuplicateThreshold is exclusive: a score must be strictly greater.
	DuplicateThreshold = 80.0
	// DuplicateCandidateLimit bounds the comparison pool to the newest records.
	DuplicateCandidateLimit = 100
)

const (
	DuplicateOutcomeMatch      = "match"
	DuplicateOutcomeNoMatch    = "no_match"
	DuplicateOutcomeStoreError = "store_error"
)

type DuplicateFinderUseCase struct {
	candidates ports.CandidateSource
	similarity ports.TextSimilarity
	observer   ports.DuplicateObserver
}

func NewDuplicateFinderUseCase(
	candidates ports.CandidateSource,
	similarity ports.TextSimilarity,
	observer ports.DuplicateObserver,
) *DuplicateFinderUseCase {
	return &DuplicateFinderUseCase{
		candidates: candidates,
		similarity: similarity,
		observer:   observer,
	}
}

// FindDuplicate compares the target with the newest stored errors and returns
// the best match above DuplicateThreshold. Store failures, including an
// expired ctx deadline, are logged and reported as no match.
func (uc *DuplicateFinderUseCase) FindDuplicate(ctx context.Context, target domain.DuplicateTarget) (domain.MatchResult, bool) {
	start := time.Now()

	candidates, err := uc.candidates.RecentCandidates(ctx, target.ID, DuplicateCandidateLimit)
	if err != nil {
		slog.Warn("duplicate_lookup_failed",
			"error_id", target.ID,
			"error", err,
		)
		uc.observe(DuplicateOutcomeStoreError, 0, start)
		return domain.MatchResult{}, false
	}
	if len(candidates) > DuplicateCandidateLimit {
		candidates = candidates[:DuplicateCandidateLimit]
	}

	match, ok := SelectBestMatch(target, candidates, uc.similarity)
	if !ok {
		uc.observe(DuplicateOutcomeNoMatch, 0, start)
		return domain.MatchResult{}, false
	}
	uc.observe(DuplicateOutcomeMatch, match.Score, start)
	return match, true
}

func (uc *DuplicateFinderUseCase) observe(outcome string, score float64, start time.Time) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveDuplicateCheck(outcome, score, time.Since(start))
}

// SelectBestMatch folds over candidates in the given order. A candidate only
// replaces the running best on a strictly higher score, so the earliest
// candidate (the most recent one) wins ties. Candidates carrying the target's
// own id are ignored.
func SelectBestMatch(
	target domain.DuplicateTarget,
	candidates []domain.CandidateProjection,
	similarity ports.TextSimilarity,
) (domain.MatchResult, bool) {
	best := foldCandidates(candidates, domain.MatchResult{}, func(acc domain.MatchResult, c domain.CandidateProjection) domain.MatchResult {
		if target.ID != "" && c.ID == target.ID {
			return acc
		}
		score := clampScore(similarity.Score(target.RawError, c.RawError))
		if score > acc.Score {
			return domain.MatchResult{ID: c.ID, Score: score, Status: c.Status}
		}
		return acc
	})

	if best.Score > DuplicateThreshold {
		return best, true
	}
	return domain.MatchResult{}, false
}

func foldCandidates[A any](items []domain.CandidateProjection, acc A, step func(A, domain.CandidateProjection) A) A {
	for _, item := range items {
		acc = step(acc, item)
	}
	return acc
}

func clampScore(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
