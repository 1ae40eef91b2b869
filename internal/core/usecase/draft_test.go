package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
)

type drafterFake struct {
	solution domain.Solution
	err      error
	calls    int
	language string
}

func (f *drafterFake) DraftSolution(_ context.Context, _ string, language string) (domain.Solution, error) {
	f.calls++
	f.language = language
	if f.err != nil {
		return domain.Solution{}, f.err
	}
	return f.solution, nil
}

func TestDraftSavesGeneratedSolution(t *testing.T) {
	repo := newErrorRepoFake(domain.ErrorRecord{ID: "e-1", RawError: "boom", Language: "go", Status: domain.StatusUnpublished})
	drafter := &drafterFake{solution: domain.Solution{Title: "Fix boom", Steps: []string{"a"}}}

	outcome, err := NewDraftSolutionUseCase(repo, drafter).Draft(context.Background(), "e-1")
	if err != nil {
		t.Fatalf("Draft() error = %v", err)
	}
	if outcome != DraftOutcomeDrafted {
		t.Fatalf("expected drafted, got %s", outcome)
	}
	if repo.savedSolID != "e-1" || repo.savedSol.Title != "Fix boom" || drafter.language != "go" {
		t.Fatalf("unexpected save: id=%s sol=%+v lang=%s", repo.savedSolID, repo.savedSol, drafter.language)
	}
}

func TestDraftSkipsReviewedOrDraftedRecords(t *testing.T) {
	tests := []struct {
		name   string
		record domain.ErrorRecord
	}{
		{name: "published", record: domain.ErrorRecord{ID: "e-1", Status: domain.StatusPublished}},
		{name: "rejected", record: domain.ErrorRecord{ID: "e-1", Status: domain.StatusRejected}},
		{name: "already drafted", record: domain.ErrorRecord{ID: "e-1", Status: domain.StatusUnpublished, Solution: domain.Solution{Title: "done"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			drafter := &drafterFake{}
			outcome, err := NewDraftSolutionUseCase(newErrorRepoFake(tc.record), drafter).Draft(context.Background(), "e-1")
			if err != nil {
				t.Fatalf("Draft() error = %v", err)
			}
			if outcome != DraftOutcomeSkipped || drafter.calls != 0 {
				t.Fatalf("expected skip without drafting, got %s calls=%d", outcome, drafter.calls)
			}
		})
	}
}

func TestDraftPropagatesFailures(t *testing.T) {
	errModel := errors.New("model unavailable")
	repo := newErrorRepoFake(domain.ErrorRecord{ID: "e-1", Status: domain.StatusUnpublished})
	outcome, err := NewDraftSolutionUseCase(repo, &drafterFake{err: errModel}).Draft(context.Background(), "e-1")
	if !errors.Is(err, errModel) || outcome != DraftOutcomeFailed {
		t.Fatalf("expected drafter error, got %s %v", outcome, err)
	}

	_, err = NewDraftSolutionUseCase(newErrorRepoFake(), &drafterFake{}).Draft(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrErrorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDraftReportsQueueLag(t *testing.T) {
	created := time.Now().Add(-3 * time.Second)
	repo := newErrorRepoFake(domain.ErrorRecord{ID: "e-1", RawError: "boom", Status: domain.StatusUnpublished, CreatedAt: created})
	drafter := &drafterFake{solution: domain.Solution{Title: "Fix"}}

	var lag time.Duration
	uc := NewDraftSolutionUseCase(repo, drafter).WithLagObserver(func(d time.Duration) { lag = d })
	if _, err := uc.Draft(context.Background(), "e-1"); err != nil {
		t.Fatalf("Draft() error = %v", err)
	}
	if lag < 3*time.Second {
		t.Fatalf("expected lag of at least 3s, got %s", lag)
	}
}
