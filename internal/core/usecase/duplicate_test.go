package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
	"github.com/kirillkom/error-review-admin/internal/core/ports"
)

type candidateSourceFake struct {
	candidates []domain.CandidateProjection
	err        error
	block      bool

	calls     int
	excludeID string
	limit     int
}

func (f *candidateSourceFake) RecentCandidates(ctx context.Context, excludeID string, limit int) ([]domain.CandidateProjection, error) {
	f.calls++
	f.excludeID = excludeID
	f.limit = limit
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

type duplicateObserverFake struct {
	outcomes []string
	scores   []float64
}

func (f *duplicateObserverFake) ObserveDuplicateCheck(outcome string, score float64, _ time.Duration) {
	f.outcomes = append(f.outcomes, outcome)
	f.scores = append(f.scores, score)
}

// scoreByText scores identical non-empty texts as 100 and otherwise looks the
// candidate text up in a fixed table.
func scoreByText(table map[string]float64) ports.SimilarityFunc {
	return func(a, b string) float64 {
		if a == "" || b == "" {
			return 0
		}
		if a == b {
			return 100
		}
		if score, ok := table[b]; ok {
			return score
		}
		return table[a]
	}
}

func TestFindDuplicateIdenticalTextMatches(t *testing.T) {
	const text = "TypeError: cannot read property 'x' of undefined"
	source := &candidateSourceFake{candidates: []domain.CandidateProjection{
		{ID: "cand-1", RawError: text, Status: domain.StatusPublished},
	}}
	observer := &duplicateObserverFake{}
	uc := NewDuplicateFinderUseCase(source, scoreByText(nil), observer)

	match, ok := uc.FindDuplicate(context.Background(), domain.DuplicateTarget{ID: "target", RawError: text})
	if !ok {
		t.Fatalf("expected match")
	}
	want := domain.MatchResult{ID: "cand-1", Score: 100, Status: domain.StatusPublished}
	if match != want {
		t.Fatalf("expected %+v, got %+v", want, match)
	}
	if len(observer.outcomes) != 1 || observer.outcomes[0] != DuplicateOutcomeMatch {
		t.Fatalf("expected match outcome, got %+v", observer.outcomes)
	}
}

func TestFindDuplicateUnrelatedCandidatesYieldNoMatch(t *testing.T) {
	source := &candidateSourceFake{candidates: []domain.CandidateProjection{
		{ID: "a", RawError: "five", Status: domain.StatusPublished},
		{ID: "b", RawError: "twelve", Status: domain.StatusUnpublished},
		{ID: "c", RawError: "thirty", Status: domain.StatusRejected},
	}}
	sim := scoreByText(map[string]float64{"five": 5, "twelve": 12, "thirty": 30})
	uc := NewDuplicateFinderUseCase(source, sim, nil)

	if match, ok := uc.FindDuplicate(context.Background(), domain.DuplicateTarget{ID: "t", RawError: "NullPointerException at line 42"}); ok {
		t.Fatalf("expected no match, got %+v", match)
	}
}

func TestFindDuplicateTieKeepsMostRecent(t *testing.T) {
	// The pool is newest first, so "newer" precedes "older".
	source := &candidateSourceFake{candidates: []domain.CandidateProjection{
		{ID: "newer", RawError: "newer text", Status: domain.StatusUnpublished},
		{ID: "older", RawError: "older text", Status: domain.StatusPublished},
	}}
	sim := scoreByText(map[string]float64{"newer text": 95, "older text": 95})
	uc := NewDuplicateFinderUseCase(source, sim, nil)

	match, ok := uc.FindDuplicate(context.Background(), domain.DuplicateTarget{ID: "t", RawError: "target"})
	if !ok {
		t.Fatalf("expected match")
	}
	if match.ID != "newer" {
		t.Fatalf("expected most recent candidate to win tie, got %s", match.ID)
	}
}

func TestFindDuplicateEmptyTargetYieldsNoMatch(t *testing.T) {
	source := &candidateSourceFake{candidates: []domain.CandidateProjection{
		{ID: "a", RawError: "something broke", Status: domain.StatusPublished},
		{ID: "b", RawError: "another failure", Status: domain.StatusPublished},
	}}
	uc := NewDuplicateFinderUseCase(source, scoreByText(nil), nil)

	if _, ok := uc.FindDuplicate(context.Background(), domain.DuplicateTarget{ID: "t", RawError: ""}); ok {
		t.Fatalf("expected no match for empty target")
	}
}

func TestFindDuplicateStoreFailureYieldsNoMatch(t *testing.T) {
	source := &candidateSourceFake{err: errors.New("connection refused")}
	observer := &duplicateObserverFake{}
	uc := NewDuplicateFinderUseCase(source, scoreByText(nil), observer)

	if _, ok := uc.FindDuplicate(context.Background(), domain.DuplicateTarget{ID: "t", RawError: "x"}); ok {
		t.Fatalf("expected no match on store failure")
	}
	if len(observer.outcomes) != 1 || observer.outcomes[0] != DuplicateOutcomeStoreError {
		t.Fatalf("expected store_error outcome, got %+v", observer.outcomes)
	}
}

func TestFindDuplicateDeadlineYieldsNoMatch(t *testing.T) {
	source := &candidateSourceFake{block: true}
	uc := NewDuplicateFinderUseCase(source, scoreByText(nil), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	done := make(chan bool, 1)
	go func() {
		_, ok := uc.FindDuplicate(ctx, domain.DuplicateTarget{ID: "t", RawError: "x"})
		done <- ok
	}()

	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected no match after deadline")
		}
	case <-time.After(time.Second):
		t.Fatalf("duplicate lookup did not honor the deadline")
	}
}

func TestFindDuplicateEmptyPool(t *testing.T) {
	source := &candidateSourceFake{}
	uc := NewDuplicateFinderUseCase(source, scoreByText(nil), nil)

	if _, ok := uc.FindDuplicate(context.Background(), domain.DuplicateTarget{ID: "t", RawError: "x"}); ok {
		t.Fatalf("expected no match for empty pool")
	}
	if source.calls != 1 {
		t.Fatalf("expected a single store read, got %d", source.calls)
	}
}

func TestFindDuplicateRequestsBoundedPoolExcludingTarget(t *testing.T) {
	source := &candidateSourceFake{}
	uc := NewDuplicateFinderUseCase(source, scoreByText(nil), nil)

	uc.FindDuplicate(context.Background(), domain.DuplicateTarget{ID: "target-id", RawError: "x"})
	if source.excludeID != "target-id" {
		t.Fatalf("expected exclude id target-id, got %q", source.excludeID)
	}
	if source.limit != DuplicateCandidateLimit {
		t.Fatalf("expected limit %d, got %d", DuplicateCandidateLimit, source.limit)
	}
}

func TestFindDuplicateComparesAtMostHundredCandidates(t *testing.T) {
	candidates := make([]domain.CandidateProjection, 0, 500)
	for i := 0; i < 500; i++ {
		candidates = append(candidates, domain.CandidateProjection{
			ID:       fmt.Sprintf("c-%d", i),
			RawError: fmt.Sprintf("text-%d", i),
			Status:   domain.StatusPublished,
		})
	}
	// Only the tail of the oversized pool matches; it must not be reached.
	candidates[450].RawError = "target"

	compared := 0
	sim := ports.SimilarityFunc(func(a, b string) float64 {
		compared++
		if a == b {
			return 100
		}
		return 0
	})
	uc := NewDuplicateFinderUseCase(&candidateSourceFake{candidates: candidates}, sim, nil)

	if _, ok := uc.FindDuplicate(context.Background(), domain.DuplicateTarget{ID: "t", RawError: "target"}); ok {
		t.Fatalf("expected no match beyond the first %d candidates", DuplicateCandidateLimit)
	}
	if compared != DuplicateCandidateLimit {
		t.Fatalf("expected %d comparisons, got %d", DuplicateCandidateLimit, compared)
	}
}

func TestFindDuplicateIsDeterministic(t *testing.T) {
	source := &candidateSourceFake{candidates: []domain.CandidateProjection{
		{ID: "a", RawError: "a", Status: domain.StatusPublished},
		{ID: "b", RawError: "b", Status: domain.StatusRejected},
	}}
	sim := scoreByText(map[string]float64{"a": 85, "b": 90})
	uc := NewDuplicateFinderUseCase(source, sim, nil)

	target := domain.DuplicateTarget{ID: "t", RawError: "target"}
	first, ok1 := uc.FindDuplicate(context.Background(), target)
	second, ok2 := uc.FindDuplicate(context.Background(), target)
	if ok1 != ok2 || first != second {
		t.Fatalf("expected identical results, got %+v/%v and %+v/%v", first, ok1, second, ok2)
	}
	if first.ID != "b" {
		t.Fatalf("expected highest scoring candidate b, got %s", first.ID)
	}
}

func TestSelectBestMatchThresholdIsStrict(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  bool
	}{
		{name: "exactly threshold", score: 80, want: false},
		{name: "just above threshold", score: 80.01, want: true},
		{name: "below threshold", score: 79.99, want: false},
		{name: "perfect", score: 100, want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sim := ports.SimilarityFunc(func(string, string) float64 { return tc.score })
			match, ok := SelectBestMatch(
				domain.DuplicateTarget{ID: "t", RawError: "x"},
				[]domain.CandidateProjection{{ID: "c", RawError: "y", Status: domain.StatusPublished}},
				sim,
			)
			if ok != tc.want {
				t.Fatalf("score %.2f: expected match=%v, got %v", tc.score, tc.want, ok)
			}
			if ok && match.Score != tc.score {
				t.Fatalf("expected score %.2f, got %.2f", tc.score, match.Score)
			}
		})
	}
}

func TestSelectBestMatchReturnsGlobalMaximum(t *testing.T) {
	scores := map[string]float64{"c1": 81, "c2": 97, "c3": 85, "c4": 96.5, "c5": 12}
	candidates := []domain.CandidateProjection{
		{ID: "c1", RawError: "c1"},
		{ID: "c2", RawError: "c2"},
		{ID: "c3", RawError: "c3"},
		{ID: "c4", RawError: "c4"},
		{ID: "c5", RawError: "c5"},
	}
	sim := ports.SimilarityFunc(func(_, b string) float64 { return scores[b] })

	match, ok := SelectBestMatch(domain.DuplicateTarget{ID: "t", RawError: "t"}, candidates, sim)
	if !ok {
		t.Fatalf("expected match")
	}
	for id, score := range scores {
		if match.Score < score {
			t.Fatalf("returned score %.2f is below candidate %s score %.2f", match.Score, id, score)
		}
	}
	if match.ID != "c2" {
		t.Fatalf("expected c2, got %s", match.ID)
	}
}

func TestSelectBestMatchSkipsTargetItself(t *testing.T) {
	candidates := []domain.CandidateProjection{
		{ID: "self", RawError: "same text", Status: domain.StatusUnpublished},
	}
	if match, ok := SelectBestMatch(domain.DuplicateTarget{ID: "self", RawError: "same text"}, candidates, scoreByText(nil)); ok {
		t.Fatalf("expected target to be excluded, got %+v", match)
	}
}

func TestSelectBestMatchClampsOutOfRangeScores(t *testing.T) {
	sim := ports.SimilarityFunc(func(_, b string) float64 {
		if b == "over" {
			return 250
		}
		return -3
	})
	match, ok := SelectBestMatch(
		domain.DuplicateTarget{ID: "t", RawError: "x"},
		[]domain.CandidateProjection{{ID: "neg", RawError: "neg"}, {ID: "over", RawError: "over"}},
		sim,
	)
	if !ok || match.Score != 100 || match.ID != "over" {
		t.Fatalf("expected clamped score 100 for over, got %+v ok=%v", match, ok)
	}
}
