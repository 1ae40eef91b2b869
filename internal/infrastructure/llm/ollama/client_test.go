package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
	"github.com/kirillkom/error-review-admin/internal/infrastructure/resilience"
)

func TestDrafterParsesSolution(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		inner := `Sure! {"title":" Nil map write ","explanation":"map is nil","rootCause":"missing make","steps":["init map"],"fixedCode":"m := map[string]int{}","prevention":"use constructors"}`
		_ = json.NewEncoder(w).Encode(map[string]string{"response": inner})
	}))
	defer server.Close()

	drafter := NewDrafter(New(server.URL, "gen"))
	solution, err := drafter.DraftSolution(context.Background(), "panic: assignment to entry in nil map", "go")
	if err != nil {
		t.Fatalf("DraftSolution() error = %v", err)
	}
	if solution.Title != "Nil map write" {
		t.Fatalf("unexpected title %q", solution.Title)
	}
	if solution.RootCause != "missing make" || len(solution.Steps) != 1 {
		t.Fatalf("unexpected solution: %+v", solution)
	}
	if captured["format"] != "json" || captured["model"] != "gen" {
		t.Fatalf("unexpected request payload: %+v", captured)
	}
	prompt, _ := captured["prompt"].(string)
	if !strings.Contains(prompt, "assignment to entry in nil map") || !strings.Contains(prompt, "Language: go") {
		t.Fatalf("unexpected prompt: %s", prompt)
	}
}

func TestDrafterRejectsEmptyTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"{\"title\":\"  \"}"}`))
	}))
	defer server.Close()

	_, err := NewDrafter(New(server.URL, "gen")).DraftSolution(context.Background(), "boom", "")
	if err == nil {
		t.Fatalf("expected error for empty title")
	}
}

func TestGenerateIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewDrafter(New(server.URL, "gen")).DraftSolution(context.Background(), "boom", "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be temporary, got %v", err)
	}
}

func TestGenerateRetriesThroughExecutor(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":"{\"title\":\"Fixed\"}"}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen").WithExecutor(resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1,
	}))
	solution, err := NewDrafter(client).DraftSolution(context.Background(), "boom", "")
	if err != nil {
		t.Fatalf("DraftSolution() error = %v", err)
	}
	if solution.Title != "Fixed" || calls.Load() != 2 {
		t.Fatalf("expected retry then success, got title=%q calls=%d", solution.Title, calls.Load())
	}
}

func TestDrafterRetriesMalformedReply(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"response":"I think the fix is to initialise the map."}`))
			return
		}
		_, _ = w.Write([]byte(`{"response":"{\"title\":\"Initialise the map\"}"}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen").WithExecutor(resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1,
		BreakerEnabled:      true,
	}))
	solution, err := NewDrafter(client).DraftSolution(context.Background(), "panic: assignment to entry in nil map", "go")
	if err != nil {
		t.Fatalf("DraftSolution() error = %v", err)
	}
	if solution.Title != "Initialise the map" || calls.Load() != 2 {
		t.Fatalf("expected malformed reply to be retried, got title=%q calls=%d", solution.Title, calls.Load())
	}
}

func TestDrafterGivesUpOnPersistentEmptyTitle(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"response":"{\"title\":\"\"}"}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen").WithExecutor(resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1,
	}))
	_, err := NewDrafter(client).DraftSolution(context.Background(), "boom", "")
	if err == nil || !strings.Contains(err.Error(), "empty title") {
		t.Fatalf("expected empty title error, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected every attempt to be used, got %d", calls.Load())
	}
}

func TestClassifyDraftError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "429", err: &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, retryable: true, record: true},
		{name: "400", err: &HTTPStatusError{StatusCode: http.StatusBadRequest}},
		{name: "malformed", err: &malformedDraftError{reason: "empty title"}, retryable: true},
		{name: "canceled", err: context.Canceled},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			class := classifyDraftError(tc.err)
			if class.Retryable != tc.retryable || class.RecordFailure != tc.record {
				t.Fatalf("unexpected classification %+v", class)
			}
		})
	}
}
