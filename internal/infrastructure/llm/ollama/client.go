package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
	"github.com/kirillkom/error-review-admin/internal/infrastructure/resilience"
)

const draftOperation = "ollama.draft_solution"

type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// WithExecutor routes drafting attempts through retries and a circuit breaker.
func (c *Client) WithExecutor(executor *resilience.Executor) *Client {
	c.executor = executor
	return c
}

// Drafter asks the model for a structured solution to a raw error.
type Drafter struct {
	client *Client
}

func NewDrafter(client *Client) *Drafter {
	return &Drafter{client: client}
}

// DraftSolution runs generate and parse as one attempt, so a reply that is
// not a usable solution is retried like a transient upstream failure.
func (d *Drafter) DraftSolution(ctx context.Context, rawError, language string) (domain.Solution, error) {
	prompt := buildSolutionPrompt(rawError, language)
	solution, err := resilience.Call(ctx, d.client.executor, draftOperation, func(callCtx context.Context) (domain.Solution, error) {
		reply, err := d.client.generate(callCtx, prompt)
		if err != nil {
			return domain.Solution{}, err
		}
		return parseSolution(reply)
	}, classifyDraftError)
	if err != nil {
		return domain.Solution{}, markTemporary("draft solution", err)
	}
	return solution, nil
}

func parseSolution(reply string) (domain.Solution, error) {
	var solution domain.Solution
	if err := json.Unmarshal([]byte(extractJSONObject(reply)), &solution); err != nil {
		return domain.Solution{}, &malformedDraftError{reason: "invalid json", err: err}
	}
	solution.Title = strings.TrimSpace(solution.Title)
	if solution.Title == "" {
		return domain.Solution{}, &malformedDraftError{reason: "empty title"}
	}
	if solution.Steps == nil {
		solution.Steps = []string{}
	}
	return solution, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
