package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/error-review-admin/internal/config"
	"github.com/kirillkom/error-review-admin/internal/core/ports"
	"github.com/kirillkom/error-review-admin/internal/core/usecase"
	"github.com/kirillkom/error-review-admin/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/error-review-admin/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/error-review-admin/internal/infrastructure/queue/nats"
	"github.com/kirillkom/error-review-admin/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/error-review-admin/internal/infrastructure/resilience"
	"github.com/kirillkom/error-review-admin/internal/infrastructure/session/redis"
	"github.com/kirillkom/error-review-admin/internal/infrastructure/similarity"
	"github.com/kirillkom/error-review-admin/internal/infrastructure/slug"
	"github.com/kirillkom/error-review-admin/internal/observability/metrics"
)

// shared is what both processes need: the store, the queue and the
// resilience executor guarding outbound calls.
type shared struct {
	db       *sql.DB
	repo     *postgres.ErrorRepository
	queue    *nats.Queue
	executor *resilience.Executor
}

func newShared(ctx context.Context, cfg config.Config) (*shared, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewErrorRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	return &shared{db: db, repo: repo, queue: queue, executor: executor}, nil
}

func (s *shared) close() {
	s.queue.Close()
	_ = s.db.Close()
}

// API holds the HTTP process dependencies.
type API struct {
	Config config.Config

	SubmitUC *usecase.SubmitErrorUseCase
	ReviewUC *usecase.ReviewUseCase
	AuthUC   *usecase.AuthUseCase

	HTTPMetrics *metrics.HTTPServerMetrics

	closeFn func()
}

func NewAPI(ctx context.Context, cfg config.Config, service string) (*API, error) {
	s, err := newShared(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sessions, err := redis.New(redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		s.close()
		return nil, fmt.Errorf("init session store: %w", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	duplicates := usecase.NewDuplicateFinderUseCase(s.repo, similarity.NewDice(), httpMetrics)

	return &API{
		Config: cfg,

		SubmitUC: usecase.NewSubmitErrorUseCase(s.repo, s.queue),
		ReviewUC: usecase.NewReviewUseCase(s.repo, duplicates, slug.New(), xlsx.New(), usecase.ReviewOptions{
			QueuePageSize:          cfg.QueuePageSize,
			DuplicateLookupTimeout: cfg.DuplicateLookupTimeout,
		}),
		AuthUC: usecase.NewAuthUseCase(usecase.AuthConfig{
			AdminEmail:        cfg.AdminEmail,
			AdminPasswordHash: cfg.AdminPasswordHash,
			SessionTTL:        cfg.SessionTTL,
		}, sessions),

		HTTPMetrics: httpMetrics,

		closeFn: func() {
			_ = sessions.Close()
			s.close()
		},
	}, nil
}

func (a *API) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// Worker holds the drafting process dependencies. It does not touch Redis.
type Worker struct {
	Config config.Config

	Queue   ports.MessageQueue
	DraftUC *usecase.DraftSolutionUseCase

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	s, err := newShared(ctx, cfg)
	if err != nil {
		return nil, err
	}

	drafter := ollama.NewDrafter(ollama.New(cfg.OllamaURL, cfg.OllamaGenModel).WithExecutor(s.executor))
	return &Worker{
		Config:  cfg,
		Queue:   s.queue,
		DraftUC: usecase.NewDraftSolutionUseCase(s.repo, drafter),
		closeFn: s.close,
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
