package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
	"github.com/kirillkom/error-review-admin/internal/core/ports"
)

const (
	defaultQueuePageSize       = 50
	defaultDuplicateLookupWait = 2 * time.Second
	recentActivityLimit        = 10
	exportRowLimit             = 1000
)

type ReviewOptions struct {
	QueuePageSize          int
	DuplicateLookupTimeout time.Duration
}

type ReviewUseCase struct {
	repo       ports.ErrorRepository
	duplicates ports.DuplicateFinder
	slugifier  ports.Slugifier
	exporter   ports.RecordExporter
	opts       ReviewOptions
	now        func() time.Time
}

func NewReviewUseCase(
	repo ports.ErrorRepository,
	duplicates ports.DuplicateFinder,
	slugifier ports.Slugifier,
	exporter ports.RecordExporter,
	opts ReviewOptions,
) *ReviewUseCase {
	if opts.QueuePageSize <= 0 {
		opts.QueuePageSize = defaultQueuePageSize
	}
	if opts.DuplicateLookupTimeout <= 0 {
		opts.DuplicateLookupTimeout = defaultDuplicateLookupWait
	}
	return &ReviewUseCase{
		repo:       repo,
		duplicates: duplicates,
		slugifier:  slugifier,
		exporter:   exporter,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ReviewUseCase) Queue(ctx context.Context, status string) ([]domain.ErrorRecord, error) {
	parsed, err := parseStatusOrDefault(status, domain.StatusUnpublished)
	if err != nil {
		return nil, err
	}
	records, err := uc.repo.ListByStatus(ctx, parsed, uc.opts.QueuePageSize)
	if err != nil {
		return nil, fmt.Errorf("list review queue: %w", err)
	}
	return records, nil
}

// Review loads a record together with its most likely duplicate. The
// duplicate lookup runs under its own deadline and never fails the page.
func (uc *ReviewUseCase) Review(ctx context.Context, id string) (*domain.ReviewPage, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "review error", errors.New("missing id"))
	}
	record, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch error record: %w", err)
	}

	page := &domain.ReviewPage{Error: record}
	if uc.duplicates == nil {
		return page, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, uc.opts.DuplicateLookupTimeout)
	defer cancel()
	if match, ok := uc.duplicates.FindDuplicate(lookupCtx, domain.DuplicateTarget{ID: record.ID, RawError: record.RawError}); ok {
		page.Duplicate = &match
	}
	return page, nil
}

func (uc *ReviewUseCase) Save(ctx context.Context, cmd domain.ReviewCommand) (*domain.ErrorRecord, error) {
	id := strings.TrimSpace(cmd.ID)
	if id == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "save review", errors.New("missing id"))
	}
	status, ok := domain.ParseErrorStatus(cmd.Status)
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "save review", fmt.Errorf("invalid status %q", cmd.Status))
	}

	title := strings.TrimSpace(cmd.Title)
	now := uc.now()
	update := domain.ReviewUpdate{
		Title:       title,
		Explanation: cmd.Explanation,
		RootCause:   cmd.RootCause,
		FixedCode:   cmd.FixedCode,
		Prevention:  cmd.Prevention,
		Status:      status,
		UpdatedAt:   now,
	}
	if status == domain.StatusPublished {
		if title == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "save review", errors.New("title required for publishing"))
		}
		slug := uc.slugifier.Slug(title)
		update.FormattedSlug = &slug
		update.PublishedAt = &now
	}

	record, err := uc.repo.SaveReview(ctx, id, update)
	if err != nil {
		return nil, fmt.Errorf("save review: %w", err)
	}
	return record, nil
}

func (uc *ReviewUseCase) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	counts, err := uc.repo.CountStats(ctx, startOfDayUTC(uc.now()))
	if err != nil {
		return nil, fmt.Errorf("count error stats: %w", err)
	}
	recent, err := uc.repo.ListRecent(ctx, recentActivityLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent errors: %w", err)
	}
	if recent == nil {
		recent = []domain.ErrorRecord{}
	}
	return &domain.DashboardStats{
		TotalErrors:     counts.Total,
		PendingErrors:   counts.Pending,
		PublishedErrors: counts.Published,
		TodayErrors:     counts.Today,
		RecentActivity:  recent,
	}, nil
}

func (uc *ReviewUseCase) Export(ctx context.Context, status string, w io.Writer) error {
	if uc.exporter == nil {
		return errors.New("export is not configured")
	}
	parsed, err := parseStatusOrDefault(status, domain.StatusPublished)
	if err != nil {
		return err
	}
	records, err := uc.repo.ListByStatus(ctx, parsed, exportRowLimit)
	if err != nil {
		return fmt.Errorf("list export records: %w", err)
	}
	if err := uc.exporter.Export(w, records); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func (uc *ReviewUseCase) ExportContentType() string {
	if uc.exporter == nil {
		return "application/octet-stream"
	}
	return uc.exporter.ContentType()
}

func parseStatusOrDefault(raw string, fallback domain.ErrorStatus) (domain.ErrorStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	status, ok := domain.ParseErrorStatus(raw)
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "parse status", fmt.Errorf("invalid status %q", raw))
	}
	return status, nil
}

func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
