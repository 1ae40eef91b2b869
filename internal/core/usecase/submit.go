package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
	"github.com/kirillkom/error-review-admin/internal/core/ports"
)

type SubmitErrorUseCase struct {
	repo  ports.ErrorRepository
	queue ports.MessageQueue
}

func NewSubmitErrorUseCase(repo ports.ErrorRepository, queue ports.MessageQueue) *SubmitErrorUseCase {
	return &SubmitErrorUseCase{
		repo:  repo,
		queue: queue,
	}
}

func (uc *SubmitErrorUseCase) Submit(ctx context.Context, rawError, language string) (*domain.ErrorRecord, error) {
	if strings.TrimSpace(rawError) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit error", errors.New("rawError is required"))
	}

	normalized := NormalizeErrorText(rawError)
	hash := HashErrorText(normalized)
	now := time.Now().UTC()

	record := &domain.ErrorRecord{
		ID:              uuid.NewString(),
		RawError:        rawError,
		NormalizedError: normalized,
		Hash:            hash,
		Language:        strings.ToLower(strings.TrimSpace(language)),
		Solution:        domain.Solution{Steps: []string{}},
		Status:          domain.StatusUnpublished,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := uc.repo.Create(ctx, record); err != nil {
		if domain.IsKind(err, domain.ErrConflict) {
			return nil, uc.conflictError(ctx, hash, err)
		}
		return nil, fmt.Errorf("create error record: %w", err)
	}

	if err := uc.queue.PublishErrorSubmitted(ctx, record.ID); err != nil {
		return nil, fmt.Errorf("publish submission event: %w", err)
	}
	return record, nil
}

func (uc *SubmitErrorUseCase) conflictError(ctx context.Context, hash string, cause error) error {
	existing, err := uc.repo.FindByHash(ctx, hash)
	if err != nil {
		return cause
	}
	return domain.WrapError(domain.ErrConflict, "submit error", fmt.Errorf("already submitted as %s", existing.ID))
}

// NormalizeErrorText lower-cases the text and collapses whitespace runs.
func NormalizeErrorText(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

func HashErrorText(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
