package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
)

const uniqueViolationCode = "23505"

const errorColumns = `id, raw_error, normalized_error, hash, language,
	solution_title, solution_explanation, solution_root_cause, solution_steps, solution_fixed_code, solution_prevention,
	status, formatted_slug, published_at, created_at, updated_at`

type ErrorRepository struct {
	db *sql.DB
}

func NewErrorRepository(db *sql.DB) *ErrorRepository {
	return &ErrorRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ErrorRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS errors (
	id TEXT PRIMARY KEY,
	raw_error TEXT NOT NULL,
	normalized_error TEXT NOT NULL,
	hash TEXT NOT NULL UNIQUE,
	language TEXT,
	solution_title TEXT NOT NULL DEFAULT '',
	solution_explanation TEXT NOT NULL DEFAULT '',
	solution_root_cause TEXT NOT NULL DEFAULT '',
	solution_steps JSONB NOT NULL DEFAULT '[]'::jsonb,
	solution_fixed_code TEXT NOT NULL DEFAULT '',
	solution_prevention TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'UNPUBLISHED',
	formatted_slug TEXT,
	published_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_errors_status ON errors(status);
CREATE INDEX IF NOT EXISTS idx_errors_created_at ON errors(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ErrorRepository) Create(ctx context.Context, rec *domain.ErrorRecord) error {
	stepsJSON, err := marshalSteps(rec.Solution.Steps)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO errors (`+errorColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
`,
		rec.ID, rec.RawError, rec.NormalizedError, rec.Hash, nullString(rec.Language),
		rec.Solution.Title, rec.Solution.Explanation, rec.Solution.RootCause, stepsJSON, rec.Solution.FixedCode, rec.Solution.Prevention,
		string(rec.Status), nullString(rec.FormattedSlug), rec.PublishedAt, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.WrapError(domain.ErrConflict, "insert error", fmt.Errorf("hash=%s already stored", rec.Hash))
		}
		return fmt.Errorf("insert error: %w", err)
	}
	return nil
}

func (r *ErrorRepository) GetByID(ctx context.Context, id string) (*domain.ErrorRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+errorColumns+`
FROM errors
WHERE id = $1
`, id)

	rec, err := scanError(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrErrorNotFound, "get error", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan error: %w", err)
	}
	return &rec, nil
}

func (r *ErrorRepository) FindByHash(ctx context.Context, hash string) (*domain.ErrorRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+errorColumns+`
FROM errors
WHERE hash = $1
`, hash)

	rec, err := scanError(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrErrorNotFound, "find error by hash", fmt.Errorf("hash=%s", hash))
		}
		return nil, fmt.Errorf("scan error: %w", err)
	}
	return &rec, nil
}

func (r *ErrorRepository) ListByStatus(ctx context.Context, status domain.ErrorStatus, limit int) ([]domain.ErrorRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+errorColumns+`
FROM errors
WHERE status = $1
ORDER BY created_at DESC
LIMIT $2
`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list errors by status: %w", err)
	}
	return collectErrors(rows)
}

func (r *ErrorRepository) ListRecent(ctx context.Context, limit int) ([]domain.ErrorRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+errorColumns+`
FROM errors
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent errors: %w", err)
	}
	return collectErrors(rows)
}

// RecentCandidates reads the duplicate comparison pool in one query, projected
// to the columns the comparison needs.
func (r *ErrorRepository) RecentCandidates(ctx context.Context, excludeID string, limit int) ([]domain.CandidateProjection, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, raw_error, status
FROM errors
WHERE id <> $1
ORDER BY created_at DESC
LIMIT $2
`, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list duplicate candidates: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CandidateProjection, 0, limit)
	for rows.Next() {
		var c domain.CandidateProjection
		var rawError sql.NullString
		var status string
		if err := rows.Scan(&c.ID, &rawError, &status); err != nil {
			return nil, fmt.Errorf("scan duplicate candidate: %w", err)
		}
		c.RawError = rawError.String
		c.Status = domain.ErrorStatus(status)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate candidates: %w", err)
	}
	return out, nil
}

func (r *ErrorRepository) SaveReview(ctx context.Context, id string, update domain.ReviewUpdate) (*domain.ErrorRecord, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE errors
SET solution_title = $2,
	solution_explanation = $3,
	solution_root_cause = $4,
	solution_fixed_code = $5,
	solution_prevention = $6,
	status = $7,
	formatted_slug = COALESCE($8, formatted_slug),
	published_at = COALESCE($9, published_at),
	updated_at = $10
WHERE id = $1
RETURNING `+errorColumns,
		id, update.Title, update.Explanation, update.RootCause, update.FixedCode, update.Prevention,
		string(update.Status), update.FormattedSlug, update.PublishedAt, update.UpdatedAt,
	)

	rec, err := scanError(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrErrorNotFound, "save review", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("save review: %w", err)
	}
	return &rec, nil
}

func (r *ErrorRepository) SaveSolution(ctx context.Context, id string, solution domain.Solution) error {
	stepsJSON, err := marshalSteps(solution.Steps)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE errors
SET solution_title = $2, solution_explanation = $3, solution_root_cause = $4, solution_steps = $5,
	solution_fixed_code = $6, solution_prevention = $7, updated_at = $8
WHERE id = $1
`, id, solution.Title, solution.Explanation, solution.RootCause, stepsJSON, solution.FixedCode, solution.Prevention, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save solution: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save solution rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrErrorNotFound, "save solution", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *ErrorRepository) CountStats(ctx context.Context, since time.Time) (domain.StatusCounts, error) {
	var counts domain.StatusCounts
	err := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE status = $1),
	COUNT(*) FILTER (WHERE status = $2),
	COUNT(*) FILTER (WHERE created_at >= $3)
FROM errors
`, string(domain.StatusUnpublished), string(domain.StatusPublished), since).Scan(
		&counts.Total, &counts.Pending, &counts.Published, &counts.Today,
	)
	if err != nil {
		return domain.StatusCounts{}, fmt.Errorf("count errors: %w", err)
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func collectErrors(rows *sql.Rows) ([]domain.ErrorRecord, error) {
	defer rows.Close()

	out := make([]domain.ErrorRecord, 0)
	for rows.Next() {
		rec, err := scanError(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate errors: %w", err)
	}
	return out, nil
}

func scanError(row rowScanner) (domain.ErrorRecord, error) {
	var rec domain.ErrorRecord
	var language, slug sql.NullString
	var publishedAt sql.NullTime
	var stepsRaw []byte
	var status string

	err := row.Scan(
		&rec.ID, &rec.RawError, &rec.NormalizedError, &rec.Hash, &language,
		&rec.Solution.Title, &rec.Solution.Explanation, &rec.Solution.RootCause, &stepsRaw,
		&rec.Solution.FixedCode, &rec.Solution.Prevention,
		&status, &slug, &publishedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return domain.ErrorRecord{}, err
	}

	rec.Language = language.String
	rec.FormattedSlug = slug.String
	rec.Status = domain.ErrorStatus(status)
	if publishedAt.Valid {
		t := publishedAt.Time
		rec.PublishedAt = &t
	}
	rec.Solution.Steps = []string{}
	if len(stepsRaw) > 0 {
		if err := json.Unmarshal(stepsRaw, &rec.Solution.Steps); err != nil {
			return domain.ErrorRecord{}, fmt.Errorf("unmarshal solution steps: %w", err)
		}
	}
	return rec, nil
}

func marshalSteps(steps []string) ([]byte, error) {
	if steps == nil {
		steps = []string{}
	}
	raw, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("marshal solution steps: %w", err)
	}
	return raw, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
