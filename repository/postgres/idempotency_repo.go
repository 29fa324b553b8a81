package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/repository"
)

type idempotencyRepository struct {
	pool *pgxpool.Pool
}

// NewIdempotencyRepository stores idempotency records in the idempotency_records table.
func NewIdempotencyRepository(pool *pgxpool.Pool) repository.IdempotencyRepository {
	return &idempotencyRepository{pool: pool}
}

func (r *idempotencyRepository) FindByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	const query = `
	SELECT request_id, trace_id, created_at, method, path, request_hash, status_code, response_body
	FROM idempotency_records
	WHERE request_id = $1
	`
	var rec domain.IdempotencyRecord
	if err := r.pool.QueryRow(ctx, query, key).Scan(
		&rec.RequestID,
		&rec.TraceID,
		&rec.CreatedAt,
		&rec.Method,
		&rec.Path,
		&rec.RequestHash,
		&rec.StatusCode,
		&rec.ResponseBody,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIdempotencyNotFound
		}
		return nil, fmt.Errorf("find idempotency record: %w", err)
	}
	return &rec, nil
}

// Claim is a conditional insert: it succeeds for an unseen key, or takes over
// a pending claim whose owner has been silent for longer than staleAfter.
func (r *idempotencyRepository) Claim(ctx context.Context, record *domain.IdempotencyRecord, staleAfter time.Duration) (bool, error) {
	if record == nil || record.RequestID == "" {
		return false, domain.ErrMissingIdempotencyKey
	}
	const query = `
	INSERT INTO idempotency_records (request_id, trace_id, created_at, method, path, request_hash, status_code, response_body)
	VALUES ($1, $2, $3, $4, $5, $6, 0, NULL)
	ON CONFLICT (request_id) DO UPDATE
	SET trace_id = EXCLUDED.trace_id,
		created_at = EXCLUDED.created_at,
		method = EXCLUDED.method,
		path = EXCLUDED.path,
		request_hash = EXCLUDED.request_hash
	WHERE idempotency_records.status_code = 0
	  AND $7::float8 > 0
	  AND idempotency_records.created_at < EXCLUDED.created_at - make_interval(secs => $7::float8)
	RETURNING request_id
	`
	var claimed string
	err := r.pool.QueryRow(ctx, query,
		record.RequestID,
		record.TraceID,
		record.CreatedAt,
		record.Method,
		record.Path,
		record.RequestHash,
		staleAfter.Seconds(),
	).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return true, nil
}

func (r *idempotencyRepository) Complete(ctx context.Context, record *domain.IdempotencyRecord) error {
	if record == nil || record.RequestID == "" {
		return domain.ErrMissingIdempotencyKey
	}
	const query = `
	UPDATE idempotency_records
	SET status_code = $2,
		response_body = $3
	WHERE request_id = $1
	  AND status_code = 0
	  AND trace_id = $4
	`
	tag, err := r.pool.Exec(ctx, query, record.RequestID, record.StatusCode, record.ResponseBody, record.TraceID)
	if err != nil {
		return fmt.Errorf("complete idempotency record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewError(domain.ErrCodeInternal, "idempotency claim lost before completion")
	}
	return nil
}

// Purge deletes completed records created before cutoff.
func (r *idempotencyRepository) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM idempotency_records WHERE status_code <> 0 AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge idempotency records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
