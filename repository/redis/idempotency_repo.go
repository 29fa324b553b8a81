package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/repository"
)

type idempotencyRepository struct {
	client    redislib.UniversalClient
	prefix    string
	retention time.Duration
}

// NewIdempotencyRepository creates a Redis-backed idempotency store. Completed
// records expire after retention; zero keeps them forever.
func NewIdempotencyRepository(client redislib.UniversalClient, retention time.Duration) repository.IdempotencyRepository {
	if retention < 0 {
		retention = 0
	}
	return &idempotencyRepository{
		client:    client,
		prefix:    "idempotency:",
		retention: retention,
	}
}

func (r *idempotencyRepository) FindByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	result, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrIdempotencyNotFound
		}
		return nil, fmt.Errorf("find idempotency record: %w", err)
	}

	var record domain.IdempotencyRecord
	if err := json.Unmarshal(result, &record); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &record, nil
}

// Claim relies on SETNX; the pending claim carries staleAfter as its TTL so an
// abandoned claim frees the key on its own.
func (r *idempotencyRepository) Claim(ctx context.Context, record *domain.IdempotencyRecord, staleAfter time.Duration) (bool, error) {
	if record == nil || record.RequestID == "" {
		return false, domain.ErrMissingIdempotencyKey
	}
	claim := *record
	claim.StatusCode = 0
	claim.ResponseBody = nil

	payload, err := json.Marshal(claim)
	if err != nil {
		return false, err
	}
	if staleAfter < 0 {
		staleAfter = 0
	}
	ok, err := r.client.SetNX(ctx, r.key(record.RequestID), payload, staleAfter).Result()
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return ok, nil
}

func (r *idempotencyRepository) Complete(ctx context.Context, record *domain.IdempotencyRecord) error {
	if record == nil || record.RequestID == "" {
		return domain.ErrMissingIdempotencyKey
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	key := r.key(record.RequestID)

	return r.client.Watch(ctx, func(tx *redislib.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redislib.Nil) {
			return err
		}
		if err == nil {
			var existing domain.IdempotencyRecord
			if err := json.Unmarshal(current, &existing); err == nil &&
				(!existing.Pending() || existing.TraceID != record.TraceID) {
				return domain.NewError(domain.ErrCodeInternal, "idempotency claim lost before completion")
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.retention)
			return nil
		})
		return err
	}, key)
}

func (r *idempotencyRepository) key(id string) string {
	return fmt.Sprintf("%s%s", r.prefix, id)
}
