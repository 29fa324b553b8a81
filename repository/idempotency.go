package repository

import (
	"context"
	"time"

	"github.com/fastygo/taskpilot/domain"
)

// IdempotencyRepository stores one record per client-supplied key.
//
// Claim atomically inserts a pending record and reports whether this caller
// won the key; a pending claim older than staleAfter may be taken over.
// Complete writes the final response onto a claimed key.
type IdempotencyRepository interface {
	FindByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
	Claim(ctx context.Context, record *domain.IdempotencyRecord, staleAfter time.Duration) (bool, error)
	Complete(ctx context.Context, record *domain.IdempotencyRecord) error
}

// IdempotencyPurger is implemented by stores without native expiry.
type IdempotencyPurger interface {
	Purge(ctx context.Context, cutoff time.Time) (int, error)
}
