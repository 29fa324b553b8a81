package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/repository"
)

type IdempotencyRepository struct {
	mu      sync.Mutex
	records map[string]domain.IdempotencyRecord
	now     func() time.Time
}

func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{
		records: make(map[string]domain.IdempotencyRecord),
		now:     time.Now,
	}
}

// Put stores a record as-is, replacing any existing one.
func (r *IdempotencyRepository) Put(record domain.IdempotencyRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.RequestID] = record
}

func (r *IdempotencyRepository) FindByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[key]
	if !ok {
		return nil, domain.ErrIdempotencyNotFound
	}
	record.ResponseBody = append([]byte(nil), record.ResponseBody...)
	return &record, nil
}

func (r *IdempotencyRepository) Claim(ctx context.Context, record *domain.IdempotencyRecord, staleAfter time.Duration) (bool, error) {
	if record == nil || record.RequestID == "" {
		return false, domain.ErrMissingIdempotencyKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.records[record.RequestID]; ok && !existing.Stale(r.now(), staleAfter) {
		return false, nil
	}
	claim := *record
	claim.StatusCode = 0
	claim.ResponseBody = nil
	r.records[record.RequestID] = claim
	return true, nil
}

func (r *IdempotencyRepository) Complete(ctx context.Context, record *domain.IdempotencyRecord) error {
	if record == nil || record.RequestID == "" {
		return domain.ErrMissingIdempotencyKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.records[record.RequestID]
	if ok && (!existing.Pending() || existing.TraceID != record.TraceID) {
		return domain.NewError(domain.ErrCodeInternal, "idempotency claim lost before completion")
	}
	stored := *record
	stored.ResponseBody = append([]byte(nil), record.ResponseBody...)
	r.records[record.RequestID] = stored
	return nil
}

var _ repository.IdempotencyRepository = (*IdempotencyRepository)(nil)

// Purge deletes completed records created before cutoff.
func (r *IdempotencyRepository) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, record := range r.records {
		if !record.Pending() && record.CreatedAt.Before(cutoff) {
			delete(r.records, key)
			removed++
		}
	}
	return removed, nil
}

var _ repository.IdempotencyPurger = (*IdempotencyRepository)(nil)
