package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskpilot/domain"
)

func TestTaskRepositoryCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository()
	require.NoError(t, repo.Insert(ctx, &domain.Task{ID: "a", Title: "A", Status: domain.StatusActive, Priority: 3, Version: 1}))

	handle, task, err := repo.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.EqualValues(t, 1, handle)

	next := task.Clone()
	next.Title = "A2"
	next.Version = 2
	require.NoError(t, repo.Update(ctx, handle, &next, 1))

	stale := task.Clone()
	stale.Title = "lost"
	stale.Version = 2
	assert.ErrorIs(t, repo.Update(ctx, handle, &stale, 1), domain.ErrStaleWrite)

	_, stored, err := repo.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "A2", stored.Title)
	assert.Equal(t, 2, stored.Version)
}

func TestTaskRepositoryRejectsDuplicateAndUnknown(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository()
	require.NoError(t, repo.Insert(ctx, &domain.Task{ID: "a", Version: 1}))
	assert.Error(t, repo.Insert(ctx, &domain.Task{ID: "a", Version: 1}))

	_, _, err := repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.ErrorIs(t, repo.Update(ctx, 7, &domain.Task{ID: "a"}, 1), domain.ErrTaskNotFound)
}

func TestSeededMalformedRowsAreReadable(t *testing.T) {
	repo := NewTaskRepository()
	repo.Seed([]string{"x", "Title", "", "ACTIVE", "high", "abc", "not a date"})

	tasks, err := repo.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "x", tasks[0].ID)
	assert.Equal(t, domain.DefaultPriority, tasks[0].Priority)
	assert.Nil(t, tasks[0].EffortMins)
	assert.Equal(t, "not a date", tasks[0].StartAt)
}

func TestIdempotencyClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewIdempotencyRepository()
	base := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base }

	claim := &domain.IdempotencyRecord{RequestID: "k", TraceID: "t1", CreatedAt: base}
	won, err := repo.Claim(ctx, claim, time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.Claim(ctx, &domain.IdempotencyRecord{RequestID: "k", TraceID: "t2", CreatedAt: base}, time.Minute)
	require.NoError(t, err)
	assert.False(t, won)

	done := *claim
	done.StatusCode = 201
	done.ResponseBody = []byte(`{"ok":true}`)
	require.NoError(t, repo.Complete(ctx, &done))

	repo.now = func() time.Time { return base.Add(time.Hour) }
	won, err = repo.Claim(ctx, &domain.IdempotencyRecord{RequestID: "k", TraceID: "t3"}, time.Minute)
	require.NoError(t, err)
	assert.False(t, won, "completed records are never reclaimed")

	stored, err := repo.FindByKey(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 201, stored.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(stored.ResponseBody))
}

func TestIdempotencyStaleClaimCanBeTakenOver(t *testing.T) {
	ctx := context.Background()
	repo := NewIdempotencyRepository()
	base := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base.Add(2 * time.Minute) }

	repo.Put(domain.IdempotencyRecord{RequestID: "k", TraceID: "old", CreatedAt: base})
	won, err := repo.Claim(ctx, &domain.IdempotencyRecord{RequestID: "k", TraceID: "new", CreatedAt: base.Add(2 * time.Minute)}, time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	err = repo.Complete(ctx, &domain.IdempotencyRecord{RequestID: "k", TraceID: "old", StatusCode: 200})
	assert.Error(t, err, "the displaced claimant cannot complete")
}

func TestIdempotencyPurge(t *testing.T) {
	ctx := context.Background()
	repo := NewIdempotencyRepository()
	base := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)

	repo.Put(domain.IdempotencyRecord{RequestID: "old", CreatedAt: base.Add(-48 * time.Hour), StatusCode: 200})
	repo.Put(domain.IdempotencyRecord{RequestID: "pending", CreatedAt: base.Add(-48 * time.Hour)})
	repo.Put(domain.IdempotencyRecord{RequestID: "fresh", CreatedAt: base, StatusCode: 200})

	removed, err := repo.Purge(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = repo.FindByKey(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrIdempotencyNotFound)
	_, err = repo.FindByKey(ctx, "pending")
	assert.NoError(t, err)
}
