package repository

import (
	"context"

	"github.com/fastygo/taskpilot/domain"
)

// Handle identifies the stored row a task was read from.
type Handle int64

// TaskRepository is the keyed task table. Update is a compare-and-swap on
// version: it fails with domain.ErrStaleWrite when the stored version no
// longer equals expectedVersion.
type TaskRepository interface {
	ReadAll(ctx context.Context) ([]domain.Task, error)
	FindByID(ctx context.Context, id string) (Handle, *domain.Task, error)
	Insert(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, handle Handle, task *domain.Task, expectedVersion int) error
}
