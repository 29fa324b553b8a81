// Package memory provides process-local stores for tests and single-node runs.
package memory

import (
	"context"
	"sync"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/repository"
	"github.com/fastygo/taskpilot/repository/row"
)

// TaskRepository keeps tasks as encoded rows so reads go through the same
// coercion as the database-backed store. Handles are 1-based row numbers.
type TaskRepository struct {
	mu   sync.RWMutex
	rows []row.Row
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{}
}

// Seed appends raw rows, bypassing validation. Useful for malformed-data tests.
func (r *TaskRepository) Seed(rows ...row.Row) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, rows...)
}

func (r *TaskRepository) ReadAll(ctx context.Context) ([]domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tasks := make([]domain.Task, 0, len(r.rows))
	for _, rw := range r.rows {
		tasks = append(tasks, row.Decode(rw))
	}
	return tasks, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (repository.Handle, *domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, rw := range r.rows {
		task := row.Decode(rw)
		if task.ID == id {
			return repository.Handle(i + 1), &task, nil
		}
	}
	return 0, nil, domain.ErrTaskNotFound
}

func (r *TaskRepository) Insert(ctx context.Context, task *domain.Task) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rw := range r.rows {
		if row.Decode(rw).ID == task.ID {
			return domain.NewError(domain.ErrCodeInternal, "duplicate task id")
		}
	}
	r.rows = append(r.rows, row.Encode(task))
	return nil
}

func (r *TaskRepository) Update(ctx context.Context, handle repository.Handle, task *domain.Task, expectedVersion int) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := int(handle) - 1
	if idx < 0 || idx >= len(r.rows) {
		return domain.ErrTaskNotFound
	}
	current := row.Decode(r.rows[idx])
	if current.ID != task.ID {
		return domain.ErrTaskNotFound
	}
	if current.Version != expectedVersion {
		return domain.ErrStaleWrite
	}
	r.rows[idx] = row.Encode(task)
	return nil
}

var _ repository.TaskRepository = (*TaskRepository)(nil)
