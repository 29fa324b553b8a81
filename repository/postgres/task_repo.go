package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/repository"
	"github.com/fastygo/taskpilot/repository/row"
)

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
// Every task column is TEXT; typing happens in the row package.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) ReadAll(ctx context.Context) ([]domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks ORDER BY row_id`, columnList())
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		cells, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, row.Decode(cells))
	}
	return tasks, rows.Err()
}

func (r *taskRepository) FindByID(ctx context.Context, id string) (repository.Handle, *domain.Task, error) {
	query := fmt.Sprintf(`SELECT row_id, %s FROM tasks WHERE task_id = $1`, columnList())

	var handle int64
	cells, err := scanRow(r.pool.QueryRow(ctx, query, id), &handle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, domain.ErrTaskNotFound
		}
		return 0, nil, fmt.Errorf("find task: %w", err)
	}
	task := row.Decode(cells)
	return repository.Handle(handle), &task, nil
}

func (r *taskRepository) Insert(ctx context.Context, task *domain.Task) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidPayload
	}
	query := fmt.Sprintf(`INSERT INTO tasks (%s) VALUES (%s)`, columnList(), placeholders(1, len(row.Columns)))
	if _, err := r.pool.Exec(ctx, query, rowArgs(row.Encode(task))...); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Update rewrites the row only while its stored version still equals
// expectedVersion. The stored text is compared by numeric value, so "3.0"
// and " 3 " match 3 and blank or garbage match 1.
func (r *taskRepository) Update(ctx context.Context, handle repository.Handle, task *domain.Task, expectedVersion int) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	n := len(row.Columns)
	query := fmt.Sprintf(`
	UPDATE tasks
	SET %s
	WHERE row_id = $%d
	  AND task_id = $%d
	  AND %s = $%d::numeric
	`, assignments(1), n+1, n+2, storedVersion(), n+3)

	args := rowArgs(row.Encode(task))
	args = append(args, int64(handle), task.ID, int64(expectedVersion))

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE row_id = $1 AND task_id = $2)`,
		int64(handle), task.ID).Scan(&exists); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if !exists {
		return domain.ErrTaskNotFound
	}
	return domain.ErrStaleWrite
}
