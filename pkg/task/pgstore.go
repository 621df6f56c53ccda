package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agenda/internal/db"
)

const taskColumns = `id, title, description, deadline, priority, status, effort_minutes, created_at, completed_at`

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the tasks table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id             TEXT PRIMARY KEY,
			title          TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			deadline       TIMESTAMPTZ NOT NULL,
			priority       TEXT NOT NULL DEFAULT 'medium',
			status         TEXT NOT NULL DEFAULT 'pending',
			effort_minutes INTEGER NOT NULL DEFAULT 0,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at   TIMESTAMPTZ,
			CHECK ((status = 'completed') = (completed_at IS NOT NULL))
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_status_deadline ON tasks(status, deadline)`)
	return err
}

// Create inserts a new task with a fresh id.
func (s *PgStore) Create(ctx context.Context, t *Task) (*Task, error) {
	t.ID = uuid.Must(uuid.NewV7()).String()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.CreatedAt = t.CreatedAt.Truncate(time.Microsecond)
	if t.Status == "" {
		t.Status = Pending
	}
	if t.Priority == "" {
		t.Priority = Medium
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Title, t.Description, t.Deadline, string(t.Priority), string(t.Status),
		int(t.Effort/time.Minute), t.CreatedAt, t.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// Get retrieves a single task by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// Modify applies fn to the row under a row lock and writes it back.
func (s *PgStore) Modify(ctx context.Context, id string, fn func(t *Task) error) (*Task, error) {
	var out *Task
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		t, err := scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
		t.ID = id
		if err := t.Validate(); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE tasks SET title = $2, description = $3, deadline = $4, priority = $5,
				status = $6, effort_minutes = $7, completed_at = $8
			WHERE id = $1`,
			id, t.Title, t.Description, t.Deadline, string(t.Priority), string(t.Status),
			int(t.Effort/time.Minute), t.CompletedAt)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("modify task %s: %w", id, err)
	}
	return out, nil
}

// Delete removes a task permanently.
func (s *PgStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
	}
	return nil
}

// List returns tasks filtered by status (empty = all), ordered by deadline then created_at.
func (s *PgStore) List(ctx context.Context, f Filter) ([]Task, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}
	var rows pgx.Rows
	var err error
	if f.Status != "" {
		rows, err = s.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks
			WHERE status = $1 ORDER BY deadline ASC, created_at ASC LIMIT $2`, string(f.Status), limit)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks
			ORDER BY deadline ASC, created_at ASC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// DueBetween returns pending tasks with start <= deadline < end.
func (s *PgStore) DueBetween(ctx context.Context, start, end time.Time) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE status = 'pending' AND deadline >= $1 AND deadline < $2
		ORDER BY deadline ASC, created_at ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("tasks due between: %w", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// PendingCount returns count of pending tasks.
func (s *PgStore) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE status = 'pending'`).Scan(&n)
	return n, err
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var priority, status string
	var effort int
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Deadline, &priority, &status, &effort, &t.CreatedAt, &t.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Priority = Priority(priority)
	t.Status = Status(status)
	t.Effort = time.Duration(effort) * time.Minute
	return &t, nil
}

func scanTaskRows(rows pgx.Rows) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}
