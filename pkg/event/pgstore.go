package event

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

const eventColumns = `id, title, description, start_time, end_time, location, created_at, source, external_id`

// PgStore is a PostgreSQL-backed event store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the events table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			start_time  TIMESTAMPTZ NOT NULL,
			end_time    TIMESTAMPTZ,
			location    TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			source      TEXT NOT NULL DEFAULT 'local',
			external_id TEXT NOT NULL DEFAULT '',
			CHECK (end_time IS NULL OR end_time > start_time)
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_time)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_events_external ON events(external_id) WHERE external_id != ''`)
	return err
}

// Create inserts a new event with a fresh id.
func (s *PgStore) Create(ctx context.Context, e *Event) (*Event, error) {
	e.ID = uuid.Must(uuid.NewV7()).String()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.Truncate(time.Microsecond)
	if e.Source == "" {
		e.Source = Local
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Title, e.Description, e.Start, e.End, e.Location, e.CreatedAt, string(e.Source), e.ExternalID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create event: external id %s already mirrored: %w", e.ExternalID, err)
		}
		return nil, fmt.Errorf("create event: %w", err)
	}
	return e, nil
}

// Get retrieves a single event by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*Event, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return e, nil
}

// Modify applies fn to the row under a row lock and writes it back.
func (s *PgStore) Modify(ctx context.Context, id string, fn func(e *Event) error) (*Event, error) {
	var out *Event
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		e, err := scanEvent(tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
		e.ID = id
		if err := e.Validate(); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE events SET title = $2, description = $3, start_time = $4, end_time = $5, location = $6
			WHERE id = $1`,
			id, e.Title, e.Description, e.Start, e.End, e.Location)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("modify event %s: %w", id, err)
	}
	return out, nil
}

// Delete removes an event permanently.
func (s *PgStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete event %s: %w", id, ErrNotFound)
	}
	return nil
}

// Between returns events starting in [start, end).
func (s *PgStore) Between(ctx context.Context, start, end time.Time) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+eventColumns+` FROM events
		WHERE start_time >= $1 AND start_time < $2
		ORDER BY start_time ASC, id ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("events between: %w", err)
	}
	defer rows.Close()
	return scanEventRows(rows)
}

// Upcoming returns events starting at or after from.
func (s *PgStore) Upcoming(ctx context.Context, from time.Time, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx, `SELECT `+eventColumns+` FROM events
		WHERE start_time >= $1 ORDER BY start_time ASC, id ASC LIMIT $2`, from, limit)
	if err != nil {
		return nil, fmt.Errorf("upcoming events: %w", err)
	}
	defer rows.Close()
	return scanEventRows(rows)
}

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	var source string
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Start, &e.End, &e.Location, &e.CreatedAt, &source, &e.ExternalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.Source = Source(source)
	return &e, nil
}

func scanEventRows(rows pgx.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return events, nil
}
