package journal

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

const journalColumns = `id, user_id, kind, user_text, reply, action, timestamp, hash, prev_hash`

// appendLockKey names the transaction-scoped advisory lock that serializes
// appends, so two writers never chain onto the same head.
const appendLockKey int64 = 0x6a6f75726e616c

// PgStore is a PostgreSQL-backed journal with hash-chained integrity.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the journal table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS journal (
			id        TEXT PRIMARY KEY,
			user_id   TEXT NOT NULL,
			kind      TEXT NOT NULL,
			user_text TEXT NOT NULL DEFAULT '',
			reply     TEXT NOT NULL DEFAULT '',
			action    TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL,
			hash      TEXT NOT NULL,
			prev_hash TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_journal_timestamp_id ON journal(timestamp, id)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_journal_user ON journal(user_id, timestamp)`)
	return err
}

// Append stores e at the head of the chain.
func (s *PgStore) Append(ctx context.Context, e Entry) (*Entry, error) {
	e.ID = uuid.Must(uuid.NewV7()).String()

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
			return fmt.Errorf("lock chain head: %w", err)
		}
		// Stamped under the lock so chain order and timestamp order agree.
		e.Timestamp = time.Now().Truncate(time.Microsecond)

		var prevHash string
		err := tx.QueryRow(ctx, `SELECT hash FROM journal ORDER BY timestamp DESC, id DESC LIMIT 1`).Scan(&prevHash)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("read chain head: %w", err)
		}
		e.PrevHash = prevHash
		e.Hash = computeHash(prevHash, e)

		_, err = tx.Exec(ctx, `
			INSERT INTO journal (`+journalColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.ID, e.UserID, string(e.Kind), e.UserText, e.Reply, e.Action, e.Timestamp, e.Hash, e.PrevHash)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("append journal entry: %w", err)
	}
	return &e, nil
}

// Recent returns a user's latest entries in chronological order.
func (s *PgStore) Recent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT * FROM (
			SELECT `+journalColumns+` FROM journal WHERE user_id = $1
			ORDER BY timestamp DESC, id DESC LIMIT $2
		) recent ORDER BY timestamp ASC, id ASC`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent journal entries: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// VerifyChain walks the entire chain chronologically and verifies hash integrity.
func (s *PgStore) VerifyChain(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT `+journalColumns+` FROM journal ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("verify chain query: %w", err)
	}
	defer rows.Close()
	entries, err := scanRows(rows)
	if err != nil {
		return fmt.Errorf("verify chain scan: %w", err)
	}
	return verify(entries)
}

func scanRows(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind string
		if err := rows.Scan(&e.ID, &e.UserID, &kind, &e.UserText, &e.Reply, &e.Action, &e.Timestamp, &e.Hash, &e.PrevHash); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return entries, nil
}
