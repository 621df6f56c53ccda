package journal

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPool connects to JOURNAL_TEST_DATABASE_URL, skipping when unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("JOURNAL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("JOURNAL_TEST_DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPgStoreConcurrentAppendsKeepOneChain(t *testing.T) {
	ctx := context.Background()
	pool := testPool(t)
	s := NewPgStore(pool)
	require.NoError(t, s.EnsureTable(ctx))
	_, err := pool.Exec(ctx, `TRUNCATE journal`)
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Append(ctx, Entry{UserID: fmt.Sprintf("u%d", i), Kind: Turn, UserText: "hi"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NoError(t, s.VerifyChain(ctx))

	var forks int
	err = pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT prev_hash FROM journal GROUP BY prev_hash HAVING count(*) > 1
		) dup`).Scan(&forks)
	require.NoError(t, err)
	assert.Zero(t, forks)
}
