package journal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore keeps the chain in memory.
type MemStore struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemStore() *MemStore { return &MemStore{} }

func (s *MemStore) EnsureTable(_ context.Context) error { return nil }

func (s *MemStore) Append(_ context.Context, e Entry) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uuid.Must(uuid.NewV7()).String()
	e.Timestamp = time.Now().Truncate(time.Microsecond)
	if n := len(s.entries); n > 0 {
		e.PrevHash = s.entries[n-1].Hash
	}
	e.Hash = computeHash(e.PrevHash, e)
	s.entries = append(s.entries, e)
	return &e, nil
}

func (s *MemStore) Recent(_ context.Context, userID string, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for i := len(s.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.entries[i].UserID == userID {
			out = append(out, s.entries[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *MemStore) VerifyChain(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return verify(s.entries)
}
