// Package journal keeps a hash-chained, append-only record of every
// conversational turn: what the user said, what was done, what was replied.
package journal

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"
)

// Kind classifies a journal entry.
type Kind string

const (
	Turn          Kind = "turn"
	Mutation      Kind = "mutation"
	Clarification Kind = "clarification"
	Failure       Kind = "failure"
)

// Entry is one link in the journal chain.
type Entry struct {
	ID        string    `json:"id"` // UUID v7 (time-ordered)
	UserID    string    `json:"user_id"`
	Kind      Kind      `json:"kind"`
	UserText  string    `json:"user_text"`
	Reply     string    `json:"reply"`
	Action    string    `json:"action,omitempty"` // e.g. "COMPLETE_TASK"
	Timestamp time.Time `json:"timestamp"`
	Hash      string    `json:"hash"`      // SHA-256 of canonical form
	PrevHash  string    `json:"prev_hash"` // hash chain link
}

// Store is the contract for journal persistence.
type Store interface {
	Append(ctx context.Context, e Entry) (*Entry, error)
	Recent(ctx context.Context, userID string, limit int) ([]Entry, error)
	VerifyChain(ctx context.Context) error
	EnsureTable(ctx context.Context) error
}

// computeHash computes a SHA-256 hash for chain integrity.
func computeHash(prevHash string, e Entry) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%d",
		prevHash, e.ID, e.UserID, e.Kind, e.Action, e.UserText, e.Reply, e.Timestamp.UnixNano())
	h := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", h)
}

// verify walks entries in chronological order and checks every link.
func verify(entries []Entry) error {
	prevHash := ""
	for i, e := range entries {
		if e.PrevHash != prevHash {
			return fmt.Errorf("entry %d (%s): prev_hash mismatch: got %s, want %s", i, e.ID, e.PrevHash, prevHash)
		}
		if want := computeHash(prevHash, e); e.Hash != want {
			return fmt.Errorf("entry %d (%s): hash mismatch: got %s, want %s", i, e.ID, e.Hash, want)
		}
		prevHash = e.Hash
	}
	return nil
}
