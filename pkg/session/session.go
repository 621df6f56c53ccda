// Package session keeps the short-lived clarification state opened when a
// reference matched more than one entity. At most one session exists per
// user; sessions expire on their own and are never persisted.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"agenda/pkg/intent"
	"agenda/pkg/resolve"
)

// State is the lifecycle stage of a session.
type State string

const (
	Open     State = "open"
	Resolved State = "resolved"
	Expired  State = "expired"
)

// Session is an open clarification question.
type Session struct {
	UserID string
	// Reference is the user's original wording, kept for the question text.
	Reference  string
	Candidates []resolve.Candidate
	Pending    intent.Action
	Round      int
	CreatedAt  time.Time
	ExpiresAt  time.Time
	State      State
}

func (s *Session) clone() *Session {
	cp := *s
	cp.Candidates = append([]resolve.Candidate(nil), s.Candidates...)
	return &cp
}

// Manager owns the per-user sessions. It is safe for concurrent use.
type Manager struct {
	TTL       time.Duration
	MaxRounds int
	// Match tunes re-resolution of free-text replies against the candidates.
	Match resolve.Options
	Now   func() time.Time

	log      zerolog.Logger
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager with the given expiry and round limit.
func NewManager(ttl time.Duration, maxRounds int, match resolve.Options, log zerolog.Logger) *Manager {
	return &Manager{
		TTL:       ttl,
		MaxRounds: maxRounds,
		Match:     match,
		Now:       time.Now,
		log:       log.With().Str("component", "session").Logger(),
		sessions:  make(map[string]*Session),
	}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Open starts a clarification for userID, silently replacing any session
// the user already had.
func (m *Manager) Open(userID, reference string, pending intent.Action, candidates []resolve.Candidate) *Session {
	now := m.now()
	s := &Session{
		UserID:     userID,
		Reference:  reference,
		Candidates: append([]resolve.Candidate(nil), candidates...),
		Pending:    pending,
		Round:      1,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.TTL),
		State:      Open,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, replaced := m.sessions[userID]; replaced {
		m.log.Debug().Str("user_id", userID).Msg("replacing open session")
	}
	m.sessions[userID] = s
	return s.clone()
}

// Active returns the user's open session. An expired session is removed
// and reported as absent.
func (m *Manager) Active(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.lookup(userID)
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

// lookup must be called with mu held.
func (m *Manager) lookup(userID string) (*Session, bool) {
	s, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	if !m.now().Before(s.ExpiresAt) {
		s.State = Expired
		delete(m.sessions, userID)
		m.log.Debug().Str("user_id", userID).Msg("session expired")
		return nil, false
	}
	return s, true
}

// Discard drops the user's session, if any.
func (m *Manager) Discard(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Sweep removes every expired session and returns how many it removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps expired sessions every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.log.Debug().Int("count", n).Msg("swept expired sessions")
			}
		}
	}
}

// OutcomeKind says how a reply to a clarification was handled.
type OutcomeKind int

const (
	// NoSession means the user had no open session.
	NoSession OutcomeKind = iota
	// Chosen means the reply picked exactly one candidate; the session is closed.
	Chosen
	// Narrowed means the reply matched several candidates; the session now
	// holds only those.
	Narrowed
	// Unmatched means the reply picked nothing; the candidates and the
	// round are unchanged.
	Unmatched
	// GaveUp means the round limit was reached; the session is closed.
	GaveUp
)

func (k OutcomeKind) String() string {
	switch k {
	case Chosen:
		return "chosen"
	case Narrowed:
		return "narrowed"
	case Unmatched:
		return "unmatched"
	case GaveUp:
		return "gave_up"
	default:
		return "no_session"
	}
}

// Outcome is the result of Reply.
type Outcome struct {
	Kind OutcomeKind
	// Choice and Pending are set for Chosen.
	Choice  resolve.Candidate
	Pending intent.Action
	// Session is the still-open session for Narrowed and Unmatched.
	Session *Session
}

// Reply applies the user's answer to their open session. Ordinals ("the
// first one", "2", "last") are tried first, then the text is matched
// against the candidate titles only. An Unmatched reply may be a new
// request, so it does not use up a round; the caller reports it with Miss
// once it knows the reply was not one.
func (m *Manager) Reply(userID, text string) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.lookup(userID)
	if !ok {
		return Outcome{Kind: NoSession}
	}

	if i, ok := Ordinal(text, len(s.Candidates)); ok {
		return m.choose(s, s.Candidates[i])
	}

	opts := m.Match
	opts.Now = m.now()
	r := resolve.Resolve(intent.ByText{Text: text}, s.Candidates, opts)
	switch r.Outcome {
	case resolve.Unique:
		best, _ := r.Best()
		return m.choose(s, best)
	case resolve.Ambiguous:
		if m.exhausted(s) {
			return Outcome{Kind: GaveUp}
		}
		s.Candidates = r.Candidates
		return Outcome{Kind: Narrowed, Session: s.clone()}
	default:
		return Outcome{Kind: Unmatched, Session: s.clone()}
	}
}

// Miss records a reply that neither answered the open session nor asked
// for anything new. It returns Unmatched with the session still open, or
// GaveUp once the round limit is reached.
func (m *Manager) Miss(userID string) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.lookup(userID)
	if !ok {
		return Outcome{Kind: NoSession}
	}
	if m.exhausted(s) {
		return Outcome{Kind: GaveUp}
	}
	return Outcome{Kind: Unmatched, Session: s.clone()}
}

// exhausted advances the round, closing the session once the limit is
// reached. Must be called with mu held.
func (m *Manager) exhausted(s *Session) bool {
	if s.Round >= m.MaxRounds {
		delete(m.sessions, s.UserID)
		m.log.Debug().Str("user_id", s.UserID).Int("rounds", s.Round).Msg("clarification abandoned")
		return true
	}
	s.Round++
	s.ExpiresAt = m.now().Add(m.TTL)
	return false
}

// choose must be called with mu held.
func (m *Manager) choose(s *Session, c resolve.Candidate) Outcome {
	s.State = Resolved
	delete(m.sessions, s.UserID)
	return Outcome{Kind: Chosen, Choice: c, Pending: s.Pending}
}
