package assistant

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("queue closed")

// Handler handles one message. *Assistant is one.
type Handler interface {
	Handle(ctx context.Context, userID, text string) string
}

type job struct {
	ctx   context.Context
	text  string
	reply chan string
}

type worker struct {
	jobs    chan job
	pending int
}

// Queue serializes messages per user: turns for one user run one at a time
// in arrival order, turns for different users run concurrently. A user's
// worker exits after idle time without messages.
type Queue struct {
	h    Handler
	idle time.Duration
	log  zerolog.Logger

	mu      sync.Mutex
	workers map[string]*worker
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewQueue creates a Queue dispatching to h.
func NewQueue(h Handler, idle time.Duration, log zerolog.Logger) *Queue {
	if idle <= 0 {
		idle = time.Minute
	}
	return &Queue{
		h:       h,
		idle:    idle,
		log:     log.With().Str("component", "queue").Logger(),
		workers: make(map[string]*worker),
		done:    make(chan struct{}),
	}
}

// Submit enqueues text for userID and waits for the reply. If ctx ends
// first the turn still runs but its reply is dropped.
func (q *Queue) Submit(ctx context.Context, userID, text string) (string, error) {
	j := job{ctx: context.WithoutCancel(ctx), text: text, reply: make(chan string, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrClosed
	}
	w, ok := q.workers[userID]
	if !ok {
		w = &worker{jobs: make(chan job, 16)}
		q.workers[userID] = w
		q.wg.Add(1)
		go q.run(userID, w)
	}
	w.pending++
	q.mu.Unlock()

	// The send happens outside the lock; a full buffer blocks only this user.
	select {
	case w.jobs <- j:
	case <-ctx.Done():
		q.mu.Lock()
		w.pending--
		q.mu.Unlock()
		return "", ctx.Err()
	}

	select {
	case r := <-j.reply:
		return r, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (q *Queue) run(userID string, w *worker) {
	defer q.wg.Done()
	idle := q.idle
	timer := time.NewTimer(idle)
	defer timer.Stop()
	done := q.done
	for {
		select {
		case j := <-w.jobs:
			j.reply <- q.h.Handle(j.ctx, userID, j.text)
			q.mu.Lock()
			w.pending--
			q.mu.Unlock()
			timer.Reset(idle)
		case <-done:
			// Drain what was already accepted, then exit.
			done = nil
			idle = 10 * time.Millisecond
			timer.Reset(0)
		case <-timer.C:
			q.mu.Lock()
			if w.pending > 0 {
				q.mu.Unlock()
				timer.Reset(idle)
				continue
			}
			delete(q.workers, userID)
			q.mu.Unlock()
			q.log.Debug().Str("user_id", userID).Msg("worker idle, exiting")
			return
		}
	}
}

// Close rejects new messages and waits for in-flight turns to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
