// Package api exposes the assistant over HTTP: chat messages in, replies
// out, plus read-only views of briefings and tasks.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"agenda/pkg/briefing"
	"agenda/pkg/journal"
	"agenda/pkg/task"
)

// Messenger turns a user message into a reply. *assistant.Queue is one.
type Messenger interface {
	Submit(ctx context.Context, userID, text string) (string, error)
}

// Briefer builds briefings. *assistant.Assistant is one.
type Briefer interface {
	Briefing(ctx context.Context, window string) (briefing.Briefing, error)
}

// Options configure access control and presentation.
type Options struct {
	// AllowedUserID, when set, is the only user the server answers.
	AllowedUserID string
	// JWTSecret, when set, requires an HS256 bearer token whose subject is
	// the user id.
	JWTSecret string
	Location  *time.Location
	Release   bool
}

// Server is the HTTP API server.
type Server struct {
	messages Messenger
	briefer  Briefer
	tasks    task.Store
	journal  journal.Store
	opts     Options
	log      zerolog.Logger
	router   *gin.Engine
}

// New creates a Server.
func New(messages Messenger, briefer Briefer, tasks task.Store, j journal.Store, opts Options, log zerolog.Logger) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		messages: messages,
		briefer:  briefer,
		tasks:    tasks,
		journal:  j,
		opts:     opts,
		log:      log.With().Str("component", "api").Logger(),
		router:   gin.New(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(gin.Recovery(), s.requestLogger)

	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api", s.authenticate)
	api.POST("/messages", s.handleMessage)
	api.GET("/briefing", s.handleBriefing)
	api.GET("/tasks", s.handleTaskList)
	api.GET("/status", s.handleStatus)
	if f, ok := s.journal.(feed); ok {
		api.GET("/journal/stream", s.handleJournalStream(f))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	ctx := c.Request.Context()
	pending, err := s.tasks.PendingCount(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("count pending tasks")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}
	chain := "ok"
	if s.journal != nil {
		if err := s.journal.VerifyChain(ctx); err != nil {
			s.log.Error().Err(err).Msg("journal chain broken")
			chain = "broken"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"pending_tasks": pending,
		"journal":       chain,
	})
}
