package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"agenda/internal/assistant"
	"agenda/internal/config"
	"agenda/internal/db"
	"agenda/internal/logging"
	"agenda/pkg/briefing"
	"agenda/pkg/calendar"
	"agenda/pkg/event"
	"agenda/pkg/executor"
	"agenda/pkg/journal"
	"agenda/pkg/llm"
	"agenda/pkg/resolve"
	"agenda/pkg/session"
	"agenda/pkg/task"
)

// app holds everything a subcommand may need, built from the environment.
type app struct {
	cfg *config.Config
	log zerolog.Logger
	loc *time.Location

	pool    *pgxpool.Pool
	tasks   task.Store
	events  event.Store
	journal journal.Store
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Read()
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	log, err := logging.New(cfg.Env)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, loc: loc}

	memory, _ := cmd.Flags().GetBool("memory")
	if memory {
		a.tasks, a.events = task.NewMemStore(), event.NewMemStore()
		a.journal = journal.NewBus(journal.NewMemStore())
		return a, nil
	}

	a.pool, err = db.Connect(cmd.Context(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	a.tasks = task.NewPgStore(a.pool)
	a.events = event.NewPgStore(a.pool)
	a.journal = journal.NewBus(journal.NewPgStore(a.pool))
	return a, nil
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *app) ensureTables(ctx context.Context) error {
	for name, s := range map[string]interface{ EnsureTable(context.Context) error }{
		"tasks":   a.tasks,
		"events":  a.events,
		"journal": a.journal,
	} {
		if err := s.EnsureTable(ctx); err != nil {
			return fmt.Errorf("ensure %s table: %w", name, err)
		}
	}
	return nil
}

// calendar returns the cached Google Calendar source, or nil when no
// credentials are configured.
func (a *app) calendar(ctx context.Context) (*calendar.Cache, error) {
	cc := a.cfg.Calendar
	if err := calendar.WriteTokenFromBase64(cc.TokenBase64, cc.TokenPath); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cc.CredentialsPath); errors.Is(err, os.ErrNotExist) {
		a.log.Warn().Str("path", cc.CredentialsPath).Msg("no calendar credentials, calendar disabled")
		return nil, nil
	}
	p, err := calendar.NewGoogleProvider(ctx, calendar.GoogleOptions{
		CredentialsPath: cc.CredentialsPath,
		TokenPath:       cc.TokenPath,
		CalendarID:      cc.CalendarID,
	})
	if err != nil {
		return nil, fmt.Errorf("google calendar: %w", err)
	}
	return calendar.NewCache(p, cc.Timeout, cc.MaxAge), nil
}

func (a *app) resolverOptions() resolve.Options {
	return resolve.Options{
		Threshold:     a.cfg.Resolver.Threshold,
		Margin:        a.cfg.Resolver.Margin,
		MaxCandidates: a.cfg.Resolver.MaxCandidates,
	}
}

func (a *app) briefingConfig() briefing.Config {
	bc := briefing.DefaultConfig()
	bc.MinGap = a.cfg.Briefing.MinGap
	bc.WakeStart = a.cfg.Briefing.WakeStart
	bc.WakeEnd = a.cfg.Briefing.WakeEnd
	bc.Lookahead = a.cfg.Briefing.Lookahead
	return bc
}

// assistant wires the turn pipeline. The returned session manager still
// needs its sweeper started by long-running commands.
func (a *app) assistant(ctx context.Context) (*assistant.Assistant, *session.Manager, error) {
	cal, err := a.calendar(ctx)
	if err != nil {
		return nil, nil, err
	}
	sessions := session.NewManager(a.cfg.Session.TTL, a.cfg.Session.MaxRounds, a.resolverOptions(), a.log)

	deps := assistant.Deps{
		Tasks:     a.tasks,
		Events:    a.events,
		Journal:   a.journal,
		Model:     llm.NewClaudeInterpreter(a.cfg.Model.Command, a.cfg.Model.Name, a.log),
		Sessions:  sessions,
		Executor:  executor.New(a.tasks, a.events, a.log),
		Briefings: briefing.New(a.briefingConfig()),
	}
	if cal != nil {
		deps.Calendar = cal
	}
	as := assistant.New(deps, assistant.Options{
		Location:     a.loc,
		ModelTimeout: a.cfg.Model.Timeout,
		Resolver:     a.resolverOptions(),
		HistoryTurns: a.cfg.Model.HistoryTurns,
	}, a.log)
	return as, sessions, nil
}
