package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"agenda/internal/api"
	"agenda/internal/assistant"
	"agenda/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.ensureTables(ctx); err != nil {
			return err
		}

		as, sessions, err := a.assistant(ctx)
		if err != nil {
			return err
		}
		queue := assistant.NewQueue(as, a.cfg.QueueIdle, a.log)

		server := &http.Server{
			Addr: a.cfg.HTTPAddr,
			Handler: api.New(queue, as, a.tasks, a.journal, api.Options{
				AllowedUserID: a.cfg.AllowedUserID,
				JWTSecret:     a.cfg.JWTSecret,
				Location:      a.loc,
				Release:       a.cfg.Env != config.EnvLocal,
			}, a.log),
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			sessions.Run(gctx, a.cfg.Session.SweepInterval)
			return nil
		})
		g.Go(func() error {
			a.log.Info().Str("addr", server.Addr).Msg("listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			a.log.Info().Msg("shutting down")
			sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.ShutdownTimeout)
			defer cancel()
			err := server.Shutdown(sctx)
			queue.Close()
			return err
		})
		return g.Wait()
	},
}
