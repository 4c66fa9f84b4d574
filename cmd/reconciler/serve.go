package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/price-reconciler/internal/delivery/http/handler"
	"github.com/user/price-reconciler/internal/delivery/http/router"
	"github.com/user/price-reconciler/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run reconciliations on the configured schedule",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.close()

		if cfg.Schedule.Cron != "" {
			sched := scheduler.New(a.reconciler, a.location, log)
			if err := sched.Schedule(cfg.Schedule.Cron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()
		}

		h := handler.NewHandler(a.reconciler, a.query, a.healthChecks(), log)
		server := &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router.New(h, log),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("server started", zap.String("port", cfg.Server.Port))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
		}

		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}

		log.Info("cancelling active run")
		a.reconciler.Shutdown()
		log.Info("server exiting")
		return nil
	},
}
