package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on a cron schedule",
		Long: `Run the pipeline on schedule.cron (default daily at 02:00 UTC) until
interrupted. Runs never overlap. When metrics.listen is set, /metrics is served
over HTTP.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := setup(false)
			if err != nil {
				return err
			}
			defer env.close()
			return runSchedule(ctx, env)
		},
	}
}

func runSchedule(ctx context.Context, env *runEnv) error {
	log := env.logger
	runOnce := func() {
		sum, err := env.pipeline.Run(ctx, false)
		if err != nil {
			log.Error("scheduled run failed", zap.Error(err))
			return
		}
		log.Info("scheduled run done", zap.String("run_id", sum.RunID), zap.String("status", string(sum.Status)))
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Cron(env.cfg.Schedule.Cron).Do(runOnce); err != nil {
		return &usageError{err}
	}

	var srv *http.Server
	if addr := env.cfg.Metrics.Listen; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", env.metrics.Handler())
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		log.Info("serving metrics", zap.String("addr", addr))
	}

	if env.cfg.Schedule.RunOnStart {
		runOnce()
	}
	s.StartAsync()
	_, next := s.NextRun()
	log.Info("scheduler started", zap.String("cron", env.cfg.Schedule.Cron), zap.Time("next_run", next))

	<-ctx.Done()
	log.Info("stopping scheduler")
	s.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
	return nil
}
