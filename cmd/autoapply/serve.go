package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Korbielowski/AutoApply/internal/config"
	"github.com/Korbielowski/AutoApply/internal/events"
	"github.com/Korbielowski/AutoApply/internal/httpapi"
	"github.com/Korbielowski/AutoApply/internal/logger"
	"github.com/Korbielowski/AutoApply/internal/runlock"
	"github.com/Korbielowski/AutoApply/internal/scheduler"
	"github.com/Korbielowski/AutoApply/internal/secrets"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the pipeline on the configured interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	log := a.log
	cfg := a.config()
	hub := events.NewHub()
	status := &atomic.Value{}
	status.Store(httpapi.ScrapeStatus{})

	g, gctx := errgroup.WithContext(ctx)
	deps := httpapi.Deps{
		Jobs:            a.db,
		Hub:             hub,
		CfgVal:          &a.cfgVal,
		ScrapeStatus:    status,
		UserCfgPath:     a.cfgPath,
		LoadCfg:         a.loadConfig,
		Launch:          a.launch,
		BaseCtx:         gctx,
		SetSitePassword: secrets.SetSitePassword,
		SetMailPassword: secrets.SetMailPassword,
		Log:             log,
	}
	deps.Scrape = httpapi.NewScrapeHandler(deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.App.Port),
		Handler:           httpapi.NewHandler(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Info("engine listening", logger.String("addr", "http://"+srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return config.Watch(gctx, a.cfgPath, 500*time.Millisecond, func() {
			next, err := a.loadConfig()
			if err != nil {
				log.Warn("config reload failed", logger.Error(err))
				return
			}
			a.cfgVal.Store(next)
			hub.Publish(events.MakeEvent("", events.TypeConfigReloaded, nil))
			log.Info("config reloaded")
		})
	})
	g.Go(func() error {
		scheduler.Every(gctx, 24*time.Hour, "cleanup", log, func(ctx context.Context) error {
			n, err := a.db.CleanupOldJobs(ctx)
			if n > 0 {
				log.Info("old jobs removed", logger.Int64("count", n))
			}
			return err
		})
		return nil
	})
	if m := cfg.Pipeline.IntervalMinutes; m > 0 {
		g.Go(func() error {
			scheduler.Every(gctx, time.Duration(m)*time.Minute, "pipeline", log, func(ctx context.Context) error {
				err := deps.Scrape.RunOnce(ctx)
				if errors.Is(err, runlock.ErrAlreadyRunning) {
					log.Info("skipping scheduled run, another run is in progress")
					return nil
				}
				return err
			})
			return nil
		})
	}

	return g.Wait()
}
