package main

import (
	"context"
	"fmt"
	"time"

	"eurofx-service/internal/app"
	"eurofx-service/internal/config"
	"eurofx-service/pkg/logger"

	"github.com/robfig/cron/v3"
)

// runWarmup loads both tables at startup and then reloads them on the
// configured schedule until ctx is done.
func runWarmup(ctx context.Context, cfg config.WarmupConfig, timeout time.Duration, rates *app.App, log *logger.Logger) error {
	refresh := func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 2*timeout)
		defer cancel()

		if err := rates.Service.Refresh(refreshCtx); err != nil {
			log.Error("Failed to warm rate cache", "error", err)
		}
		rates.Cache.ClearExpired(refreshCtx)
	}

	refresh()

	if cfg.Schedule == "" {
		log.Info("Scheduled warm-up disabled")
		<-ctx.Done()
		return nil
	}

	loc, err := time.LoadLocation(cfg.Location)
	if err != nil {
		return fmt.Errorf("load location %s: %w", cfg.Location, err)
	}

	scheduler := cron.New(
		cron.WithLocation(loc),
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
	)
	if _, err := scheduler.AddFunc(cfg.Schedule, refresh); err != nil {
		return fmt.Errorf("add warm-up job %q: %w", cfg.Schedule, err)
	}

	scheduler.Start()
	log.Info("Scheduled warm-up started", "schedule", cfg.Schedule, "location", cfg.Location)
	defer func() {
		stopCtx := scheduler.Stop()
		<-stopCtx.Done()
	}()

	<-ctx.Done()
	return nil
}
