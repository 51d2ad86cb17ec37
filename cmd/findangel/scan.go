package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kimjw0623/find-angel-sub000/internal/admin"
	"github.com/kimjw0623/find-angel-sub000/internal/config"
	"github.com/kimjw0623/find-angel-sub000/internal/patterncache"
	"github.com/kimjw0623/find-angel-sub000/internal/scan"
	"github.com/kimjw0623/find-angel-sub000/internal/scheduler"
	"github.com/kimjw0623/find-angel-sub000/internal/store/postgres"
	"github.com/kimjw0623/find-angel-sub000/internal/valuation"
)

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan new listings on both horizons and alert on notable ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup("scan")
			if err != nil {
				return err
			}
			defer rt.Close()
			return runScan(rt)
		},
	}
}

func horizonConfigs(cfg config.ScanConfig) (near, far scan.HorizonConfig) {
	near = scan.NearConfig()
	near.BatchSize = cfg.NearBatchSize
	near.Probe = cfg.NearProbe
	near.InitialPageEstimate = cfg.NearPageEstimate
	near.MaxPages = cfg.MaxPages
	near.Pause = cfg.Pause

	far = scan.FarConfig()
	far.BatchSize = cfg.FarBatchSize
	far.MaxPages = cfg.MaxPages
	far.Pause = cfg.Pause
	return near, far
}

func valuationConfig(cfg config.ValuationConfig) valuation.Config {
	return valuation.Config{
		MinFairPrice: cfg.MinFairPrice,
		MinRatio:     cfg.MinRatio,
		MaxRatio:     cfg.MaxRatio,
		MaxPrice:     cfg.MaxPrice,
		Steepness:    cfg.Steepness,
	}
}

func newRunners(rt *app, sched *scheduler.Scheduler) []*scan.Runner {
	near, far := horizonConfigs(rt.cfg.Scan)
	var out []*scan.Runner
	for _, hc := range []scan.HorizonConfig{near, far} {
		engine := scan.NewEngine(hc, sched, rt.logger)
		component := rt.health.Register("scan_" + hc.Horizon.String())
		out = append(out, scan.NewRunner(engine, hc.Pause, component, rt.logger))
	}
	return out
}

func runScan(rt *app) error {
	sched, err := rt.newScheduler(config.CredentialsMonitor)
	if err != nil {
		return err
	}
	db, err := rt.openDB()
	if err != nil {
		return err
	}
	signals, err := rt.openSignals()
	if err != nil {
		return err
	}

	patterns := patterncache.New(postgres.NewPatternRepo(db), rt.logger)
	loadCtx, cancel := signalContext()
	err = patterns.Load(loadCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("load patterns: %w", err)
	}
	if patterns.Snapshot().GenerationID() == uuid.Nil {
		rt.logger.Warn("no active pattern generation yet, listings stay unpriced until one is published")
	}

	runners := newRunners(rt, sched)
	scanners := make([]valuation.Scanner, 0, len(runners))
	cursors := make([]admin.CursorSource, 0, len(runners))
	for _, r := range runners {
		scanners = append(scanners, r)
		cursors = append(cursors, r.Engine())
	}

	alerter := rt.newAlerter()
	watcher := patterncache.NewWatcher(patterns, signals, rt.cfg.Cache.PollInterval, rt.logger)
	loop := valuation.NewLoop(
		patterns,
		valuation.NewEvaluator(valuationConfig(rt.cfg.Valuation)),
		alerter,
		rt.cfg.Cache.DedupeCapacity,
		rt.logger,
		scanners...,
	)

	accessories, bracelets := patterns.Snapshot().Size()
	rt.logger.Info("starting scanner",
		"generation_id", patterns.Snapshot().GenerationID(),
		"accessory_patterns", accessories,
		"bracelet_patterns", bracelets,
		"near_probe", rt.cfg.Scan.NearProbe,
	)
	loops := []func(ctx context.Context) error{
		func(ctx context.Context) error { return watcher.Run(ctx) },
		func(ctx context.Context) error { return loop.Run(ctx) },
	}
	if port := rt.cfg.Server.AdminPort; port > 0 {
		server := admin.NewServer(patterns, rt.logger,
			admin.WithCursors(cursors...),
			admin.WithGenerations(postgres.NewPatternRepo(db)),
			admin.WithHealth(rt.health),
		)
		handler := admin.NewHandler(server, admin.NewRateLimitMiddleware(rt.logger), rt.cfg.Server.AdminUser, rt.cfg.Server.AdminPassword)
		loops = append(loops, func(ctx context.Context) error {
			return serveHTTP(ctx, "admin", port, handler, rt.logger)
		})
	}
	return rt.run(db, alerter, loops...)
}
