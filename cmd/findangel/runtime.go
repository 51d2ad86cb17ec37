package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/kimjw0623/find-angel-sub000/internal/alert"
	"github.com/kimjw0623/find-angel-sub000/internal/config"
	"github.com/kimjw0623/find-angel-sub000/internal/health"
	"github.com/kimjw0623/find-angel-sub000/internal/market"
	"github.com/kimjw0623/find-angel-sub000/internal/scheduler"
	sig "github.com/kimjw0623/find-angel-sub000/internal/signal"
	"github.com/kimjw0623/find-angel-sub000/internal/store/postgres"
	redispkg "github.com/kimjw0623/find-angel-sub000/internal/store/redis"
	"github.com/kimjw0623/find-angel-sub000/internal/tracing"
)

// poolExhaustionRatio is the in-use share of the connection limit above
// which the pool counts as nearly exhausted.
const poolExhaustionRatio = 0.8

// app is what every long running command shares.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	health *health.Registry

	closers []func()
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setup loads config, installs the logger and starts tracing for command.
func setup(command string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}))
	logger = logger.With("command", command)
	slog.SetDefault(logger)

	rt := &app{cfg: cfg, logger: logger, health: health.NewRegistry()}

	opts := tracing.Options{
		Command:     command,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	}
	if cfg.Tracing.Enabled {
		opts.Endpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(context.Background(), opts)
	if err != nil {
		return nil, fmt.Errorf("initialize tracing: %w", err)
	}
	rt.onClose(func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	})
	if cfg.Tracing.Enabled {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}
	return rt, nil
}

func (rt *app) onClose(fn func()) {
	rt.closers = append(rt.closers, fn)
}

// Close releases everything setup and the open helpers acquired, newest first.
func (rt *app) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func (rt *app) openDB() (*postgres.DB, error) {
	db, err := postgres.New(postgres.Config{
		URL:                rt.cfg.DB.URL,
		MaxOpenConns:       rt.cfg.DB.MaxOpenConns,
		MaxIdleConns:       rt.cfg.DB.MaxIdleConns,
		ConnMaxLifetime:    rt.cfg.DB.ConnMaxLifetime,
		StatementTimeoutMS: rt.cfg.DB.StatementTimeoutMS,
		Logger:             rt.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	rt.onClose(func() { _ = db.Close() })
	rt.logger.Info("connected to database", "url", maskCredentials(rt.cfg.DB.URL))
	return db, nil
}

// signalBus carries cross-process notifications.
type signalBus interface {
	sig.Publisher
	sig.Subscriber
}

// openSignals connects to Redis when configured. Without Redis, signals only
// reach subscribers inside this process.
func (rt *app) openSignals() (signalBus, error) {
	if rt.cfg.Redis.URL == "" {
		rt.logger.Warn("REDIS_URL not set, signals stay in process")
		return sig.NewBus(), nil
	}
	signals, err := redispkg.NewSignals(rt.cfg.Redis.URL, rt.cfg.Redis.Namespace, rt.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	rt.onClose(func() { _ = signals.Close() })
	return signals, nil
}

// newScheduler builds a request scheduler over the credentials of set.
func (rt *app) newScheduler(set config.CredentialSet) (*scheduler.Scheduler, error) {
	tokens, err := rt.cfg.Tokens(set)
	if err != nil {
		return nil, err
	}
	pool, err := scheduler.NewPool(tokens, scheduler.PoolConfig{
		MaxQuota: rt.cfg.Scheduler.MaxQuota,
		Window:   rt.cfg.Scheduler.QuotaWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("credential pool: %w", err)
	}
	client := market.NewClient(market.Config{
		BaseURL:         rt.cfg.Market.BaseURL,
		Timeout:         rt.cfg.Market.Timeout,
		MaxConns:        rt.cfg.Market.MaxConns,
		MaxConnsPerHost: rt.cfg.Market.MaxConnsPerHost,
		Location:        rt.cfg.Location(),
	}, rt.logger)
	rt.logger.Info("scheduler ready", "credentials", string(set), "pool_size", pool.Size())
	return scheduler.New(pool, client, scheduler.Config{
		MaxAttempts:   rt.cfg.Scheduler.MaxAttempts,
		RetryDelay:    rt.cfg.Scheduler.RetryDelay,
		MaxRetryDelay: rt.cfg.Scheduler.MaxRetryDelay,
		MaxInFlight:   int64(rt.cfg.Scheduler.MaxInFlight),
	}, rt.logger), nil
}

// newAlerter fans out to every configured channel, or drops alerts when
// none is configured.
func (rt *app) newAlerter() alert.Alerter {
	var channels []alert.Alerter
	if url := rt.cfg.Alert.SlackWebhookURL; url != "" {
		channels = append(channels, alert.NewSlackAlerter(url))
	}
	if url := rt.cfg.Alert.WebhookURL; url != "" {
		channels = append(channels, alert.NewWebhookAlerter(url))
	}
	if len(channels) == 0 {
		rt.logger.Warn("no alert channel configured, notable listings are only logged")
		return &alert.NoopAlerter{}
	}
	return alert.NewMultiAlerter(rt.cfg.Alert.Cooldown, rt.logger, channels...)
}

// run starts the health server and the pool stats pump next to the given
// loops and blocks until one fails or the process is signalled.
func (rt *app) run(db poolStatsSource, alerter alert.Alerter, loops ...func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runHealthServer(gCtx, rt.cfg.Server.HealthPort, rt.health, rt.logger)
	})

	for _, loop := range loops {
		loop := loop
		g.Go(func() error {
			return loop(gCtx)
		})
	}

	if db != nil {
		startDBPoolStatsPump(gCtx, db, rt.cfg.DB.PoolStatsIntervalMS, alerter, rt.logger)
	}

	g.Go(func() error {
		select {
		case s := <-sigCh:
			rt.logger.Info("received signal, shutting down", "signal", s)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	rt.logger.Info("shut down gracefully")
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM, for one-shot commands.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runHealthServer(ctx context.Context, port int, registry *health.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/healthz", registry.Handler())
	mux.Handle("/metrics", promhttp.Handler())
	return serveHTTP(ctx, "health", port, mux, logger)
}

// serveHTTP serves handler on port until ctx is done.
func serveHTTP(ctx context.Context, name string, port int, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("server shutdown error", "server", name, "error", err)
		}
	}()

	logger.Info("server started", "server", name, "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

// maskCredentials hides the user info of a connection URL for logging.
func maskCredentials(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return raw
	}
	return raw[:scheme+3] + "***" + raw[at:]
}

// poolStatsSource is the part of *postgres.DB the pool stats pump needs.
type poolStatsSource interface {
	Stats() sql.DBStats
	ReportPoolStats()
}

func collectDBPoolStats(db poolStatsSource) (stats sql.DBStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("db pool stats collection panicked: %v", r)
		}
	}()
	if db == nil {
		return sql.DBStats{}, fmt.Errorf("db stats provider is nil")
	}
	db.ReportPoolStats()
	return db.Stats(), nil
}

// poolExhausted reports whether in-use connections exceed the exhaustion
// ratio of the limit. An unlimited pool is never exhausted.
func poolExhausted(stats sql.DBStats) (bool, float64) {
	if stats.MaxOpenConnections <= 0 {
		return false, 0
	}
	usage := float64(stats.InUse) / float64(stats.MaxOpenConnections)
	return usage > poolExhaustionRatio, usage
}

func poolExhaustionAlert(stats sql.DBStats, usage float64) alert.Alert {
	return alert.Alert{
		Kind:    alert.KindUnhealthy,
		Key:     "db_pool_exhaustion",
		Title:   "DB connection pool near exhaustion",
		Message: fmt.Sprintf("Pool usage: %d/%d (%.0f%%)", stats.InUse, stats.MaxOpenConnections, usage*100),
		Fields: map[string]string{
			"wait_count": fmt.Sprintf("%d", stats.WaitCount),
		},
	}
}

func startDBPoolStatsPump(ctx context.Context, db poolStatsSource, intervalMS int, alerter alert.Alerter, logger *slog.Logger) {
	if db == nil || intervalMS <= 0 {
		return
	}

	interval := time.Duration(intervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)

	sample := func() {
		stats, err := collectDBPoolStats(db)
		if err != nil {
			logger.Warn("failed to collect db pool stats", "error", err)
			return
		}
		if exhausted, usage := poolExhausted(stats); exhausted && alerter != nil {
			if err := alerter.Send(ctx, poolExhaustionAlert(stats, usage)); err != nil {
				logger.Warn("db pool alert failed", "error", err)
			}
		}
	}

	go func() {
		defer ticker.Stop()
		sample()
		for {
			select {
			case <-ctx.Done():
				logger.Info("db pool stats sampler stopped", "cause", "context_done")
				return
			case <-ticker.C:
				sample()
			}
		}
	}()
}
