// Package app initializes and holds long-lived application services, acting as
// a dependency injection container.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/voralis/indexwatch/internal/api"
	"github.com/voralis/indexwatch/internal/auth"
	"github.com/voralis/indexwatch/internal/clock/system"
	"github.com/voralis/indexwatch/internal/config"
	"github.com/voralis/indexwatch/internal/gsc"
	"github.com/voralis/indexwatch/internal/id/uuid"
	"github.com/voralis/indexwatch/internal/logging"
	"github.com/voralis/indexwatch/internal/quota"
	"github.com/voralis/indexwatch/internal/recorder"
	"github.com/voralis/indexwatch/internal/runner"
	"github.com/voralis/indexwatch/internal/selector"
	"github.com/voralis/indexwatch/internal/storage/postgres"
	"github.com/voralis/indexwatch/internal/sweep"
)

// App holds the shared, long-lived services. It is initialized once at
// startup and handed to the command that needs it; Close releases everything
// in reverse order.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Pool      *pgxpool.Pool
	Ledger    *quota.Ledger
	Runner    *runner.Runner
	Sweeper   *sweep.Sweeper
	Scheduler *sweep.Scheduler
	Server    *api.Server
}

// New builds the full service graph from configuration. It fails fast: any
// service that cannot be constructed aborts startup.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifetimeMin) * time.Minute,
	})
	if err != nil {
		return nil, err
	}

	properties, err := postgres.NewPropertyStore(pool)
	if err != nil {
		return nil, err
	}
	catalog, err := postgres.NewCatalogStore(pool)
	if err != nil {
		return nil, err
	}
	inspections, err := postgres.NewInspectionStore(pool)
	if err != nil {
		return nil, err
	}
	quotas, err := postgres.NewQuotaStore(pool)
	if err != nil {
		return nil, err
	}
	queue, err := postgres.NewQueueStore(pool)
	if err != nil {
		return nil, err
	}
	tokenStore, err := postgres.NewTokenStore(pool)
	if err != nil {
		return nil, err
	}
	snapshots, err := postgres.NewSnapshotStore(pool)
	if err != nil {
		return nil, err
	}

	clk := system.New()
	ids := uuid.New()

	ledger := quota.NewLedger(quotas, clk, quota.Config{
		InspectionDailyLimit: cfg.Quota.InspectionDailyLimit,
		SubmissionDailyLimit: cfg.Quota.SubmissionDailyLimit,
	}, logging.Component(logger, "quota"))

	sel := selector.New(catalog, logging.Component(logger, "selector"))

	client := gsc.NewClient(&http.Client{}, gsc.Config{
		InspectEndpoint: cfg.GSC.InspectEndpoint,
		SubmitEndpoint:  cfg.GSC.SubmitEndpoint,
		Timeout:         cfg.CallTimeout(),
	}, logging.Component(logger, "gsc"))
	pacer := gsc.NewPacer(cfg.InspectPace(), cfg.SubmitPace())

	tokens := auth.New(tokenStore, clk, auth.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		TokenURL:     cfg.OAuth.TokenURL,
		Leeway:       cfg.RefreshLeeway(),
	}, logging.Component(logger, "auth"))

	rec := recorder.New(inspections, queue, ids, clk, logging.Component(logger, "recorder"))

	run := runner.New(properties, ledger, sel, client, rec, queue, tokens, pacer,
		runner.Config{DefaultBatchSize: cfg.GSC.BatchSize},
		logging.Component(logger, "runner"))

	sweeper := sweep.New(properties, run, snapshots, clk,
		sweep.Config{Concurrency: cfg.Sweep.Concurrency},
		logging.Component(logger, "sweep"))

	var scheduler *sweep.Scheduler
	if cfg.Sweep.Enabled {
		scheduler, err = sweep.NewScheduler(cfg.Sweep.CronExpr, sweeper, logging.Component(logger, "scheduler"))
		if err != nil {
			pool.Close()
			return nil, err
		}
	}

	server := api.NewServer(run, ledger, sweeper, pool, cfg, logging.Component(logger, "api"))

	return &App{
		Config:    cfg,
		Logger:    logger,
		Pool:      pool,
		Ledger:    ledger,
		Runner:    run,
		Sweeper:   sweeper,
		Scheduler: scheduler,
		Server:    server,
	}, nil
}

// Close releases held resources. Safe to call once after New succeeds.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	_ = a.Logger.Sync()
}
