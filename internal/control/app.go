package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/framehash/internal/core/config"
	"github.com/vietddude/framehash/internal/core/domain"
	"github.com/vietddude/framehash/internal/indexing/fingerprint"
	"github.com/vietddude/framehash/internal/indexing/health"
	"github.com/vietddude/framehash/internal/indexing/manifest"
	"github.com/vietddude/framehash/internal/indexing/scheduler"
	redisclient "github.com/vietddude/framehash/internal/infra/redis"
	"github.com/vietddude/framehash/internal/infra/retry"
	"github.com/vietddude/framehash/internal/infra/storage"
	"github.com/vietddude/framehash/internal/infra/storage/memory"
	"github.com/vietddude/framehash/internal/infra/storage/postgres"
)

// App owns the stores, ledger and scheduler for the lifetime of a process.
type App struct {
	cfg          Config
	scheduler    *scheduler.Scheduler
	store        storage.ObjectStore
	ledger       storage.PassLedger
	sink         storage.FingerprintRepository
	strategy     *retry.Strategy
	healthMon    *health.Monitor
	healthServer *health.Server
	mem          *memory.MemoryStorage
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// NewApp creates a new App with all dependencies initialized.
func NewApp(ctx context.Context, cfg Config) (*App, error) {
	log := slog.Default().With("component", "app")
	mem := memory.NewMemoryStorage()

	// 1. Retry strategy shared by every remote call
	strategy := retry.NewStrategy(cfg.Retry)

	// 2. Object store
	store, err := newObjectStore(ctx, cfg.Storage, strategy, mem)
	if err != nil {
		return nil, err
	}
	log.Info("Using object store", "type", cfg.Storage.Type)

	// 3. Pass ledger
	var ledger storage.PassLedger
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, pass ledger kept in memory", "error", err)
		} else {
			ledger = redisclient.NewLedger(redisClient)
			log.Info("Using Redis pass ledger")
		}
	}
	if ledger == nil {
		ledger = memory.NewLedger(mem)
	}

	// 4. Fingerprint index
	var sink storage.FingerprintRepository
	var db *postgres.DB
	if cfg.Database.URL != "" {
		db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			closeRedis(redisClient)
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := postgres.Migrate(db.DB.DB); err != nil {
			_ = db.Close()
			closeRedis(redisClient)
			return nil, err
		}
		sink = postgres.NewFingerprintRepo(db)
		log.Info("Using PostgreSQL fingerprint index")
	} else {
		sink = memory.NewFingerprintRepo(mem)
	}

	// 5. Scheduler and health
	sched := scheduler.New(cfg.Scheduler, store, ledger, sink, strategy)
	healthMon := health.NewMonitor(ledger, sched.Config().MaxPasses)

	var healthServer *health.Server
	if cfg.Port > 0 {
		healthServer = health.NewServer(healthMon, cfg.Port)
	}

	return &App{
		cfg:          cfg,
		scheduler:    sched,
		store:        store,
		ledger:       ledger,
		sink:         sink,
		strategy:     strategy,
		healthMon:    healthMon,
		healthServer: healthServer,
		mem:          mem,
		db:           db,
		redisClient:  redisClient,
		log:          log,
	}, nil
}

func closeRedis(c *redisclient.Client) {
	if c != nil {
		_ = c.Close()
	}
}

// Start starts the background components. It does not block.
func (a *App) Start(ctx context.Context) error {
	if a.healthServer != nil {
		go func() {
			if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("Health server failed", "error", err)
			}
		}()
	}

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}
	return nil
}

// Stop releases connections and stops the health server.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping framehash...")

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}

	if a.healthServer == nil {
		return nil
	}
	return a.healthServer.Stop(ctx)
}

// Scheduler returns the pass scheduler.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Store returns the object store.
func (a *App) Store() storage.ObjectStore {
	return a.store
}

// Run processes the manifest until it is complete or a limit is hit.
func (a *App) Run(ctx context.Context, req scheduler.Request) (*domain.PassReport, error) {
	a.healthMon.Track(req.ID())
	return a.scheduler.Run(ctx, req)
}

// RunPass runs a single pass over the manifest.
func (a *App) RunPass(ctx context.Context, req scheduler.Request) (*domain.PassReport, error) {
	a.healthMon.Track(req.ID())
	return a.scheduler.RunPass(ctx, req)
}

// Build rebuilds the manifest from the frames under the request prefix.
func (a *App) Build(ctx context.Context, req scheduler.Request) (*manifest.Manifest, error) {
	return manifest.Build(ctx, a.store, req.Bucket, req.Prefix, req.Key(), req.Capture)
}

// Similar returns the indexed frames of the manifest closest to hash.
func (a *App) Similar(
	ctx context.Context,
	req scheduler.Request,
	hash string,
	limit int,
) ([]domain.FingerprintRecord, error) {
	if _, err := fingerprint.ParseHash(hash); err != nil {
		return nil, err
	}
	return a.sink.FindNearDuplicates(ctx, req.ID(), hash, limit)
}

// Reconfigure applies a reloaded configuration to future passes.
// Storage, ledger and database settings only take effect on restart.
func (a *App) Reconfigure(cfg *config.AppConfig) {
	a.scheduler.SetConfig(SchedulerConfig(cfg))
	a.log.Info("Scheduler reconfigured",
		"workers", cfg.Worker.Workers,
		"max_passes", cfg.Scheduler.MaxPasses,
		"budget", cfg.Scheduler.Budget,
	)
}
