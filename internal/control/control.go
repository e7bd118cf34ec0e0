package control

import (
	"github.com/vietddude/framehash/internal/core/config"
	"github.com/vietddude/framehash/internal/indexing/scheduler"
	"github.com/vietddude/framehash/internal/indexing/worker"
	redisclient "github.com/vietddude/framehash/internal/infra/redis"
	"github.com/vietddude/framehash/internal/infra/retry"
	"github.com/vietddude/framehash/internal/infra/storage/postgres"
)

// Config holds the application configuration.
type Config struct {
	Port      int // 0 or negative disables the health server
	Storage   config.StorageConfig
	Scheduler scheduler.Config
	Retry     retry.Options
	Redis     redisclient.Config // empty URL keeps the ledger in memory
	Database  postgres.Config    // empty URL keeps fingerprints in memory
}

// FromAppConfig maps the file configuration onto the application.
func FromAppConfig(cfg *config.AppConfig) Config {
	return Config{
		Port:      cfg.Server.Port,
		Storage:   cfg.Storage,
		Scheduler: SchedulerConfig(cfg),
		Retry: retry.Options{
			MaxAttempts: cfg.Retry.MaxAttempts,
			RetryErrors: cfg.Retry.RetryErrors,
			MinDelay:    cfg.Retry.MinDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		},
		Redis:    cfg.Redis,
		Database: cfg.Database,
	}
}

// SchedulerConfig extracts the settings that can change between passes.
func SchedulerConfig(cfg *config.AppConfig) scheduler.Config {
	return scheduler.Config{
		Workers:             cfg.Worker.Workers,
		MaxPasses:           cfg.Scheduler.MaxPasses,
		DeadlineBuffer:      cfg.Scheduler.DeadlineBuffer,
		SequentialThreshold: cfg.Scheduler.SequentialThreshold,
		Budget:              cfg.Scheduler.Budget,
		LeaseTTL:            cfg.Scheduler.LeaseTTL,
		Buffer:              cfg.Worker.Buffer,
		Worker: worker.Config{
			SafetyMargin: cfg.Worker.SafetyMargin,
			FetchTimeout: cfg.Worker.FetchTimeout,
		},
	}
}
