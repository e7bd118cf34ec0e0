package config

import (
	"time"

	redisclient "github.com/vietddude/framehash/internal/infra/redis"
	"github.com/vietddude/framehash/internal/infra/storage/postgres"
)

// Storage backends.
const (
	StorageS3     = "s3"
	StorageFile   = "file"
	StorageMemory = "memory"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Storage   StorageConfig      `yaml:"storage"`
	Worker    WorkerConfig       `yaml:"worker"`
	Scheduler SchedulerConfig    `yaml:"scheduler"`
	Retry     RetryConfig        `yaml:"retry"`
	Redis     redisclient.Config `yaml:"redis"`
	Database  postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"` // negative disables the server
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// StorageConfig selects the object store holding frames and manifests.
type StorageConfig struct {
	Type     string `yaml:"type"`     // s3, file, memory
	Region   string `yaml:"region"`   // s3 only
	Endpoint string `yaml:"endpoint"` // s3 only, e.g. a MinIO URL
	Root     string `yaml:"root"`     // file only
}

// WorkerConfig holds per-worker settings.
type WorkerConfig struct {
	Workers      int           `yaml:"workers"` // 0 = NumCPU
	SafetyMargin time.Duration `yaml:"safety_margin"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	Buffer       int           `yaml:"buffer"`
}

// SchedulerConfig holds pass scheduling settings.
type SchedulerConfig struct {
	MaxPasses           int           `yaml:"max_passes"`
	DeadlineBuffer      time.Duration `yaml:"deadline_buffer"`
	SequentialThreshold int           `yaml:"sequential_threshold"`
	Budget              time.Duration `yaml:"budget"`
	LeaseTTL            time.Duration `yaml:"lease_ttl"` // 0 = budget + 1m
}

// RetryConfig holds the retry strategy shared by remote calls.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	RetryErrors []string      `yaml:"retry_errors"` // overrides the default classification
	MinDelay    time.Duration `yaml:"min_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}
