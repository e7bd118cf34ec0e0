package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding environment variables first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.setDefaults()
	return &cfg
}

func (c *AppConfig) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Storage.Type == "" {
		c.Storage.Type = StorageS3
	}
	if c.Storage.Type == StorageFile && c.Storage.Root == "" {
		c.Storage.Root = "./data"
	}

	if c.Worker.SafetyMargin == 0 {
		c.Worker.SafetyMargin = 500 * time.Millisecond
	}
	if c.Worker.FetchTimeout == 0 {
		c.Worker.FetchTimeout = 10 * time.Second
	}
	if c.Worker.Buffer == 0 {
		c.Worker.Buffer = 64
	}

	if c.Scheduler.MaxPasses == 0 {
		c.Scheduler.MaxPasses = 10
	}
	if c.Scheduler.DeadlineBuffer == 0 {
		c.Scheduler.DeadlineBuffer = 60 * time.Second
	}
	if c.Scheduler.SequentialThreshold == 0 {
		c.Scheduler.SequentialThreshold = 100
	}
	if c.Scheduler.Budget == 0 {
		c.Scheduler.Budget = 15 * time.Minute
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 10
	}
	if c.Retry.MinDelay == 0 {
		c.Retry.MinDelay = 100 * time.Millisecond
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 500 * time.Millisecond
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "pgx"
	}
}

// Validate reports settings that cannot be defaulted.
func (c *AppConfig) Validate() error {
	switch c.Storage.Type {
	case StorageS3, StorageFile, StorageMemory:
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	if c.Worker.Workers < 0 {
		return fmt.Errorf("worker.workers must not be negative, got %d", c.Worker.Workers)
	}
	if c.Scheduler.MaxPasses < 0 {
		return fmt.Errorf("scheduler.max_passes must not be negative, got %d", c.Scheduler.MaxPasses)
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must not be negative, got %d", c.Retry.MaxAttempts)
	}
	return nil
}
