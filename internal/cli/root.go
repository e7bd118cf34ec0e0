package cli

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/framehash/internal/core/config"
)

var (
	cfgPath string
	isDebug bool

	// cfg is loaded once per command in PersistentPreRunE.
	cfg *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "framehash",
	Short: "Frame fingerprinting service",
	Long: `framehash computes perceptual hashes and sharpness scores for extracted
video frames in deadline-bounded parallel passes.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	// Load Configuration
	loaded, err := config.Load(cfgPath)
	switch {
	case err == nil:
		cfg = loaded
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
	default:
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		return err
	}

	setupLogging(cfg.Logging)
	return nil
}

func setupLogging(logCfg config.LoggingConfig) {
	slogLevel := slog.LevelInfo
	switch {
	case isDebug || logCfg.Level == "debug":
		slogLevel = slog.LevelDebug
	case logCfg.Level == "warn":
		slogLevel = slog.LevelWarn
	case logCfg.Level == "error":
		slogLevel = slog.LevelError
	}

	if logCfg.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
		return
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}
