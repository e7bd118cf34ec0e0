package cli

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/framehash/internal/core/config"
	"github.com/vietddude/framehash/internal/indexing/scheduler"
)

var (
	runFlags  requestFlags
	runBudget time.Duration
	runOnce   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fingerprint the frames of a manifest until it is complete",
	RunE:  runRun,
}

func init() {
	runFlags.register(runCmd)
	runCmd.Flags().DurationVar(&runBudget, "budget", 0, "total time budget (default: one scheduler budget per pass)")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single pass")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, true)
	if err != nil {
		slog.Error("Failed to initialize framehash", "error", err)
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := app.Stop(shutdownCtx); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}()

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start framehash", "error", err)
		return err
	}

	if cmd.Flags().Changed("config") || fileExists(cfgPath) {
		go func() {
			if err := config.Watch(ctx, cfgPath, app.Reconfigure); err != nil {
				slog.Warn("Config watcher stopped", "error", err)
			}
		}()
	}

	req := runFlags.request()
	if runBudget > 0 {
		req.Deadline = time.Now().Add(runBudget)
	}

	slog.Info("framehash started", "manifest", req.ID(), "config", cfgPath)

	run := app.Run
	if runOnce {
		run = app.RunPass
	}
	report, err := run(ctx, req)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, scheduler.ErrPassLimit):
		slog.Warn("Manifest incomplete after pass limit", "error", err)
	case errors.Is(err, context.Canceled):
		slog.Info("Interrupted, progress saved")
		return nil
	default:
		slog.Error("Run failed", "error", err)
	}
	return err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
