// Command framehash-lambda runs one fingerprint pass per invocation.
//
// The pass deadline is derived from the invocation deadline. An incomplete
// report tells the caller to invoke again; progress is kept in the manifest.
//
// Event format:
//
//	{
//	  "bucket": "media",
//	  "prefix": "videos/42/frameCapture",
//	  "manifest": "frameHash.json",
//	  "framerate": 29.97,
//	  "captureMode": 1
//	}
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/framehash/internal/control"
	"github.com/vietddude/framehash/internal/core/config"
	"github.com/vietddude/framehash/internal/core/domain"
	"github.com/vietddude/framehash/internal/indexing/manifest"
	"github.com/vietddude/framehash/internal/indexing/scheduler"
)

// Event is the invocation payload.
type Event struct {
	Bucket      string             `json:"bucket"`
	Prefix      string             `json:"prefix"`
	Manifest    string             `json:"manifest,omitempty"`
	Framerate   float64            `json:"framerate,omitempty"`
	CaptureMode domain.CaptureMode `json:"captureMode,omitempty"`
}

// passRunner runs a single pass.
type passRunner interface {
	RunPass(ctx context.Context, req scheduler.Request) (*domain.PassReport, error)
}

func main() {
	cfg, err := loadConfig(os.Getenv("FRAMEHASH_CONFIG"))
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}
	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	})

	controlCfg := control.FromAppConfig(cfg)
	controlCfg.Port = 0

	app, err := control.NewApp(context.Background(), controlCfg)
	if err != nil {
		slog.Error("Failed to initialize framehash", "error", err)
		os.Exit(1)
	}

	lambda.Start(newHandler(app))
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func (e Event) request(deadline time.Time) scheduler.Request {
	capture := manifest.Capture{FPS: e.Framerate, Mode: e.CaptureMode}
	if capture.Mode == domain.CaptureModeNone {
		capture.Mode = domain.CaptureMode1FPS
	}
	return scheduler.Request{
		Bucket:       e.Bucket,
		Prefix:       e.Prefix,
		ManifestName: e.Manifest,
		Capture:      capture,
		Deadline:     deadline,
	}
}

func newHandler(runner passRunner) func(context.Context, Event) (*domain.PassReport, error) {
	return func(ctx context.Context, event Event) (*domain.PassReport, error) {
		if event.Bucket == "" || event.Prefix == "" {
			return nil, errors.New("bucket and prefix are required")
		}

		// Zero means the scheduler's own budget.
		deadline, _ := ctx.Deadline()
		req := event.request(deadline)
		log := slog.With("manifest", req.ID())
		log.Info("Invocation received", "deadline", deadline.Format(time.RFC3339))

		report, err := runner.RunPass(ctx, req)
		if errors.Is(err, scheduler.ErrPassLimit) {
			log.Warn("Pass limit reached, manifest left incomplete", "error", err)
			return report, nil
		}
		if err != nil {
			log.Error("Pass failed", "error", err)
			return nil, err
		}

		log.Info("Pass finished",
			"completed", report.Completed,
			"progress", report.Progress,
			"passes", report.Passes,
		)
		return report, nil
	}
}
