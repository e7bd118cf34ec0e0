package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietddude/framehash/internal/control"
	"github.com/vietddude/framehash/internal/core/domain"
	"github.com/vietddude/framehash/internal/indexing/manifest"
	"github.com/vietddude/framehash/internal/indexing/scheduler"
)

// requestFlags identify a manifest on the command line.
type requestFlags struct {
	bucket      string
	prefix      string
	manifest    string
	framerate   float64
	captureMode int
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.bucket, "bucket", "", "bucket holding the frames")
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "key prefix of the extracted frames")
	cmd.Flags().StringVar(&f.manifest, "manifest", "", "manifest name relative to prefix (default frameHash.json)")
	cmd.Flags().Float64Var(&f.framerate, "framerate", 30, "source video framerate, used when building the manifest")
	cmd.Flags().IntVar(&f.captureMode, "capture-mode", int(domain.CaptureMode1FPS), "capture mode the frames were extracted with")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("prefix")
}

func (f *requestFlags) request() scheduler.Request {
	return scheduler.Request{
		Bucket:       f.bucket,
		Prefix:       f.prefix,
		ManifestName: f.manifest,
		Capture: manifest.Capture{
			FPS:  f.framerate,
			Mode: domain.CaptureMode(f.captureMode),
		},
	}
}

// newApp builds the application from the loaded configuration. The health
// server only runs for long-lived commands.
func newApp(ctx context.Context, withServer bool) (*control.App, error) {
	controlCfg := control.FromAppConfig(cfg)
	if !withServer {
		controlCfg.Port = 0
	}

	app, err := control.NewApp(ctx, controlCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize framehash: %w", err)
	}
	return app, nil
}
