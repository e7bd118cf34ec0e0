package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var buildFlags requestFlags

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild a manifest from the extracted frames",
	Long: `Build lists the frame.<N>.jpg objects under the prefix and writes a fresh
manifest ordered by frame number. Existing hashes are discarded.`,
	RunE: runBuild,
}

func init() {
	buildFlags.register(buildCmd)
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, false)
	if err != nil {
		slog.Error("Failed to initialize framehash", "error", err)
		return err
	}
	defer func() {
		_ = app.Stop(ctx)
	}()

	req := buildFlags.request()
	m, err := app.Build(ctx, req)
	if err != nil {
		slog.Error("Failed to build manifest", "error", err)
		return err
	}

	fmt.Printf("Built %s with %d frames\n", req.ID(), len(m.Frames))
	return nil
}
