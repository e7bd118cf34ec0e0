package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var (
	resetFlags  requestFlags
	resetHashes bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the pass count and fingerprint index of a manifest",
	Long: `Reset clears the pass count, pass lease and indexed fingerprints of a manifest.
With --hashes every frame is marked unprocessed so the next run starts over.`,
	RunE: runReset,
}

func init() {
	resetFlags.register(resetCmd)
	resetCmd.Flags().BoolVar(&resetHashes, "hashes", false, "also clear the hashes stored in the manifest")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, false)
	if err != nil {
		slog.Error("Failed to initialize framehash", "error", err)
		return err
	}
	defer func() {
		_ = app.Stop(ctx)
	}()

	req := resetFlags.request()
	if err := app.Scheduler().Reset(ctx, req, resetHashes); err != nil {
		slog.Error("Failed to reset manifest", "error", err)
		return err
	}

	fmt.Printf("Successfully reset %s\n", req.ID())
	return nil
}
