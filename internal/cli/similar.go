package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	similarFlags requestFlags
	similarHash  string
	similarLimit int
)

var similarCmd = &cobra.Command{
	Use:   "similar",
	Short: "List the indexed frames closest to a perceptual hash",
	RunE:  runSimilar,
}

func init() {
	similarFlags.register(similarCmd)
	similarCmd.Flags().StringVar(&similarHash, "hash", "", "16 hex digit perceptual hash")
	similarCmd.Flags().IntVar(&similarLimit, "limit", 10, "maximum number of frames")
	_ = similarCmd.MarkFlagRequired("hash")
	rootCmd.AddCommand(similarCmd)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, false)
	if err != nil {
		slog.Error("Failed to initialize framehash", "error", err)
		return err
	}
	defer func() {
		_ = app.Stop(ctx)
	}()

	records, err := app.Similar(ctx, similarFlags.request(), similarHash, similarLimit)
	if err != nil {
		slog.Error("Failed to query fingerprints", "error", err)
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "INDEX\tNAME\tFRAME\tTIMESTAMP\tHASH\tSHARPNESS\tDISTANCE")
	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%.2f\t%.3f\n",
			r.Index, r.Name, r.FrameNo, r.Timestamp, r.Hash, r.Sharpness, r.Distance)
	}
	return w.Flush()
}
