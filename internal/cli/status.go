package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusFlags requestFlags

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the progress of a manifest",
	RunE:  runStatus,
}

func init() {
	statusFlags.register(statusCmd)
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, false)
	if err != nil {
		slog.Error("Failed to initialize framehash", "error", err)
		return err
	}
	defer func() {
		_ = app.Stop(ctx)
	}()

	report, err := app.Scheduler().Status(ctx, statusFlags.request())
	if err != nil {
		slog.Error("Failed to read status", "error", err)
		return err
	}

	lastPass := "-"
	if report.Passes > 0 && !report.FinishedAt.IsZero() {
		lastPass = report.FinishedAt.Format(time.RFC3339)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "MANIFEST\tFRAMES\tPROCESSED\tFAILED\tPROGRESS\tPASSES\tLAST PASS")
	_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d%%\t%d\t%s\n",
		report.Manifest,
		report.Total,
		report.Processed,
		report.Failed,
		report.Progress,
		report.Passes,
		lastPass,
	)
	return w.Flush()
}
