package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vietddude/farewatch/internal/control"
	"github.com/vietddude/farewatch/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List tasks abandoned by previous runs",
	Run:   runStatus,
}

var resolveID string

func init() {
	statusCmd.Flags().StringVar(&resolveID, "resolve", "", "remove a failed task from the ledger by id")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	app, err := control.NewHarvester(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	ledger := app.FailedTasks()

	if resolveID != "" {
		if err := ledger.MarkResolved(ctx, resolveID); err != nil {
			slog.Error("Failed to resolve task", "id", resolveID, "error", err)
			return
		}
		fmt.Printf("Resolved failed task %s\n", resolveID)
		return
	}

	printCoverage(ctx, app)

	tasks, err := ledger.GetAll(ctx)
	if err != nil {
		slog.Error("Failed to list failed tasks", "error", err)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tDESTINATION\tDATE\tATTEMPTS\tOUTCOME\tFAILED AT\tERROR")
	for _, t := range tasks {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			t.ID, t.Destination, t.FlightDate, t.Attempts, t.LastOutcome,
			t.FailedAt.Format("2006-01-02 15:04:05"), t.Error)
	}
	_ = w.Flush()
}

func printCoverage(ctx context.Context, app *control.Harvester) {
	cov, ok, err := app.Coverage(ctx)
	if !ok {
		return
	}
	if err != nil {
		slog.Warn("Failed to read coverage", "error", err)
		return
	}

	codes := make([]string, 0, len(cov))
	for code := range cov {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "DESTINATION\tCITY\tSTORED DATES")
	for _, code := range codes {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", code, domain.DestinationName(code), cov[code])
	}
	_ = w.Flush()
	fmt.Println()
}
