package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/farewatch/internal/control"
	"github.com/vietddude/farewatch/internal/core/domain"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the tasks a run would dispatch without opening a browser",
	Run:   runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	app, err := control.NewHarvester(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize harvester", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	tasks, err := app.Plan(time.Now())
	if err != nil {
		slog.Error("Failed to plan tasks", "error", err)
		return
	}

	pending := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "DESTINATION\tCITY\tDATE\tSTATE\tURL")
	for _, t := range tasks {
		state := "pending"
		stored, err := app.Stored(ctx, t.Key)
		switch {
		case err != nil:
			state = "unknown"
		case stored:
			state = "stored"
		default:
			pending++
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.Key.Destination, domain.DestinationName(t.Key.Destination),
			t.Key.DateString(), state, cfg.Search.SearchURL(t.Key))
	}
	_ = w.Flush()

	fmt.Printf("\n%d tasks, %d pending\n", len(tasks), pending)
}
