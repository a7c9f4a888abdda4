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
	"github.com/vietddude/farewatch/internal/infra/proxy"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Health check every configured proxy",
	Run:   runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	app, err := control.NewHarvester(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize harvester", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	results := app.ProbeProxies(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PROXY\tSTATUS\tLATENCY\tERROR")
	for _, r := range results {
		status, errText := "ok", ""
		if !r.Healthy() {
			status, errText = "failed", r.Err.Error()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Address, status, r.Latency.Round(time.Millisecond), errText)
	}
	_ = w.Flush()

	fmt.Printf("\n%d of %d proxies healthy\n", len(proxy.HealthyAddresses(results)), len(results))
}
