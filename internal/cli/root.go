package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/farewatch/internal/control"
	"github.com/vietddude/farewatch/internal/core/config"
	"github.com/vietddude/stylelog"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "farewatch",
	Short: "Flight fare harvester",
	Long:  `Farewatch drives a headless browser through a rotating proxy pool to collect flight search results per destination and date.`,
	Run:   runHarvest,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig reads .env and the config file, then sets up logging.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	switch {
	case isDebug || cfg.Logging.Level == "debug":
		slogLevel = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		slogLevel = slog.LevelWarn
	case cfg.Logging.Level == "error":
		slogLevel = slog.LevelError
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return cfg
}

func runHarvest(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := control.NewHarvester(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize harvester", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Prepare(ctx); err != nil {
		slog.Error("Failed to prepare harvest", "error", err)
		app.Close()
		os.Exit(1)
	}

	slog.Info("Harvester started", "config", cfgPath)

	summary, err := app.Run(ctx)
	if errors.Is(err, context.Canceled) {
		slog.Warn("Harvest interrupted, shutting down...")
	} else if err != nil {
		slog.Error("Harvest failed", "error", err)
		app.Close()
		os.Exit(1)
	}

	if summary != nil && summary.Exhausted {
		app.Close()
		os.Exit(2)
	}
}
