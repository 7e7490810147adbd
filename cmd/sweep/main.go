package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/simple-newsletter/pkg/newsletter"
	"github.com/tendant/simple-newsletter/pkg/newsletter/config"
)

type Env struct {
	MinAge  time.Duration `env:"SWEEP_MIN_AGE" env-default:"24h"`
	Timeout time.Duration `env:"SWEEP_TIMEOUT" env-default:"10m"`
}

func main() {
	_ = godotenv.Load()

	var env Env
	if err := cleanenv.ReadEnv(&env); err != nil {
		slog.Error("Failed to read environment", "err", err)
		os.Exit(1)
	}

	dryRun := flag.Bool("dry-run", true, "report orphaned assets without deleting them")
	minAge := flag.Duration("min-age", env.MinAge, "only remove assets older than this")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	serverConfig, err := config.Load(config.WithEnv(""), config.WithCoverGeneration(false, ""))
	if err != nil {
		logger.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}
	if serverConfig.DatabaseType == "memory" {
		logger.Error("Refusing to sweep against an in-memory database; set DATABASE_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, env.Timeout)
	defer cancel()

	components, err := serverConfig.Build(ctx, logger)
	if err != nil {
		logger.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer components.Close()

	sweeper := newsletter.NewSweeper(components.Service,
		newsletter.WithMinAge(*minAge),
		newsletter.WithSweepLogger(logger),
	)
	report, err := sweeper.Sweep(ctx, *dryRun)
	if err != nil {
		if errors.Is(err, newsletter.ErrUnresolvedReferences) {
			logger.Error("Refusing to delete: PUBLIC_BASE_URL, STORAGE_URL and CDN_BASE_URL must match the server's; run with -dry-run to list the URLs")
		}
		logger.Error("Sweep failed", "err", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("Failed to write report", "err", err)
		os.Exit(1)
	}
	if len(report.Failed) > 0 {
		os.Exit(2)
	}
}
