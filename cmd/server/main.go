package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/simple-newsletter/pkg/newsletter"
	"github.com/tendant/simple-newsletter/pkg/newsletter/api"
	"github.com/tendant/simple-newsletter/pkg/newsletter/config"
)

// Env holds process settings that are not part of the library configuration
type Env struct {
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info"`
	LogFormat       string        `env:"LOG_FORMAT" env-default:"text"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

func newLogger(env Env) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(env.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(env.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func main() {
	_ = godotenv.Load()

	var env Env
	if err := cleanenv.ReadEnv(&env); err != nil {
		slog.Error("Failed to read environment", "err", err)
		os.Exit(1)
	}
	logger := newLogger(env)
	slog.SetDefault(logger)

	serverConfig, err := config.Load(config.WithEnv(""))
	if err != nil {
		logger.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	components, err := serverConfig.Build(ctx, logger, newsletter.WithStepObserver(api.ObserveStep))
	if err != nil {
		logger.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer components.Close()

	files := make(map[newsletter.AssetClass]http.Handler)
	for ns, store := range components.BlobStores {
		if served, ok := store.(interface{ Handler() http.Handler }); ok {
			files[ns] = served.Handler()
		}
	}

	limits := api.Limits{
		MaxDocumentBytes: serverConfig.MaxDocumentBytes,
		MaxCoverBytes:    serverConfig.MaxCoverBytes,
	}
	router := api.NewRouter(api.RouterConfig{
		Newsletters: api.NewNewsletterHandler(components.Service, components.Publisher, limits, logger),
		Health:      api.NewHealthHandler(components.Service, serverConfig.Environment, logger),
		Files:       files,
		EnableCORS:  serverConfig.Environment == "development",
		Timeout:     env.RequestTimeout,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Newsletter server starting",
			"port", serverConfig.Port,
			"environment", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"storage", serverConfig.StorageBackends[0].Type,
			"served_namespaces", len(files))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}

	logger.Info("Server exiting")
}
