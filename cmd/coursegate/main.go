package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	appconfig "github.com/openlearnhq/coursegate/internal/config"
	"github.com/openlearnhq/coursegate/pkg/config"
	"github.com/openlearnhq/coursegate/pkg/logger"
)

func main() {
	var cfg appconfig.AppConfig
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	if err := config.GetConfig(&cfg, configPath, true); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{
		Level:   cfg.GetLogLevel(),
		Format:  cfg.Logging.Format,
		Service: cfg.ServiceName,
	})
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, &cfg, log); err != nil {
		log.Error("service terminated", logger.ErrorField(err))
		os.Exit(1)
	}
	log.Info("service stopped")
}
