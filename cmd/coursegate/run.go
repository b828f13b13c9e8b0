package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openlearnhq/coursegate/internal/activity"
	"github.com/openlearnhq/coursegate/internal/botmanager"
	"github.com/openlearnhq/coursegate/internal/cache"
	"github.com/openlearnhq/coursegate/internal/catalog"
	appconfig "github.com/openlearnhq/coursegate/internal/config"
	"github.com/openlearnhq/coursegate/internal/convo"
	"github.com/openlearnhq/coursegate/internal/credentials"
	"github.com/openlearnhq/coursegate/internal/metrics"
	"github.com/openlearnhq/coursegate/internal/ratelimit"
	"github.com/openlearnhq/coursegate/internal/server"
	"github.com/openlearnhq/coursegate/internal/store"
	"github.com/openlearnhq/coursegate/internal/woocommerce"
	"github.com/openlearnhq/coursegate/pkg/health"
	"github.com/openlearnhq/coursegate/pkg/logger"
)

// run wires the components and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) error {
	m := metrics.Registry(cfg.ServiceName)

	db, err := store.NewPostgres(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := store.RunMigrations(db.Pool(), log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	creds := credentials.NewSource(db, cfg.Telegram, cfg.Commerce, log)
	if err := creds.EnsureDefaults(ctx); err != nil {
		return fmt.Errorf("seed default settings: %w", err)
	}

	checker := health.NewChecker(0, log)
	checker.Add(health.NewCheck("database", db.Ping))

	var redisCache *cache.Redis
	if cfg.Redis.Addr != "" {
		redisCache = cache.New(cfg.Redis, log)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unreachable at startup, continuing without warm cache", logger.ErrorField(err))
		}
		checker.Add(health.NewCheck("redis", redisCache.Ping))
	}

	var courseCache catalog.JSONCache
	if redisCache != nil {
		courseCache = redisCache
	}
	courses := catalog.New(db, courseCache, cfg.Redis.CacheTTL, log)

	recorder := activity.NewRecorder(db, log)
	oracle := woocommerce.New(creds, cfg.Commerce.Timeout, log, m)

	sessions := convo.NewSessionStore(cfg.Conversation.SessionTTL)
	defer sessions.Close()

	chatLimiter := ratelimit.New(cfg.RateLimit.ChatPerMinute, time.Minute)
	defer chatLimiter.Close()

	engine, err := convo.NewEngine(convo.Config{
		Records:      db,
		Courses:      courses,
		Oracle:       oracle,
		Sessions:     sessions,
		Limiter:      chatLimiter,
		Activity:     recorder,
		Metrics:      m,
		Logger:       log,
		SummaryLimit: cfg.Conversation.SummaryLimit,
	})
	if err != nil {
		return fmt.Errorf("create conversation engine: %w", err)
	}

	manager := botmanager.New(creds, engine, m, log, cfg.Telegram.Debug)

	httpServer, err := server.New(server.Deps{
		Config:     cfg.Server,
		RateLimit:  cfg.RateLimit,
		Settings:   db,
		Activities: db,
		Manager:    manager,
		Catalog:    courses,
		Recorder:   recorder,
		Health:     checker,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	if err := manager.Start(ctx); err != nil {
		// The admin API can supply a token later, so a missing token is not
		// fatal: the service comes up with the HTTP surface only.
		if !errors.Is(err, botmanager.ErrConfigurationMissing) {
			return fmt.Errorf("start bot: %w", err)
		}
		log.Warn("bot not started: no token configured; set it through the settings API")
	}
	defer manager.Stop()

	return httpServer.Run(ctx)
}
