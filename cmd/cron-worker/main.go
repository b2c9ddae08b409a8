package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/shopledger-backend/internal/app"
	"github.com/angelmondragon/shopledger-backend/internal/cron"
	"github.com/angelmondragon/shopledger-backend/pkg/config"
	"github.com/angelmondragon/shopledger-backend/pkg/db"
	"github.com/angelmondragon/shopledger-backend/pkg/instance"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/metrics"
	"github.com/angelmondragon/shopledger-backend/pkg/migrate"
	"github.com/angelmondragon/shopledger-backend/pkg/redis"
)

const lockKeyFormat = "cron-worker:%s"

func main() {
	jobs := flag.String("job", "", "comma separated jobs to run once and exit; empty runs the schedule")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	services, err := app.NewServices(app.Params{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Shared:     redisClient,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(logg, services)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"jobs":     registry.Names(),
	})

	if names := splitJobs(*jobs); len(names) > 0 {
		logg.Info(ctx, "running cron jobs once")
		result, err := service.RunOnce(ctx, names...)
		if err != nil {
			logg.Error(ctx, "cron run failed", err)
			os.Exit(1)
		}
		if len(result.Failed) > 0 {
			logg.Warn(logg.WithField(ctx, "failed", result.Failed), "cron run finished with failures")
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(logg *logger.Logger, services *app.Services) (*cron.Registry, error) {
	backfill, err := cron.NewDebtBackfillJob(cron.DebtBackfillJobParams{Logger: logg, Debts: services.Debts})
	if err != nil {
		return nil, err
	}
	expiry, err := cron.NewSubscriptionExpiryJob(cron.SubscriptionExpiryJobParams{Logger: logg, Subscriptions: services.Subscriptions})
	if err != nil {
		return nil, err
	}
	warm, err := cron.NewAnalyticsWarmJob(cron.AnalyticsWarmJobParams{Logger: logg, Analytics: services.Billing})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(backfill, expiry, warm), nil
}

func splitJobs(value string) []string {
	var names []string
	for _, name := range strings.Split(value, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
