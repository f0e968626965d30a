package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/netbillhq/netbill-backend/internal/bills"
	"github.com/netbillhq/netbill-backend/internal/cron"
	"github.com/netbillhq/netbill-backend/internal/invoices"
	"github.com/netbillhq/netbill-backend/internal/packages"
	"github.com/netbillhq/netbill-backend/internal/users"
	"github.com/netbillhq/netbill-backend/pkg/config"
	"github.com/netbillhq/netbill-backend/pkg/db"
	"github.com/netbillhq/netbill-backend/pkg/logger"
	"github.com/netbillhq/netbill-backend/pkg/metrics"
	"github.com/netbillhq/netbill-backend/pkg/migrate"
	"github.com/netbillhq/netbill-backend/pkg/redis"
)

const lockKeyFormat = "nb:billing-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "billing-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "billing-worker"

	logg = logger.New(logger.Options{
		ServiceName: "billing-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
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

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build job registry", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting billing worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "billing worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "billing worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	conn := dbClient.DB()
	invoiceRepo := invoices.NewRepository(conn)
	billRepo := bills.NewRepository(conn)
	packageRepo := packages.NewRepository(conn)
	userRepo := users.NewRepository(conn)

	invoiceGenerator, err := invoices.NewService(invoices.ServiceParams{
		Repo:               invoiceRepo,
		DB:                 dbClient,
		GracePeriodDays:    cfg.Billing.GracePeriodDays,
		ProrationBasisDays: cfg.Billing.ProrationBasisDays,
	})
	if err != nil {
		return nil, err
	}
	billGenerator, err := bills.NewService(bills.ServiceParams{
		Repo:            billRepo,
		DB:              dbClient,
		GracePeriodDays: cfg.Billing.GracePeriodDays,
	})
	if err != nil {
		return nil, err
	}

	invoiceJobParams := cron.InvoiceJobParams{
		Logger:    logg,
		Generator: invoiceGenerator,
		Invoices:  invoiceRepo,
		Packages:  packageRepo,
		ChunkSize: cfg.Billing.BatchChunkSize,
	}
	monthlyJob, err := cron.NewMonthlyInvoiceJob(invoiceJobParams)
	if err != nil {
		return nil, err
	}
	dailyJob, err := cron.NewDailyInvoiceJob(invoiceJobParams)
	if err != nil {
		return nil, err
	}
	overdueJob, err := cron.NewOverdueJob(cron.OverdueJobParams{
		Logger:    logg,
		Invoices:  invoiceRepo,
		Bills:     billRepo,
		ChunkSize: cfg.Billing.BatchChunkSize,
	})
	if err != nil {
		return nil, err
	}
	lockJob, err := cron.NewAccountLockJob(cron.AccountLockJobParams{
		Logger:    logg,
		Invoices:  invoiceRepo,
		Users:     userRepo,
		ChunkSize: cfg.Billing.BatchChunkSize,
	})
	if err != nil {
		return nil, err
	}
	subscriptionJob, err := cron.NewSubscriptionBillJob(cron.SubscriptionBillJobParams{
		Logger:    logg,
		Generator: billGenerator,
		Bills:     billRepo,
		Packages:  packageRepo,
		ChunkSize: cfg.Billing.BatchChunkSize,
	})
	if err != nil {
		return nil, err
	}

	// Order matters: invoices exist before the overdue scan, and accounts
	// lock only after the scan has marked everything past due.
	return cron.NewRegistry(
		monthlyJob,
		dailyJob,
		subscriptionJob,
		overdueJob,
		lockJob,
	), nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
