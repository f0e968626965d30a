package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/netbillhq/netbill-backend/api/routes"
	"github.com/netbillhq/netbill-backend/internal/bills"
	"github.com/netbillhq/netbill-backend/internal/commissions"
	"github.com/netbillhq/netbill-backend/internal/invoices"
	"github.com/netbillhq/netbill-backend/internal/ledger"
	"github.com/netbillhq/netbill-backend/internal/payments"
	"github.com/netbillhq/netbill-backend/internal/users"
	paymentwebhook "github.com/netbillhq/netbill-backend/internal/webhooks/payment"
	"github.com/netbillhq/netbill-backend/pkg/config"
	"github.com/netbillhq/netbill-backend/pkg/db"
	"github.com/netbillhq/netbill-backend/pkg/instance"
	"github.com/netbillhq/netbill-backend/pkg/logger"
	"github.com/netbillhq/netbill-backend/pkg/migrate"
	"github.com/netbillhq/netbill-backend/pkg/redis"
)

const webhookIdempotencyTTL = 48 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	webhookService, billService, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, webhookService, billService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*paymentwebhook.Service, *bills.Service, error) {
	conn := dbClient.DB()
	userRepo := users.NewRepository(conn)
	invoiceRepo := invoices.NewRepository(conn)
	paymentRepo := payments.NewRepository(conn)

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:  ledger.NewRepository(conn),
		DB:    dbClient,
		Chart: ledger.DefaultChart(cfg.Billing),
	})
	if err != nil {
		return nil, nil, err
	}

	levelRates, err := cfg.Billing.LevelRates()
	if err != nil {
		return nil, nil, err
	}
	commissionService, err := commissions.NewService(commissions.ServiceParams{
		Repo:       commissions.NewRepository(conn),
		Users:      userRepo,
		DB:         dbClient,
		LevelRates: levelRates,
		MaxDepth:   cfg.Billing.CommissionMaxDepth,
	})
	if err != nil {
		return nil, nil, err
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:        paymentRepo,
		Invoices:    invoiceRepo,
		Users:       userRepo,
		Ledger:      ledgerService,
		Commissions: commissionService,
		DB:          dbClient,
		Billing:     cfg.Billing,
	})
	if err != nil {
		return nil, nil, err
	}

	billService, err := bills.NewService(bills.ServiceParams{
		Repo:            bills.NewRepository(conn),
		DB:              dbClient,
		Ledger:          ledgerService,
		Billing:         cfg.Billing,
		GracePeriodDays: cfg.Billing.GracePeriodDays,
	})
	if err != nil {
		return nil, nil, err
	}

	guard, err := paymentwebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "payment-webhook")
	if err != nil {
		return nil, nil, err
	}

	webhookService, err := paymentwebhook.NewService(paymentwebhook.ServiceParams{
		Logger:   logg,
		Payments: paymentService,
		Invoices: invoiceRepo,
		Guard:    guard,
	})
	if err != nil {
		return nil, nil, err
	}
	return webhookService, billService, nil
}
