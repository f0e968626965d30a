package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netbillhq/netbill-backend/api/controllers"
	webhookcontrollers "github.com/netbillhq/netbill-backend/api/controllers/webhooks"
	"github.com/netbillhq/netbill-backend/api/middleware"
	"github.com/netbillhq/netbill-backend/internal/bills"
	paymentwebhook "github.com/netbillhq/netbill-backend/internal/webhooks/payment"
	"github.com/netbillhq/netbill-backend/pkg/config"
	"github.com/netbillhq/netbill-backend/pkg/db"
	"github.com/netbillhq/netbill-backend/pkg/logger"
	"github.com/netbillhq/netbill-backend/pkg/redis"
)

// NewRouter wires the HTTP surface: health probes, the normalized payment
// event webhook, and subscription bill settlement. Everything else in the
// platform runs through the billing worker.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger db.Pinger,
	redisPinger redis.Pinger,
	paymentWebhookService *paymentwebhook.Service,
	billService *bills.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, redisPinger))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/payment", webhookcontrollers.PaymentWebhook(paymentWebhookService, logg))
		r.Post("/bills/{billID}/settle", controllers.SettleBill(billService, logg))
	})

	return r
}
