package controllers

import (
	"net/http"

	"github.com/netbillhq/netbill-backend/api/responses"
	"github.com/netbillhq/netbill-backend/pkg/config"
	"github.com/netbillhq/netbill-backend/pkg/db"
	"github.com/netbillhq/netbill-backend/pkg/logger"
	"github.com/netbillhq/netbill-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-NetBill-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports per-dependency status and 503s when any check fails.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbPinger db.Pinger, redisPinger redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		w.Header().Set("X-NetBill-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		if dbPinger != nil {
			if err := dbPinger.Ping(ctx); err != nil {
				checks["db"] = "down"
				healthy = false
				logg.Error(ctx, "db health check failed", err)
			} else {
				checks["db"] = "up"
			}
		}
		if redisPinger != nil {
			if err := redisPinger.Ping(ctx); err != nil {
				checks["redis"] = "down"
				healthy = false
				logg.Error(ctx, "redis health check failed", err)
			} else {
				checks["redis"] = "up"
			}
		}

		status := http.StatusOK
		overall := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"status": overall,
			"checks": checks,
		})
	}
}
