package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/shopledger-backend/api/responses"
	"github.com/angelmondragon/shopledger-backend/pkg/config"
	"github.com/angelmondragon/shopledger-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/shopledger-backend/pkg/errors"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
	"github.com/angelmondragon/shopledger-backend/pkg/redis"
)

const readyTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ShopLedger-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings postgres and redis. Either failing reports 503 with
// the failing dependency in the details.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbPinger db.Pinger, redisPinger redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ShopLedger-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := map[string]string{}
		failed := false
		for name, pinger := range map[string]interface{ Ping(context.Context) error }{
			"database": dbPinger,
			"redis":    redisPinger,
		} {
			if pinger == nil {
				checks[name] = "skipped"
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				logg.Error(logg.WithField(ctx, "dependency", name), "health.ready.ping_failed", err)
				checks[name] = "down"
				failed = true
				continue
			}
			checks[name] = "up"
		}

		if failed {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeUnavailable, "dependencies unavailable").WithDetails(checks))
			return
		}
		checks["status"] = "ready"
		responses.WriteSuccess(w, checks)
	}
}
