package controllers

import (
	"context"
	"net/http"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/api/responses"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/config"
	pkgerrors "github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/errors"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
)

// Pinger is anything that can verify its backing connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RentalBot-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every wired dependency answers a ping.
// Nil pingers are skipped so deployments without Redis still report ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RentalBot-Env", cfg.App.Env)
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				ctx := logg.WithField(r.Context(), "dependency", name)
				logg.Error(ctx, "readiness probe failed", err)
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unreachable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
