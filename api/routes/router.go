package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/api/controllers"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/api/middleware"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/admin"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/engine"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/flow"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/inventory"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/session"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/config"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
)

// RouterParams carry everything the chat and ops HTTP surface needs.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Items    inventory.Repository
	Engine   *engine.Engine
	Flows    *flow.Manager
	Sessions session.Store
	AdminSvc admin.Service
}

// NewRouter builds the HTTP handler: health and metrics plus a small
// read-only API over inventory and the rental ledger.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(params.Logger),
		middleware.RequestID(params.Logger),
		middleware.Logging(params.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(params.Config))
		r.Get("/ready", controllers.HealthReady(params.Config, params.Logger, map[string]controllers.Pinger{
			"database": params.DB,
			"redis":    params.Redis,
		}))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat/events", controllers.ChatEvent(params.Flows, params.Sessions, params.Config, params.Logger))
		r.Get("/items", controllers.InventoryList(params.Items, params.Config, params.Logger))
		r.Get("/items/{itemID}/availability", controllers.ItemAvailability(params.Engine, params.Logger))
		r.Get("/admin/stats", controllers.AdminStats(params.AdminSvc, params.Config, params.Logger))
	})

	return r
}
