package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/api/controllers"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/api/routes"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/admin"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/engine"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/flow"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/inventory"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/ledger"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/session"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/config"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/db"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/metrics"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "bot"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "bot",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	loc, err := cfg.Rental.Location()
	if err != nil {
		logg.Error(context.Background(), "failed to resolve timezone", err)
		os.Exit(1)
	}

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

	var redisClient *redis.Client
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	sessions, err := session.NewStore(cfg.Session, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create session store", err)
		os.Exit(1)
	}

	itemsRepo := inventory.NewRepository(dbClient.DB())
	rentalsRepo := ledger.NewRepository(dbClient.DB())
	engineMetrics := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)

	eng, err := engine.New(engine.Params{
		Logger:       logg,
		Tx:           dbClient,
		Items:        itemsRepo,
		Rentals:      rentalsRepo,
		Metrics:      engineMetrics,
		MaxQuantity:  cfg.Rental.MaxQuantity,
		Location:     loc,
		StoreTimeout: cfg.DB.StoreTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create availability engine", err)
		os.Exit(1)
	}

	flows, err := flow.NewManager(flow.ManagerParams{
		Logger: logg,
		Engine: eng,
		Limits: flow.Limits{
			MaxQuantity:     cfg.Rental.MaxQuantity,
			MaxDurationDays: cfg.Rental.MaxDurationDays,
		},
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create flow manager", err)
		os.Exit(1)
	}

	adminSvc, err := admin.NewService(admin.ServiceParams{
		Logger:   logg,
		Rentals:  rentalsRepo,
		Location: loc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create admin service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting bot server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisPinger(redisClient),
			Items:    itemsRepo,
			Engine:   eng,
			Flows:    flows,
			Sessions: sessions,
			AdminSvc: adminSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "bot server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// redisPinger keeps a missing redis out of the readiness probe: a typed
// nil pointer inside the interface would not compare equal to nil there.
func redisPinger(c *redis.Client) controllers.Pinger {
	if c == nil {
		return nil
	}
	return c
}
