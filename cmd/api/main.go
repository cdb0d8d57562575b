package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-dashboard/internal/api/http"
	"github.com/spec-kit/ticket-dashboard/internal/api/http/handlers"
	"github.com/spec-kit/ticket-dashboard/internal/auth"
	"github.com/spec-kit/ticket-dashboard/internal/cache"
	"github.com/spec-kit/ticket-dashboard/internal/config"
	"github.com/spec-kit/ticket-dashboard/internal/observability"
	"github.com/spec-kit/ticket-dashboard/internal/persistence"
	"github.com/spec-kit/ticket-dashboard/internal/repository"
	"github.com/spec-kit/ticket-dashboard/internal/search"
	"github.com/spec-kit/ticket-dashboard/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	flagSet := pflag.NewFlagSet("ticket-dashboard", pflag.ContinueOnError)
	envFile := flagSet.String("env-file", ".env", "dotenv file loaded before reading the environment")
	migrateOnly := flagSet.Bool("migrate-only", false, "apply database migrations and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		log.Fatalf("invalid flags: %v", err)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations || *migrateOnly {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		if *migrateOnly {
			return
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	ticketRepo := repository.NewTicketRepository(pg.PoolHandle(), cfg.Dashboard.TicketTable)

	dashboardService := service.NewDashboardService(cfg.Dashboard, service.DashboardDependencies{
		TicketRepo: ticketRepo,
		Cache:      cache.NewRedisDashboardCache(redis.Client, cfg.Dashboard.CacheTTL()),
		Metrics:    metrics,
		Logger:     logger.Named("dashboard"),
	})
	searchService := service.NewSearchService(service.SearchDependencies{
		Searcher:        search.NewClient(cfg.Search, dashboardService.Location(), logger.Named("search")),
		TicketRepo:      ticketRepo,
		KeywordFallback: cfg.Search.KeywordFallback,
		Limit:           cfg.Search.MaxResults,
		Metrics:         metrics,
		Logger:          logger.Named("search"),
	})

	var tokens *auth.TokenManager
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0)
	} else {
		logger.Warn("AUTH_JWT_SECRET not provided; viewer tokens are not verified")
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	validate := handlers.NewValidator()
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Dashboard: handlers.NewDashboardHandler(dashboardService, validate),
		Tickets:   handlers.NewTicketsHandler(dashboardService, validate),
		Search:    handlers.NewSearchHandler(searchService, validate, dashboardService.Location()),
		Viewer:    auth.NewViewerMiddleware(tokens),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
